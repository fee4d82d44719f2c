package events

import (
	"context"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
)

const (
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
)

// BookingEvent is emitted after a reservation or release commits.
type BookingEvent struct {
	Type       string               `json:"type"`
	BookingID  domain.ID            `json:"booking_id"`
	Reference  string               `json:"reference"`
	RiderID    domain.ID            `json:"rider_id"`
	TripID     domain.ID            `json:"trip_id"`
	SeatNumber string               `json:"seat_number"`
	Amount     int64                `json:"amount"`
	Status     domain.BookingStatus `json:"status"`
	OccurredAt time.Time            `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b models.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		Type:       eventType,
		BookingID:  b.ID,
		Reference:  b.Reference,
		RiderID:    b.RiderID,
		TripID:     b.TripID,
		SeatNumber: b.SeatNumber,
		Amount:     b.Amount,
		Status:     b.Status,
		OccurredAt: at,
	}
}

// Publisher delivers booking events. Callers treat delivery as best-effort.
type Publisher interface {
	Publish(ctx context.Context, evt BookingEvent) error
	Close() error
}
