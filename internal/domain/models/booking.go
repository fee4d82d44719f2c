package models

import (
	"time"

	"busbooking/internal/domain"
)

// Booking is a rider's claim on one seat of one trip. Only Status changes
// after creation.
type Booking struct {
	ID         domain.ID            `json:"id"`
	Reference  string               `json:"reference"`
	RiderID    domain.ID            `json:"rider_id"`
	TripID     domain.ID            `json:"trip_id"`
	SeatNumber string               `json:"seat_number"`
	BookedAt   time.Time            `json:"booked_at"`
	Amount     int64                `json:"amount"`
	Status     domain.BookingStatus `json:"status"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func (b Booking) IsActive() bool {
	return b.Status == domain.BookingConfirmed
}

// BookingView is a ledger row with a best-effort trip snapshot.
type BookingView struct {
	Booking
	Trip      *TripSnapshot `json:"trip,omitempty"`
	TripError string        `json:"trip_error,omitempty"`
}

// BookingFilter narrows ledger listings; zero values match everything.
type BookingFilter struct {
	RiderID domain.ID
	TripID  domain.ID
}
