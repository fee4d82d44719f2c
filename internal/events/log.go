package events

import (
	"context"

	"busbooking/internal/utils"

	"go.uber.org/zap"
)

// LogPublisher records events in the application log when no broker is set.
type LogPublisher struct{}

func (LogPublisher) Publish(_ context.Context, evt BookingEvent) error {
	utils.Logger.Info("booking event",
		zap.String("type", evt.Type),
		zap.Int64("booking_id", evt.BookingID),
		zap.String("reference", evt.Reference),
		zap.Int64("trip_id", evt.TripID),
		zap.String("seat_number", evt.SeatNumber),
		zap.String("status", string(evt.Status)),
	)
	return nil
}

func (LogPublisher) Close() error { return nil }
