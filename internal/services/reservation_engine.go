package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/events"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	tracerName         = "busbooking/internal/services"
	defaultLockTimeout = 5 * time.Second
	publishTimeout     = 3 * time.Second
)

// ReserveInput identifies the seat being claimed. Optional fields default to
// now, the trip's current price and CONFIRMED.
type ReserveInput struct {
	TripID     domain.ID
	SeatNumber string
	RiderID    domain.ID
	OccurredAt *time.Time
	Amount     *int64
	Status     domain.BookingStatus
}

// ReservationEngine moves a seat between AVAILABLE and BOOKED together with
// the trip counter and the ledger row, inside one store unit.
type ReservationEngine struct {
	Store       repositories.Store
	Publisher   events.Publisher
	Tracer      trace.Tracer
	LockTimeout time.Duration
	Now         func() time.Time

	anomalies atomic.Int64
}

func NewReservationEngine(store repositories.Store, publisher events.Publisher, lockTimeout time.Duration) *ReservationEngine {
	return &ReservationEngine{Store: store, Publisher: publisher, LockTimeout: lockTimeout}
}

// Anomalies is the number of inconsistencies observed and repaired so far.
func (e *ReservationEngine) Anomalies() int64 {
	return e.anomalies.Load()
}

func (e *ReservationEngine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer(tracerName)
}

func (e *ReservationEngine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return utils.NowUTC()
}

func (e *ReservationEngine) lockTimeout() time.Duration {
	if e.LockTimeout > 0 {
		return e.LockTimeout
	}
	return defaultLockTimeout
}

func (e *ReservationEngine) Reserve(ctx context.Context, in ReserveInput) (models.Booking, error) {
	seatNumber := utils.NormalizeSeatNumber(in.SeatNumber)
	if err := validateReserve(in, seatNumber); err != nil {
		return models.Booking{}, err
	}

	ctx, span := e.tracer().Start(ctx, "reservation.reserve", trace.WithAttributes(
		attribute.Int64("trip.id", in.TripID),
		attribute.String("seat.number", seatNumber),
		attribute.Int64("rider.id", in.RiderID),
	))
	defer span.End()

	unitCtx, cancel := context.WithTimeout(ctx, e.lockTimeout())
	defer cancel()

	var booking models.Booking
	err := e.Store.InTx(unitCtx, func(tx repositories.Tx) error {
		if _, err := tx.GetTrip(unitCtx, in.TripID); err != nil {
			return storeError(err, "trip", fmt.Sprintf("trip %d", in.TripID))
		}

		seat, err := tx.LockSeat(unitCtx, in.TripID, seatNumber)
		if err != nil {
			return storeError(err, "seat", fmt.Sprintf("seat %s on trip %d", seatNumber, in.TripID))
		}
		if seat.State == domain.SeatBooked {
			return domain.ConflictError{Resource: "seat", Msg: fmt.Sprintf("seat %s on trip %d is already booked", seatNumber, in.TripID)}
		}
		if err := tx.SetSeatState(unitCtx, seat.ID, domain.SeatAvailable, domain.SeatBooked); err != nil {
			return storeError(err, "seat", fmt.Sprintf("seat %s on trip %d is already booked", seatNumber, in.TripID))
		}

		trip, err := tx.LockTrip(unitCtx, in.TripID)
		if err != nil {
			return storeError(err, "trip", fmt.Sprintf("trip %d", in.TripID))
		}
		next := trip.AvailableSeats - 1
		if trip.AvailableSeats <= 0 {
			e.anomaly(ctx, "available counter already zero while booking a free seat",
				zap.Int64("trip_id", in.TripID),
				zap.String("seat_number", seatNumber),
				zap.Int("available", trip.AvailableSeats),
			)
			next = 0
		}
		if err := tx.SetAvailableSeats(unitCtx, in.TripID, next); err != nil {
			return storeError(err, "trip", fmt.Sprintf("trip %d", in.TripID))
		}

		now := e.now()
		booking = models.Booking{
			Reference:  uuid.NewString(),
			RiderID:    in.RiderID,
			TripID:     in.TripID,
			SeatNumber: seatNumber,
			BookedAt:   now,
			Amount:     trip.Price,
			Status:     domain.BookingConfirmed,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if in.OccurredAt != nil && !in.OccurredAt.IsZero() {
			booking.BookedAt = in.OccurredAt.UTC()
		}
		if in.Amount != nil {
			booking.Amount = *in.Amount
		}
		if err := tx.InsertBooking(unitCtx, &booking); err != nil {
			return storeError(err, "booking", fmt.Sprintf("seat %s on trip %d", seatNumber, in.TripID))
		}
		return nil
	})
	if err != nil {
		err = storeError(err, "booking", fmt.Sprintf("seat %s on trip %d", seatNumber, in.TripID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return models.Booking{}, err
	}

	span.SetAttributes(attribute.Int64("booking.id", booking.ID))
	utils.LogEvent(utils.RequestIDFrom(ctx), "reservation", "reserve", "seat reserved",
		zap.Int64("booking_id", booking.ID),
		zap.Int64("trip_id", booking.TripID),
		zap.String("seat_number", booking.SeatNumber),
		zap.Int64("rider_id", booking.RiderID),
	)
	e.publish(ctx, events.TypeBookingConfirmed, booking)
	return booking, nil
}

func validateReserve(in ReserveInput, seatNumber string) error {
	switch {
	case in.TripID <= 0:
		return domain.ValidationError{Field: "trip_id", Msg: "is required"}
	case seatNumber == "":
		return domain.ValidationError{Field: "seat_number", Msg: fmt.Sprintf("is required (trip %d)", in.TripID)}
	case in.RiderID <= 0:
		return domain.ValidationError{Field: "rider_id", Msg: "is required"}
	case in.Amount != nil && *in.Amount < 0:
		return domain.ValidationError{Field: "amount", Msg: "must not be negative"}
	case in.Status != "" && in.Status != domain.BookingConfirmed:
		return domain.ValidationError{Field: "status", Msg: "a new booking must be CONFIRMED"}
	}
	return nil
}

// Release cancels a booking and frees its seat. It reports whether the
// booking exists; releasing an already cancelled booking changes nothing.
func (e *ReservationEngine) Release(ctx context.Context, bookingID domain.ID) (bool, error) {
	if bookingID <= 0 {
		return false, nil
	}

	ctx, span := e.tracer().Start(ctx, "reservation.release", trace.WithAttributes(
		attribute.Int64("booking.id", bookingID),
	))
	defer span.End()

	unitCtx, cancel := context.WithTimeout(ctx, e.lockTimeout())
	defer cancel()

	var (
		found     bool
		cancelled models.Booking
		changed   bool
	)
	err := e.Store.InTx(unitCtx, func(tx repositories.Tx) error {
		found, changed = false, false

		b, err := tx.LockBooking(unitCtx, bookingID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil
		}
		if err != nil {
			return storeError(err, "booking", fmt.Sprintf("booking %d", bookingID))
		}
		found = true
		if b.Status == domain.BookingCancelled {
			return nil
		}

		if err := tx.SetBookingStatus(unitCtx, bookingID, domain.BookingCancelled); err != nil {
			return storeError(err, "booking", fmt.Sprintf("booking %d", bookingID))
		}
		b.Status = domain.BookingCancelled
		cancelled, changed = b, true

		fields := []zap.Field{
			zap.Int64("booking_id", b.ID),
			zap.Int64("trip_id", b.TripID),
			zap.String("seat_number", b.SeatNumber),
		}

		seat, err := tx.LockSeat(unitCtx, b.TripID, b.SeatNumber)
		if errors.Is(err, repositories.ErrNotFound) {
			e.anomaly(ctx, "seat row missing for cancelled booking", fields...)
			return nil
		}
		if err != nil {
			return storeError(err, "seat", fmt.Sprintf("seat %s on trip %d", b.SeatNumber, b.TripID))
		}
		if seat.State != domain.SeatBooked {
			e.anomaly(ctx, "seat already available for active booking", fields...)
			return nil
		}
		if err := tx.SetSeatState(unitCtx, seat.ID, domain.SeatBooked, domain.SeatAvailable); err != nil {
			return storeError(err, "seat", fmt.Sprintf("seat %s on trip %d", b.SeatNumber, b.TripID))
		}

		trip, err := tx.LockTrip(unitCtx, b.TripID)
		if errors.Is(err, repositories.ErrNotFound) {
			e.anomaly(ctx, "trip row missing for cancelled booking", fields...)
			return nil
		}
		if err != nil {
			return storeError(err, "trip", fmt.Sprintf("trip %d", b.TripID))
		}
		next := trip.AvailableSeats + 1
		if next > trip.TotalSeats {
			e.anomaly(ctx, "available counter already at total while freeing a seat",
				append(fields, zap.Int("available", trip.AvailableSeats), zap.Int("total", trip.TotalSeats))...)
			next = trip.TotalSeats
		}
		if err := tx.SetAvailableSeats(unitCtx, b.TripID, next); err != nil {
			return storeError(err, "trip", fmt.Sprintf("trip %d", b.TripID))
		}
		return nil
	})
	if err != nil {
		err = storeError(err, "booking", fmt.Sprintf("booking %d", bookingID))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	span.SetAttributes(attribute.Bool("booking.found", found), attribute.Bool("booking.changed", changed))
	if changed {
		utils.LogEvent(utils.RequestIDFrom(ctx), "reservation", "release", "booking cancelled",
			zap.Int64("booking_id", cancelled.ID),
			zap.Int64("trip_id", cancelled.TripID),
			zap.String("seat_number", cancelled.SeatNumber),
		)
		e.publish(ctx, events.TypeBookingCancelled, cancelled)
	}
	return found, nil
}

// anomaly records a repaired inconsistency. It never fails the caller.
func (e *ReservationEngine) anomaly(ctx context.Context, msg string, fields ...zap.Field) {
	e.anomalies.Add(1)
	err := domain.InternalError{Msg: msg}
	trace.SpanFromContext(ctx).AddEvent("anomaly", trace.WithAttributes(attribute.String("anomaly", msg)))
	utils.Logger.Error(msg, append(fields,
		zap.String("request_id", utils.RequestIDFrom(ctx)),
		zap.Error(err),
	)...)
}

func (e *ReservationEngine) publish(ctx context.Context, eventType string, b models.Booking) {
	if e.Publisher == nil {
		return
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := e.Publisher.Publish(pubCtx, events.NewBookingEvent(eventType, b, e.now())); err != nil {
		utils.Logger.Warn("publish booking event failed",
			zap.String("type", eventType),
			zap.Int64("booking_id", b.ID),
			zap.Error(err),
		)
	}
}
