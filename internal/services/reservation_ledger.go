package services

import (
	"context"
	"errors"
	"fmt"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"

	"go.uber.org/zap"
)

// ListAll returns every booking, newest first, each with its trip snapshot.
func (e *ReservationEngine) ListAll(ctx context.Context) ([]models.BookingView, error) {
	return e.list(ctx, models.BookingFilter{})
}

func (e *ReservationEngine) ListByRider(ctx context.Context, riderID domain.ID) ([]models.BookingView, error) {
	if riderID <= 0 {
		return nil, domain.ValidationError{Field: "rider_id", Msg: "is required"}
	}
	return e.list(ctx, models.BookingFilter{RiderID: riderID})
}

func (e *ReservationEngine) ListByTrip(ctx context.Context, tripID domain.ID) ([]models.BookingView, error) {
	if tripID <= 0 {
		return nil, domain.ValidationError{Field: "trip_id", Msg: "is required"}
	}
	return e.list(ctx, models.BookingFilter{TripID: tripID})
}

func (e *ReservationEngine) GetBooking(ctx context.Context, id domain.ID) (models.BookingView, error) {
	b, err := e.Store.GetBooking(ctx, id)
	if err != nil {
		return models.BookingView{}, storeError(err, "booking", fmt.Sprintf("booking %d", id))
	}
	views := e.enrich(ctx, []models.Booking{b})
	return views[0], nil
}

func (e *ReservationEngine) list(ctx context.Context, filter models.BookingFilter) ([]models.BookingView, error) {
	rows, err := e.Store.ListBookings(ctx, filter)
	if err != nil {
		return nil, storeError(err, "booking", "list bookings")
	}
	return e.enrich(ctx, rows), nil
}

// enrich attaches trip snapshots. A trip that cannot be read is reported on
// the row instead of failing the listing.
func (e *ReservationEngine) enrich(ctx context.Context, rows []models.Booking) []models.BookingView {
	type lookup struct {
		snap *models.TripSnapshot
		err  string
	}
	cache := map[domain.ID]lookup{}

	out := make([]models.BookingView, 0, len(rows))
	for _, b := range rows {
		l, ok := cache[b.TripID]
		if !ok {
			trip, err := e.Store.GetTrip(ctx, b.TripID)
			switch {
			case err == nil:
				snap := trip.Snapshot()
				l = lookup{snap: &snap}
			case errors.Is(err, repositories.ErrNotFound):
				l = lookup{err: "trip not found"}
			default:
				l = lookup{err: "trip unavailable"}
				utils.Logger.Warn("trip lookup failed",
					zap.Int64("trip_id", b.TripID),
					zap.String("request_id", utils.RequestIDFrom(ctx)),
					zap.Error(err),
				)
			}
			cache[b.TripID] = l
		}
		out = append(out, models.BookingView{Booking: b, Trip: l.snap, TripError: l.err})
	}
	return out
}
