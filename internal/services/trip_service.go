package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"

	"go.uber.org/zap"
)

const maxSeatsPerTrip = 100

// TripInput is the catalog payload for create and update. Seat counts are
// read on create only.
type TripInput struct {
	Name          string `json:"name"`
	Route         string `json:"route"`
	DepartureDate string `json:"departure_date"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	TotalSeats    int    `json:"total_seats"`
	Price         int64  `json:"price"`
	ElderSeats    int    `json:"elder_seats"`
	PregnantSeats int    `json:"pregnant_seats"`
}

type TripService struct {
	Store repositories.Store
	// LockTimeout bounds each catalog write unit, row lock waits included.
	LockTimeout time.Duration
}

func (s TripService) inUnit(ctx context.Context, fn func(ctx context.Context, tx repositories.Tx) error) error {
	timeout := s.LockTimeout
	if timeout <= 0 {
		timeout = defaultLockTimeout
	}
	unitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Store.InTx(unitCtx, func(tx repositories.Tx) error {
		return fn(unitCtx, tx)
	})
}

func (in *TripInput) normalize() error {
	in.Name = utils.NormalizeSpace(in.Name)
	in.Route = utils.NormalizeSpace(in.Route)
	in.DepartureDate = strings.TrimSpace(in.DepartureDate)

	if in.Name == "" {
		return domain.ValidationError{Field: "name", Msg: "is required"}
	}
	if in.Route == "" {
		return domain.ValidationError{Field: "route", Msg: "is required"}
	}
	if _, err := utils.ParseDate(in.DepartureDate); err != nil {
		return domain.ValidationError{Field: "departure_date", Msg: "must be YYYY-MM-DD", Err: err}
	}
	dep, err := utils.NormalizeClock(in.DepartureTime)
	if err != nil {
		return domain.ValidationError{Field: "departure_time", Msg: "must be HH:MM", Err: err}
	}
	arr, err := utils.NormalizeClock(in.ArrivalTime)
	if err != nil {
		return domain.ValidationError{Field: "arrival_time", Msg: "must be HH:MM", Err: err}
	}
	in.DepartureTime, in.ArrivalTime = dep, arr
	if in.Price < 0 {
		return domain.ValidationError{Field: "price", Msg: "must not be negative"}
	}
	return nil
}

func (in TripInput) validateSeats() error {
	if in.TotalSeats < 1 || in.TotalSeats > maxSeatsPerTrip {
		return domain.ValidationError{Field: "total_seats", Msg: fmt.Sprintf("must be between 1 and %d", maxSeatsPerTrip)}
	}
	if in.ElderSeats < 0 || in.PregnantSeats < 0 {
		return domain.ValidationError{Field: "priority_seats", Msg: "must not be negative"}
	}
	if in.ElderSeats+in.PregnantSeats > in.TotalSeats {
		return domain.ValidationError{Field: "priority_seats", Msg: "exceed total seats"}
	}
	return nil
}

// seatClassFor lays out priority seats at the front of the bus.
func seatClassFor(n int, in TripInput) domain.SeatClass {
	switch {
	case n <= in.ElderSeats:
		return domain.SeatElder
	case n <= in.ElderSeats+in.PregnantSeats:
		return domain.SeatPregnant
	}
	return domain.SeatRegular
}

// CreateTrip inserts the trip and seats 1..TotalSeats in one unit.
func (s TripService) CreateTrip(ctx context.Context, in TripInput) (models.Trip, error) {
	if err := in.normalize(); err != nil {
		return models.Trip{}, err
	}
	if err := in.validateSeats(); err != nil {
		return models.Trip{}, err
	}

	now := utils.NowUTC()
	trip := models.Trip{
		Name:           in.Name,
		Route:          in.Route,
		DepartureDate:  in.DepartureDate,
		DepartureTime:  in.DepartureTime,
		ArrivalTime:    in.ArrivalTime,
		TotalSeats:     in.TotalSeats,
		AvailableSeats: in.TotalSeats,
		Price:          in.Price,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.inUnit(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if err := tx.InsertTrip(ctx, &trip); err != nil {
			return err
		}
		seats := make([]models.Seat, 0, in.TotalSeats)
		for n := 1; n <= in.TotalSeats; n++ {
			seats = append(seats, models.Seat{
				TripID:     trip.ID,
				SeatNumber: strconv.Itoa(n),
				Class:      seatClassFor(n, in),
				State:      domain.SeatAvailable,
				UpdatedAt:  now,
			})
		}
		return tx.InsertSeats(ctx, seats)
	})
	if err != nil {
		return models.Trip{}, storeError(err, "trip", "create trip")
	}

	utils.LogEvent(utils.RequestIDFrom(ctx), "trips", "create", "trip created",
		zap.Int64("trip_id", trip.ID),
		zap.Int("total_seats", trip.TotalSeats),
	)
	return trip, nil
}

func (s TripService) GetTrip(ctx context.Context, id domain.ID) (models.Trip, error) {
	if id <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "id", Msg: "invalid trip id"}
	}
	trip, err := s.Store.GetTrip(ctx, id)
	if err != nil {
		return models.Trip{}, storeError(err, "trip", fmt.Sprintf("trip %d", id))
	}
	return trip, nil
}

func (s TripService) TripExists(ctx context.Context, id domain.ID) (bool, error) {
	if id <= 0 {
		return false, nil
	}
	_, err := s.Store.GetTrip(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, storeError(err, "trip", fmt.Sprintf("trip %d", id))
	}
	return true, nil
}

func (s TripService) ListTrips(ctx context.Context) ([]models.Trip, error) {
	trips, err := s.Store.ListTrips(ctx, models.TripFilter{})
	if err != nil {
		return nil, storeError(err, "trip", "list trips")
	}
	return trips, nil
}

// SearchTrips matches name and route case-insensitively. When both are given
// a trip must match both; when neither is given every trip matches.
func (s TripService) SearchTrips(ctx context.Context, name, route string) ([]models.Trip, error) {
	trips, err := s.Store.ListTrips(ctx, models.TripFilter{Name: name, Route: route})
	if err != nil {
		return nil, storeError(err, "trip", "search trips")
	}
	return trips, nil
}

// UpdateTrip edits catalog fields. Seat inventory and the counter stay as
// they are.
func (s TripService) UpdateTrip(ctx context.Context, id domain.ID, in TripInput) (models.Trip, error) {
	if id <= 0 {
		return models.Trip{}, domain.ValidationError{Field: "id", Msg: "invalid trip id"}
	}
	if err := in.normalize(); err != nil {
		return models.Trip{}, err
	}

	var updated models.Trip
	err := s.inUnit(ctx, func(ctx context.Context, tx repositories.Tx) error {
		current, err := tx.LockTrip(ctx, id)
		if err != nil {
			return err
		}
		current.Name = in.Name
		current.Route = in.Route
		current.DepartureDate = in.DepartureDate
		current.DepartureTime = in.DepartureTime
		current.ArrivalTime = in.ArrivalTime
		current.Price = in.Price
		current.UpdatedAt = utils.NowUTC()
		if err := tx.UpdateTrip(ctx, current); err != nil {
			return err
		}
		updated = current
		return nil
	})
	if err != nil {
		return models.Trip{}, storeError(err, "trip", fmt.Sprintf("trip %d", id))
	}

	utils.LogEvent(utils.RequestIDFrom(ctx), "trips", "update", "trip updated", zap.Int64("trip_id", id))
	return updated, nil
}

// DeleteTrip refuses while any booking on the trip is still CONFIRMED.
func (s TripService) DeleteTrip(ctx context.Context, id domain.ID) error {
	if id <= 0 {
		return domain.ValidationError{Field: "id", Msg: "invalid trip id"}
	}

	err := s.inUnit(ctx, func(ctx context.Context, tx repositories.Tx) error {
		if _, err := tx.LockTrip(ctx, id); err != nil {
			return err
		}
		active, err := tx.CountActiveBookings(ctx, id)
		if err != nil {
			return err
		}
		if active > 0 {
			return domain.ConflictError{Resource: "trip", Msg: fmt.Sprintf("trip %d has %d active bookings", id, active)}
		}
		return tx.DeleteTrip(ctx, id)
	})
	if err != nil {
		return storeError(err, "trip", fmt.Sprintf("trip %d", id))
	}

	utils.LogEvent(utils.RequestIDFrom(ctx), "trips", "delete", "trip deleted", zap.Int64("trip_id", id))
	return nil
}
