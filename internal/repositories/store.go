package repositories

import (
	"context"
	"errors"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps lock wait timeouts, deadlocks and dropped connections.
	ErrUnavailable = errors.New("store unavailable")
	// ErrStaleWrite is returned when a compare-and-set update matched no row.
	ErrStaleWrite = errors.New("stale write")
	// ErrDuplicate is returned when a unique key would be violated.
	ErrDuplicate = errors.New("duplicate key")
)

// Store is the persistence boundary used by the services. Plain reads are
// snapshot reads outside any lock and may be served by a replica.
type Store interface {
	// InTx runs fn as one atomic unit: every write fn makes through tx commits
	// together when fn returns nil, and none of them does otherwise.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetTrip(ctx context.Context, id domain.ID) (models.Trip, error)
	ListTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error)

	GetSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error)
	ListSeats(ctx context.Context, tripID domain.ID, filter models.SeatFilter) ([]models.Seat, error)
	CountSeatsByClass(ctx context.Context, tripID domain.ID) (map[domain.SeatClass]int, error)

	GetBooking(ctx context.Context, id domain.ID) (models.Booking, error)
	ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error)

	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)

	Ping(ctx context.Context) error
}

// Tx is the write side of one atomic unit. Lock* methods hold the row until
// the unit ends; locks are always taken booking -> seat -> trip.
type Tx interface {
	GetTrip(ctx context.Context, id domain.ID) (models.Trip, error)

	LockSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error)
	// SetSeatState moves the seat from one state to another and returns
	// ErrStaleWrite when the seat was not in the expected state.
	SetSeatState(ctx context.Context, seatID domain.ID, from, to domain.SeatState) error

	// LockTrip reads the trip row under lock; counter and price read here are
	// current for the rest of the unit.
	LockTrip(ctx context.Context, tripID domain.ID) (models.Trip, error)
	SetAvailableSeats(ctx context.Context, tripID domain.ID, available int) error

	InsertBooking(ctx context.Context, b *models.Booking) error
	LockBooking(ctx context.Context, id domain.ID) (models.Booking, error)
	SetBookingStatus(ctx context.Context, id domain.ID, status domain.BookingStatus) error
	CountActiveBookings(ctx context.Context, tripID domain.ID) (int, error)

	InsertTrip(ctx context.Context, t *models.Trip) error
	UpdateTrip(ctx context.Context, t models.Trip) error
	DeleteTrip(ctx context.Context, id domain.ID) error
	InsertSeats(ctx context.Context, seats []models.Seat) error
}
