// Package memory is an in-process Store used by tests and STORE=memory.
//
// Each lockable row has a one-slot channel; a unit acquires it with the
// caller's context, so a stuck holder surfaces as ErrUnavailable. Writes are
// buffered in the unit and applied under the store mutex at commit, so plain
// readers never observe half of a unit.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"
)

type seatKey struct {
	tripID domain.ID
	number string
}

type Store struct {
	mu        sync.RWMutex
	trips     map[domain.ID]models.Trip
	seats     map[seatKey]models.Seat
	seatIndex map[domain.ID]seatKey
	bookings  map[domain.ID]models.Booking
	refs      map[string]domain.ID
	users     map[string]models.User

	nextTripID    domain.ID
	nextSeatID    domain.ID
	nextBookingID domain.ID
	nextUserID    domain.ID

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

func New() *Store {
	return &Store{
		trips:     map[domain.ID]models.Trip{},
		seats:     map[seatKey]models.Seat{},
		seatIndex: map[domain.ID]seatKey{},
		bookings:  map[domain.ID]models.Booking{},
		refs:      map[string]domain.ID{},
		users:     map[string]models.User{},
		locks:     map[string]chan struct{}{},
	}
}

var _ repositories.Store = (*Store)(nil)

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) InTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repositories.ErrUnavailable, err)
	}
	tx := newTx(s)
	defer tx.releaseLocks()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) rowLock(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

func (s *Store) allocID(counter *domain.ID) domain.ID {
	s.mu.Lock()
	defer s.mu.Unlock()
	*counter++
	return *counter
}

func (s *Store) GetTrip(_ context.Context, id domain.ID) (models.Trip, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.trips[id]
	if !ok {
		return models.Trip{}, fmt.Errorf("%w: trip %d", repositories.ErrNotFound, id)
	}
	return t, nil
}

func (s *Store) ListTrips(_ context.Context, filter models.TripFilter) ([]models.Trip, error) {
	name := strings.TrimSpace(filter.Name)
	route := strings.TrimSpace(filter.Route)

	s.mu.RLock()
	out := []models.Trip{}
	for _, t := range s.trips {
		if name != "" && !utils.ContainsFold(t.Name, name) {
			continue
		}
		if route != "" && !utils.ContainsFold(t.Route, route) {
			continue
		}
		out = append(out, t)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DepartureDate != b.DepartureDate {
			return a.DepartureDate < b.DepartureDate
		}
		if a.DepartureTime != b.DepartureTime {
			return a.DepartureTime < b.DepartureTime
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) GetSeat(_ context.Context, tripID domain.ID, seatNumber string) (models.Seat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seat, ok := s.seats[seatKey{tripID, utils.NormalizeSeatNumber(seatNumber)}]
	if !ok {
		return models.Seat{}, fmt.Errorf("%w: seat %s of trip %d", repositories.ErrNotFound, seatNumber, tripID)
	}
	return seat, nil
}

func (s *Store) ListSeats(_ context.Context, tripID domain.ID, filter models.SeatFilter) ([]models.Seat, error) {
	s.mu.RLock()
	out := []models.Seat{}
	for k, seat := range s.seats {
		if k.tripID != tripID {
			continue
		}
		if filter.Class != "" && seat.Class != filter.Class {
			continue
		}
		if filter.State != "" && seat.State != filter.State {
			continue
		}
		out = append(out, seat)
	}
	s.mu.RUnlock()

	sortSeats(out)
	return out, nil
}

func (s *Store) CountSeatsByClass(_ context.Context, tripID domain.ID) (map[domain.SeatClass]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := map[domain.SeatClass]int{}
	for k, seat := range s.seats {
		if k.tripID == tripID {
			out[seat.Class]++
		}
	}
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, id domain.ID) (models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bookings[id]
	if !ok {
		return models.Booking{}, fmt.Errorf("%w: booking %d", repositories.ErrNotFound, id)
	}
	return b, nil
}

func (s *Store) ListBookings(_ context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	s.mu.RLock()
	out := []models.Booking{}
	for _, b := range s.bookings {
		if filter.RiderID > 0 && b.RiderID != filter.RiderID {
			continue
		}
		if filter.TripID > 0 && b.TripID != filter.TripID {
			continue
		}
		out = append(out, b)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].BookedAt.Equal(out[j].BookedAt) {
			return out[i].BookedAt.After(out[j].BookedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	email := strings.ToLower(strings.TrimSpace(u.Email))

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return fmt.Errorf("%w: user %s", repositories.ErrDuplicate, email)
	}
	s.nextUserID++
	u.ID = s.nextUserID
	u.Email = email
	s.users[email] = *u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return models.User{}, fmt.Errorf("%w: user %s", repositories.ErrNotFound, email)
	}
	return u, nil
}

// sortSeats orders "2" before "10".
func sortSeats(seats []models.Seat) {
	sort.Slice(seats, func(i, j int) bool {
		a, b := seats[i].SeatNumber, seats[j].SeatNumber
		if len(a) != len(b) {
			return len(a) < len(b)
		}
		return a < b
	})
}
