package memory

import (
	"context"
	"fmt"
	"strconv"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"
)

// tx buffers one unit's writes. Reads through tx see those writes first.
type tx struct {
	s    *Store
	held []chan struct{}
	keys map[string]bool

	trips        map[domain.ID]models.Trip
	deletedTrips map[domain.ID]bool
	seats        map[seatKey]models.Seat
	bookings     map[domain.ID]models.Booking
}

func newTx(s *Store) *tx {
	return &tx{
		s:            s,
		keys:         map[string]bool{},
		trips:        map[domain.ID]models.Trip{},
		deletedTrips: map[domain.ID]bool{},
		seats:        map[seatKey]models.Seat{},
		bookings:     map[domain.ID]models.Booking{},
	}
}

var _ repositories.Tx = (*tx)(nil)

func (t *tx) lock(ctx context.Context, key string) error {
	if t.keys[key] {
		return nil
	}
	ch := t.s.rowLock(key)
	select {
	case ch <- struct{}{}:
		t.keys[key] = true
		t.held = append(t.held, ch)
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: waiting for %s: %v", repositories.ErrUnavailable, key, ctx.Err())
	}
}

func (t *tx) releaseLocks() {
	for i := len(t.held) - 1; i >= 0; i-- {
		<-t.held[i]
	}
	t.held = nil
	t.keys = map[string]bool{}
}

func tripLockKey(id domain.ID) string { return "trip:" + strconv.FormatInt(id, 10) }

func seatLockKey(k seatKey) string {
	return "seat:" + strconv.FormatInt(k.tripID, 10) + ":" + k.number
}

func bookingLockKey(id domain.ID) string { return "booking:" + strconv.FormatInt(id, 10) }

func (t *tx) commit() error {
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()

	// Two units may both pass InsertBooking before either commits.
	for id, b := range t.bookings {
		if owner, ok := s.refs[b.Reference]; ok && owner != id {
			return fmt.Errorf("%w: booking reference %s", repositories.ErrDuplicate, b.Reference)
		}
	}

	for id := range t.deletedTrips {
		delete(s.trips, id)
		for k, seat := range s.seats {
			if k.tripID == id {
				delete(s.seats, k)
				delete(s.seatIndex, seat.ID)
			}
		}
	}
	for id, trip := range t.trips {
		if !t.deletedTrips[id] {
			s.trips[id] = trip
		}
	}
	for k, seat := range t.seats {
		if t.deletedTrips[k.tripID] {
			continue
		}
		s.seats[k] = seat
		s.seatIndex[seat.ID] = k
	}
	for id, b := range t.bookings {
		s.bookings[id] = b
		s.refs[b.Reference] = id
	}
	return nil
}

func (t *tx) tripView(id domain.ID) (models.Trip, bool) {
	if t.deletedTrips[id] {
		return models.Trip{}, false
	}
	if trip, ok := t.trips[id]; ok {
		return trip, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	trip, ok := t.s.trips[id]
	return trip, ok
}

func (t *tx) seatView(k seatKey) (models.Seat, bool) {
	if t.deletedTrips[k.tripID] {
		return models.Seat{}, false
	}
	if seat, ok := t.seats[k]; ok {
		return seat, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	seat, ok := t.s.seats[k]
	return seat, ok
}

func (t *tx) seatKeyByID(id domain.ID) (seatKey, bool) {
	for k, seat := range t.seats {
		if seat.ID == id {
			return k, true
		}
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	k, ok := t.s.seatIndex[id]
	return k, ok
}

func (t *tx) bookingView(id domain.ID) (models.Booking, bool) {
	if b, ok := t.bookings[id]; ok {
		return b, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	b, ok := t.s.bookings[id]
	return b, ok
}

func (t *tx) GetTrip(_ context.Context, id domain.ID) (models.Trip, error) {
	trip, ok := t.tripView(id)
	if !ok {
		return models.Trip{}, fmt.Errorf("%w: trip %d", repositories.ErrNotFound, id)
	}
	return trip, nil
}

func (t *tx) LockTrip(ctx context.Context, tripID domain.ID) (models.Trip, error) {
	if err := t.lock(ctx, tripLockKey(tripID)); err != nil {
		return models.Trip{}, err
	}
	return t.GetTrip(ctx, tripID)
}

func (t *tx) SetAvailableSeats(_ context.Context, tripID domain.ID, available int) error {
	trip, ok := t.tripView(tripID)
	if !ok {
		return fmt.Errorf("%w: trip %d", repositories.ErrNotFound, tripID)
	}
	trip.AvailableSeats = available
	trip.UpdatedAt = utils.NowUTC()
	t.trips[tripID] = trip
	return nil
}

func (t *tx) LockSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error) {
	k := seatKey{tripID, utils.NormalizeSeatNumber(seatNumber)}
	if err := t.lock(ctx, seatLockKey(k)); err != nil {
		return models.Seat{}, err
	}
	seat, ok := t.seatView(k)
	if !ok {
		return models.Seat{}, fmt.Errorf("%w: seat %s of trip %d", repositories.ErrNotFound, seatNumber, tripID)
	}
	return seat, nil
}

func (t *tx) SetSeatState(_ context.Context, seatID domain.ID, from, to domain.SeatState) error {
	k, ok := t.seatKeyByID(seatID)
	if !ok {
		return fmt.Errorf("%w: seat %d not %s", repositories.ErrStaleWrite, seatID, from)
	}
	seat, ok := t.seatView(k)
	if !ok || seat.State != from {
		return fmt.Errorf("%w: seat %d not %s", repositories.ErrStaleWrite, seatID, from)
	}
	seat.State = to
	seat.UpdatedAt = utils.NowUTC()
	t.seats[k] = seat
	return nil
}

func (t *tx) InsertBooking(_ context.Context, b *models.Booking) error {
	if t.s.referenceTaken(b.Reference) {
		return fmt.Errorf("%w: booking reference %s", repositories.ErrDuplicate, b.Reference)
	}
	for _, pending := range t.bookings {
		if pending.Reference == b.Reference {
			return fmt.Errorf("%w: booking reference %s", repositories.ErrDuplicate, b.Reference)
		}
	}
	b.ID = t.s.allocID(&t.s.nextBookingID)
	t.bookings[b.ID] = *b
	return nil
}

func (t *tx) LockBooking(ctx context.Context, id domain.ID) (models.Booking, error) {
	if err := t.lock(ctx, bookingLockKey(id)); err != nil {
		return models.Booking{}, err
	}
	b, ok := t.bookingView(id)
	if !ok {
		return models.Booking{}, fmt.Errorf("%w: booking %d", repositories.ErrNotFound, id)
	}
	return b, nil
}

func (t *tx) SetBookingStatus(_ context.Context, id domain.ID, status domain.BookingStatus) error {
	b, ok := t.bookingView(id)
	if !ok {
		return fmt.Errorf("%w: booking %d", repositories.ErrNotFound, id)
	}
	b.Status = status
	b.UpdatedAt = utils.NowUTC()
	t.bookings[id] = b
	return nil
}

func (t *tx) CountActiveBookings(_ context.Context, tripID domain.ID) (int, error) {
	seen := map[domain.ID]bool{}
	n := 0
	for id, b := range t.bookings {
		seen[id] = true
		if b.TripID == tripID && b.IsActive() {
			n++
		}
	}
	for _, b := range t.s.snapshotBookings() {
		if !seen[b.ID] && b.TripID == tripID && b.IsActive() {
			n++
		}
	}
	return n, nil
}

func (t *tx) InsertTrip(_ context.Context, trip *models.Trip) error {
	trip.ID = t.s.allocID(&t.s.nextTripID)
	t.trips[trip.ID] = *trip
	return nil
}

func (t *tx) UpdateTrip(_ context.Context, trip models.Trip) error {
	current, ok := t.tripView(trip.ID)
	if !ok {
		return fmt.Errorf("%w: trip %d", repositories.ErrNotFound, trip.ID)
	}
	current.Name = trip.Name
	current.Route = trip.Route
	current.DepartureDate = trip.DepartureDate
	current.DepartureTime = trip.DepartureTime
	current.ArrivalTime = trip.ArrivalTime
	current.Price = trip.Price
	current.UpdatedAt = trip.UpdatedAt
	t.trips[trip.ID] = current
	return nil
}

func (t *tx) DeleteTrip(_ context.Context, id domain.ID) error {
	if _, ok := t.tripView(id); !ok {
		return fmt.Errorf("%w: trip %d", repositories.ErrNotFound, id)
	}
	t.deletedTrips[id] = true
	delete(t.trips, id)
	return nil
}

func (t *tx) InsertSeats(_ context.Context, seats []models.Seat) error {
	for _, seat := range seats {
		k := seatKey{seat.TripID, utils.NormalizeSeatNumber(seat.SeatNumber)}
		if _, exists := t.seatView(k); exists {
			return fmt.Errorf("%w: seat %s of trip %d", repositories.ErrDuplicate, k.number, k.tripID)
		}
		seat.SeatNumber = k.number
		seat.ID = t.s.allocID(&t.s.nextSeatID)
		t.seats[k] = seat
	}
	return nil
}

func (s *Store) referenceTaken(ref string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.refs[ref]
	return ok
}

func (s *Store) snapshotBookings() []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Booking, 0, len(s.bookings))
	for _, b := range s.bookings {
		out = append(out, b)
	}
	return out
}
