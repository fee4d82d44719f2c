package services

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/events"
	"busbooking/internal/repositories"
	"busbooking/internal/repositories/memory"

	"github.com/DATA-DOG/go-sqlmock"
	"golang.org/x/sync/errgroup"
)

func TestReserveScenarioThreeSeats(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	b, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "2", RiderID: 11})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.ID == 0 || b.Reference == "" {
		t.Fatalf("booking not persisted: %+v", b)
	}
	if b.Status != domain.BookingConfirmed || b.Amount != 1500 || b.SeatNumber != "2" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if b.BookedAt.IsZero() {
		t.Fatalf("booked_at should default to now")
	}

	seat, _ := f.store.GetSeat(context.Background(), trip.ID, "2")
	if seat.State != domain.SeatBooked {
		t.Fatalf("seat should be BOOKED, got %s", seat.State)
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 2 {
		t.Fatalf("expected 2 available, got %d", n)
	}
	if got := f.pub.types(); len(got) != 1 || got[0] != events.TypeBookingConfirmed {
		t.Fatalf("unexpected events %v", got)
	}
}

func TestReserveUnknownSeatIsNotFound(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	_, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "99", RiderID: 11})
	mustBeKind(t, err, "not_found")
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 3 {
		t.Fatalf("counter moved on failure: %d", n)
	}
	bookings, _ := f.store.ListBookings(context.Background(), models.BookingFilter{})
	if len(bookings) != 0 {
		t.Fatalf("no booking should be written, got %d", len(bookings))
	}
}

func TestReserveUnknownTripIsNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: 404, SeatNumber: "1", RiderID: 11})
	mustBeKind(t, err, "not_found")
}

func TestReserveBookedSeatIsConflict(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	if _, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	_, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 2})
	mustBeKind(t, err, "conflict")
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 2 {
		t.Fatalf("expected 2 available, got %d", n)
	}
}

func TestReserveRejectsBadInput(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)
	negative := int64(-1)

	cases := []ReserveInput{
		{SeatNumber: "1", RiderID: 1},
		{TripID: trip.ID, SeatNumber: "  ", RiderID: 1},
		{TripID: trip.ID, SeatNumber: "1"},
		{TripID: trip.ID, SeatNumber: "1", RiderID: 1, Amount: &negative},
		{TripID: trip.ID, SeatNumber: "1", RiderID: 1, Status: domain.BookingCancelled},
	}
	for i, in := range cases {
		_, err := f.engine.Reserve(context.Background(), in)
		if !domain.IsValidation(err) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 3 {
		t.Fatalf("counter moved on rejected input: %d", n)
	}
}

func TestReserveHonoursSuppliedFields(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)
	at := time.Date(2026, 2, 1, 9, 0, 0, 0, time.UTC)
	amount := int64(0)

	b, err := f.engine.Reserve(context.Background(), ReserveInput{
		TripID: trip.ID, SeatNumber: "3", RiderID: 5, OccurredAt: &at, Amount: &amount, Status: domain.BookingConfirmed,
	})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !b.BookedAt.Equal(at) || b.Amount != 0 {
		t.Fatalf("supplied fields ignored: %+v", b)
	}
}

func TestReserveUsesPriceAtReservationTime(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	_, err := f.trips.UpdateTrip(context.Background(), trip.ID, TripInput{
		Name: trip.Name, Route: trip.Route, DepartureDate: trip.DepartureDate,
		DepartureTime: trip.DepartureTime, ArrivalTime: trip.ArrivalTime, Price: 2200,
	})
	if err != nil {
		t.Fatalf("update price: %v", err)
	}

	b, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if b.Amount != 2200 {
		t.Fatalf("expected current price 2200, got %d", b.Amount)
	}
}

func TestConcurrentReserveSameSeatHasOneWinner(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	const racers = 32
	var wins, conflicts atomic.Int32
	var g errgroup.Group
	for i := 0; i < racers; i++ {
		rider := domain.ID(i + 1)
		g.Go(func() error {
			_, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: rider})
			switch {
			case err == nil:
				wins.Add(1)
			case domain.IsConflict(err):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if wins.Load() != 1 || conflicts.Load() != racers-1 {
		t.Fatalf("expected 1 win and %d conflicts, got %d and %d", racers-1, wins.Load(), conflicts.Load())
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 2 {
		t.Fatalf("expected 2 available, got %d", n)
	}
	bookings, _ := f.store.ListBookings(context.Background(), models.BookingFilter{TripID: trip.ID})
	if len(bookings) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(bookings))
	}
}

func TestConcurrentReserveAndReleaseKeepCounter(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 20, 1000)

	var g errgroup.Group
	for i := 1; i <= 20; i++ {
		seat := strconv.Itoa(i)
		rider := domain.ID(i)
		g.Go(func() error {
			b, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: seat, RiderID: rider})
			if err != nil {
				return err
			}
			if rider%2 == 0 {
				_, err = f.engine.Release(context.Background(), b.ID)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 10 {
		t.Fatalf("expected 10 available, got %d", n)
	}
}

func TestReserveReleaseReserveCycle(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)

	first, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	ok, err := f.engine.Release(context.Background(), first.ID)
	if err != nil || !ok {
		t.Fatalf("release: %v %v", ok, err)
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 3 {
		t.Fatalf("counter not restored: %d", n)
	}

	second, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 2})
	if err != nil {
		t.Fatalf("re-reserve: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("expected a new ledger row")
	}

	old, _ := f.store.GetBooking(context.Background(), first.ID)
	if old.Status != domain.BookingCancelled {
		t.Fatalf("first booking should stay CANCELLED, got %s", old.Status)
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 2 {
		t.Fatalf("expected 2 available, got %d", n)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)
	b, _ := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "2", RiderID: 1})

	first, err := f.engine.Release(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("first release: %v", err)
	}
	second, err := f.engine.Release(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("second release: %v", err)
	}
	if !first || !second {
		t.Fatalf("expected (true, true), got (%v, %v)", first, second)
	}
	if n := f.assertCounterMatchesSeats(t, trip.ID); n != 3 {
		t.Fatalf("counter incremented more than once: %d", n)
	}
	got := f.pub.types()
	if len(got) != 2 || got[1] != events.TypeBookingCancelled {
		t.Fatalf("expected one cancel event, got %v", got)
	}
}

func TestReleaseMissingBooking(t *testing.T) {
	f := newFixture(t)
	ok, err := f.engine.Release(context.Background(), 12345)
	if err != nil || ok {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
}

func TestReserveRepairsZeroCounter(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 2, 1500)

	err := f.store.InTx(context.Background(), func(tx repositories.Tx) error {
		return tx.SetAvailableSeats(context.Background(), trip.ID, 0)
	})
	if err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}

	if _, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1}); err != nil {
		t.Fatalf("reserve should succeed despite the anomaly: %v", err)
	}
	got, _ := f.store.GetTrip(context.Background(), trip.ID)
	if got.AvailableSeats != 0 {
		t.Fatalf("counter should clamp at 0, got %d", got.AvailableSeats)
	}
	if f.engine.Anomalies() != 1 {
		t.Fatalf("expected 1 anomaly, got %d", f.engine.Anomalies())
	}
}

func TestReleaseWithFreeSeatSkipsIncrement(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 2, 1500)
	b, _ := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1})

	err := f.store.InTx(context.Background(), func(tx repositories.Tx) error {
		seat, err := tx.LockSeat(context.Background(), trip.ID, "1")
		if err != nil {
			return err
		}
		return tx.SetSeatState(context.Background(), seat.ID, domain.SeatBooked, domain.SeatAvailable)
	})
	if err != nil {
		t.Fatalf("corrupt seat: %v", err)
	}

	ok, err := f.engine.Release(context.Background(), b.ID)
	if err != nil || !ok {
		t.Fatalf("release: %v %v", ok, err)
	}
	got, _ := f.store.GetTrip(context.Background(), trip.ID)
	if got.AvailableSeats != 1 {
		t.Fatalf("counter should not move, got %d", got.AvailableSeats)
	}
	cancelled, _ := f.store.GetBooking(context.Background(), b.ID)
	if cancelled.Status != domain.BookingCancelled {
		t.Fatalf("booking should still be cancelled, got %s", cancelled.Status)
	}
	if f.engine.Anomalies() != 1 {
		t.Fatalf("expected 1 anomaly, got %d", f.engine.Anomalies())
	}
}

// seatlessStore hides seat rows from the write side of a unit.
type seatlessStore struct {
	*memory.Store
}

func (s seatlessStore) InTx(ctx context.Context, fn func(tx repositories.Tx) error) error {
	return s.Store.InTx(ctx, func(tx repositories.Tx) error {
		return fn(seatlessTx{tx})
	})
}

type seatlessTx struct {
	repositories.Tx
}

func (seatlessTx) LockSeat(context.Context, domain.ID, string) (models.Seat, error) {
	return models.Seat{}, repositories.ErrNotFound
}

func TestReleaseMissingSeatStillCancels(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 2, 1500)
	b, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "2", RiderID: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	engine := NewReservationEngine(seatlessStore{f.store}, f.pub, 0)
	ok, err := engine.Release(context.Background(), b.ID)
	if err != nil || !ok {
		t.Fatalf("release: %v %v", ok, err)
	}
	got, err := f.store.GetBooking(context.Background(), b.ID)
	if err != nil {
		t.Fatalf("get booking: %v", err)
	}
	if got.Status != domain.BookingCancelled {
		t.Fatalf("booking should be cancelled, got %s", got.Status)
	}
	if engine.Anomalies() != 1 {
		t.Fatalf("expected 1 anomaly, got %d", engine.Anomalies())
	}
	if tr, _ := f.store.GetTrip(context.Background(), trip.ID); tr.AvailableSeats != 1 {
		t.Fatalf("counter should be untouched, got %d", tr.AvailableSeats)
	}
}

func TestReleaseClampsCounterAtTotal(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 3, 1500)
	b, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	err = f.store.InTx(context.Background(), func(tx repositories.Tx) error {
		return tx.SetAvailableSeats(context.Background(), trip.ID, 3)
	})
	if err != nil {
		t.Fatalf("corrupt counter: %v", err)
	}

	ok, err := f.engine.Release(context.Background(), b.ID)
	if err != nil || !ok {
		t.Fatalf("release: %v %v", ok, err)
	}
	got, _ := f.store.GetTrip(context.Background(), trip.ID)
	if got.AvailableSeats != 3 {
		t.Fatalf("counter should clamp at total, got %d", got.AvailableSeats)
	}
	seat, _ := f.store.GetSeat(context.Background(), trip.ID, "1")
	if seat.State != domain.SeatAvailable {
		t.Fatalf("seat should be freed, got %s", seat.State)
	}
	if f.engine.Anomalies() != 1 {
		t.Fatalf("expected 1 anomaly, got %d", f.engine.Anomalies())
	}
}

func TestReserveLockTimeoutIsUnavailable(t *testing.T) {
	f := newFixture(t)
	trip := f.createTrip(t, 1, 1500)
	f.engine.LockTimeout = 20 * time.Millisecond

	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = f.store.InTx(context.Background(), func(tx repositories.Tx) error {
			if _, err := tx.LockSeat(context.Background(), trip.ID, "1"); err != nil {
				return err
			}
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	defer close(done)

	_, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1})
	mustBeKind(t, err, "unavailable")
}

func TestPublishFailureDoesNotFailReserve(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")
	trip := f.createTrip(t, 1, 1500)

	if _, err := f.engine.Reserve(context.Background(), ReserveInput{TripID: trip.ID, SeatNumber: "1", RiderID: 1}); err != nil {
		t.Fatalf("reserve should ignore publish failure: %v", err)
	}
}

func TestListingsEnrichAndReportMissingTrip(t *testing.T) {
	f := newFixture(t)
	kept := f.createTrip(t, 2, 1500)
	gone := f.createTrip(t, 2, 900)

	a, _ := f.engine.Reserve(context.Background(), ReserveInput{TripID: kept.ID, SeatNumber: "1", RiderID: 7})
	b, _ := f.engine.Reserve(context.Background(), ReserveInput{TripID: gone.ID, SeatNumber: "1", RiderID: 7})
	if _, err := f.engine.Release(context.Background(), b.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := f.trips.DeleteTrip(context.Background(), gone.ID); err != nil {
		t.Fatalf("delete trip: %v", err)
	}

	views, err := f.engine.ListByRider(context.Background(), 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(views))
	}
	for _, v := range views {
		switch v.ID {
		case a.ID:
			if v.Trip == nil || v.Trip.Name != kept.Name || v.TripError != "" {
				t.Fatalf("expected snapshot for kept trip, got %+v", v)
			}
		case b.ID:
			if v.Trip != nil || v.TripError == "" {
				t.Fatalf("expected trip_error for deleted trip, got %+v", v)
			}
		}
	}

	all, err := f.engine.ListAll(context.Background())
	if err != nil || len(all) != 2 {
		t.Fatalf("list all: %d %v", len(all), err)
	}
	byTrip, err := f.engine.ListByTrip(context.Background(), kept.ID)
	if err != nil || len(byTrip) != 1 {
		t.Fatalf("list by trip: %d %v", len(byTrip), err)
	}
	if _, err := f.engine.GetBooking(context.Background(), 999); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestReserveOnMySQLStoreRollsBackOnConflict(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock init error: %v", err)
	}
	defer db.Close()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("FROM trips WHERE id = \\?").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "route", "departure_date", "departure_time", "arrival_time",
			"total_seats", "available_seats", "price", "created_at", "updated_at"}).
			AddRow(7, "Express", "A-B", "2026-01-10", "08:00", "12:00", 3, 2, 1500, now, now))
	mock.ExpectQuery("FROM seats WHERE trip_id = \\? AND seat_number = \\? FOR UPDATE").WithArgs(int64(7), "1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "trip_id", "seat_number", "seat_class", "state", "updated_at"}).
			AddRow(1, 7, "1", "REGULAR", "BOOKED", now))
	mock.ExpectRollback()

	engine := NewReservationEngine(repositories.NewMySQLStore(db, nil), nil, time.Second)
	_, err = engine.Reserve(context.Background(), ReserveInput{TripID: 7, SeatNumber: "1", RiderID: 3})
	mustBeKind(t, err, "conflict")

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
