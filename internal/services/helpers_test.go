package services

import (
	"context"
	"sync"
	"testing"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/events"
	"busbooking/internal/repositories/memory"
)

type recordingPublisher struct {
	mu   sync.Mutex
	evts []events.BookingEvent
	err  error
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.BookingEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.evts = append(p.evts, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.evts))
	for _, e := range p.evts {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	store  *memory.Store
	trips  TripService
	seats  SeatService
	engine *ReservationEngine
	pub    *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	return &fixture{
		store:  store,
		trips:  TripService{Store: store},
		seats:  SeatService{Store: store},
		engine: NewReservationEngine(store, pub, 0),
		pub:    pub,
	}
}

func (f *fixture) createTrip(t *testing.T, seats int, price int64) models.Trip {
	t.Helper()
	trip, err := f.trips.CreateTrip(context.Background(), TripInput{
		Name:          "Coastal Express",
		Route:         "Mumbai - Goa",
		DepartureDate: "2026-03-01",
		DepartureTime: "07:30",
		ArrivalTime:   "18:00",
		TotalSeats:    seats,
		Price:         price,
	})
	if err != nil {
		t.Fatalf("create trip: %v", err)
	}
	return trip
}

// assertCounterMatchesSeats checks the cached counter against seat rows.
func (f *fixture) assertCounterMatchesSeats(t *testing.T, tripID domain.ID) int {
	t.Helper()
	trip, err := f.store.GetTrip(context.Background(), tripID)
	if err != nil {
		t.Fatalf("get trip: %v", err)
	}
	free, err := f.store.ListSeats(context.Background(), tripID, models.SeatFilter{State: domain.SeatAvailable})
	if err != nil {
		t.Fatalf("list seats: %v", err)
	}
	if trip.AvailableSeats != len(free) {
		t.Fatalf("counter %d does not match %d available seats", trip.AvailableSeats, len(free))
	}
	if trip.AvailableSeats < 0 || trip.AvailableSeats > trip.TotalSeats {
		t.Fatalf("counter %d out of range 0..%d", trip.AvailableSeats, trip.TotalSeats)
	}
	return trip.AvailableSeats
}

func mustBeKind(t *testing.T, err error, kind string) {
	t.Helper()
	var ok bool
	switch kind {
	case "not_found":
		ok = domain.IsNotFound(err)
	case "conflict":
		ok = domain.IsConflict(err)
	case "validation":
		ok = domain.IsValidation(err)
	case "unavailable":
		ok = domain.IsUnavailable(err)
	default:
		t.Fatalf("unknown error kind %q", kind)
	}
	if !ok {
		t.Fatalf("expected %s error, got %T: %v", kind, err, err)
	}
}
