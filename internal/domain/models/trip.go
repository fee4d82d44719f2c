package models

import (
	"time"

	"busbooking/internal/domain"
)

// Trip is one scheduled bus journey with a fixed seat inventory.
// AvailableSeats is a cached count of AVAILABLE seats, written only by the
// reservation engine.
type Trip struct {
	ID             domain.ID `json:"id"`
	Name           string    `json:"name"`
	Route          string    `json:"route"`
	DepartureDate  string    `json:"departure_date"`
	DepartureTime  string    `json:"departure_time"`
	ArrivalTime    string    `json:"arrival_time"`
	TotalSeats     int       `json:"total_seats"`
	AvailableSeats int       `json:"available_seats"`
	Price          int64     `json:"price"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Snapshot returns the display subset attached to booking listings.
func (t Trip) Snapshot() TripSnapshot {
	return TripSnapshot{
		ID:            t.ID,
		Name:          t.Name,
		Route:         t.Route,
		DepartureDate: t.DepartureDate,
		DepartureTime: t.DepartureTime,
		ArrivalTime:   t.ArrivalTime,
	}
}

type TripSnapshot struct {
	ID            domain.ID `json:"id"`
	Name          string    `json:"name"`
	Route         string    `json:"route"`
	DepartureDate string    `json:"departure_date"`
	DepartureTime string    `json:"departure_time"`
	ArrivalTime   string    `json:"arrival_time"`
}

// TripFilter narrows catalog listings. Matching is case-insensitive contains.
type TripFilter struct {
	Name  string
	Route string
}
