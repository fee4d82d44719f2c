package models

import (
	"time"

	"busbooking/internal/domain"
)

type Seat struct {
	ID         domain.ID        `json:"id"`
	TripID     domain.ID        `json:"trip_id"`
	SeatNumber string           `json:"seat_number"`
	Class      domain.SeatClass `json:"seat_class"`
	State      domain.SeatState `json:"state"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

func (s Seat) IsAvailable() bool {
	return s.State == domain.SeatAvailable
}

// SeatFilter narrows seat listings; empty fields match everything.
type SeatFilter struct {
	Class domain.SeatClass
	State domain.SeatState
}
