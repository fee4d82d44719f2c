package domain

import "strings"

// ID is used across domain entities.
type ID = int64

// SeatState is the per-seat state machine: AVAILABLE <-> BOOKED.
type SeatState string

const (
	SeatAvailable SeatState = "AVAILABLE"
	SeatBooked    SeatState = "BOOKED"
)

func (s SeatState) Valid() bool {
	return s == SeatAvailable || s == SeatBooked
}

// SeatClass mirrors the seat types offered when picking a seat.
type SeatClass string

const (
	SeatRegular  SeatClass = "REGULAR"
	SeatElder    SeatClass = "ELDER"
	SeatPregnant SeatClass = "PREGNANT"
)

// SeatClasses lists every class in display order.
var SeatClasses = []SeatClass{SeatRegular, SeatElder, SeatPregnant}

func (c SeatClass) Valid() bool {
	switch c {
	case SeatRegular, SeatElder, SeatPregnant:
		return true
	}
	return false
}

// BookingStatus is CONFIRMED while the booking holds its seat.
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

func (s BookingStatus) Valid() bool {
	return s == BookingConfirmed || s == BookingCancelled
}

// ParseSeatState accepts any casing; empty input yields "" and ok=true (no filter).
func ParseSeatState(raw string) (SeatState, bool) {
	v := SeatState(strings.ToUpper(strings.TrimSpace(raw)))
	if v == "" {
		return "", true
	}
	return v, v.Valid()
}

// ParseSeatClass accepts any casing; empty input yields "" and ok=true (no filter).
func ParseSeatClass(raw string) (SeatClass, bool) {
	v := SeatClass(strings.ToUpper(strings.TrimSpace(raw)))
	if v == "" {
		return "", true
	}
	return v, v.Valid()
}

// ParseBookingStatus accepts any casing; empty input yields "" and ok=true.
func ParseBookingStatus(raw string) (BookingStatus, bool) {
	v := BookingStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if v == "" {
		return "", true
	}
	return v, v.Valid()
}

// Roles carried in auth tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// RequestContext carries authenticated user info when available.
type RequestContext struct {
	UserID ID     `json:"userId"`
	Role   string `json:"role"`
}
