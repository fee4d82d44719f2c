package services

import (
	"context"
	"fmt"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/repositories"
	"busbooking/internal/utils"
)

type SeatService struct {
	Store repositories.Store
}

type ClassSummary struct {
	Class     domain.SeatClass `json:"seat_class"`
	Total     int              `json:"total"`
	Available int              `json:"available"`
}

// SeatMap summarises capacity per class from one seat listing.
type SeatMap struct {
	TripID    domain.ID      `json:"trip_id"`
	Total     int            `json:"total"`
	Available int            `json:"available"`
	Classes   []ClassSummary `json:"classes"`
}

func (s SeatService) requireTrip(ctx context.Context, tripID domain.ID) error {
	if tripID <= 0 {
		return domain.ValidationError{Field: "trip_id", Msg: "invalid trip id"}
	}
	if _, err := s.Store.GetTrip(ctx, tripID); err != nil {
		return storeError(err, "trip", fmt.Sprintf("trip %d", tripID))
	}
	return nil
}

func (s SeatService) ListSeats(ctx context.Context, tripID domain.ID, class domain.SeatClass, state domain.SeatState) ([]models.Seat, error) {
	if err := s.requireTrip(ctx, tripID); err != nil {
		return nil, err
	}
	seats, err := s.Store.ListSeats(ctx, tripID, models.SeatFilter{Class: class, State: state})
	if err != nil {
		return nil, storeError(err, "seat", fmt.Sprintf("seats of trip %d", tripID))
	}
	return seats, nil
}

func (s SeatService) ListAvailable(ctx context.Context, tripID domain.ID, class domain.SeatClass) ([]models.Seat, error) {
	return s.ListSeats(ctx, tripID, class, domain.SeatAvailable)
}

func (s SeatService) GetSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error) {
	number := utils.NormalizeSeatNumber(seatNumber)
	if number == "" {
		return models.Seat{}, domain.ValidationError{Field: "seat_number", Msg: "is required"}
	}
	seat, err := s.Store.GetSeat(ctx, tripID, number)
	if err != nil {
		return models.Seat{}, storeError(err, "seat", fmt.Sprintf("seat %s on trip %d", number, tripID))
	}
	return seat, nil
}

// CountByClass reports every class, zero when the trip has none of it.
func (s SeatService) CountByClass(ctx context.Context, tripID domain.ID) (map[domain.SeatClass]int, error) {
	if err := s.requireTrip(ctx, tripID); err != nil {
		return nil, err
	}
	counts, err := s.Store.CountSeatsByClass(ctx, tripID)
	if err != nil {
		return nil, storeError(err, "seat", fmt.Sprintf("seats of trip %d", tripID))
	}
	out := make(map[domain.SeatClass]int, len(domain.SeatClasses))
	for _, c := range domain.SeatClasses {
		out[c] = counts[c]
	}
	return out, nil
}

func (s SeatService) SeatMap(ctx context.Context, tripID domain.ID) (SeatMap, error) {
	seats, err := s.ListSeats(ctx, tripID, "", "")
	if err != nil {
		return SeatMap{}, err
	}

	byClass := map[domain.SeatClass]*ClassSummary{}
	for _, c := range domain.SeatClasses {
		byClass[c] = &ClassSummary{Class: c}
	}
	m := SeatMap{TripID: tripID}
	for _, seat := range seats {
		sum, ok := byClass[seat.Class]
		if !ok {
			continue
		}
		sum.Total++
		m.Total++
		if seat.IsAvailable() {
			sum.Available++
			m.Available++
		}
	}
	for _, c := range domain.SeatClasses {
		m.Classes = append(m.Classes, *byClass[c])
	}
	return m, nil
}
