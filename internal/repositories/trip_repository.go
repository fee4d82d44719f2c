package repositories

import (
	"context"
	"fmt"
	"strings"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
)

const tripColumns = `id, name, route, departure_date, departure_time, arrival_time,
	total_seats, available_seats, price, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrip(row rowScanner) (models.Trip, error) {
	var t models.Trip
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Route,
		&t.DepartureDate,
		&t.DepartureTime,
		&t.ArrivalTime,
		&t.TotalSeats,
		&t.AvailableSeats,
		&t.Price,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	return t, err
}

func getTrip(ctx context.Context, q dbtx, id domain.ID, forUpdate bool) (models.Trip, error) {
	query := `SELECT ` + tripColumns + ` FROM trips WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	t, err := scanTrip(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Trip{}, classify(fmt.Errorf("get trip %d: %w", id, err))
	}
	return t, nil
}

func (s *MySQLStore) GetTrip(ctx context.Context, id domain.ID) (models.Trip, error) {
	return getTrip(ctx, s.reader(), id, false)
}

// ListTrips orders by departure so the catalog reads like a timetable.
func (s *MySQLStore) ListTrips(ctx context.Context, filter models.TripFilter) ([]models.Trip, error) {
	where := []string{"1=1"}
	args := []any{}
	if name := strings.TrimSpace(filter.Name); name != "" {
		where = append(where, "LOWER(name) LIKE ?")
		args = append(args, "%"+strings.ToLower(name)+"%")
	}
	if route := strings.TrimSpace(filter.Route); route != "" {
		where = append(where, "LOWER(route) LIKE ?")
		args = append(args, "%"+strings.ToLower(route)+"%")
	}

	query := `SELECT ` + tripColumns + ` FROM trips WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY departure_date ASC, departure_time ASC, id ASC`
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list trips: %w", err))
	}
	defer rows.Close()

	out := []models.Trip{}
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (t *mysqlTx) GetTrip(ctx context.Context, id domain.ID) (models.Trip, error) {
	return getTrip(ctx, t.tx, id, false)
}

func (t *mysqlTx) LockTrip(ctx context.Context, tripID domain.ID) (models.Trip, error) {
	return getTrip(ctx, t.tx, tripID, true)
}

func (t *mysqlTx) SetAvailableSeats(ctx context.Context, tripID domain.ID, available int) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE trips SET available_seats = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ?`,
		available, tripID,
	)
	if err != nil {
		return fmt.Errorf("set available seats for trip %d: %w", tripID, err)
	}
	return expectOneRow(res, fmt.Sprintf("trip %d", tripID), ErrNotFound)
}

func (t *mysqlTx) InsertTrip(ctx context.Context, trip *models.Trip) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO trips (name, route, departure_date, departure_time, arrival_time,
			total_seats, available_seats, price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trip.Name,
		trip.Route,
		trip.DepartureDate,
		trip.DepartureTime,
		trip.ArrivalTime,
		trip.TotalSeats,
		trip.AvailableSeats,
		trip.Price,
		trip.CreatedAt,
		trip.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	trip.ID = id
	return nil
}

// UpdateTrip writes catalog fields only; seat totals and the counter are
// owned elsewhere.
func (t *mysqlTx) UpdateTrip(ctx context.Context, trip models.Trip) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE trips
		SET name = ?, route = ?, departure_date = ?, departure_time = ?, arrival_time = ?,
			price = ?, updated_at = ?
		WHERE id = ?`,
		trip.Name,
		trip.Route,
		trip.DepartureDate,
		trip.DepartureTime,
		trip.ArrivalTime,
		trip.Price,
		trip.UpdatedAt,
		trip.ID,
	)
	if err != nil {
		return fmt.Errorf("update trip %d: %w", trip.ID, err)
	}
	return expectOneRow(res, fmt.Sprintf("trip %d", trip.ID), ErrNotFound)
}

// DeleteTrip removes the trip; seats go with it through ON DELETE CASCADE.
func (t *mysqlTx) DeleteTrip(ctx context.Context, id domain.ID) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM trips WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete trip %d: %w", id, err)
	}
	return expectOneRow(res, fmt.Sprintf("trip %d", id), ErrNotFound)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// expectOneRow turns a zero-row write into sentinel. The DSN sets
// clientFoundRows, so matched-but-unchanged rows still count.
func expectOneRow(res rowsAffecter, what string, sentinel error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", sentinel, what)
	}
	return nil
}
