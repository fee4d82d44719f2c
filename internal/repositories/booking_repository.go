package repositories

import (
	"context"
	"fmt"
	"strings"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
)

const bookingColumns = `id, reference, rider_id, trip_id, seat_number, booked_at,
	amount, status, created_at, updated_at`

func scanBooking(row rowScanner) (models.Booking, error) {
	var b models.Booking
	var status string
	err := row.Scan(
		&b.ID,
		&b.Reference,
		&b.RiderID,
		&b.TripID,
		&b.SeatNumber,
		&b.BookedAt,
		&b.Amount,
		&status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	b.Status = domain.BookingStatus(status)
	return b, err
}

func getBooking(ctx context.Context, q dbtx, id domain.ID, forUpdate bool) (models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRowContext(ctx, query, id))
	if err != nil {
		return models.Booking{}, classify(fmt.Errorf("get booking %d: %w", id, err))
	}
	return b, nil
}

func (s *MySQLStore) GetBooking(ctx context.Context, id domain.ID) (models.Booking, error) {
	return getBooking(ctx, s.reader(), id, false)
}

// ListBookings returns the ledger newest first.
func (s *MySQLStore) ListBookings(ctx context.Context, filter models.BookingFilter) ([]models.Booking, error) {
	where := []string{"1=1"}
	args := []any{}
	if filter.RiderID > 0 {
		where = append(where, "rider_id = ?")
		args = append(args, filter.RiderID)
	}
	if filter.TripID > 0 {
		where = append(where, "trip_id = ?")
		args = append(args, filter.TripID)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY booked_at DESC, id DESC`
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list bookings: %w", err))
	}
	defer rows.Close()

	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (t *mysqlTx) InsertBooking(ctx context.Context, b *models.Booking) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO bookings (reference, rider_id, trip_id, seat_number, booked_at,
			amount, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Reference,
		b.RiderID,
		b.TripID,
		b.SeatNumber,
		b.BookedAt,
		b.Amount,
		string(b.Status),
		b.CreatedAt,
		b.UpdatedAt,
	)
	if err != nil {
		return classify(fmt.Errorf("insert booking: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	b.ID = id
	return nil
}

func (t *mysqlTx) LockBooking(ctx context.Context, id domain.ID) (models.Booking, error) {
	return getBooking(ctx, t.tx, id, true)
}

func (t *mysqlTx) SetBookingStatus(ctx context.Context, id domain.ID, status domain.BookingStatus) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ?`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("set booking %d status: %w", id, err)
	}
	return expectOneRow(res, fmt.Sprintf("booking %d", id), ErrNotFound)
}

func (t *mysqlTx) CountActiveBookings(ctx context.Context, tripID domain.ID) (int, error) {
	var n int
	err := t.tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE trip_id = ? AND status = ?`,
		tripID, string(domain.BookingConfirmed),
	).Scan(&n)
	if err != nil {
		return 0, classify(fmt.Errorf("count bookings of trip %d: %w", tripID, err))
	}
	return n, nil
}
