package repositories

import (
	"context"
	"fmt"
	"strings"

	"busbooking/internal/domain"
	"busbooking/internal/domain/models"
	"busbooking/internal/utils"
)

const seatColumns = `id, trip_id, seat_number, seat_class, state, updated_at`

// seatInsertBatch bounds the placeholders of one multi-row INSERT.
const seatInsertBatch = 100

func scanSeat(row rowScanner) (models.Seat, error) {
	var s models.Seat
	var class, state string
	if err := row.Scan(&s.ID, &s.TripID, &s.SeatNumber, &class, &state, &s.UpdatedAt); err != nil {
		return models.Seat{}, err
	}
	s.Class = domain.SeatClass(class)
	s.State = domain.SeatState(state)
	return s, nil
}

func getSeat(ctx context.Context, q dbtx, tripID domain.ID, seatNumber string, forUpdate bool) (models.Seat, error) {
	query := `SELECT ` + seatColumns + ` FROM seats WHERE trip_id = ? AND seat_number = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	seat, err := scanSeat(q.QueryRowContext(ctx, query, tripID, utils.NormalizeSeatNumber(seatNumber)))
	if err != nil {
		return models.Seat{}, classify(fmt.Errorf("get seat %s of trip %d: %w", seatNumber, tripID, err))
	}
	return seat, nil
}

func (s *MySQLStore) GetSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error) {
	return getSeat(ctx, s.reader(), tripID, seatNumber, false)
}

// ListSeats returns seats in numeric seat order.
func (s *MySQLStore) ListSeats(ctx context.Context, tripID domain.ID, filter models.SeatFilter) ([]models.Seat, error) {
	where := []string{"trip_id = ?"}
	args := []any{tripID}
	if filter.Class != "" {
		where = append(where, "seat_class = ?")
		args = append(args, string(filter.Class))
	}
	if filter.State != "" {
		where = append(where, "state = ?")
		args = append(args, string(filter.State))
	}

	query := `SELECT ` + seatColumns + ` FROM seats WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY CHAR_LENGTH(seat_number) ASC, seat_number ASC`
	rows, err := s.reader().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(fmt.Errorf("list seats of trip %d: %w", tripID, err))
	}
	defer rows.Close()

	out := []models.Seat{}
	for rows.Next() {
		seat, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("scan seat: %w", err)
		}
		out = append(out, seat)
	}
	return out, rows.Err()
}

func (s *MySQLStore) CountSeatsByClass(ctx context.Context, tripID domain.ID) (map[domain.SeatClass]int, error) {
	rows, err := s.reader().QueryContext(ctx,
		`SELECT seat_class, COUNT(*) FROM seats WHERE trip_id = ? GROUP BY seat_class`,
		tripID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("count seats of trip %d: %w", tripID, err))
	}
	defer rows.Close()

	out := map[domain.SeatClass]int{}
	for rows.Next() {
		var class string
		var n int
		if err := rows.Scan(&class, &n); err != nil {
			return nil, fmt.Errorf("scan seat count: %w", err)
		}
		out[domain.SeatClass(class)] = n
	}
	return out, rows.Err()
}

func (t *mysqlTx) LockSeat(ctx context.Context, tripID domain.ID, seatNumber string) (models.Seat, error) {
	return getSeat(ctx, t.tx, tripID, seatNumber, true)
}

// SetSeatState is a compare-and-set on the state column. It backs up the row
// lock: a zero-row update means someone moved the seat first.
func (t *mysqlTx) SetSeatState(ctx context.Context, seatID domain.ID, from, to domain.SeatState) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE seats SET state = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ? AND state = ?`,
		string(to), seatID, string(from),
	)
	if err != nil {
		return fmt.Errorf("set seat %d %s->%s: %w", seatID, from, to, err)
	}
	return expectOneRow(res, fmt.Sprintf("seat %d not %s", seatID, from), ErrStaleWrite)
}

func (t *mysqlTx) InsertSeats(ctx context.Context, seats []models.Seat) error {
	for start := 0; start < len(seats); start += seatInsertBatch {
		end := min(start+seatInsertBatch, len(seats))
		batch := seats[start:end]

		ph := make([]string, 0, len(batch))
		args := make([]any, 0, len(batch)*5)
		for _, seat := range batch {
			ph = append(ph, "(?, ?, ?, ?, ?)")
			args = append(args, seat.TripID, seat.SeatNumber, string(seat.Class), string(seat.State), seat.UpdatedAt)
		}
		stmt := `INSERT INTO seats (trip_id, seat_number, seat_class, state, updated_at) VALUES ` + strings.Join(ph, ", ")
		if _, err := t.tx.ExecContext(ctx, stmt, args...); err != nil {
			return classify(fmt.Errorf("insert seats: %w", err))
		}
	}
	return nil
}
