package db

import (
	"context"
	"database/sql"
	"fmt"

	"busbooking/internal/utils"

	"go.uber.org/zap"
)

type tableDDL struct {
	name string
	ddl  string
}

// bookings has no foreign key to trips; ledger rows outlive a deleted trip.
var tables = []tableDDL{
	{"trips", `
CREATE TABLE IF NOT EXISTS trips (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	route VARCHAR(255) NOT NULL,
	departure_date VARCHAR(10) NOT NULL,
	departure_time VARCHAR(5) NOT NULL,
	arrival_time VARCHAR(5) NOT NULL,
	total_seats INT NOT NULL,
	available_seats INT NOT NULL,
	price BIGINT NOT NULL DEFAULT 0,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	KEY idx_trips_departure (departure_date, departure_time),
	CONSTRAINT chk_trips_available CHECK (available_seats >= 0 AND available_seats <= total_seats)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"seats", `
CREATE TABLE IF NOT EXISTS seats (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	trip_id BIGINT NOT NULL,
	seat_number VARCHAR(16) NOT NULL,
	seat_class VARCHAR(16) NOT NULL DEFAULT 'REGULAR',
	state VARCHAR(16) NOT NULL DEFAULT 'AVAILABLE',
	updated_at DATETIME(6) NOT NULL,
	UNIQUE KEY uniq_trip_seat (trip_id, seat_number),
	KEY idx_seats_trip_class_state (trip_id, seat_class, state),
	CONSTRAINT fk_seats_trip FOREIGN KEY (trip_id) REFERENCES trips (id) ON DELETE CASCADE
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"bookings", `
CREATE TABLE IF NOT EXISTS bookings (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	reference CHAR(36) NOT NULL,
	rider_id BIGINT NOT NULL,
	trip_id BIGINT NOT NULL,
	seat_number VARCHAR(16) NOT NULL,
	booked_at DATETIME(6) NOT NULL,
	amount BIGINT NOT NULL,
	status VARCHAR(16) NOT NULL,
	created_at DATETIME(6) NOT NULL,
	updated_at DATETIME(6) NOT NULL,
	UNIQUE KEY uniq_booking_reference (reference),
	KEY idx_bookings_rider (rider_id),
	KEY idx_bookings_trip_seat_status (trip_id, seat_number, status)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
	{"users", `
CREATE TABLE IF NOT EXISTS users (
	id BIGINT AUTO_INCREMENT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	email VARCHAR(255) NOT NULL,
	password_hash VARCHAR(255) NOT NULL,
	role VARCHAR(32) NOT NULL DEFAULT 'user',
	created_at DATETIME(6) NOT NULL,
	UNIQUE KEY uniq_users_email (email)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_unicode_ci;`},
}

// EnsureSchema creates any missing table. Existing tables are left untouched.
func EnsureSchema(ctx context.Context, conn *sql.DB) error {
	for _, t := range tables {
		if HasTable(ctx, conn, t.name) {
			continue
		}
		if _, err := conn.ExecContext(ctx, t.ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
		utils.Logger.Info("table created", zap.String("table", t.name))
	}
	return nil
}
