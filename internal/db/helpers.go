package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// QueryRower is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type QueryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQL server error numbers the store reacts to.
const (
	ErrNumDuplicateEntry  = 1062
	ErrNumLockWaitTimeout = 1205
	ErrNumDeadlock        = 1213
)

// HasTable reports whether table exists in the active schema (DATABASE()).
func HasTable(ctx context.Context, q QueryRower, table string) bool {
	var name sql.NullString
	err := q.QueryRowContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		  AND table_name = ?
		LIMIT 1
	`, table).Scan(&name)
	if err != nil {
		return false
	}
	return name.Valid && name.String != ""
}

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

// IsDuplicate reports a unique key violation.
func IsDuplicate(err error) bool {
	return mysqlErrNumber(err) == ErrNumDuplicateEntry
}

// IsLockTimeout reports errors a caller can retry: lock wait timeouts,
// deadlocks, dropped connections and expired contexts.
func IsLockTimeout(err error) bool {
	if err == nil {
		return false
	}
	switch mysqlErrNumber(err) {
	case ErrNumLockWaitTimeout, ErrNumDeadlock:
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn)
}
