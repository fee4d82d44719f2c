package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intconfig "busbooking/internal/config"
	intdb "busbooking/internal/db"
)

// dbtx is the query surface shared by *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// MySQLStore implements Store on InnoDB. Seat and trip rows are locked with
// SELECT ... FOR UPDATE inside the unit; listings read from ReadDB when set.
type MySQLStore struct {
	DB     *sql.DB
	ReadDB *sql.DB
}

func NewMySQLStore(primary, replica *sql.DB) *MySQLStore {
	return &MySQLStore{DB: primary, ReadDB: replica}
}

func (s *MySQLStore) db() *sql.DB {
	if s.DB != nil {
		return s.DB
	}
	return intconfig.DB
}

func (s *MySQLStore) reader() *sql.DB {
	if s.ReadDB != nil {
		return s.ReadDB
	}
	return s.db()
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	if err := s.db().PingContext(ctx); err != nil {
		return classify(err)
	}
	return nil
}

// InTx runs fn in a READ COMMITTED transaction. Row locks taken by fn provide
// the isolation; READ COMMITTED keeps InnoDB from adding gap locks.
func (s *MySQLStore) InTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	conn := s.db()
	if conn == nil {
		return fmt.Errorf("%w: database not connected", ErrUnavailable)
	}
	sqlTx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(fmt.Errorf("begin transaction: %w", err))
	}
	defer func() {
		if err != nil {
			_ = sqlTx.Rollback()
		}
	}()

	if err = fn(&mysqlTx{tx: sqlTx}); err != nil {
		return classify(err)
	}
	if err = sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// classify folds driver errors into the store sentinels, keeping the cause.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnavailable),
		errors.Is(err, ErrStaleWrite), errors.Is(err, ErrDuplicate):
		return err
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case intdb.IsDuplicate(err):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	case intdb.IsLockTimeout(err):
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

// mysqlTx adapts *sql.Tx to Tx.
type mysqlTx struct {
	tx *sql.Tx
}

var (
	_ Store = (*MySQLStore)(nil)
	_ Tx    = (*mysqlTx)(nil)
)
