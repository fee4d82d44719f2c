package config

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
)

var (
	DB     *sql.DB
	ReadDB *sql.DB
	dbMu   sync.Mutex
)

// DSN builds the driver config. clientFoundRows makes RowsAffected count
// matched rows; innodb_lock_wait_timeout bounds row lock waits.
func DSN(env Env, host string) string {
	cfg := mysql.NewConfig()
	cfg.User = env.DBUser
	cfg.Passwd = env.DBPassword
	cfg.Net = "tcp"
	cfg.Addr = host
	cfg.DBName = env.DBName
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.ClientFoundRows = true
	cfg.Timeout = 5 * time.Second
	cfg.ReadTimeout = 30 * time.Second
	cfg.WriteTimeout = 30 * time.Second
	cfg.Params = map[string]string{
		"charset":                  "utf8mb4",
		"innodb_lock_wait_timeout": fmt.Sprintf("%d", lockWaitSeconds(env.LockTimeout)),
	}
	return cfg.FormatDSN()
}

func lockWaitSeconds(d time.Duration) int {
	s := int((d + time.Second - 1) / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// ConnectDB opens the primary pool and, when DB_READ_HOST is set, a replica
// pool for listings. It is idempotent.
func ConnectDB(ctx context.Context, env Env) (*sql.DB, *sql.DB, error) {
	dbMu.Lock()
	defer dbMu.Unlock()

	if DB != nil {
		return DB, ReadDB, nil
	}

	primary, err := open(ctx, DSN(env, env.DBHost))
	if err != nil {
		return nil, nil, fmt.Errorf("primary database: %w", err)
	}

	var replica *sql.DB
	if env.DBReadHost != "" {
		replica, err = open(ctx, DSN(env, env.DBReadHost))
		if err != nil {
			_ = primary.Close()
			return nil, nil, fmt.Errorf("replica database: %w", err)
		}
	}

	DB, ReadDB = primary, replica
	return DB, ReadDB, nil
}

func open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()

	if ReadDB != nil {
		_ = ReadDB.Close()
		ReadDB = nil
	}
	if DB != nil {
		_ = DB.Close()
		DB = nil
	}
}
