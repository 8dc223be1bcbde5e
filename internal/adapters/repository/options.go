package repository

import "time"

const (
	defaultBusyTimeout  = 5 * time.Second
	defaultMaxOpenConns = 1
)

// SQLiteOption configures OpenSQLite.
type SQLiteOption func(*sqliteSettings)

type sqliteSettings struct {
	busyTimeout  time.Duration
	maxOpenConns int
}

// WithBusyTimeout sets how long SQLite waits on a locked database.
func WithBusyTimeout(d time.Duration) SQLiteOption {
	return func(s *sqliteSettings) {
		if d > 0 {
			s.busyTimeout = d
		}
	}
}

// WithMaxOpenConns bounds the connection pool. SQLite has a single writer,
// so values above one only help read-heavy loads.
func WithMaxOpenConns(n int) SQLiteOption {
	return func(s *sqliteSettings) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
