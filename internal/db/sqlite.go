// Package db provides SQLite connectivity and migration support for the
// query history store.
package db

import (
	"database/sql"
	"fmt"
	"net/url"
)

// DSN parameters for production hardening.
const (
	busyTimeout = "5000" // milliseconds
	synchronous = "NORMAL"
	journalMode = "WAL"
)

// Open opens a *sql.DB for the given SQLite file path with WAL journaling,
// a busy timeout, and foreign keys enabled. The pool is capped at one open
// connection; the history store is write-mostly and low-volume.
func Open(path string) (*sql.DB, error) {
	q := url.Values{}
	q.Set("_busy_timeout", busyTimeout)
	q.Set("_journal_mode", journalMode)
	q.Set("_synchronous", synchronous)
	q.Set("_foreign_keys", "on")

	dsn := fmt.Sprintf("file:%s?%s", path, q.Encode())
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return conn, nil
}
