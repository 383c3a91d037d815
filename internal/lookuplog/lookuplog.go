// Package lookuplog persists an audit trail of resolver lookups: which
// component resolved which key, whether the disk cache served it, which
// external provider answered, and how long the round-trip took. Entries feed
// operational digging ("why did this estimate miss the cache?") and are not
// part of the domain state.
package lookuplog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Entry records a single resolver lookup.
type Entry struct {
	TraceID    string
	Component  string // vehicles | geo | routing | country | cities
	Key        string
	Provider   string // knowledge/geocoder/router backend that answered, if any
	CacheHit   bool
	ErrorMsg   string
	DurationMS int64
	CreatedAt  time.Time
}

// Writer persists lookup entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// NoopWriter ignores all writes. Used when no DSN is configured.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite or Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// NewSQLiteWriter opens (or creates) the SQLite lookup log at dsn.
func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "fuelrouter-lookups.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite lookup log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// NewPostgresWriter opens the Postgres lookup log at dsn.
func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres lookup log: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s lookup log: %w", w.dialect, err)
	}

	ddl := `
CREATE TABLE IF NOT EXISTS lookup_logs (
	id INTEGER PRIMARY KEY,
	trace_id TEXT,
	component TEXT NOT NULL,
	key TEXT NOT NULL,
	provider TEXT,
	cache_hit INTEGER NOT NULL,
	error_message TEXT,
	duration_ms INTEGER NOT NULL,
	created_at TIMESTAMP NOT NULL
);`
	if w.dialect == "postgres" {
		ddl = `
CREATE TABLE IF NOT EXISTS lookup_logs (
	id BIGSERIAL PRIMARY KEY,
	trace_id TEXT,
	component TEXT NOT NULL,
	key TEXT NOT NULL,
	provider TEXT,
	cache_hit BOOLEAN NOT NULL,
	error_message TEXT,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);`
	}

	if _, err := w.db.Exec(ddl); err != nil {
		return fmt.Errorf("initialize lookup log schema: %w", err)
	}
	return nil
}

// Write inserts one entry. CreatedAt defaults to now when unset.
func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO lookup_logs(trace_id, component, key, provider, cache_hit, error_message, duration_ms, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)`
	cacheHit := any(0)
	if entry.CacheHit {
		cacheHit = 1
	}
	if w.dialect == "postgres" {
		query = `INSERT INTO lookup_logs(trace_id, component, key, provider, cache_hit, error_message, duration_ms, created_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)`
		cacheHit = entry.CacheHit
	}

	_, err := w.db.ExecContext(ctx, query,
		entry.TraceID,
		entry.Component,
		entry.Key,
		entry.Provider,
		cacheHit,
		entry.ErrorMsg,
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("write lookup log: %w", err)
	}
	return nil
}

// Count returns the number of stored entries for component; empty component
// counts everything.
func (w *SQLWriter) Count(ctx context.Context, component string) (int, error) {
	query := `SELECT COUNT(*) FROM lookup_logs`
	args := []any{}
	if component != "" {
		if w.dialect == "postgres" {
			query += ` WHERE component = $1`
		} else {
			query += ` WHERE component = ?`
		}
		args = append(args, component)
	}
	var n int
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count lookup logs: %w", err)
	}
	return n, nil
}

// Close releases the underlying database handle.
func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
