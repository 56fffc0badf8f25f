// Package store provides a SQLite-backed audit log of handled queries.
// Each entry records the outcome of one reasoning loop execution — outcome,
// error kind, step count, duration — so operators can inspect service
// behaviour after the fact. Answers and transcripts are never persisted;
// conversation state lives only inside a single request.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// Entry is one audit record for a handled query.
type Entry struct {
	// Query is the user's query text.
	Query string
	// Outcome is the terminal state of the run: done, failed, exhausted.
	Outcome string
	// ErrorKind classifies the failure (parse, llm_provider, exhausted),
	// empty for successful runs.
	ErrorKind string
	// Steps is the number of tool round trips performed.
	Steps int
	// DurationMS is the wall-clock duration of the run in milliseconds.
	DurationMS int64
	// CreatedAt is when the entry was persisted.
	CreatedAt time.Time
}

// QueryLog persists and retrieves query audit entries. Implementations must
// be safe for concurrent use.
type QueryLog interface {
	// Record persists a single audit entry.
	Record(ctx context.Context, e Entry) error
	// Recent returns the most recent n entries, newest-first.
	// If fewer than n entries exist, all are returned.
	Recent(ctx context.Context, n int) ([]Entry, error)
	// Close releases any resources held by the log.
	Close() error
}

// SQLiteStore is a QueryLog backed by a local SQLite database.
type SQLiteStore struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultDBPath returns the default path for the query audit database.
// It resolves to ~/.kbask/audit.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("store: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".kbask")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("store: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "audit.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS query_audit (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    query        TEXT    NOT NULL,
    outcome      TEXT    NOT NULL CHECK(outcome IN ('done','failed','exhausted')),
    error_kind   TEXT    NOT NULL DEFAULT '',
    steps        INTEGER NOT NULL DEFAULT 0,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL  -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_query_audit_created
    ON query_audit (created_at);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("store: migrate: %w", err)
	}
	return nil
}

// Record persists a single audit entry.
func (s *SQLiteStore) Record(ctx context.Context, e Entry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	const q = `INSERT INTO query_audit (query, outcome, error_kind, steps, duration_ms, created_at)
VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q,
		e.Query, e.Outcome, e.ErrorKind, e.Steps, e.DurationMS, createdAt.Unix(),
	); err != nil {
		return fmt.Errorf("store: record: %w", err)
	}
	return nil
}

// Recent returns the most recent n entries, newest-first.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Entry, error) {
	const q = `SELECT query, outcome, error_kind, steps, duration_ms, created_at
FROM query_audit ORDER BY created_at DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("store: recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt int64
		if err := rows.Scan(&e.Query, &e.Outcome, &e.ErrorKind, &e.Steps, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("store: scan: %w", err)
		}
		e.CreatedAt = time.Unix(createdAt, 0)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: rows: %w", err)
	}
	return entries, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
