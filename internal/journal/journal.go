// Package journal persists executed command batches in SQLite.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// Entry is one journaled batch.
type Entry struct {
	ID        int64
	SessionID string
	Origin    string
	Text      string
	// Code is empty for a successful batch.
	Code     string
	Error    string
	At       time.Time
	Duration time.Duration
}

// OK reports whether the batch succeeded.
func (e Entry) OK() bool {
	return e.Code == ""
}

// Query filters History.
type Query struct {
	// SessionID restricts results to one session when set.
	SessionID string
	// Limit keeps only the newest entries when positive.
	Limit int
}

// Journal is a SQLite-backed batch log.
type Journal struct {
	db   *sql.DB
	mu   sync.Mutex
	path string
}

// Open opens or creates the journal at path. Use ":memory:" for a private
// in-memory journal.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, errors.New("journal path cannot be empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS batches (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		origin      TEXT NOT NULL,
		text        TEXT NOT NULL,
		code        TEXT NOT NULL DEFAULT '',
		error       TEXT NOT NULL DEFAULT '',
		at_unix_ns  INTEGER NOT NULL,
		duration_ns INTEGER NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create batches table: %w", err)
	}
	return &Journal{db: db, path: path}, nil
}

// Path returns the database path.
func (j *Journal) Path() string {
	return j.path
}

// Record appends an entry.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO batches (session_id, origin, text, code, error, at_unix_ns, duration_ns)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Origin, e.Text, e.Code, e.Error, e.At.UnixNano(), int64(e.Duration))
	if err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}
	return nil
}

// History returns matching entries, newest first.
func (j *Journal) History(ctx context.Context, q Query) ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	stmt := `SELECT id, session_id, origin, text, code, error, at_unix_ns, duration_ns FROM batches`
	var args []any
	if q.SessionID != "" {
		stmt += ` WHERE session_id = ?`
		args = append(args, q.SessionID)
	}
	stmt += ` ORDER BY id DESC`
	if q.Limit > 0 {
		stmt += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := j.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select batches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			at, took int64
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Origin, &e.Text, &e.Code, &e.Error, &at, &took); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		e.At = time.Unix(0, at)
		e.Duration = time.Duration(took)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate batches: %w", err)
	}

	return out, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
