package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is a persistent log of scheduler notifications backed by SQLite
type Journal struct {
	db *sql.DB
}

// Entry is one journaled notification
type Entry struct {
	ID        int64
	Session   string // Session that produced the entry
	Kind      string // Notification kind, e.g. "play_mode" or "frame_dropped"
	Frame     int64  // Current or dropped frame, when the kind carries one
	Value     string // Human-readable new value
	Detail    string
	CreatedAt time.Time
}

// Open opens (or creates) a journal at dbPath. Use ":memory:" for a
// throwaway journal.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single connection keeps in-memory databases consistent
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session TEXT NOT NULL,
			kind TEXT NOT NULL,
			frame INTEGER NOT NULL DEFAULT 0,
			value TEXT,
			detail TEXT,
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_events_session ON events(session, id);
		CREATE INDEX IF NOT EXISTS idx_events_created ON events(created_at);
	`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Add appends an entry. A zero CreatedAt is set to now.
func (j *Journal) Add(ctx context.Context, e Entry) (int64, error) {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	result, err := j.db.ExecContext(ctx, `
		INSERT INTO events (session, kind, frame, value, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.Session, e.Kind, e.Frame, e.Value, e.Detail, e.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to insert event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}

	return id, nil
}

// AddBatch appends entries in a single transaction
func (j *Journal) AddBatch(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (session, kind, frame, value, detail, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if _, err := stmt.ExecContext(ctx, e.Session, e.Kind, e.Frame, e.Value, e.Detail, e.CreatedAt.UnixMilli()); err != nil {
			return fmt.Errorf("failed to insert %s event: %w", e.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Recent returns up to limit entries, newest first. A limit of 0 returns
// every entry.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, session, kind, frame, COALESCE(value, ''), COALESCE(detail, ''), created_at
		FROM events
		ORDER BY id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	return j.query(ctx, query)
}

// ForSession returns up to limit entries of one session, oldest first
func (j *Journal) ForSession(ctx context.Context, session string, limit int) ([]Entry, error) {
	query := `
		SELECT id, session, kind, frame, COALESCE(value, ''), COALESCE(detail, ''), created_at
		FROM events
		WHERE session = ?
		ORDER BY id ASC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	return j.query(ctx, query, session)
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdMillis int64

		if err := rows.Scan(&e.ID, &e.Session, &e.Kind, &e.Frame, &e.Value, &e.Detail, &createdMillis); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdMillis)

		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return entries, nil
}

// Count returns the number of entries of the given kind, or of every kind
// when kind is empty
func (j *Journal) Count(ctx context.Context, kind string) (int, error) {
	query := "SELECT COUNT(*) FROM events"
	var args []any
	if kind != "" {
		query += " WHERE kind = ?"
		args = append(args, kind)
	}

	var count int
	if err := j.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}

	return count, nil
}

// Cleanup removes entries older than maxAge
func (j *Journal) Cleanup(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).UnixMilli()

	result, err := j.db.ExecContext(ctx, "DELETE FROM events WHERE created_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return deleted, nil
}
