package triggerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS trigger_records (
    session_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL,
    options     TEXT NOT NULL DEFAULT '{}',
    updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (session_id, name)
);
`

// SQLiteStore is a [Store] backed by a single SQLite database file using the
// pure-Go modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("triggerstore: open sqlite %q: %w", path, err)
	}
	// A single connection keeps ":memory:" databases coherent and avoids
	// SQLITE_BUSY between writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("triggerstore: migrate sqlite: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// List implements [Store].
func (s *SQLiteStore) List(ctx context.Context, session string) ([]Record, error) {
	if err := ValidateName(session); err != nil {
		return nil, fmt.Errorf("triggerstore: list: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, type, options FROM trigger_records WHERE session_id = ? ORDER BY name`,
		session)
	if err != nil {
		return nil, fmt.Errorf("triggerstore: list %q: %w", session, err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var (
			rec  Record
			opts string
		)
		if err := rows.Scan(&rec.Name, &rec.Type, &opts); err != nil {
			return nil, fmt.Errorf("triggerstore: scan: %w", err)
		}
		rec.Options = []byte(opts)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("triggerstore: list %q: %w", session, err)
	}
	return recs, nil
}

// Get implements [Store].
func (s *SQLiteStore) Get(ctx context.Context, session, name string) (Record, error) {
	if err := validateKey(session, name); err != nil {
		return Record{}, fmt.Errorf("triggerstore: get: %w", err)
	}
	rec := Record{Name: name}
	var opts string
	err := s.db.QueryRowContext(ctx,
		`SELECT type, options FROM trigger_records WHERE session_id = ? AND name = ?`,
		session, name).Scan(&rec.Type, &opts)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("triggerstore: %s/%s: %w", session, name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("triggerstore: get %s/%s: %w", session, name, err)
	}
	rec.Options = []byte(opts)
	return rec, nil
}

// Put implements [Store].
func (s *SQLiteStore) Put(ctx context.Context, session string, rec Record) error {
	if err := validateKey(session, rec.Name); err != nil {
		return fmt.Errorf("triggerstore: put: %w", err)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO trigger_records (session_id, name, type, options, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		session, rec.Name, rec.Type, string(optionsOrEmpty(rec.Options)))
	if err != nil {
		return fmt.Errorf("triggerstore: put %s/%s: %w", session, rec.Name, err)
	}
	return nil
}
