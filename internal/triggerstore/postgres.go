package triggerstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresSchema is the DDL for the trigger_records table. Execute it via
// [PostgresStore.Migrate] or apply it during deployment.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS trigger_records (
    session_id  TEXT NOT NULL,
    name        TEXT NOT NULL,
    type        TEXT NOT NULL,
    options     JSONB NOT NULL DEFAULT '{}',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (session_id, name)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Options are stored as
// JSONB.
type PostgresStore struct {
	db DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a store using db. Call [PostgresStore.Migrate]
// before the first query.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the trigger_records table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("triggerstore: migrate: %w", err)
	}
	return nil
}

// List implements [Store].
func (s *PostgresStore) List(ctx context.Context, session string) ([]Record, error) {
	if err := ValidateName(session); err != nil {
		return nil, fmt.Errorf("triggerstore: list: %w", err)
	}

	const query = `
		SELECT name, type, options
		FROM trigger_records
		WHERE session_id = $1
		ORDER BY name`

	rows, err := s.db.Query(ctx, query, session)
	if err != nil {
		return nil, fmt.Errorf("triggerstore: list %q: %w", session, err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		var (
			rec  Record
			opts []byte
		)
		if err := rows.Scan(&rec.Name, &rec.Type, &opts); err != nil {
			return nil, fmt.Errorf("triggerstore: scan: %w", err)
		}
		rec.Options = opts
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("triggerstore: list %q: %w", session, err)
	}
	return recs, nil
}

// Get implements [Store].
func (s *PostgresStore) Get(ctx context.Context, session, name string) (Record, error) {
	if err := validateKey(session, name); err != nil {
		return Record{}, fmt.Errorf("triggerstore: get: %w", err)
	}

	const query = `
		SELECT type, options
		FROM trigger_records
		WHERE session_id = $1 AND name = $2`

	rec := Record{Name: name}
	var opts []byte
	err := s.db.QueryRow(ctx, query, session, name).Scan(&rec.Type, &opts)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, fmt.Errorf("triggerstore: %s/%s: %w", session, name, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("triggerstore: get %s/%s: %w", session, name, err)
	}
	rec.Options = opts
	return rec, nil
}

// Put implements [Store].
func (s *PostgresStore) Put(ctx context.Context, session string, rec Record) error {
	if err := validateKey(session, rec.Name); err != nil {
		return fmt.Errorf("triggerstore: put: %w", err)
	}

	const query = `
		INSERT INTO trigger_records (session_id, name, type, options)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (session_id, name) DO UPDATE SET
			type       = EXCLUDED.type,
			options    = EXCLUDED.options,
			updated_at = now()`

	if _, err := s.db.Exec(ctx, query, session, rec.Name, rec.Type, []byte(optionsOrEmpty(rec.Options))); err != nil {
		return fmt.Errorf("triggerstore: put %s/%s: %w", session, rec.Name, err)
	}
	return nil
}
