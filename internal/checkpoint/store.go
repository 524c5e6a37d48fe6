// Package checkpoint persists small integer checkpoints, such as the
// presence start timestamp, in a SQLite database so they survive restarts.
package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
    key TEXT PRIMARY KEY,
    value INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// Store is a key/value table of int64 checkpoints.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at dataSourceName. ":memory:" is
// accepted for tests.
func Open(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint database: %w", err)
	}
	// One connection keeps :memory: databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 2000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create checkpoint schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Put stores value under key, replacing any previous value.
func (s *Store) Put(ctx context.Context, key string, value int64) error {
	query := `
		INSERT INTO checkpoints (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, key, value, s.now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to put checkpoint %q: %w", key, err)
	}
	return nil
}

// Get returns the value stored under key. ok is false when the key has never
// been written.
func (s *Store) Get(ctx context.Context, key string) (value int64, ok bool, err error) {
	err = s.db.QueryRowContext(ctx, "SELECT value FROM checkpoints WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get checkpoint %q: %w", key, err)
	}
	return value, true, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
