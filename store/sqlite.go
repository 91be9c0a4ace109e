// Package store persists evaluation results keyed by content digest.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tliron/commonlog"

	"github.com/chazu/covariant/hash"

	_ "modernc.org/sqlite"
)

var log = commonlog.GetLogger("covariant.store")

const schema = `CREATE TABLE IF NOT EXISTS results (
	digest BLOB PRIMARY KEY,
	data   BLOB NOT NULL
) WITHOUT ROWID`

// SQLite is a digest → bytes table in a SQLite database file. It satisfies
// cache.Tier.
type SQLite struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database at path, creating parent directories
// as needed.
func Open(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	db.SetMaxOpenConns(1)
	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init store %s: %w", path, err)
		}
	}
	log.Infof("opened result store %s", path)
	return &SQLite{db: db, path: path}, nil
}

// Get returns the bytes stored for key.
func (s *SQLite) Get(ctx context.Context, key hash.Digest) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM results WHERE digest = ?", key[:]).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key.Short(), err)
	}
	return data, true, nil
}

// Put stores data under key. Writing an existing key replaces it, which is
// a no-op for content-addressed results.
func (s *SQLite) Put(ctx context.Context, key hash.Digest, data []byte) error {
	_, err := s.db.ExecContext(ctx, "INSERT OR REPLACE INTO results (digest, data) VALUES (?, ?)", key[:], data)
	if err != nil {
		return fmt.Errorf("put %s: %w", key.Short(), err)
	}
	return nil
}

// Count returns the number of stored results.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM results").Scan(&n); err != nil {
		return 0, fmt.Errorf("count results: %w", err)
	}
	return n, nil
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}
