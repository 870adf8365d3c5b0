package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Compile-time interface check.
var _ Backend = (*SQLiteBackend)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      BLOB NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLiteBackend stores values in the kv table of a SQLite database file.
// The database is opened for each operation and closed before it returns.
// Operations from one process are serialized; other processes wait on the
// SQLite busy timeout.
type SQLiteBackend struct {
	path string
	dsn  string
	mu   sync.Mutex
}

// NewSQLiteBackend returns a backend for the database file at path, creating
// the parent directory and the schema if needed.
func NewSQLiteBackend(ctx context.Context, path string) (*SQLiteBackend, error) {
	if path == "" {
		return nil, errors.New("store: sqlite backend: empty path")
	}
	path, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("store: sqlite backend: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("store: sqlite backend: %w", err)
	}
	b := &SQLiteBackend{path: path, dsn: sqliteDSN(path)}
	if err := b.with(ctx, func(*sql.DB) error { return nil }); err != nil {
		return nil, err
	}
	return b, nil
}

// sqliteDSN returns the SQLite URI for the absolute path abs. Characters
// such as '?' and '#' in the path are percent-encoded.
func sqliteDSN(abs string) string {
	p := filepath.ToSlash(abs)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	u := url.URL{
		Scheme:   "file",
		Path:     p,
		RawQuery: "_pragma=busy_timeout(5000)",
	}
	return u.String()
}

// with opens the database, ensures the schema exists, runs fn and closes the
// database again.
func (b *SQLiteBackend) with(ctx context.Context, fn func(*sql.DB) error) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	db, err := sql.Open("sqlite", b.dsn)
	if err != nil {
		return fmt.Errorf("store: open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("store: create schema: %w", err)
	}
	return fn(db)
}

// Get implements [Backend].
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	var value []byte
	err := b.with(ctx, func(db *sql.DB) error {
		return db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", key, err)
	}
	return value, nil
}

// Put implements [Backend].
func (b *SQLiteBackend) Put(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if value == nil {
		value = []byte{}
	}
	err := b.with(ctx, func(db *sql.DB) error {
		_, err := db.ExecContext(ctx, `
INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
			key, value)
		return err
	})
	if err != nil {
		return fmt.Errorf("store: put %s: %w", key, err)
	}
	return nil
}
