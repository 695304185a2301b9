package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite" // CGO-free SQLite
)

// SQLite persists a long-lived scope to a SQLite file. Several scopes may
// share one file; they are separated by name.
type SQLite struct {
	db     *sql.DB
	scope  string
	mu     sync.RWMutex
	closed bool
}

// Compile-time interface check.
var _ Storage = (*SQLite)(nil)

// NewSQLite opens (or creates) the database at path and binds the storage to
// the given scope name. Use ":memory:" for a throwaway database.
func NewSQLite(path, scope string) (*SQLite, error) {
	dsn := path
	if path != ":memory:" {
		// WAL + busy timeout to avoid "database is locked"
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open storage database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS storage_items(
	  scope TEXT NOT NULL,
	  key   TEXT NOT NULL,
	  value TEXT NOT NULL,
	  PRIMARY KEY (scope, key)
	);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create storage table: %w", err)
	}

	return &SQLite{db: db, scope: scope}, nil
}

// GetItem implements Storage.
func (s *SQLite) GetItem(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}

	var value string
	err := s.db.QueryRow(`SELECT value FROM storage_items WHERE scope = ? AND key = ?`, s.scope, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %q: %w", key, err)
	}
	return value, true, nil
}

// SetItem implements Storage.
func (s *SQLite) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	_, err := s.db.Exec(`
		INSERT INTO storage_items (scope, key, value) VALUES (?, ?, ?)
		ON CONFLICT(scope, key) DO UPDATE SET value = excluded.value
	`, s.scope, key, value)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// RemoveItem implements Storage.
func (s *SQLite) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.Exec(`DELETE FROM storage_items WHERE scope = ? AND key = ?`, s.scope, key); err != nil {
		return fmt.Errorf("remove %q: %w", key, err)
	}
	return nil
}

// Clear implements Storage. Only the bound scope is cleared.
func (s *SQLite) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	if _, err := s.db.Exec(`DELETE FROM storage_items WHERE scope = ?`, s.scope); err != nil {
		return fmt.Errorf("clear scope %q: %w", s.scope, err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
