// Package storage provides the persistence scopes the tracker keeps its
// identities in. The interface mirrors the browser's Web Storage API: a flat
// string key/value namespace with synchronous access.
//
// Two scopes are used by the tracker:
//   - long-lived: survives page loads (SQLite file, Redis, or Memory in tests)
//   - tab-scoped: lives as long as the embedding page (Memory)
package storage

import "errors"

// Storage is a string key/value scope.
// Implementations must be safe for concurrent use.
type Storage interface {
	// GetItem returns the value for key and whether it exists.
	GetItem(key string) (string, bool, error)

	// SetItem stores value under key, replacing any existing value.
	SetItem(key, value string) error

	// RemoveItem deletes key. Removing a missing key is not an error.
	RemoveItem(key string) error

	// Clear removes every key in the scope.
	Clear() error
}

// Sentinel errors for storage operations.
var (
	// ErrUnavailable indicates the scope cannot be used at all
	// (storage disabled, private browsing, backend unreachable).
	ErrUnavailable = errors.New("storage unavailable")

	// ErrQuotaExceeded indicates a write was refused for lack of space.
	ErrQuotaExceeded = errors.New("storage quota exceeded")

	// ErrClosed indicates the backend has been closed.
	ErrClosed = errors.New("storage closed")
)

// Disabled is a Storage whose every operation fails with ErrUnavailable.
// It stands in for a browser that blocks storage access.
type Disabled struct{}

// Compile-time interface check.
var _ Storage = Disabled{}

// GetItem always fails.
func (Disabled) GetItem(string) (string, bool, error) { return "", false, ErrUnavailable }

// SetItem always fails.
func (Disabled) SetItem(string, string) error { return ErrUnavailable }

// RemoveItem always fails.
func (Disabled) RemoveItem(string) error { return ErrUnavailable }

// Clear always fails.
func (Disabled) Clear() error { return ErrUnavailable }
