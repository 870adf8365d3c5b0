// Package store is the local persistence layer. A [Backend] is a small
// key/value store holding opaque byte values. [Local] keeps the saved-name
// list on top of it and never surfaces a storage failure to its callers.
//
// Three backends exist: [FileBackend] (one JSON file per key), [SQLiteBackend]
// (a single-table SQLite database) and [MemBackend] (process memory, for
// tests and throwaway sessions). None of them holds an open handle between
// calls.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Fixed keys.
const (
	// KeySavedNames holds the JSON array of saved entries.
	KeySavedNames = "savedNames"

	// KeyDeviceID holds the per-installation device identifier.
	KeyDeviceID = "deviceId"
)

// ErrNotFound is returned by [Backend.Get] when the key has never been
// written.
var ErrNotFound = errors.New("store: key not found")

// Backend is a key/value store for small values.
//
// Implementations must be safe for concurrent use. Put replaces the value
// atomically: a concurrent or later Get observes either the old or the new
// value, never a mix.
type Backend interface {
	// Get returns the value stored under key, or [ErrNotFound].
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error
}

// validKey rejects keys that cannot be mapped safely onto every backend.
func validKey(key string) error {
	if key == "" {
		return errors.New("store: empty key")
	}
	if strings.ContainsAny(key, `/\.`) {
		return fmt.Errorf("store: invalid key %q", key)
	}
	return nil
}
