// Package history defines the Provider interface for the remote saved-name
// history store.
//
// The remote history is an audit trail, not the source of truth: callers in
// this module never let its failures affect local state. The interface still
// reports errors so that the best-effort wrapper can log and count them.
//
// Implementations must be safe for concurrent use.
package history

import (
	"context"
	"time"
)

// Record is one entry of the remote history as listed by the service.
type Record struct {
	ID            string    `json:"id"`
	EnglishName   string    `json:"englishName"`
	LocalizedName string    `json:"localizedName"`
	SavedAt       time.Time `json:"savedAt"`
}

// Provider is the abstraction over the remote history service.
type Provider interface {
	// RecordSave stores a saved name remotely. remoteID is the id reported by
	// the service, or empty when the service did not report one.
	RecordSave(ctx context.Context, englishName, localizedName string) (remoteID string, err error)

	// RecordDelete removes a remote record. An empty remoteID is a no-op and
	// issues no request.
	RecordDelete(ctx context.Context, remoteID string) error

	// List returns the remote records for this installation, newest first.
	List(ctx context.Context) ([]Record, error)
}
