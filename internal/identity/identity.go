// Package identity manages the per-installation device identifier that
// scopes this client's records in the remote history service.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MrWong99/irum/internal/store"
)

// DeviceID returns the device identifier stored in b, generating and storing
// a new random UUID on first use. A stored value that does not parse as a
// UUID is replaced.
func DeviceID(ctx context.Context, b store.Backend) (string, error) {
	raw, err := b.Get(ctx, store.KeyDeviceID)
	switch {
	case err == nil:
		if id, perr := uuid.Parse(strings.TrimSpace(string(raw))); perr == nil {
			return id.String(), nil
		}
	case !errors.Is(err, store.ErrNotFound):
		return "", fmt.Errorf("identity: read device id: %w", err)
	}

	id := uuid.NewString()
	if err := b.Put(ctx, store.KeyDeviceID, []byte(id)); err != nil {
		return "", fmt.Errorf("identity: store device id: %w", err)
	}
	return id, nil
}
