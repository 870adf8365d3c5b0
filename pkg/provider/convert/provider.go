// Package convert defines the Provider interface for name recommendation
// backends.
//
// A convert provider takes an English name and returns an ordered list of
// localized-name candidates with their meaning and trend score. An empty
// result is valid and means the service had nothing to suggest.
//
// Implementations must be safe for concurrent use.
package convert

import (
	"context"
	"errors"

	"github.com/MrWong99/irum/pkg/types"
)

// ErrService is wrapped by every error that originates in the recommendation
// service or the transport to it. Callers match it with [errors.Is].
var ErrService = errors.New("recommendation service error")

// Provider is the abstraction over any recommendation backend.
type Provider interface {
	// Convert issues one request for name (trimmed by the implementation) and
	// returns the candidates in service order. The slice may be empty.
	//
	// Any failure, including a non-success response or an undecodable body,
	// is returned as an error wrapping [ErrService].
	Convert(ctx context.Context, name string) ([]types.Candidate, error)
}
