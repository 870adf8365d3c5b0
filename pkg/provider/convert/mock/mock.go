// Package mock provides a test double for the convert.Provider interface.
//
// Example:
//
//	p := &mock.Provider{
//	    Result: []types.Candidate{{LocalizedName: "하린", Meaning: "bright", EraScore: 87}},
//	}
//	cands, _ := p.Convert(ctx, "Alice")
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/irum/pkg/provider/convert"
	"github.com/MrWong99/irum/pkg/types"
)

// ConvertCall records a single invocation of Convert.
type ConvertCall struct {
	// Ctx is the context passed to Convert.
	Ctx context.Context
	// Name is the name passed to Convert.
	Name string
}

// Provider is a mock implementation of convert.Provider.
type Provider struct {
	mu sync.Mutex

	// Result is returned by Convert when Err is nil and ConvertFunc is nil.
	Result []types.Candidate

	// Err, if non-nil, is returned by Convert.
	Err error

	// ConvertFunc, if set, overrides Result and Err. It runs without the
	// mock's lock held so it may block.
	ConvertFunc func(ctx context.Context, name string) ([]types.Candidate, error)

	// ConvertCalls records every call to Convert in order.
	ConvertCalls []ConvertCall
}

// Convert records the call and returns the configured response.
func (p *Provider) Convert(ctx context.Context, name string) ([]types.Candidate, error) {
	p.mu.Lock()
	p.ConvertCalls = append(p.ConvertCalls, ConvertCall{Ctx: ctx, Name: name})
	fn := p.ConvertFunc
	res := make([]types.Candidate, len(p.Result))
	copy(res, p.Result)
	err := p.Err
	p.mu.Unlock()

	if fn != nil {
		return fn(ctx, name)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Calls returns a copy of the recorded calls. Thread-safe.
func (p *Provider) Calls() []ConvertCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ConvertCall, len(p.ConvertCalls))
	copy(out, p.ConvertCalls)
	return out
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ConvertCalls = nil
}

// Ensure Provider implements convert.Provider at compile time.
var _ convert.Provider = (*Provider)(nil)
