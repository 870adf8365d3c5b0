// Package mock provides a test double for the history.Provider interface.
//
// Use Provider to script remote ids and failures and to verify which saves
// and deletes reached the remote store.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/irum/pkg/provider/history"
)

// SaveCall records a single invocation of RecordSave.
type SaveCall struct {
	EnglishName   string
	LocalizedName string
}

// Provider is a mock implementation of history.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SaveID is returned as the remote id by RecordSave.
	SaveID string

	// SaveErr, if non-nil, is returned by RecordSave.
	SaveErr error

	// DeleteErr, if non-nil, is returned by RecordDelete.
	DeleteErr error

	// ListResult and ListErr are returned by List.
	ListResult []history.Record
	ListErr    error

	// Block, if non-nil, is received from before every call returns, letting
	// tests hold a remote call in flight.
	Block chan struct{}

	// --- Call records ---

	SaveCalls   []SaveCall
	DeleteCalls []string
	ListCalls   int
}

func (p *Provider) wait(ctx context.Context) error {
	p.mu.Lock()
	block := p.Block
	p.mu.Unlock()
	if block == nil {
		return nil
	}
	select {
	case <-block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordSave records the call and returns SaveID, SaveErr.
func (p *Provider) RecordSave(ctx context.Context, englishName, localizedName string) (string, error) {
	if err := p.wait(ctx); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SaveCalls = append(p.SaveCalls, SaveCall{EnglishName: englishName, LocalizedName: localizedName})
	if p.SaveErr != nil {
		return "", p.SaveErr
	}
	return p.SaveID, nil
}

// RecordDelete records the call and returns DeleteErr. Empty ids are not
// recorded, matching the real provider which issues no request for them.
func (p *Provider) RecordDelete(ctx context.Context, remoteID string) error {
	if remoteID == "" {
		return nil
	}
	if err := p.wait(ctx); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.DeleteCalls = append(p.DeleteCalls, remoteID)
	return p.DeleteErr
}

// List records the call and returns ListResult, ListErr.
func (p *Provider) List(ctx context.Context) ([]history.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ListCalls++
	return p.ListResult, p.ListErr
}

// Saves returns a copy of the recorded RecordSave calls. Thread-safe.
func (p *Provider) Saves() []SaveCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]SaveCall, len(p.SaveCalls))
	copy(out, p.SaveCalls)
	return out
}

// Deletes returns a copy of the recorded RecordDelete ids. Thread-safe.
func (p *Provider) Deletes() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.DeleteCalls))
	copy(out, p.DeleteCalls)
	return out
}

// Ensure Provider implements history.Provider at compile time.
var _ history.Provider = (*Provider)(nil)
