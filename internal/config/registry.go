package config

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"sync"

	"github.com/MrWong99/irum/internal/store"
)

// ErrBackendNotRegistered is returned by [Registry.CreateBackend] when no
// factory has been registered under the requested backend name.
var ErrBackendNotRegistered = errors.New("config: store backend not registered")

// BackendFactory builds a store backend from the store configuration.
type BackendFactory func(ctx context.Context, cfg StoreConfig) (store.Backend, error)

// Registry maps store backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]BackendFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]BackendFactory)}
}

// DefaultRegistry returns a registry with the built-in backends:
//
//   - file: one JSON file per key under data_dir
//   - sqlite: data_dir/irum.db
//   - memory: nothing survives the process
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterBackend(BackendFile, func(_ context.Context, cfg StoreConfig) (store.Backend, error) {
		return store.NewFileBackend(cfg.DataDir)
	})
	r.RegisterBackend(BackendSQLite, func(ctx context.Context, cfg StoreConfig) (store.Backend, error) {
		return store.NewSQLiteBackend(ctx, filepath.Join(cfg.DataDir, "irum.db"))
	})
	r.RegisterBackend(BackendMemory, func(context.Context, StoreConfig) (store.Backend, error) {
		return store.NewMemBackend(), nil
	})
	return r
}

// RegisterBackend registers a backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterBackend(name string, factory BackendFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = factory
}

// Backends returns the registered backend names in sorted order.
func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for n := range r.backends {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// CreateBackend instantiates the backend registered under cfg.Backend.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateBackend(ctx context.Context, cfg StoreConfig) (store.Backend, error) {
	r.mu.RLock()
	factory, ok := r.backends[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotRegistered, cfg.Backend)
	}
	b, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}
