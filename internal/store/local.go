package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/pkg/types"
)

// Local is the authoritative owner of the persisted saved list. It holds no
// state of its own; every call goes to the [Backend].
//
// Neither [Local.Load] nor [Local.Persist] reports failures. They are logged
// and counted in [observe.Metrics.StoreErrors] so the caller can carry on
// with its in-memory copy.
type Local struct {
	backend Backend
	metrics *observe.Metrics
}

// LocalOption is a functional option for [NewLocal].
type LocalOption func(*Local)

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) LocalOption {
	return func(l *Local) { l.metrics = m }
}

// NewLocal wraps backend.
func NewLocal(backend Backend, opts ...LocalOption) *Local {
	l := &Local{backend: backend}
	for _, o := range opts {
		o(l)
	}
	if l.metrics == nil {
		l.metrics = observe.DefaultMetrics()
	}
	return l
}

// Backend returns the underlying key/value backend.
func (l *Local) Backend() Backend { return l.backend }

// Load reads the saved list. Absent, unreadable or undecodable storage
// yields an empty, non-nil list. Entries repeating an earlier dedup key are
// dropped so the returned list satisfies the uniqueness invariant.
func (l *Local) Load(ctx context.Context) types.SavedList {
	data, err := l.backend.Get(ctx, KeySavedNames)
	if errors.Is(err, ErrNotFound) {
		return types.SavedList{}
	}
	if err != nil {
		l.fail(ctx, "load", err)
		return types.SavedList{}
	}

	var list types.SavedList
	if err := json.Unmarshal(data, &list); err != nil {
		l.fail(ctx, "decode", err)
		return types.SavedList{}
	}

	seen := make(map[types.EntryKey]struct{}, len(list))
	out := make(types.SavedList, 0, len(list))
	for _, e := range list {
		k := e.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, e)
	}
	l.metrics.SavedEntries.Record(ctx, int64(len(out)))
	return out
}

// Persist replaces the stored list with list. An empty list is written as
// "[]".
func (l *Local) Persist(ctx context.Context, list types.SavedList) {
	data, err := json.Marshal(list.Clone())
	if err != nil {
		l.fail(ctx, "encode", err)
		return
	}
	if err := l.backend.Put(ctx, KeySavedNames, data); err != nil {
		l.fail(ctx, "persist", err)
		return
	}
	l.metrics.SavedEntries.Record(ctx, int64(len(list)))
}

// Ping reports whether the backend can currently be read.
func (l *Local) Ping(ctx context.Context) error {
	_, err := l.backend.Get(ctx, KeySavedNames)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

func (l *Local) fail(ctx context.Context, op string, err error) {
	observe.Logger(ctx).Warn("local store failure; continuing", "op", op, "err", err)
	l.metrics.RecordStoreError(ctx, op)
}
