package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/pkg/provider/convert"
	"github.com/MrWong99/irum/pkg/types"
)

// ErrSuperseded is returned by [Controller.Submit] when a newer submit started
// before this one finished. The result was discarded.
var ErrSuperseded = errors.New("session: superseded by a newer submit")

// LocalStore is the authoritative saved-list storage. Implementations swallow
// their own failures.
type LocalStore interface {
	Load(ctx context.Context) types.SavedList
	Persist(ctx context.Context, list types.SavedList)
}

// Notifier sends best-effort remote history notifications. Both methods must
// return without waiting for the remote call.
type Notifier interface {
	RecordSave(entry types.SavedEntry, onSaved func(remoteID string))
	RecordDelete(remoteID string)
}

// nopNotifier is used when remote history is disabled.
type nopNotifier struct{}

func (nopNotifier) RecordSave(types.SavedEntry, func(string)) {}
func (nopNotifier) RecordDelete(string)                       {}

// Controller drives one session. It is safe for concurrent use; operations
// may be issued from any goroutine.
type Controller struct {
	converter convert.Provider
	local     LocalStore
	notifier  Notifier
	metrics   *observe.Metrics
	now       func() time.Time

	mu    sync.Mutex
	state State

	persistMu    sync.Mutex
	persistedGen uint64
}

// Option is a functional option for [New].
type Option func(*Controller)

// WithNotifier sets the remote history notifier. Without one, remote
// notifications are skipped.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock overrides the clock used for SavedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// New creates a Controller and loads the saved list from local once.
func New(ctx context.Context, converter convert.Provider, local LocalStore, opts ...Option) *Controller {
	c := &Controller{
		converter: converter,
		local:     local,
		notifier:  nopNotifier{},
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(c)
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.state = NewState(local.Load(ctx))
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Saved returns a copy of the saved list.
func (c *Controller) Saved() types.SavedList {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Saved.Clone()
}

// ChangeInput updates the input and returns its live validation result.
func (c *Controller) ChangeInput(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.ChangeInput(text)
	return c.state.Err
}

// Submit validates name and converts it. It blocks for the duration of the
// remote call without holding the state lock. The returned error is the
// validation or service error also recorded in the state, or [ErrSuperseded]
// when a newer submit won.
func (c *Controller) Submit(ctx context.Context, name string) error {
	c.mu.Lock()
	next, effects := c.state.Submit(name)
	c.state = next
	err := next.Err
	c.mu.Unlock()

	if len(effects) == 0 {
		return err
	}
	return c.apply(ctx, effects)
}

// Select moves the selection and reports whether i was in range.
func (c *Controller) Select(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := i >= 0 && i < len(c.state.Candidates)
	c.state = c.state.Select(i)
	return ok
}

// SaveCurrent saves the selected candidate and reports whether an entry was
// added. Without candidates nothing is saved and added is false. The entry is
// persisted before SaveCurrent returns; the remote notification is detached.
func (c *Controller) SaveCurrent(ctx context.Context) (added bool, err error) {
	c.mu.Lock()
	next, effects, err := c.state.SaveCurrent(c.now())
	c.state = next
	c.mu.Unlock()

	if err != nil {
		return false, err
	}
	if len(effects) == 0 {
		return false, nil
	}
	return true, c.apply(ctx, effects)
}

// DeleteSaved removes the saved entry at i and reports whether one was
// removed. The deletion is persisted before DeleteSaved returns.
func (c *Controller) DeleteSaved(ctx context.Context, i int) bool {
	c.mu.Lock()
	next, effects, removed := c.state.DeleteSaved(i)
	c.state = next
	c.mu.Unlock()

	_ = c.apply(ctx, effects)
	return removed
}

// AttachRemoteID stores the remote id reported for a saved entry.
func (c *Controller) AttachRemoteID(ctx context.Context, key types.EntryKey, savedAt time.Time, remoteID string) {
	c.mu.Lock()
	next, effects := c.state.AttachRemoteID(key, savedAt, remoteID)
	c.state = next
	c.mu.Unlock()

	_ = c.apply(ctx, effects)
}

// Navigate switches the active view.
func (c *Controller) Navigate(v View) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.Navigate(v)
}

// apply performs effects in order. Only a conversion can fail.
func (c *Controller) apply(ctx context.Context, effects []Effect) error {
	var err error
	for _, e := range effects {
		switch e := e.(type) {
		case ConvertEffect:
			err = c.convert(ctx, e)
		case PersistEffect:
			c.persist(ctx, e)
		case RecordSaveEffect:
			entry := e.Entry
			c.notifier.RecordSave(entry, func(remoteID string) {
				c.AttachRemoteID(context.Background(), entry.Key(), entry.SavedAt, remoteID)
			})
		case RecordDeleteEffect:
			c.notifier.RecordDelete(e.RemoteID)
		}
	}
	return err
}

func (c *Controller) convert(ctx context.Context, e ConvertEffect) error {
	start := time.Now()
	candidates, err := c.converter.Convert(ctx, e.Name)
	c.metrics.ConvertDuration.Record(ctx, time.Since(start).Seconds())
	status := observe.StatusOK
	if err != nil {
		status = observe.StatusError
		observe.Logger(ctx).Debug("conversion failed", "name", e.Name, "err", err)
	}
	c.metrics.RecordProviderRequest(ctx, observe.KindConvert, status)

	c.mu.Lock()
	next, stale := c.state.ConvertDone(e.Seq, candidates, err)
	c.state = next
	c.mu.Unlock()

	if stale {
		c.metrics.StaleResponses.Add(ctx, 1)
		return ErrSuperseded
	}
	return err
}

// persist writes e unless a newer list has been written already. The write
// is not cut short by cancellation of ctx.
func (c *Controller) persist(ctx context.Context, e PersistEffect) {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	if e.Gen <= c.persistedGen {
		return
	}
	c.local.Persist(context.WithoutCancel(ctx), e.List)
	c.persistedGen = e.Gen
}
