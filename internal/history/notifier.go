// Package history sends best-effort notifications to the remote history
// service.
//
// [Notifier] runs every remote call as a detached task. Callers never wait
// for it and never see its outcome: failures are logged at debug level,
// counted in [observe.Metrics] and then dropped. Nothing is retried or
// queued. A [resilience.Breaker] in front of the provider skips calls
// altogether while the service is known to be down.
package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/internal/resilience"
	"github.com/MrWong99/irum/pkg/provider/history"
	"github.com/MrWong99/irum/pkg/types"
)

// Defaults applied by [New].
const (
	DefaultTimeout     = 5 * time.Second
	DefaultMaxInFlight = 8
)

// Drop reasons reported in the irum.history.dropped metric.
const (
	reasonBreakerOpen = "breaker_open"
	reasonSaturated   = "saturated"
	reasonClosed      = "closed"
)

// Notifier is the fire-and-forget facade over a [history.Provider].
// It is safe for concurrent use.
type Notifier struct {
	provider history.Provider
	timeout  time.Duration
	breaker  *resilience.Breaker
	metrics  *observe.Metrics

	base   context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	mu     sync.Mutex
	closed bool
}

// Option is a functional option for [New].
type Option func(*Notifier)

// WithTimeout bounds each remote call. Default: [DefaultTimeout].
func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithBreaker routes every call through b.
func WithBreaker(b *resilience.Breaker) Option {
	return func(n *Notifier) { n.breaker = b }
}

// WithMetrics sets the metrics instance. Defaults to [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(n *Notifier) { n.metrics = m }
}

// WithMaxInFlight caps the number of concurrent remote calls. Notifications
// arriving while the cap is reached are dropped. Default: [DefaultMaxInFlight].
func WithMaxInFlight(n int) Option {
	return func(nt *Notifier) {
		if n > 0 {
			nt.group.SetLimit(n)
		}
	}
}

// New creates a Notifier for p.
func New(p history.Provider, opts ...Option) *Notifier {
	base, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		provider: p,
		timeout:  DefaultTimeout,
		base:     base,
		cancel:   cancel,
		group:    &errgroup.Group{},
	}
	n.group.SetLimit(DefaultMaxInFlight)
	for _, o := range opts {
		o(n)
	}
	if n.metrics == nil {
		n.metrics = observe.DefaultMetrics()
	}
	return n
}

// Breaker returns the breaker guarding remote calls, or nil.
func (n *Notifier) Breaker() *resilience.Breaker { return n.breaker }

// RecordSave notifies the remote store that entry was saved. When the
// service reports an id, onSaved (if non-nil) is called with it on the task
// goroutine.
func (n *Notifier) RecordSave(entry types.SavedEntry, onSaved func(remoteID string)) {
	n.detach(observe.KindHistorySave, func(ctx context.Context) error {
		id, err := n.provider.RecordSave(ctx, entry.EnglishName, entry.LocalizedName)
		if err != nil {
			return err
		}
		if id != "" && onSaved != nil {
			onSaved(id)
		}
		return nil
	})
}

// RecordDelete notifies the remote store that the record with remoteID was
// deleted locally. An empty remoteID is ignored.
func (n *Notifier) RecordDelete(remoteID string) {
	if remoteID == "" {
		return
	}
	n.detach(observe.KindHistoryDelete, func(ctx context.Context) error {
		return n.provider.RecordDelete(ctx, remoteID)
	})
}

// detach starts task on the task group. It never blocks on the remote call.
func (n *Notifier) detach(kind string, task func(context.Context) error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.closed {
		n.metrics.RecordHistoryDropped(n.base, kind, reasonClosed)
		return
	}
	if n.breaker != nil && !n.breaker.Allow() {
		n.metrics.RecordHistoryDropped(n.base, kind, reasonBreakerOpen)
		return
	}

	started := n.group.TryGo(func() error {
		n.run(kind, task)
		return nil
	})
	if !started {
		n.metrics.RecordHistoryDropped(n.base, kind, reasonSaturated)
	}
}

// run executes one task with its own timeout. Every outcome is absorbed here.
func (n *Notifier) run(kind string, task func(context.Context) error) {
	ctx, cancel := context.WithTimeout(n.base, n.timeout)
	defer cancel()

	ctx, span := observe.StartSpan(ctx, "history."+kind,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("irum.history.kind", kind)),
	)
	defer span.End()

	var err error
	if n.breaker != nil {
		err = n.breaker.Do(ctx, task)
	} else {
		err = task(ctx)
	}

	switch {
	case err == nil:
		n.metrics.RecordProviderRequest(ctx, kind, observe.StatusOK)
	case errors.Is(err, resilience.ErrOpen):
		n.metrics.RecordHistoryDropped(ctx, kind, reasonBreakerOpen)
	default:
		span.RecordError(err)
		n.metrics.RecordProviderRequest(ctx, kind, observe.StatusError)
		observe.Logger(ctx).Debug("history notification failed; ignoring", "kind", kind, "err", err)
	}
}

// Close stops accepting notifications and waits for in-flight ones until ctx
// is done, at which point the remaining calls are cancelled.
func (n *Notifier) Close(ctx context.Context) error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = n.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.cancel()
		return nil
	case <-ctx.Done():
		n.cancel()
		<-done
		return ctx.Err()
	}
}
