// Package app wires all irum subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves the diagnostics listener until the context ends,
// and Shutdown tears everything down in reverse order.
//
// For testing, inject doubles via the providers argument and functional
// options (WithBackend, WithMetrics, etc.). When a provider or option is not
// given, New creates the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/MrWong99/irum/internal/config"
	"github.com/MrWong99/irum/internal/health"
	"github.com/MrWong99/irum/internal/history"
	"github.com/MrWong99/irum/internal/identity"
	"github.com/MrWong99/irum/internal/observe"
	"github.com/MrWong99/irum/internal/resilience"
	"github.com/MrWong99/irum/internal/session"
	"github.com/MrWong99/irum/internal/store"
	"github.com/MrWong99/irum/pkg/provider/convert"
	converthttp "github.com/MrWong99/irum/pkg/provider/convert/httpapi"
	historyprovider "github.com/MrWong99/irum/pkg/provider/history"
	historyhttp "github.com/MrWong99/irum/pkg/provider/history/httpapi"
)

// Providers holds one interface value per remote service. Nil fields are
// built from the service config by New. A nil History with history disabled
// in the config means no remote notifications are sent.
type Providers struct {
	Convert convert.Provider
	History historyprovider.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers Providers

	// Injected or defaulted by options.
	registry       *config.Registry
	backend        store.Backend
	metrics        *observe.Metrics
	metricsHandler http.Handler
	clock          func() time.Time
	configPath     string
	level          *slog.LevelVar

	// Subsystems, initialised in New and torn down in Shutdown.
	local      *store.Local
	deviceID   string
	notifier   *history.Notifier
	controller *session.Controller
	server     *http.Server
	listener   net.Listener
	watcher    *config.Watcher

	// closers are called in reverse order during Shutdown.
	closers []func(context.Context) error

	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithBackend injects a key/value backend instead of creating one from the
// store config.
func WithBackend(b store.Backend) Option {
	return func(a *App) { a.backend = b }
}

// WithRegistry replaces [config.DefaultRegistry] for backend creation.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// WithMetrics sets the instruments shared by all subsystems.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler serves h at /metrics on the diagnostics listener.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithClock overrides the clock used to stamp saved entries.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.clock = now }
}

// WithConfigWatch polls the config file at path and applies log level
// changes to level without a restart. Other changes are logged as requiring
// a restart.
func WithConfigWatch(path string, level *slog.LevelVar) Option {
	return func(a *App) {
		a.configPath = path
		a.level = level
	}
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The saved list is
// loaded exactly once, here.
//
// Only misconfiguration fails New. A device id that cannot be persisted is
// logged and the app continues without one.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{cfg: cfg}
	if providers != nil {
		a.providers = *providers
	}
	for _, o := range opts {
		o(a)
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Local store ───────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Device identity ───────────────────────────────────────────────
	id, err := identity.DeviceID(ctx, a.backend)
	if err != nil {
		slog.Warn("device id unavailable, requests are sent without one", "err", err)
	}
	a.deviceID = id

	// ── 3. Remote providers ──────────────────────────────────────────────
	if err := a.initProviders(); err != nil {
		return nil, fmt.Errorf("app: init providers: %w", err)
	}

	// ── 4. History notifier ──────────────────────────────────────────────
	a.initNotifier()

	// ── 5. Session controller ────────────────────────────────────────────
	sessOpts := []session.Option{session.WithMetrics(a.metrics)}
	if a.notifier != nil {
		sessOpts = append(sessOpts, session.WithNotifier(a.notifier))
	}
	if a.clock != nil {
		sessOpts = append(sessOpts, session.WithClock(a.clock))
	}
	a.controller = session.New(ctx, a.providers.Convert, a.local, sessOpts...)

	// ── 6. Diagnostics listener ──────────────────────────────────────────
	if err := a.initDiagnostics(); err != nil {
		return nil, fmt.Errorf("app: init diagnostics: %w", err)
	}

	// ── 7. Config watcher ────────────────────────────────────────────────
	a.initWatcher()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

func (a *App) initStore(ctx context.Context) error {
	if a.backend == nil {
		b, err := a.registry.CreateBackend(ctx, a.cfg.Store)
		if err != nil {
			return err
		}
		a.backend = b
		slog.Info("opened local store", "backend", a.cfg.Store.Backend, "data_dir", a.cfg.Store.DataDir)
	}
	a.local = store.NewLocal(a.backend, store.WithMetrics(a.metrics))
	return nil
}

func (a *App) initProviders() error {
	if a.providers.Convert == nil {
		p, err := converthttp.New(a.cfg.Service.BaseURL,
			converthttp.WithTimeout(a.cfg.Service.Timeout),
			converthttp.WithUserID(a.deviceID),
		)
		if err != nil {
			return fmt.Errorf("convert provider: %w", err)
		}
		a.providers.Convert = p
	}

	if a.providers.History == nil && a.cfg.History.IsEnabled() {
		p, err := historyhttp.New(a.cfg.Service.BaseURL,
			historyhttp.WithTimeout(a.cfg.History.Timeout),
			historyhttp.WithUserID(a.deviceID),
		)
		if err != nil {
			return fmt.Errorf("history provider: %w", err)
		}
		a.providers.History = p
	}
	return nil
}

// initNotifier puts the history provider behind a circuit breaker and the
// detached task runner. Nothing is created when history is disabled.
func (a *App) initNotifier() {
	if a.providers.History == nil || !a.cfg.History.IsEnabled() {
		slog.Info("remote history disabled")
		return
	}
	breaker := resilience.New(resilience.Config{
		Name:         "history",
		MaxFailures:  a.cfg.History.Breaker.MaxFailures,
		ResetTimeout: a.cfg.History.Breaker.ResetTimeout,
	})
	a.notifier = history.New(a.providers.History,
		history.WithTimeout(a.cfg.History.Timeout),
		history.WithMaxInFlight(a.cfg.History.MaxInFlight),
		history.WithBreaker(breaker),
		history.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, a.notifier.Close)
}

// initDiagnostics binds the listener so that address errors surface from
// New. Serving starts in Run.
func (a *App) initDiagnostics() error {
	addr := a.cfg.Diagnostics.ListenAddr
	if addr == "" {
		return nil
	}

	mux := http.NewServeMux()
	var breaker *resilience.Breaker
	if a.notifier != nil {
		breaker = a.notifier.Breaker()
	}
	health.New(
		health.StoreCheck(a.local),
		health.BreakerCheck("history", breaker),
	).Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", addr, err)
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	a.closers = append(a.closers, func(ctx context.Context) error {
		err := a.server.Shutdown(ctx)
		if cerr := ln.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = errors.Join(err, cerr)
		}
		return err
	})
	return nil
}

// initWatcher starts the config watcher. A file that cannot be watched is
// not fatal: the app runs with the config it was started with.
func (a *App) initWatcher() {
	if a.configPath == "" || a.level == nil {
		return
	}
	w, err := config.NewWatcher(a.configPath, a.onConfigChange)
	if err != nil {
		slog.Debug("config file not watched", "path", a.configPath, "err", err)
		return
	}
	a.watcher = w
	a.closers = append(a.closers, func(context.Context) error {
		w.Stop()
		return nil
	})
}

func (a *App) onConfigChange(old, new *config.Config) {
	d := config.Compare(old, new)
	if d.LogLevelChanged {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes take effect after restart", "settings", d.RestartRequired)
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Controller returns the session controller driven by the user interface.
func (a *App) Controller() *session.Controller { return a.controller }

// Providers returns the providers in use, including those built by New.
func (a *App) Providers() Providers { return a.providers }

// DeviceID returns the installation id sent as X-User-Id, or "" when it
// could not be persisted.
func (a *App) DeviceID() string { return a.deviceID }

// DiagnosticsAddr returns the bound diagnostics address, or "" when the
// listener is disabled.
func (a *App) DiagnosticsAddr() string {
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves the diagnostics listener, if configured, and blocks until ctx
// is cancelled. It returns ctx.Err(), or the serve error if the listener
// fails first.
func (a *App) Run(ctx context.Context) error {
	if a.server == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.server.Serve(a.listener)
	}()
	slog.Info("diagnostics listening", "addr", a.DiagnosticsAddr())

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			<-ctx.Done()
			return ctx.Err()
		}
		return fmt.Errorf("app: diagnostics: %w", err)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](ctx); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
				if ctx.Err() != nil {
					shutdownErr = ctx.Err()
				}
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
