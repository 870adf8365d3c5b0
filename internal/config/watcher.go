package config

import (
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// fileVersion identifies one observed revision of the config file.
type fileVersion struct {
	cfg   *Config
	sum   [sha256.Size]byte
	mtime time.Time
}

// Watcher polls a config file and calls onChange with the previous and the
// new config whenever its content changes to another valid config. Invalid
// edits are logged and ignored; the last valid config stays current.
type Watcher struct {
	path     string
	interval time.Duration
	lookup   LookupFunc
	onChange func(old, new *Config)

	mu  sync.Mutex
	cur fileVersion

	done     chan struct{}
	stopOnce sync.Once
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLookup overrides the environment lookup used for IRUM_* overrides.
func WithLookup(fn LookupFunc) WatcherOption {
	return func(w *Watcher) { w.lookup = fn }
}

// NewWatcher loads the file at path and starts polling it in a background
// goroutine. Unlike [Load], the file must exist.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: 5 * time.Second,
		lookup:   os.LookupEnv,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	v, err := w.load()
	if err != nil {
		return nil, fmt.Errorf("config: watch %q: %w", path, err)
	}
	w.cur = v

	go w.loop()
	return w, nil
}

// Current returns the most recently loaded valid config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur.cfg
}

// Stop stops polling. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
}

func (w *Watcher) loop() {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.done:
			return
		case <-t.C:
		}
		if old, next, ok := w.refresh(); ok {
			slog.Info("config reloaded", "path", w.path)
			if w.onChange != nil {
				w.onChange(old, next)
			}
		}
	}
}

// refresh re-reads the file when its mtime moved and reports whether the
// content changed to another valid config. A touch without a content
// change only advances the recorded mtime.
func (w *Watcher) refresh() (old, next *Config, changed bool) {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: stat failed", "path", w.path, "err", err)
		return nil, nil, false
	}

	w.mu.Lock()
	seen := w.cur.mtime
	w.mu.Unlock()
	if info.ModTime().Equal(seen) {
		return nil, nil, false
	}

	v, err := w.load()
	if err != nil {
		slog.Warn("config watcher: keeping previous config", "path", w.path, "err", err)
		return nil, nil, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if v.sum == w.cur.sum {
		w.cur.mtime = v.mtime
		return nil, nil, false
	}
	old = w.cur.cfg
	w.cur = v
	return old, v.cfg, true
}

// load parses the file with the watcher's environment lookup.
func (w *Watcher) load() (fileVersion, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return fileVersion{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return fileVersion{}, err
	}
	cfg, err := parse(data, w.lookup)
	if err != nil {
		return fileVersion{}, err
	}
	return fileVersion{cfg: cfg, sum: sha256.Sum256(data), mtime: info.ModTime()}, nil
}
