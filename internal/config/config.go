// Package config provides the configuration schema, loader and store
// backend registry for irum.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to a [slog.Level]. Unknown values map to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Store backend names understood by [DefaultRegistry].
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Config is the root configuration structure for irum.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	// LogLevel controls verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`

	// LogFile redirects logs to a file. When empty, the interactive shell logs
	// to <data_dir>/irum.log and the scripting modes log to stderr.
	LogFile string `yaml:"log_file"`

	Service     ServiceConfig     `yaml:"service"`
	Store       StoreConfig       `yaml:"store"`
	History     HistoryConfig     `yaml:"history"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// ServiceConfig locates the recommendation and history service.
type ServiceConfig struct {
	// BaseURL is the API root, e.g. "http://localhost:5001/api".
	BaseURL string `yaml:"base_url"`

	// Timeout bounds each conversion request. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// StoreConfig selects the local persistence backend.
type StoreConfig struct {
	// Backend is a name registered in the [Registry]. Default: file.
	Backend string `yaml:"backend"`

	// DataDir holds the backend's files. Default: $XDG_DATA_HOME/irum, or
	// ~/.local/share/irum.
	DataDir string `yaml:"data_dir"`
}

// HistoryConfig tunes the best-effort remote history notifications.
type HistoryConfig struct {
	// Enabled turns remote notifications on. Default: true.
	Enabled *bool `yaml:"enabled"`

	// Timeout bounds each remote call. Default: 5s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxInFlight caps concurrent remote calls. Default: 8.
	MaxInFlight int `yaml:"max_in_flight"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// IsEnabled reports whether history notifications are on.
func (h HistoryConfig) IsEnabled() bool {
	return h.Enabled == nil || *h.Enabled
}

// BreakerConfig tunes the circuit breaker in front of the history service.
type BreakerConfig struct {
	// MaxFailures opens the breaker after this many consecutive failures.
	// Default: 5.
	MaxFailures int `yaml:"max_failures"`

	// ResetTimeout is how long the breaker stays open. Default: 30s.
	ResetTimeout time.Duration `yaml:"reset_timeout"`
}

// DiagnosticsConfig configures the optional diagnostics HTTP listener.
type DiagnosticsConfig struct {
	// ListenAddr serves /healthz, /readyz and /metrics when non-empty,
	// e.g. "127.0.0.1:9464".
	ListenAddr string `yaml:"listen_addr"`
}
