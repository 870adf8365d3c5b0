package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultBaseURL        = "http://localhost:5001/api"
	DefaultServiceTimeout = 10 * time.Second
	DefaultHistoryTimeout = 5 * time.Second
	DefaultMaxInFlight    = 8
	DefaultMaxFailures    = 5
	DefaultResetTimeout   = 30 * time.Second
)

// Environment variables that override the file.
const (
	EnvServiceURL      = "IRUM_SERVICE_URL"
	EnvLogLevel        = "IRUM_LOG_LEVEL"
	EnvStoreBackend    = "IRUM_STORE_BACKEND"
	EnvDataDir         = "IRUM_DATA_DIR"
	EnvDiagnosticsAddr = "IRUM_DIAGNOSTICS_ADDR"
)

// ValidBackends lists the store backends built into irum. Used by [Validate]
// to warn about unrecognised names.
var ValidBackends = []string{BackendFile, BackendSQLite, BackendMemory}

// LookupFunc reads an environment variable, like [os.LookupEnv].
type LookupFunc func(key string) (string, bool)

// LoadDotEnv loads KEY=value pairs from the given .env files into the
// process environment without overriding variables that are already set.
// Missing files are skipped. With no arguments ".env" is tried.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %q: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML configuration file at path, applies environment
// overrides and defaults, and returns a validated [Config]. A missing file is
// not an error; the defaults are used instead. An empty path skips the file.
func Load(path string) (*Config, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found; using defaults", "path", path)
			data = nil
		case err != nil:
			return nil, fmt.Errorf("config: open %q: %w", path, err)
		}
	}

	cfg, err := parse(data, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. The environment is not consulted. Useful in tests where configs
// are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return parse(data, func(string) (string, bool) { return "", false })
}

func parse(data []byte, lookup LookupFunc) (*Config, error) {
	cfg := &Config{}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode yaml: %w", err)
		}
	}
	ApplyEnv(cfg, lookup)
	ApplyDefaults(cfg, lookup)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields of cfg from the IRUM_* environment variables.
// Empty values are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set(EnvServiceURL, &cfg.Service.BaseURL)
	set(EnvStoreBackend, &cfg.Store.Backend)
	set(EnvDataDir, &cfg.Store.DataDir)
	set(EnvDiagnosticsAddr, &cfg.Diagnostics.ListenAddr)
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = LogLevel(v)
	}
}

// ApplyDefaults fills zero-valued fields of cfg.
func ApplyDefaults(cfg *Config, lookup LookupFunc) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = LogInfo
	}
	if cfg.Service.BaseURL == "" {
		cfg.Service.BaseURL = DefaultBaseURL
	}
	if cfg.Service.Timeout == 0 {
		cfg.Service.Timeout = DefaultServiceTimeout
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = BackendFile
	}
	if cfg.Store.DataDir == "" {
		cfg.Store.DataDir = defaultDataDir(lookup)
	}
	if cfg.History.Timeout == 0 {
		cfg.History.Timeout = DefaultHistoryTimeout
	}
	if cfg.History.MaxInFlight == 0 {
		cfg.History.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.History.Breaker.MaxFailures == 0 {
		cfg.History.Breaker.MaxFailures = DefaultMaxFailures
	}
	if cfg.History.Breaker.ResetTimeout == 0 {
		cfg.History.Breaker.ResetTimeout = DefaultResetTimeout
	}
}

func defaultDataDir(lookup LookupFunc) string {
	if v, ok := lookup("XDG_DATA_HOME"); ok && v != "" {
		return filepath.Join(v, "irum")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "irum")
	}
	return "irum-data"
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.LogLevel != "" && !cfg.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Service.BaseURL != "" {
		u, err := url.Parse(cfg.Service.BaseURL)
		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("service.base_url: %w", err))
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, fmt.Errorf("service.base_url %q must use http or https", cfg.Service.BaseURL))
		case u.Host == "":
			errs = append(errs, fmt.Errorf("service.base_url %q has no host", cfg.Service.BaseURL))
		}
	}
	if cfg.Service.Timeout < 0 {
		errs = append(errs, fmt.Errorf("service.timeout %v must not be negative", cfg.Service.Timeout))
	}

	if cfg.Store.Backend != "" && !slices.Contains(ValidBackends, cfg.Store.Backend) {
		slog.Warn("unknown store backend; it must be registered before use",
			"backend", cfg.Store.Backend,
			"known", ValidBackends,
		)
	}

	if cfg.History.Timeout < 0 {
		errs = append(errs, fmt.Errorf("history.timeout %v must not be negative", cfg.History.Timeout))
	}
	if cfg.History.MaxInFlight < 0 {
		errs = append(errs, fmt.Errorf("history.max_in_flight %d must not be negative", cfg.History.MaxInFlight))
	}
	if cfg.History.Breaker.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("history.breaker.max_failures %d must not be negative", cfg.History.Breaker.MaxFailures))
	}
	if cfg.History.Breaker.ResetTimeout < 0 {
		errs = append(errs, fmt.Errorf("history.breaker.reset_timeout %v must not be negative", cfg.History.Breaker.ResetTimeout))
	}

	if addr := cfg.Diagnostics.ListenAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("diagnostics.listen_addr %q: %w", addr, err))
		}
	}

	return errors.Join(errs...)
}
