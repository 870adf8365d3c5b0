package config_test

import (
	"slices"
	"testing"
	"time"

	"github.com/MrWong99/irum/internal/config"
)

func TestCompare_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{LogLevel: config.LogInfo}
	if d := config.Compare(cfg, cfg); !d.IsEmpty() {
		t.Errorf("Compare(identical) = %+v, want empty", d)
	}
}

func TestCompare_LogLevel(t *testing.T) {
	t.Parallel()
	d := config.Compare(&config.Config{LogLevel: config.LogInfo}, &config.Config{LogLevel: config.LogDebug})
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("Compare = %+v", d)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("RestartRequired = %v, want none", d.RestartRequired)
	}
}

func TestCompare_RestartRequired(t *testing.T) {
	t.Parallel()
	off := false
	old := &config.Config{
		Service: config.ServiceConfig{BaseURL: "http://a/api", Timeout: time.Second},
		Store:   config.StoreConfig{Backend: "file"},
	}
	new := &config.Config{
		Service: config.ServiceConfig{BaseURL: "http://b/api", Timeout: time.Second},
		Store:   config.StoreConfig{Backend: "file"},
		History: config.HistoryConfig{Enabled: &off},
	}
	d := config.Compare(old, new)
	if d.LogLevelChanged {
		t.Error("LogLevelChanged = true")
	}
	if want := []string{"service", "history"}; !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
}

func TestCompare_HistoryEnabledPointer(t *testing.T) {
	t.Parallel()
	on := true
	d := config.Compare(&config.Config{}, &config.Config{History: config.HistoryConfig{Enabled: &on}})
	if !d.IsEmpty() {
		t.Errorf("explicit enabled=true differs from default: %+v", d)
	}
}
