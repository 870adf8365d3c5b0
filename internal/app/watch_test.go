package app

import (
	"log/slog"
	"testing"

	"github.com/MrWong99/irum/internal/config"
)

func TestOnConfigChange_AppliesLogLevel(t *testing.T) {
	t.Parallel()

	var level slog.LevelVar
	a := &App{level: &level}

	old := &config.Config{LogLevel: config.LogInfo}
	next := &config.Config{LogLevel: config.LogDebug}
	a.onConfigChange(old, next)

	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("level = %v, want %v", got, slog.LevelDebug)
	}

	// Restart-only changes leave the level alone.
	a.onConfigChange(next, &config.Config{LogLevel: config.LogDebug, LogFile: "x.log"})
	if got := level.Level(); got != slog.LevelDebug {
		t.Errorf("level = %v, want %v", got, slog.LevelDebug)
	}
}
