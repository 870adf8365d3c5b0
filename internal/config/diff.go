package config

// Diff describes what changed between two configs.
type Diff struct {
	// LogLevelChanged is set when the log level differs. It can be applied
	// without a restart.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists the changed settings that only take effect on
	// the next start.
	RestartRequired []string
}

// IsEmpty reports whether nothing changed.
func (d Diff) IsEmpty() bool {
	return !d.LogLevelChanged && len(d.RestartRequired) == 0
}

// Compare returns what changed from old to new.
func Compare(old, new *Config) Diff {
	var d Diff
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.LogLevel
	}

	restart := func(name string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, name)
		}
	}
	restart("log_file", old.LogFile != new.LogFile)
	restart("service", old.Service != new.Service)
	restart("store", old.Store != new.Store)
	restart("history", !sameHistory(old.History, new.History))
	restart("diagnostics", old.Diagnostics != new.Diagnostics)
	return d
}

func sameHistory(a, b HistoryConfig) bool {
	return a.IsEnabled() == b.IsEnabled() &&
		a.Timeout == b.Timeout &&
		a.MaxInFlight == b.MaxInFlight &&
		a.Breaker == b.Breaker
}
