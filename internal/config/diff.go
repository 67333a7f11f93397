package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Changes that can be applied at runtime are broken out field by field; the
// rest are listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// AlertsChanged is true when any threshold, interval, the retry
	// interval, the cooldown or the disk path changed.
	AlertsChanged bool

	// TimeoutsChanged is true when the command or conversation timeout
	// changed.
	TimeoutsChanged bool

	// RestartRequired names the top-level keys whose changes only take
	// effect after a restart (e.g. "providers", "alerts.sinks").
	RestartRequired []string
}

// Changed reports whether d contains any change.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.AlertsChanged || d.TimeoutsChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Alerts.MonitorConfig() != new.Alerts.MonitorConfig() {
		d.AlertsChanged = true
	}

	oi, ni := old.Interaction, new.Interaction
	if oi.CommandTimeout != ni.CommandTimeout || oi.ConversationTimeout != ni.ConversationTimeout {
		d.TimeoutsChanged = true
	}

	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Audio != new.Audio {
		d.RestartRequired = append(d.RestartRequired, "audio")
	}
	if oi.ReceiveTimeout != ni.ReceiveTimeout {
		d.RestartRequired = append(d.RestartRequired, "interaction.receive_timeout")
	}
	if !slices.Equal(oi.WakeWords, ni.WakeWords) || oi.AckPhrase != ni.AckPhrase || oi.AckSound != ni.AckSound {
		d.RestartRequired = append(d.RestartRequired, "interaction.wake_words")
	}
	if !slices.Equal(old.Alerts.Sinks, new.Alerts.Sinks) || old.Notify != new.Notify {
		d.RestartRequired = append(d.RestartRequired, "alerts.sinks")
	}
	if !reflect.DeepEqual(old.Providers, new.Providers) {
		d.RestartRequired = append(d.RestartRequired, "providers")
	}
	if !reflect.DeepEqual(old.Actions, new.Actions) {
		d.RestartRequired = append(d.RestartRequired, "actions")
	}
	if old.MCP != new.MCP {
		d.RestartRequired = append(d.RestartRequired, "mcp")
	}

	return d
}
