// Package config provides the configuration schema, loader, file watcher and
// provider registry for the Vigil voice assistant.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/system"
	"github.com/MrWong99/vigil/pkg/audio"
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

// SlogLevel converts l to the matching [slog.Level]. Unknown and empty levels
// map to [slog.LevelInfo].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Names of the alert sinks accepted in alerts.sinks.
const (
	SinkSpeech  = "speech"
	SinkDesktop = "desktop"
	SinkDiscord = "discord"
	SinkJournal = "journal"
)

// Config is the root configuration structure for Vigil.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Interaction InteractionConfig `yaml:"interaction"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Providers   ProvidersConfig   `yaml:"providers"`
	Notify      NotifyConfig      `yaml:"notify"`
	Actions     ActionsConfig     `yaml:"actions"`
	MCP         MCPConfig         `yaml:"mcp"`
}

// ServerConfig holds the HTTP listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the address serving /healthz, /readyz, /metrics and /mcp.
	// Empty disables the HTTP server.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig describes the capture stream.
type AudioConfig struct {
	// SampleRate in Hz. Default: 16000.
	SampleRate int `yaml:"sample_rate"`

	// FrameLength is the number of samples per captured frame. Default: 512.
	FrameLength int `yaml:"frame_length"`

	// QueueCapacity bounds the capture queue in frames. Default: 100.
	QueueCapacity int `yaml:"queue_capacity"`

	// InputDevice names the capture device. Empty selects the system default.
	InputDevice string `yaml:"input_device"`
}

// Format returns the capture format described by a.
func (a AudioConfig) Format() audio.Format {
	return audio.Format{SampleRate: a.SampleRate, Channels: 1, FrameLength: a.FrameLength}
}

// InteractionConfig tunes the WAKE/LISTEN loop.
type InteractionConfig struct {
	// CommandTimeout is how long LISTEN waits for the first command after a
	// trigger phrase. Default: 5s.
	CommandTimeout time.Duration `yaml:"command_timeout"`

	// ConversationTimeout is how long LISTEN waits for a follow-up command.
	// Default: 10s.
	ConversationTimeout time.Duration `yaml:"conversation_timeout"`

	// ReceiveTimeout bounds a single wait on the capture queue. Default: 100ms.
	ReceiveTimeout time.Duration `yaml:"receive_timeout"`

	// WakeWords are the trigger phrases. Default: ["hey vigil"].
	WakeWords []string `yaml:"wake_words"`

	// AckPhrase is spoken when a trigger phrase is heard. Default: "Yes?".
	AckPhrase string `yaml:"ack_phrase"`

	// AckSound is an optional sound file played instead of AckPhrase.
	AckSound string `yaml:"ack_sound"`
}

// AlertsConfig configures the background monitor and where its alerts go.
type AlertsConfig struct {
	Intervals     IntervalsConfig  `yaml:"intervals"`
	RetryInterval time.Duration    `yaml:"retry_interval"`
	Cooldown      time.Duration    `yaml:"cooldown"`
	Thresholds    ThresholdsConfig `yaml:"thresholds"`

	// DiskPath is the filesystem checked for free space. Default: "/".
	DiskPath string `yaml:"disk_path"`

	// Sinks lists the alert sinks to fan out to. Default: speech and desktop.
	Sinks []string `yaml:"sinks"`
}

// IntervalsConfig holds the per-check sampling periods. Zero keeps the
// built-in period.
type IntervalsConfig struct {
	Battery time.Duration `yaml:"battery"`
	Memory  time.Duration `yaml:"memory"`
	Uptime  time.Duration `yaml:"uptime"`
	Disk    time.Duration `yaml:"disk"`
	CPU     time.Duration `yaml:"cpu"`
}

// ThresholdsConfig holds the check thresholds. Zero keeps the built-in value.
type ThresholdsConfig struct {
	BatteryCritical    int           `yaml:"battery_critical"`
	BatteryLow         int           `yaml:"battery_low"`
	BatteryEnergySaver int           `yaml:"battery_energy_saver"`
	BatteryFull        int           `yaml:"battery_full"`
	MemoryHigh         float64       `yaml:"memory_high"`
	MemoryCritical     float64       `yaml:"memory_critical"`
	UptimeReboot       time.Duration `yaml:"uptime_reboot"`
	DiskFull           float64       `yaml:"disk_full"`
	CPUHigh            float64       `yaml:"cpu_high"`
	CPUSustain         time.Duration `yaml:"cpu_sustain"`
}

// MonitorConfig overlays the configured values on [monitor.DefaultConfig].
func (a AlertsConfig) MonitorConfig() monitor.Config {
	mc := monitor.DefaultConfig()

	t := a.Thresholds
	setInt(&mc.Thresholds.BatteryCritical, t.BatteryCritical)
	setInt(&mc.Thresholds.BatteryLow, t.BatteryLow)
	setInt(&mc.Thresholds.BatteryEnergySaver, t.BatteryEnergySaver)
	setInt(&mc.Thresholds.BatteryFull, t.BatteryFull)
	setFloat(&mc.Thresholds.MemoryHigh, t.MemoryHigh)
	setFloat(&mc.Thresholds.MemoryCritical, t.MemoryCritical)
	setDuration(&mc.Thresholds.UptimeReboot, t.UptimeReboot)
	setFloat(&mc.Thresholds.DiskFull, t.DiskFull)
	setFloat(&mc.Thresholds.CPUHigh, t.CPUHigh)
	setDuration(&mc.Thresholds.CPUSustain, t.CPUSustain)

	i := a.Intervals
	setDuration(&mc.Intervals.Battery, i.Battery)
	setDuration(&mc.Intervals.Memory, i.Memory)
	setDuration(&mc.Intervals.Uptime, i.Uptime)
	setDuration(&mc.Intervals.Disk, i.Disk)
	setDuration(&mc.Intervals.CPU, i.CPU)
	setDuration(&mc.Intervals.Retry, a.RetryInterval)

	setDuration(&mc.Cooldown, a.Cooldown)
	if a.DiskPath != "" {
		mc.DiskPath = a.DiskPath
	}
	return mc
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}

// ProvidersConfig selects the backend for each pluggable component.
type ProvidersConfig struct {
	Capture  ProviderEntry `yaml:"capture"`
	STT      ProviderEntry `yaml:"stt"`
	TTS      ProviderEntry `yaml:"tts"`
	Wakeword ProviderEntry `yaml:"wakeword"`
	LLM      ProviderEntry `yaml:"llm"`

	// STTFallbacks and LLMFallbacks are tried in order when the primary
	// provider fails.
	STTFallbacks []ProviderEntry `yaml:"stt_fallbacks"`
	LLMFallbacks []ProviderEntry `yaml:"llm_fallbacks"`
}

// ProviderEntry is the common configuration for a single provider.
type ProviderEntry struct {
	// Name selects the registered factory (e.g., "deepgram", "openai").
	Name string `yaml:"name"`

	// APIKey authenticates with the provider. Usually supplied through the
	// environment instead of the file.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects the provider model.
	Model string `yaml:"model"`

	// Options carries provider-specific settings (e.g., "voice", "language",
	// "model_path").
	Options map[string]any `yaml:"options"`
}

// StringOption returns Options[key] when it is a string, else def.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key].(string); ok && v != "" {
		return v
	}
	return def
}

// IntOption returns Options[key] when it is an integer, else def.
func (e ProviderEntry) IntOption(key string, def int) int {
	if v, ok := e.Options[key].(int); ok {
		return v
	}
	return def
}

// NotifyConfig holds the per-sink settings. Which sinks are active is decided
// by alerts.sinks.
type NotifyConfig struct {
	Desktop DesktopConfig `yaml:"desktop"`
	Discord DiscordConfig `yaml:"discord"`
	Journal JournalConfig `yaml:"journal"`

	// SinkTimeout bounds a single delivery. Default: 10s.
	SinkTimeout time.Duration `yaml:"sink_timeout"`
}

// DesktopConfig configures desktop notifications.
type DesktopConfig struct {
	Icon string `yaml:"icon"`
}

// DiscordConfig configures the Discord channel sink.
type DiscordConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channel_id"`
}

// JournalConfig configures the PostgreSQL alert journal.
type JournalConfig struct {
	DSN string `yaml:"dsn"`
}

// ActionsConfig configures what spoken commands may do on the host.
type ActionsConfig struct {
	// Apps are the applications "open" and "close" commands can target.
	Apps []AppConfig `yaml:"apps"`

	// PowerActions enables spoken shutdown and restart.
	PowerActions bool `yaml:"power_actions"`

	// SearchURL is the query prefix used for web searches.
	SearchURL string `yaml:"search_url"`
}

// AppConfig describes one launchable application.
type AppConfig struct {
	Name   string   `yaml:"name"`
	Launch []string `yaml:"launch"`
	Quit   []string `yaml:"quit"`
}

// SystemApps converts the configured apps for the action executor.
func (a ActionsConfig) SystemApps() []system.App {
	apps := make([]system.App, 0, len(a.Apps))
	for _, app := range a.Apps {
		apps = append(apps, system.App{Name: app.Name, Launch: app.Launch, Quit: app.Quit})
	}
	return apps
}

// MCPConfig configures the MCP tool server.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path the server is mounted on. Default: "/mcp".
	Path string `yaml:"path"`
}
