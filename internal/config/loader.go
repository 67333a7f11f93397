package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"slices"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"capture":  {"portaudio"},
	"stt":      {"deepgram", "whisper-native"},
	"tts":      {"openai", "elevenlabs", "command"},
	"wakeword": {"phonetic"},
	"llm":      {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// Built-in defaults applied by [ApplyDefaults].
const (
	DefaultSampleRate          = 16000
	DefaultFrameLength         = 512
	DefaultQueueCapacity       = 100
	DefaultCommandTimeout      = 5 * time.Second
	DefaultConversationTimeout = 15 * time.Second
	DefaultReceiveTimeout      = 100 * time.Millisecond
	DefaultAckPhrase           = "Yes?"
	DefaultWakeWord            = "hey vigil"
	DefaultSinkTimeout         = 10 * time.Second
	DefaultMCPPath             = "/mcp"
)

// Overrides are the VIGIL_* environment variables that take precedence over
// the file. Empty values leave the file setting untouched.
type Overrides struct {
	LogLevel       string `env:"VIGIL_LOG_LEVEL"`
	ListenAddr     string `env:"VIGIL_LISTEN_ADDR"`
	InputDevice    string `env:"VIGIL_INPUT_DEVICE"`
	STTAPIKey      string `env:"VIGIL_STT_API_KEY"`
	TTSAPIKey      string `env:"VIGIL_TTS_API_KEY"`
	LLMAPIKey      string `env:"VIGIL_LLM_API_KEY"`
	DiscordToken   string `env:"VIGIL_DISCORD_TOKEN"`
	DiscordChannel string `env:"VIGIL_DISCORD_CHANNEL"`
	JournalDSN     string `env:"VIGIL_JOURNAL_DSN"`
}

// LoadDotEnv loads KEY=value pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load %q: %w", path, err)
	}
	return nil
}

// Load reads the YAML configuration file at path, applies VIGIL_* environment
// overrides and defaults, and returns the validated [Config].
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	cfg, err := parse(data, os.Environ())
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. The environment is not consulted.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg, err := decode(r)
	if err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse is the file path of [Load] and the [Watcher]: decode, environment
// overrides, defaults, validation.
func parse(data []byte, environ []string) (*Config, error) {
	cfg, err := decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, environ); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	return cfg, nil
}

// ApplyEnv overlays the VIGIL_* variables found in environ (KEY=value pairs,
// as returned by [os.Environ]) onto cfg.
func ApplyEnv(cfg *Config, environ []string) error {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return fmt.Errorf("config: read environment: %w", err)
	}
	var o Overrides
	if err := env.Unmarshal(es, &o); err != nil {
		return fmt.Errorf("config: environment overrides: %w", err)
	}

	override(&cfg.Server.ListenAddr, o.ListenAddr)
	override(&cfg.Audio.InputDevice, o.InputDevice)
	override(&cfg.Providers.STT.APIKey, o.STTAPIKey)
	override(&cfg.Providers.TTS.APIKey, o.TTSAPIKey)
	override(&cfg.Providers.LLM.APIKey, o.LLMAPIKey)
	override(&cfg.Notify.Discord.Token, o.DiscordToken)
	override(&cfg.Notify.Discord.ChannelID, o.DiscordChannel)
	override(&cfg.Notify.Journal.DSN, o.JournalDSN)
	if o.LogLevel != "" {
		cfg.Server.LogLevel = LogLevel(o.LogLevel)
	}
	return nil
}

func override(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// ApplyDefaults fills every unset field that has a built-in default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = DefaultSampleRate
	}
	if cfg.Audio.FrameLength == 0 {
		cfg.Audio.FrameLength = DefaultFrameLength
	}
	if cfg.Audio.QueueCapacity == 0 {
		cfg.Audio.QueueCapacity = DefaultQueueCapacity
	}

	in := &cfg.Interaction
	if in.CommandTimeout == 0 {
		in.CommandTimeout = DefaultCommandTimeout
	}
	if in.ConversationTimeout == 0 {
		in.ConversationTimeout = DefaultConversationTimeout
	}
	if in.ReceiveTimeout == 0 {
		in.ReceiveTimeout = DefaultReceiveTimeout
	}
	if len(in.WakeWords) == 0 {
		in.WakeWords = []string{DefaultWakeWord}
	}
	if in.AckPhrase == "" && in.AckSound == "" {
		in.AckPhrase = DefaultAckPhrase
	}

	if cfg.Alerts.Sinks == nil {
		cfg.Alerts.Sinks = []string{SinkSpeech, SinkDesktop}
	}
	if cfg.Notify.SinkTimeout == 0 {
		cfg.Notify.SinkTimeout = DefaultSinkTimeout
	}
	if cfg.Providers.Capture.Name == "" {
		cfg.Providers.Capture.Name = "portaudio"
	}
	if cfg.MCP.Path == "" {
		cfg.MCP.Path = DefaultMCPPath
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must not be negative", cfg.Audio.SampleRate))
	}
	if cfg.Audio.FrameLength < 0 {
		errs = append(errs, fmt.Errorf("audio.frame_length %d must not be negative", cfg.Audio.FrameLength))
	}
	if cfg.Audio.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("audio.queue_capacity %d must not be negative", cfg.Audio.QueueCapacity))
	}

	// Interaction
	in := cfg.Interaction
	for name, d := range map[string]time.Duration{
		"command_timeout":      in.CommandTimeout,
		"conversation_timeout": in.ConversationTimeout,
		"receive_timeout":      in.ReceiveTimeout,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("interaction.%s %s must not be negative", name, d))
		}
	}
	for i, w := range in.WakeWords {
		if w == "" {
			errs = append(errs, fmt.Errorf("interaction.wake_words[%d] is empty", i))
		}
	}

	// Alerts
	errs = append(errs, validateAlerts(cfg)...)

	// Providers
	validateProviderName("capture", cfg.Providers.Capture.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("wakeword", cfg.Providers.Wakeword.Name)
	validateProviderName("llm", cfg.Providers.LLM.Name)
	for _, e := range cfg.Providers.STTFallbacks {
		validateProviderName("stt", e.Name)
	}
	for _, e := range cfg.Providers.LLMFallbacks {
		validateProviderName("llm", e.Name)
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt is required: commands cannot be transcribed without it"))
	}
	if cfg.Providers.STT.Name == "" && len(cfg.Providers.STTFallbacks) > 0 {
		errs = append(errs, errors.New("providers.stt_fallbacks requires providers.stt"))
	}
	if cfg.Providers.LLM.Name == "" && len(cfg.Providers.LLMFallbacks) > 0 {
		errs = append(errs, errors.New("providers.llm_fallbacks requires providers.llm"))
	}
	if cfg.Providers.LLM.Name == "" {
		slog.Warn("no LLM provider configured; questions will be answered with a web search")
	}

	// Actions
	appsSeen := make(map[string]int, len(cfg.Actions.Apps))
	for i, app := range cfg.Actions.Apps {
		prefix := fmt.Sprintf("actions.apps[%d]", i)
		if app.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
			continue
		}
		if prev, ok := appsSeen[app.Name]; ok {
			errs = append(errs, fmt.Errorf("%s.name %q is a duplicate of actions.apps[%d]", prefix, app.Name, prev))
		}
		appsSeen[app.Name] = i
	}

	// MCP
	if cfg.MCP.Enabled && cfg.Server.ListenAddr == "" {
		errs = append(errs, errors.New("mcp.enabled requires server.listen_addr"))
	}
	if cfg.MCP.Path != "" && cfg.MCP.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("mcp.path %q must start with /", cfg.MCP.Path))
	}

	return errors.Join(errs...)
}

func validateAlerts(cfg *Config) []error {
	var errs []error
	a := cfg.Alerts
	t := a.Thresholds

	for name, v := range map[string]float64{
		"battery_critical":     float64(t.BatteryCritical),
		"battery_low":          float64(t.BatteryLow),
		"battery_energy_saver": float64(t.BatteryEnergySaver),
		"battery_full":         float64(t.BatteryFull),
		"memory_high":          t.MemoryHigh,
		"memory_critical":      t.MemoryCritical,
		"disk_full":            t.DiskFull,
		"cpu_high":             t.CPUHigh,
	} {
		if v < 0 || v > 100 {
			errs = append(errs, fmt.Errorf("alerts.thresholds.%s %g is out of range [0, 100]", name, v))
		}
	}

	// Ordering is checked on the effective values so a partial override
	// cannot invert the built-in ones.
	mt := a.MonitorConfig().Thresholds
	if mt.BatteryCritical >= mt.BatteryLow {
		errs = append(errs, fmt.Errorf("alerts.thresholds.battery_critical (%d) must be below battery_low (%d)", mt.BatteryCritical, mt.BatteryLow))
	}
	if mt.BatteryLow >= mt.BatteryEnergySaver {
		errs = append(errs, fmt.Errorf("alerts.thresholds.battery_low (%d) must be below battery_energy_saver (%d)", mt.BatteryLow, mt.BatteryEnergySaver))
	}
	if mt.BatteryEnergySaver >= mt.BatteryFull {
		errs = append(errs, fmt.Errorf("alerts.thresholds.battery_energy_saver (%d) must be below battery_full (%d)", mt.BatteryEnergySaver, mt.BatteryFull))
	}
	if mt.MemoryHigh >= mt.MemoryCritical {
		errs = append(errs, fmt.Errorf("alerts.thresholds.memory_high (%g) must be below memory_critical (%g)", mt.MemoryHigh, mt.MemoryCritical))
	}

	for name, d := range map[string]time.Duration{
		"intervals.battery":        a.Intervals.Battery,
		"intervals.memory":         a.Intervals.Memory,
		"intervals.uptime":         a.Intervals.Uptime,
		"intervals.disk":           a.Intervals.Disk,
		"intervals.cpu":            a.Intervals.CPU,
		"retry_interval":           a.RetryInterval,
		"cooldown":                 a.Cooldown,
		"thresholds.uptime_reboot": t.UptimeReboot,
		"thresholds.cpu_sustain":   t.CPUSustain,
	} {
		if d < 0 {
			errs = append(errs, fmt.Errorf("alerts.%s %s must not be negative", name, d))
		}
	}

	seen := make(map[string]bool, len(a.Sinks))
	for i, s := range a.Sinks {
		switch s {
		case SinkSpeech, SinkDesktop:
		case SinkDiscord:
			if cfg.Notify.Discord.Token == "" || cfg.Notify.Discord.ChannelID == "" {
				errs = append(errs, errors.New("alerts.sinks contains discord but notify.discord.token or channel_id is empty"))
			}
		case SinkJournal:
			if cfg.Notify.Journal.DSN == "" {
				errs = append(errs, errors.New("alerts.sinks contains journal but notify.journal.dsn is empty"))
			}
		default:
			errs = append(errs, fmt.Errorf("alerts.sinks[%d] %q is invalid; valid values: speech, desktop, discord, journal", i, s))
		}
		if seen[s] {
			errs = append(errs, fmt.Errorf("alerts.sinks[%d] %q is listed twice", i, s))
		}
		seen[s] = true
	}
	return errs
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
