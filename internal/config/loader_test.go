package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/vigil/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		yaml    string
		wantErr []string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: []string{"log_level", "verbose"},
		},
		{
			name:    "missing stt provider",
			yaml:    "server:\n  log_level: info\n",
			wantErr: []string{"providers.stt is required"},
		},
		{
			name:    "negative queue capacity",
			yaml:    "audio:\n  queue_capacity: -1\n",
			wantErr: []string{"audio.queue_capacity"},
		},
		{
			name:    "negative timeout",
			yaml:    "interaction:\n  command_timeout: -1s\n",
			wantErr: []string{"interaction.command_timeout"},
		},
		{
			name:    "empty wake word",
			yaml:    "interaction:\n  wake_words: [\"\"]\n",
			wantErr: []string{"wake_words[0]"},
		},
		{
			name:    "threshold out of range",
			yaml:    "alerts:\n  thresholds:\n    disk_full: 120\n",
			wantErr: []string{"disk_full", "out of range"},
		},
		{
			name:    "battery thresholds inverted",
			yaml:    "alerts:\n  thresholds:\n    battery_critical: 30\n",
			wantErr: []string{"battery_critical (30) must be below battery_low (20)"},
		},
		{
			name:    "memory thresholds inverted",
			yaml:    "alerts:\n  thresholds:\n    memory_high: 99\n",
			wantErr: []string{"memory_high"},
		},
		{
			name:    "negative cooldown",
			yaml:    "alerts:\n  cooldown: -5m\n",
			wantErr: []string{"alerts.cooldown"},
		},
		{
			name:    "unknown sink",
			yaml:    "alerts:\n  sinks: [pager]\n",
			wantErr: []string{"\"pager\" is invalid"},
		},
		{
			name:    "duplicate sink",
			yaml:    "alerts:\n  sinks: [speech, speech]\n",
			wantErr: []string{"listed twice"},
		},
		{
			name:    "discord sink without credentials",
			yaml:    "alerts:\n  sinks: [discord]\n",
			wantErr: []string{"notify.discord.token"},
		},
		{
			name:    "journal sink without dsn",
			yaml:    "alerts:\n  sinks: [journal]\n",
			wantErr: []string{"notify.journal.dsn"},
		},
		{
			name:    "fallbacks without primary",
			yaml:    "providers:\n  stt:\n    name: deepgram\n  llm_fallbacks:\n    - name: ollama\n",
			wantErr: []string{"providers.llm_fallbacks requires providers.llm"},
		},
		{
			name:    "duplicate app",
			yaml:    "actions:\n  apps:\n    - name: mail\n    - name: mail\n",
			wantErr: []string{"duplicate of actions.apps[0]"},
		},
		{
			name:    "app without name",
			yaml:    "actions:\n  apps:\n    - launch: [\"x\"]\n",
			wantErr: []string{"actions.apps[0].name is required"},
		},
		{
			name:    "mcp without listener",
			yaml:    "mcp:\n  enabled: true\n",
			wantErr: []string{"mcp.enabled requires server.listen_addr"},
		},
		{
			name:    "mcp relative path",
			yaml:    "server:\n  listen_addr: \":8080\"\nmcp:\n  path: tools\n",
			wantErr: []string{"must start with /"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error should contain %q, got: %v", want, err)
				}
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
alerts:
  sinks: [pager]
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"log_level", "pager", "providers.stt"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should contain %q, got: %v", want, err)
		}
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Server:    config.ServerConfig{ListenAddr: ":8080", LogLevel: config.LogInfo},
		Providers: config.ProvidersConfig{STT: config.ProviderEntry{Name: "deepgram", APIKey: "from-file"}},
	}
	environ := []string{
		"VIGIL_LOG_LEVEL=debug",
		"VIGIL_STT_API_KEY=from-env",
		"VIGIL_DISCORD_TOKEN=tok",
		"VIGIL_JOURNAL_DSN=postgres://localhost/vigil",
		"UNRELATED=1",
	}
	if err := config.ApplyEnv(cfg, environ); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q, want debug", cfg.Server.LogLevel)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr should keep the file value, got %q", cfg.Server.ListenAddr)
	}
	if cfg.Providers.STT.APIKey != "from-env" {
		t.Errorf("stt api_key: got %q, want from-env", cfg.Providers.STT.APIKey)
	}
	if cfg.Notify.Discord.Token != "tok" {
		t.Errorf("discord token: got %q, want tok", cfg.Notify.Discord.Token)
	}
	if cfg.Notify.Journal.DSN != "postgres://localhost/vigil" {
		t.Errorf("journal dsn: got %q", cfg.Notify.Journal.DSN)
	}
}

func TestLoad_FileWithEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vigil.yaml")
	writeFile(t, path, "providers:\n  stt:\n    name: deepgram\n")
	t.Setenv("VIGIL_STT_API_KEY", "secret")
	t.Setenv("VIGIL_LISTEN_ADDR", ":7070")

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Providers.STT.APIKey != "secret" {
		t.Errorf("stt api_key: got %q, want secret", cfg.Providers.STT.APIKey)
	}
	if cfg.Server.ListenAddr != ":7070" {
		t.Errorf("listen_addr: got %q, want :7070", cfg.Server.ListenAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "absent.yaml") {
		t.Errorf("error should name the file, got: %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	t.Parallel()
	if err := config.LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing .env should not be an error, got %v", err)
	}

	const key = "VIGIL_TEST_DOTENV_VALUE"
	path := filepath.Join(t.TempDir(), ".env")
	writeFile(t, path, key+"=hello\n")
	t.Cleanup(func() { os.Unsetenv(key) })

	if err := config.LoadDotEnv(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv(key); got != "hello" {
		t.Errorf("%s = %q, want hello", key, got)
	}
}

func TestLoadFromReader_ExampleConfig(t *testing.T) {
	t.Parallel()
	f, err := os.Open(filepath.Join("..", "..", "configs", "example.yaml"))
	if err != nil {
		t.Fatalf("open example config: %v", err)
	}
	defer f.Close()

	cfg, err := config.LoadFromReader(f)
	if err != nil {
		t.Fatalf("example config does not load: %v", err)
	}
	if cfg.Providers.STT.IntOption("endpointing_ms", 0) != 300 {
		t.Errorf("stt endpointing_ms = %d, want 300", cfg.Providers.STT.IntOption("endpointing_ms", 0))
	}
	if len(cfg.Actions.Apps) != 2 {
		t.Errorf("apps = %d, want 2", len(cfg.Actions.Apps))
	}
}
