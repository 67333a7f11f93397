// Command vigil is the main entry point for the Vigil voice assistant.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/MrWong99/vigil/internal/app"
	"github.com/MrWong99/vigil/internal/config"
	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/resilience"
	"github.com/MrWong99/vigil/internal/speech"
	"github.com/MrWong99/vigil/internal/system"
	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/audio/portaudio"
	"github.com/MrWong99/vigil/pkg/provider/llm"
	"github.com/MrWong99/vigil/pkg/provider/llm/anyllm"
	oaillm "github.com/MrWong99/vigil/pkg/provider/llm/openai"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	"github.com/MrWong99/vigil/pkg/provider/stt/deepgram"
	"github.com/MrWong99/vigil/pkg/provider/stt/whisper"
	"github.com/MrWong99/vigil/pkg/provider/tts"
	"github.com/MrWong99/vigil/pkg/provider/tts/elevenlabs"
	oaitts "github.com/MrWong99/vigil/pkg/provider/tts/openai"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
	"github.com/MrWong99/vigil/pkg/provider/wakeword/phonetic"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	envPath := flag.String("env", ".env", "optional dotenv file loaded before the config")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	if err := config.LoadDotEnv(*envPath); err != nil {
		fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vigil: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vigil: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	levelVar := new(slog.LevelVar)
	levelVar.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))

	slog.Info("vigil starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg)

	providers, err := buildProviders(ctx, cfg, reg, metrics)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	var application *app.App
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		application.Reload(old, new)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}

	application, err = app.New(ctx, cfg, providers,
		app.WithMetrics(metrics),
		app.WithLogLevel(levelVar),
		app.WithWatcher(watcher),
		app.WithMetricsHandler(telemetry.MetricsHandler()),
		app.WithVersion(version),
	)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	slog.Info("assistant ready, press Ctrl+C to shut down")

	exitCode := 0
	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		exitCode = 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		exitCode = 1
	}
	if err := telemetry.Shutdown(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	slog.Info("goodbye")
	return exitCode
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmBackends are the LLM backends served through any-llm. They all share
// the same pattern: optional APIKey + optional BaseURL.
var anyllmBackends = []string{"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile", "ollama"}

// registerBuiltinProviders wires the provider factories that do not depend on
// other providers into reg. The wake word detector is registered later by
// [buildProviders] because it transcribes through the STT provider.
func registerBuiltinProviders(reg *config.Registry, cfg *config.Config) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	for _, backend := range anyllmBackends {
		reg.RegisterLLM(backend, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(backend, entry.Model, opts...)
		})
	}

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		opts := []deepgram.Option{deepgram.WithSampleRate(cfg.Audio.SampleRate)}
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, deepgram.WithLanguage(lang))
		}
		if ms := entry.IntOption("endpointing_ms", 0); ms > 0 {
			opts = append(opts, deepgram.WithEndpointing(ms))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = entry.StringOption("model_path", "")
		}
		opts := []whisper.NativeOption{whisper.WithNativeSampleRate(cfg.Audio.SampleRate)}
		if lang := entry.StringOption("language", ""); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		if ms := entry.IntOption("silence_threshold_ms", 0); ms > 0 {
			opts = append(opts, whisper.WithNativeSilenceThresholdMs(ms))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	reg.RegisterTTS("openai", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []oaitts.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaitts.WithBaseURL(entry.BaseURL))
		}
		return oaitts.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTTS("elevenlabs", func(entry config.ProviderEntry) (tts.Provider, error) {
		var opts []elevenlabs.Option
		if entry.Model != "" {
			opts = append(opts, elevenlabs.WithModel(entry.Model))
		}
		if outputFmt := entry.StringOption("output_format", ""); outputFmt != "" {
			opts = append(opts, elevenlabs.WithOutputFormat(outputFmt))
		}
		return elevenlabs.New(entry.APIKey, opts...)
	})

	// ── Capture ───────────────────────────────────────────────────────────────

	reg.RegisterCapture("portaudio", func(entry config.ProviderEntry) (audio.Source, error) {
		var opts []portaudio.SourceOption
		if dev := cfg.Audio.InputDevice; dev != "" {
			opts = append(opts, portaudio.WithDevice(dev))
		}
		if ms := entry.IntOption("stall_timeout_ms", 0); ms > 0 {
			opts = append(opts, portaudio.WithStallTimeout(time.Duration(ms)*time.Millisecond))
		}
		return portaudio.NewSource(opts...), nil
	})

	for _, kind := range []string{"capture", "stt", "tts", "llm"} {
		slog.Debug("registered providers", "kind", kind, "names", reg.Names(kind))
	}
}

// registerWakeword registers the phonetic keyword spotter. It listens through
// its own streaming session on sttProvider, so it shares the STT backend but
// not the session with the command transcriber.
func registerWakeword(ctx context.Context, reg *config.Registry, cfg *config.Config, sttProvider stt.Provider) {
	reg.RegisterWakeword("phonetic", func(entry config.ProviderEntry) (wakeword.Detector, error) {
		keywords := make([]stt.KeywordBoost, 0, len(cfg.Interaction.WakeWords))
		for _, w := range cfg.Interaction.WakeWords {
			keywords = append(keywords, stt.KeywordBoost{Keyword: w, Boost: 3})
		}
		tr := stt.NewStreamTranscriber(ctx, sttProvider, stt.StreamConfig{
			SampleRate: cfg.Audio.SampleRate,
			Channels:   1,
			Keywords:   keywords,
		})
		return phonetic.New(tr, cfg.Interaction.WakeWords, phonetic.WithFormat(cfg.Audio.Format()))
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, error) {
	ps := &app.Providers{}
	pc := cfg.Providers

	source, err := reg.CreateCapture(pc.Capture)
	if err != nil {
		return nil, fmt.Errorf("create capture provider %q: %w", pc.Capture.Name, err)
	}
	ps.Source = source
	slog.Info("provider created", "kind", "capture", "name", pc.Capture.Name)

	// ── STT with optional failover ────────────────────────────────────────────
	primarySTT, err := reg.CreateSTT(pc.STT)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", pc.STT.Name, err)
	}
	ps.STT = primarySTT
	if len(pc.STTFallbacks) > 0 {
		fo := resilience.NewSTTFailover(pc.STT.Name, primarySTT, resilience.FailoverConfig{Metrics: metrics})
		for _, entry := range pc.STTFallbacks {
			p, err := reg.CreateSTT(entry)
			if err != nil {
				return nil, fmt.Errorf("create stt fallback %q: %w", entry.Name, err)
			}
			fo.Add(entry.Name, p)
		}
		ps.STT = fo
	}
	slog.Info("provider created", "kind", "stt", "name", pc.STT.Name, "fallbacks", len(pc.STTFallbacks))

	// ── Wake word ─────────────────────────────────────────────────────────────
	if name := pc.Wakeword.Name; name != "" {
		registerWakeword(ctx, reg, cfg, ps.STT)
		d, err := reg.CreateWakeword(pc.Wakeword)
		if err != nil {
			return nil, fmt.Errorf("create wakeword provider %q: %w", name, err)
		}
		ps.Wakeword = d
		slog.Info("provider created", "kind", "wakeword", "name", name, "keywords", cfg.Interaction.WakeWords)
	}

	// ── LLM with optional failover ────────────────────────────────────────────
	if name := pc.LLM.Name; name != "" {
		primary, err := reg.CreateLLM(pc.LLM)
		if err != nil {
			return nil, fmt.Errorf("create llm provider %q: %w", name, err)
		}
		ps.LLM = primary
		if len(pc.LLMFallbacks) > 0 {
			fo := resilience.NewLLMFailover(name, primary, resilience.FailoverConfig{Metrics: metrics})
			for _, entry := range pc.LLMFallbacks {
				p, err := reg.CreateLLM(entry)
				if err != nil {
					return nil, fmt.Errorf("create llm fallback %q: %w", entry.Name, err)
				}
				fo.Add(entry.Name, p)
			}
			ps.LLM = fo
		}
		slog.Info("provider created", "kind", "llm", "name", name, "model", pc.LLM.Model)
	}

	// ── Voice ─────────────────────────────────────────────────────────────────
	voice, err := buildVoice(cfg, reg, metrics)
	if err != nil {
		return nil, err
	}
	ps.Voice = voice

	return ps, nil
}

// buildVoice returns a TTS-backed voice playing on the default output device,
// or the platform's speech command when no TTS provider is configured.
func buildVoice(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (speech.Voice, error) {
	entry := cfg.Providers.TTS
	if entry.Name == "" || entry.Name == "command" {
		v, err := speech.NewCommandVoice(system.DetectPlatform())
		if err != nil {
			return nil, fmt.Errorf("create command voice: %w", err)
		}
		slog.Info("provider created", "kind", "tts", "name", "command")
		return v, nil
	}

	p, err := reg.CreateTTS(entry)
	if err != nil {
		return nil, fmt.Errorf("create tts provider %q: %w", entry.Name, err)
	}
	profile := tts.VoiceProfile{
		ID:       entry.StringOption("voice", ""),
		Provider: entry.Name,
	}
	sink := portaudio.NewSink(entry.IntOption("frames_per_buffer", cfg.Audio.FrameLength))
	slog.Info("provider created", "kind", "tts", "name", entry.Name, "voice", profile.ID)
	return speech.NewSynthVoice(p, profile, sink, entry.Name, metrics), nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          Vigil - startup summary      ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Capture", providerLabel(cfg.Providers.Capture))
	printRow("STT", providerLabel(cfg.Providers.STT))
	printRow("TTS", providerLabel(cfg.Providers.TTS))
	printRow("Wake word", providerLabel(cfg.Providers.Wakeword))
	printRow("LLM", providerLabel(cfg.Providers.LLM))
	printRow("Alert sinks", fmt.Sprint(len(cfg.Alerts.Sinks)))
	printRow("Apps", fmt.Sprint(len(cfg.Actions.Apps)))
	if cfg.Server.ListenAddr != "" {
		printRow("Listen addr", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func providerLabel(e config.ProviderEntry) string {
	switch {
	case e.Name == "":
		return "(not configured)"
	case e.Model != "":
		return e.Name + " / " + e.Model
	default:
		return e.Name
	}
}

func printRow(label, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", label, value)
}
