// Package app wires all Vigil subsystems into a running assistant.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run executes the interaction loop, the alert monitor, the HTTP
// server and the config watcher side by side, and Shutdown tears everything
// down in order.
//
// For testing, inject doubles via functional options (WithSampler,
// WithExecutor, WithSinks, ...). When an option is not provided, New creates
// the real implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vigil/internal/config"
	"github.com/MrWong99/vigil/internal/dispatch"
	"github.com/MrWong99/vigil/internal/health"
	"github.com/MrWong99/vigil/internal/intent"
	"github.com/MrWong99/vigil/internal/interaction"
	"github.com/MrWong99/vigil/internal/mcpserver"
	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/monitor/hostmetrics"
	"github.com/MrWong99/vigil/internal/notify"
	"github.com/MrWong99/vigil/internal/notify/journal"
	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/resilience"
	"github.com/MrWong99/vigil/internal/speech"
	"github.com/MrWong99/vigil/internal/system"
	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/llm"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
)

// httpShutdownTimeout bounds the graceful stop of the HTTP server.
const httpShutdownTimeout = 5 * time.Second

// Providers holds one interface value per provider slot. Populated by main.go
// via the config registry. Source, STT and Voice are required; a nil Wakeword
// runs the loop in always-listening mode and a nil LLM answers questions with
// a web search.
type Providers struct {
	Source   audio.Source
	STT      stt.Provider
	Wakeword wakeword.Detector
	LLM      llm.Provider
	Voice    speech.Voice
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	version   string

	// Injected or defaulted in New.
	metrics        *observe.Metrics
	levelVar       *slog.LevelVar
	sampler        monitor.Sampler
	executor       dispatch.Executor
	sinks          []notify.Sink
	watcher        *config.Watcher
	metricsHandler http.Handler
	listener       net.Listener

	// Subsystems, initialised in New and torn down in Shutdown.
	announcer   *speech.Announcer
	fanout      *notify.Fanout
	monitor     *monitor.Monitor
	transcriber *stt.StreamTranscriber
	dispatcher  *dispatch.Dispatcher
	machine     *interaction.Machine
	server      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithMetrics sets the metrics instance. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogLevel hands the root logger's level to the app so config reloads can
// change it.
func WithLogLevel(lv *slog.LevelVar) Option {
	return func(a *App) { a.levelVar = lv }
}

// WithSampler injects a host sampler instead of reading /proc and /sys.
func WithSampler(s monitor.Sampler) Option {
	return func(a *App) { a.sampler = s }
}

// WithExecutor injects an action executor instead of creating a
// [system.Executor] from the actions config.
func WithExecutor(e dispatch.Executor) Option {
	return func(a *App) { a.executor = e }
}

// WithSinks injects the alert sinks instead of building them from
// alerts.sinks.
func WithSinks(sinks ...notify.Sink) Option {
	return func(a *App) { a.sinks = sinks }
}

// WithWatcher runs w alongside the app. Reloads are applied through
// [App.Reload] by whoever created the watcher.
func WithWatcher(w *config.Watcher) Option {
	return func(a *App) { a.watcher = w }
}

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithListener serves HTTP on l instead of listening on server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// WithVersion sets the version reported by /healthz and the MCP server.
func WithVersion(v string) Option {
	return func(a *App) { a.version = v }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// ctx bounds the setup work (opening the journal database) and the lifetime of
// the streaming transcriber.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if providers == nil || providers.Source == nil || providers.STT == nil || providers.Voice == nil {
		return nil, errors.New("app: audio source, STT provider and voice are required")
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
		version:   "dev",
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Speech output ─────────────────────────────────────────────────
	a.announcer = speech.New(providers.Voice,
		speech.WithCue(cfg.Interaction.AckPhrase, cfg.Interaction.AckSound),
		speech.WithMetrics(a.metrics),
	)
	a.closers = append(a.closers, a.announcer.Close)

	// ── 2. Alert monitor ─────────────────────────────────────────────────
	if err := a.initMonitor(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init monitor: %w", err)
	}

	// ── 3. Command dispatch ──────────────────────────────────────────────
	a.initDispatcher()

	// ── 4. Interaction loop ──────────────────────────────────────────────
	if err := a.initInteraction(ctx); err != nil {
		a.closeAll()
		return nil, fmt.Errorf("app: init interaction: %w", err)
	}

	// ── 5. HTTP endpoints ────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// initMonitor builds the alert sinks, the fanout and the monitor.
func (a *App) initMonitor(ctx context.Context) error {
	if a.sampler == nil {
		s, err := hostmetrics.New()
		if err != nil {
			return err
		}
		a.sampler = s
	}
	if a.sinks == nil {
		sinks, err := a.buildSinks(ctx)
		if err != nil {
			return err
		}
		a.sinks = sinks
	}
	a.fanout = notify.NewFanout(a.sinks,
		notify.WithSinkTimeout(a.cfg.Notify.SinkTimeout),
		notify.WithMetrics(a.metrics),
	)
	a.monitor = monitor.New(a.sampler, a.fanout,
		monitor.WithConfig(a.cfg.Alerts.MonitorConfig()),
		monitor.WithMetrics(a.metrics),
	)
	return nil
}

// buildSinks creates the sinks named in alerts.sinks. Remote sinks are
// guarded by a circuit breaker.
func (a *App) buildSinks(ctx context.Context) ([]notify.Sink, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var sinks []notify.Sink
	for _, name := range a.cfg.Alerts.Sinks {
		switch name {
		case config.SinkSpeech:
			sinks = append(sinks, notify.NewSpeechSink(a.announcer))
		case config.SinkDesktop:
			var opts []notify.DesktopOption
			if icon := a.cfg.Notify.Desktop.Icon; icon != "" {
				opts = append(opts, notify.WithIcon(icon))
			}
			sinks = append(sinks, notify.NewDesktopSink(opts...))
		case config.SinkDiscord:
			d, err := notify.NewDiscordSink(a.cfg.Notify.Discord.Token, a.cfg.Notify.Discord.ChannelID, hostname)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, notify.Guard(d, a.breakerConfig(config.SinkDiscord)))
		case config.SinkJournal:
			j, err := journal.Open(ctx, a.cfg.Notify.Journal.DSN, hostname)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, func() error { j.Close(); return nil })
			sinks = append(sinks, notify.Guard(j, a.breakerConfig(config.SinkJournal)))
		default:
			return nil, fmt.Errorf("unknown alert sink %q", name)
		}
		slog.Info("alert sink enabled", "sink", name)
	}
	return sinks, nil
}

func (a *App) breakerConfig(name string) resilience.CircuitBreakerConfig {
	return resilience.CircuitBreakerConfig{Name: "notify/" + name}
}

// initDispatcher builds the intent classifier and the command dispatcher.
func (a *App) initDispatcher() {
	if a.executor == nil {
		opts := []system.Option{
			system.WithApps(a.cfg.Actions.SystemApps()),
			system.WithPowerActions(a.cfg.Actions.PowerActions),
		}
		if u := a.cfg.Actions.SearchURL; u != "" {
			opts = append(opts, system.WithSearchURL(u))
		}
		a.executor = system.NewExecutor(opts...)
	}

	names := make([]string, 0, len(a.cfg.Actions.Apps))
	for _, ac := range a.cfg.Actions.Apps {
		names = append(names, ac.Name)
	}

	opts := []dispatch.Option{dispatch.WithMetrics(a.metrics)}
	if a.providers.LLM != nil {
		opts = append(opts, dispatch.WithAnswerer(dispatch.NewLLMAnswerer(a.providers.LLM, dispatch.WithAnswerMetrics(a.metrics))))
	}
	a.dispatcher = dispatch.New(intent.New(names), a.executor, a.monitor, a.announcer, opts...)
}

// initInteraction builds the streaming transcriber and the WAKE/LISTEN loop.
func (a *App) initInteraction(ctx context.Context) error {
	format := a.cfg.Audio.Format()
	if a.providers.Wakeword != nil {
		format = a.providers.Wakeword.Format()
		a.closers = append(a.closers, a.providers.Wakeword.Close)
	}

	keywords := make([]stt.KeywordBoost, 0, len(a.cfg.Actions.Apps))
	for _, ac := range a.cfg.Actions.Apps {
		keywords = append(keywords, stt.KeywordBoost{Keyword: ac.Name, Boost: 2})
	}
	a.transcriber = stt.NewStreamTranscriber(ctx, a.providers.STT, stt.StreamConfig{
		SampleRate: format.SampleRate,
		Channels:   1,
		Keywords:   keywords,
	})
	a.closers = append(a.closers, a.transcriber.Close)
	if c, ok := a.providers.STT.(io.Closer); ok {
		a.closers = append(a.closers, c.Close)
	}

	in := a.cfg.Interaction
	opts := []interaction.Option{
		interaction.WithTimeouts(in.CommandTimeout, in.ConversationTimeout),
		interaction.WithReceiveTimeout(in.ReceiveTimeout),
		interaction.WithQueueCapacity(a.cfg.Audio.QueueCapacity),
		interaction.WithFormat(a.cfg.Audio.Format()),
		interaction.WithMetrics(a.metrics),
		interaction.WithPartialHandler(func(text string) {
			slog.Debug("partial transcript", "text", text)
		}),
	}
	if a.providers.Wakeword != nil {
		opts = append(opts, interaction.WithDetector(a.providers.Wakeword))
	} else {
		slog.Warn("no wake word detector configured; every utterance is treated as a command")
	}

	m, err := interaction.New(a.providers.Source, a.transcriber, a.announcer, a.dispatcher, opts...)
	if err != nil {
		return err
	}
	a.machine = m
	return nil
}

// initHTTP builds the probe, metrics and MCP endpoints. Without a listen
// address or injected listener the app serves no HTTP.
func (a *App) initHTTP() {
	if a.cfg.Server.ListenAddr == "" && a.listener == nil {
		return
	}
	mux := http.NewServeMux()

	health.New([]health.Checker{
		health.Flag("audio", a.machine.Ready, "capture stream not open"),
		health.Flag("monitor", a.monitor.Running, "monitor not running"),
	}, health.WithVersion(a.version)).Register(mux)

	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	if a.cfg.MCP.Enabled {
		mux.Handle(a.cfg.MCP.Path, mcpserver.Handler(mcpserver.New(a.monitor, a.version)))
		slog.Info("mcp tool server enabled", "path", a.cfg.MCP.Path)
	}

	a.server = &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           observe.Middleware(a.metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Monitor returns the alert monitor.
func (a *App) Monitor() *monitor.Monitor { return a.monitor }

// Machine returns the interaction loop.
func (a *App) Machine() *interaction.Machine { return a.machine }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run starts every subsystem and blocks until ctx is cancelled or one of them
// fails. A failing subsystem (e.g. the microphone is unplugged) cancels the
// others and its error is returned. Run returns nil on a clean stop.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return a.machine.Run(ctx) })
	g.Go(func() error { return a.monitor.Run(ctx) })
	if a.watcher != nil {
		g.Go(func() error { return a.watcher.Run(ctx) })
	}
	if a.server != nil {
		g.Go(func() error { return a.serve(ctx) })
	}

	slog.Info("vigil running",
		"listen_addr", a.cfg.Server.ListenAddr,
		"sinks", a.cfg.Alerts.Sinks,
		"always_listening", a.providers.Wakeword == nil,
	)
	return g.Wait()
}

// serve runs the HTTP server until ctx is done.
func (a *App) serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if a.listener != nil {
			err = a.server.Serve(a.listener)
		} else {
			err = a.server.ListenAndServe()
		}
		errCh <- err
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("app: http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("app: http server: %w", err)
	}
	return nil
}

// ─── Reload ──────────────────────────────────────────────────────────────────

// Reload applies the hot-reloadable differences between old and new: the log
// level, the monitor thresholds and cadences, and the listening timeouts.
// Everything else is logged as needing a restart.
func (a *App) Reload(old, new *config.Config) {
	d := config.Diff(old, new)
	if !d.Changed() {
		return
	}
	if d.LogLevelChanged && a.levelVar != nil {
		a.levelVar.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.AlertsChanged {
		a.monitor.SetConfig(new.Alerts.MonitorConfig())
		slog.Info("alert settings reloaded")
	}
	if d.TimeoutsChanged {
		a.machine.SetTimeouts(new.Interaction.CommandTimeout, new.Interaction.ConversationTimeout)
		slog.Info("listening timeouts reloaded",
			"command", new.Interaction.CommandTimeout,
			"conversation", new.Interaction.ConversationTimeout,
		)
	}
	if len(d.RestartRequired) > 0 {
		slog.Warn("config changes need a restart to take effect", "keys", d.RestartRequired)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown tears down all subsystems in reverse-init order. It respects the
// context deadline: if ctx expires before all closers finish, remaining
// closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			if ctx.Err() != nil {
				slog.Warn("shutdown deadline exceeded", "remaining", i+1)
				err = ctx.Err()
				return
			}
			if cerr := a.closers[i](); cerr != nil {
				slog.Warn("shutdown: closer error", "err", cerr)
			}
		}
	})
	return err
}

// closeAll releases whatever New had set up before it failed.
func (a *App) closeAll() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
