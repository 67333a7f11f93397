// Package monitor watches host health and raises spoken alerts.
//
// Each check (battery, memory, uptime, disk, CPU) samples on its own cadence
// and maps the reading to a level. A notification is raised only when the
// level changes into one that warrants it and the category's cooldown has
// elapsed. The level is recorded even when the cooldown suppresses the
// notification, so a steady condition is never announced twice.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/vigil/internal/observe"
)

// recentCapacity bounds the in-memory alert history served by [Monitor.Recent].
const recentCapacity = 32

// Option configures a [Monitor].
type Option func(*Monitor)

// WithConfig replaces [DefaultConfig].
func WithConfig(cfg Config) Option {
	return func(m *Monitor) { m.cfg = cfg }
}

// WithClock overrides the wall clock used for cooldowns and alert times.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

// WithMetrics sets the metrics sink. Defaults to [observe.DefaultMetrics].
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Monitor) { m.metrics = met }
}

// Monitor runs the periodic host checks. All methods are safe for concurrent
// use.
type Monitor struct {
	sampler  Sampler
	notifier Notifier
	now      func() time.Time
	metrics  *observe.Metrics
	running  atomic.Bool

	mu        sync.Mutex
	cfg       Config
	levels    map[string]string
	lastFired map[Category]time.Time
	recent    []Alert
}

// New creates a Monitor reading from sampler and reporting to notifier.
func New(sampler Sampler, notifier Notifier, opts ...Option) *Monitor {
	m := &Monitor{
		sampler:   sampler,
		notifier:  notifier,
		now:       time.Now,
		cfg:       DefaultConfig(),
		levels:    make(map[string]string),
		lastFired: make(map[Category]time.Time),
	}
	for _, o := range opts {
		o(m)
	}
	if m.metrics == nil {
		m.metrics = observe.DefaultMetrics()
	}
	return m
}

// SetConfig swaps thresholds, cooldown, and cadences. Running checks pick up
// the new intervals after their current wait.
func (m *Monitor) SetConfig(cfg Config) {
	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()
}

// Config returns the active configuration.
func (m *Monitor) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg
}

// Running reports whether Run is active.
func (m *Monitor) Running() bool { return m.running.Load() }

type check struct {
	name     string
	interval func(Intervals) time.Duration
	read     func(context.Context, Config) (reading, error)
}

func (m *Monitor) checks() []check {
	return []check{
		{"battery", func(i Intervals) time.Duration { return i.Battery }, m.readBattery},
		{"memory", func(i Intervals) time.Duration { return i.Memory }, m.readMemory},
		{"uptime", func(i Intervals) time.Duration { return i.Uptime }, m.readUptime},
		{"disk", func(i Intervals) time.Duration { return i.Disk }, m.readDisk},
		{"cpu", func(i Intervals) time.Duration { return i.CPU }, m.readCPU},
	}
}

// Run starts every check and blocks until ctx is cancelled. Each check runs
// once immediately and then on its interval. A failed check is retried after
// the retry interval; [ErrNoBattery] disables the battery check only.
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("monitor: already running")
	}
	defer m.running.Store(false)

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range m.checks() {
		g.Go(func() error {
			m.loop(ctx, c)
			return nil
		})
	}
	return g.Wait()
}

func (m *Monitor) loop(ctx context.Context, c check) {
	for {
		cfg := m.Config()
		wait := c.interval(cfg.Intervals)

		err := m.runCheck(ctx, c, cfg)
		switch {
		case ctx.Err() != nil:
			return
		case errors.Is(err, ErrNoBattery):
			slog.Info("monitor: no battery found, battery check disabled")
			return
		case err != nil:
			slog.Warn("monitor: check failed", "check", c.name, "err", err, "retry_in", cfg.Intervals.Retry)
			m.metrics.RecordCheckError(ctx, c.name)
			wait = cfg.Intervals.Retry
		}
		if wait <= 0 {
			wait = time.Minute
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (m *Monitor) runCheck(ctx context.Context, c check, cfg Config) error {
	start := time.Now()
	r, err := c.read(ctx, cfg)
	m.metrics.MonitorCheckDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(observe.Attr("check", c.name)))
	if err != nil {
		return fmt.Errorf("monitor: %s: %w", c.name, err)
	}
	m.record(ctx, c.name, r)
	return nil
}

// Checks returns the names of the periodic checks in schedule order.
func (m *Monitor) Checks() []string {
	cs := m.checks()
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = c.name
	}
	return names
}

// CheckNow runs the named check once outside its schedule.
func (m *Monitor) CheckNow(ctx context.Context, name string) error {
	for _, c := range m.checks() {
		if c.name == name {
			return m.runCheck(ctx, c, m.Config())
		}
	}
	return fmt.Errorf("monitor: unknown check %q", name)
}

// record applies a reading: it stores the level and, on a transition into an
// alerting level whose cooldown has passed, notifies. The first reading of a
// check only seeds its level unless the level is of alert severity.
func (m *Monitor) record(ctx context.Context, name string, r reading) {
	now := m.now()

	m.mu.Lock()
	prev, seen := m.levels[name]
	m.levels[name] = r.level
	if r.category == "" || (seen && prev == r.level) || (!seen && r.category.Severity() != SeverityAlert) {
		m.mu.Unlock()
		return
	}
	if last, ok := m.lastFired[r.category]; ok && now.Sub(last) <= m.cfg.Cooldown {
		m.mu.Unlock()
		slog.Debug("monitor: alert suppressed by cooldown", "category", r.category, "level", r.level)
		m.metrics.RecordAlert(ctx, string(r.category), false)
		return
	}
	m.lastFired[r.category] = now
	alert := Alert{
		Category: r.category,
		Severity: r.category.Severity(),
		Message:  r.message,
		Time:     now,
	}
	m.recent = append(m.recent, alert)
	if len(m.recent) > recentCapacity {
		m.recent = m.recent[len(m.recent)-recentCapacity:]
	}
	m.mu.Unlock()

	m.metrics.RecordAlert(ctx, string(r.category), true)
	slog.Info("monitor: alert", "category", alert.Category, "severity", alert.Severity, "message", alert.Message)
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Notify(ctx, alert); err != nil {
		slog.Warn("monitor: notify failed", "category", alert.Category, "err", err)
	}
}

// Recent returns up to n of the latest alerts, newest first. n <= 0 returns
// all retained alerts.
func (m *Monitor) Recent(n int) []Alert {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n <= 0 || n > len(m.recent) {
		n = len(m.recent)
	}
	out := make([]Alert, 0, n)
	for i := len(m.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.recent[i])
	}
	return out
}

// Level returns the last recorded level of a check and whether it has been
// observed yet.
func (m *Monitor) Level(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.levels[name]
	return l, ok
}
