// Package notify delivers monitor alerts to the user.
//
// Each destination is a [Sink]. A [Fanout] sends every alert to all sinks
// concurrently and isolates their failures: a dead webhook never delays or
// suppresses the spoken alert. Remote sinks are wrapped with [Guard] so that
// an outage trips a circuit breaker instead of costing a timeout per alert.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/resilience"
)

const defaultSinkTimeout = 10 * time.Second

// Sink is one alert destination.
type Sink interface {
	// Name identifies the sink in logs and metrics.
	Name() string
	// Send delivers a. It should return promptly when ctx is cancelled.
	Send(ctx context.Context, a monitor.Alert) error
}

var _ monitor.Notifier = (*Fanout)(nil)

// FanoutOption configures a [Fanout].
type FanoutOption func(*Fanout)

// WithSinkTimeout bounds each sink's Send. Default: 10s.
func WithSinkTimeout(d time.Duration) FanoutOption {
	return func(f *Fanout) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) FanoutOption {
	return func(f *Fanout) {
		f.metrics = m
	}
}

// Fanout implements [monitor.Notifier] by sending each alert to every sink.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration
	metrics *observe.Metrics
}

// NewFanout creates a [Fanout] over sinks.
func NewFanout(sinks []Sink, opts ...FanoutOption) *Fanout {
	f := &Fanout{sinks: sinks, timeout: defaultSinkTimeout}
	for _, o := range opts {
		o(f)
	}
	if f.metrics == nil {
		f.metrics = observe.DefaultMetrics()
	}
	return f
}

// Sinks returns the names of the configured sinks.
func (f *Fanout) Sinks() []string {
	names := make([]string, len(f.sinks))
	for i, s := range f.sinks {
		names[i] = s.Name()
	}
	return names
}

// Notify sends a to every sink and waits for all of them. The returned error
// joins the failures of individual sinks; a failing sink does not affect the
// others.
func (f *Fanout) Notify(ctx context.Context, a monitor.Alert) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, s := range f.sinks {
		wg.Go(func() {
			sctx, cancel := context.WithTimeout(ctx, f.timeout)
			defer cancel()
			err := s.Send(sctx, a)
			status := "ok"
			if err != nil {
				status = "error"
				f.metrics.RecordProviderError(ctx, s.Name(), "notify")
				slog.Warn("notify: sink failed", "sink", s.Name(), "category", a.Category, "err", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
				mu.Unlock()
			}
			f.metrics.RecordProviderRequest(ctx, s.Name(), "notify", status)
		})
	}
	wg.Wait()
	return errors.Join(errs...)
}

// guarded wraps a Sink with a circuit breaker.
type guarded struct {
	Sink
	breaker *resilience.CircuitBreaker
}

// Guard wraps s with a circuit breaker configured by cfg. cfg.Name defaults
// to the sink name.
func Guard(s Sink, cfg resilience.CircuitBreakerConfig) Sink {
	if cfg.Name == "" {
		cfg.Name = s.Name()
	}
	return &guarded{Sink: s, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (g *guarded) Send(ctx context.Context, a monitor.Alert) error {
	return g.breaker.Do(ctx, func(ctx context.Context) error {
		return g.Sink.Send(ctx, a)
	})
}

// SinkFunc adapts a function to a [Sink].
type SinkFunc struct {
	SinkName string
	Fn       func(ctx context.Context, a monitor.Alert) error
}

func (s SinkFunc) Name() string { return s.SinkName }

func (s SinkFunc) Send(ctx context.Context, a monitor.Alert) error { return s.Fn(ctx, a) }
