package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MrWong99/vigil/internal/observe"
)

// ErrAllFailed is returned when every backend in a [Failover] failed or had
// an open circuit breaker.
var ErrAllFailed = errors.New("resilience: all providers failed")

// FailoverConfig configures a [Failover].
type FailoverConfig struct {
	// Kind labels provider metrics ("llm", "stt", "notify").
	Kind string

	// CircuitBreaker is the template for each backend's breaker. Name is
	// overwritten with the backend name.
	CircuitBreaker CircuitBreakerConfig

	// Metrics receives provider request and error counts. Nil disables
	// recording.
	Metrics *observe.Metrics
}

type backend[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// Failover holds an ordered list of interchangeable backends. Calls go to the
// first backend whose breaker admits them; a failure moves on to the next.
//
// Backends must all be added before the first call.
type Failover[T any] struct {
	cfg      FailoverConfig
	backends []backend[T]
}

// NewFailover creates a [Failover] with primary as the preferred backend.
func NewFailover[T any](primaryName string, primary T, cfg FailoverConfig) *Failover[T] {
	f := &Failover[T]{cfg: cfg}
	f.Add(primaryName, primary)
	return f
}

// Add appends a backend. Backends are tried in the order they were added.
func (f *Failover[T]) Add(name string, value T) {
	cbCfg := f.cfg.CircuitBreaker
	cbCfg.Name = name
	f.backends = append(f.backends, backend[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the first backend.
func (f *Failover[T]) Primary() T { return f.backends[0].value }

// Names returns the backend names in failover order.
func (f *Failover[T]) Names() []string {
	names := make([]string, len(f.backends))
	for i, b := range f.backends {
		names[i] = b.name
	}
	return names
}

// Breaker returns the circuit breaker guarding the named backend, or nil.
func (f *Failover[T]) Breaker(name string) *CircuitBreaker {
	for _, b := range f.backends {
		if b.name == name {
			return b.breaker
		}
	}
	return nil
}

// Call runs fn against each backend of f in order until one succeeds. It is a
// function rather than a method because methods cannot declare type
// parameters.
//
// A cancelled ctx stops the chain immediately and returns ctx's error.
func Call[T, R any](ctx context.Context, f *Failover[T], fn func(context.Context, T) (R, error)) (R, error) {
	var (
		zero    R
		lastErr error
	)
	for _, b := range f.backends {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		var result R
		err := b.breaker.Do(ctx, func(ctx context.Context) error {
			var err error
			result, err = fn(ctx, b.value)
			return err
		})
		switch {
		case err == nil:
			f.record(ctx, b.name, "ok")
			return result, nil
		case errors.Is(err, ErrCircuitOpen):
			slog.Debug("resilience: skipping provider, circuit open", "kind", f.cfg.Kind, "provider", b.name)
		case ctx.Err() != nil:
			return zero, err
		default:
			f.record(ctx, b.name, "error")
			slog.Warn("resilience: provider failed, trying next", "kind", f.cfg.Kind, "provider", b.name, "err", err)
		}
		lastErr = err
	}
	return zero, fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// Do is [Call] for operations without a result.
func Do[T any](ctx context.Context, f *Failover[T], fn func(context.Context, T) error) error {
	_, err := Call(ctx, f, func(ctx context.Context, v T) (struct{}, error) {
		return struct{}{}, fn(ctx, v)
	})
	return err
}

func (f *Failover[T]) record(ctx context.Context, name, status string) {
	if f.cfg.Metrics == nil {
		return
	}
	f.cfg.Metrics.RecordProviderRequest(ctx, name, f.cfg.Kind, status)
	if status != "ok" {
		f.cfg.Metrics.RecordProviderError(ctx, name, f.cfg.Kind)
	}
}
