// Package observe provides application-wide observability primitives for
// Vigil: OpenTelemetry metrics, tracing, trace-aware logging, and HTTP
// middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is installed by [InitProvider] so that metrics can be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Vigil metrics.
const meterName = "github.com/MrWong99/vigil"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// CommandDuration tracks the time from a final transcript to the end of
	// command dispatch. Use with attribute.String("action", ...).
	CommandDuration metric.Float64Histogram

	// LLMDuration tracks LLM answer latency for general questions.
	LLMDuration metric.Float64Histogram

	// SpeechDuration tracks how long one utterance occupied the speaker.
	SpeechDuration metric.Float64Histogram

	// MonitorCheckDuration tracks host metric sampling latency. Use with
	// attribute.String("check", ...).
	MonitorCheckDuration metric.Float64Histogram

	// --- Counters ---

	// WakeDetections counts trigger phrase matches. Use with
	// attribute.String("keyword", ...).
	WakeDetections metric.Int64Counter

	// Commands counts dispatched commands. Use with attributes:
	//   attribute.String("action", ...), attribute.String("status", ...)
	Commands metric.Int64Counter

	// Alerts counts alert state transitions. Use with attributes:
	//   attribute.String("category", ...), attribute.String("status", ...)
	// where status is "fired" or "suppressed".
	Alerts metric.Int64Counter

	// Utterances counts announcer outcomes. Use with attributes:
	//   attribute.String("priority", ...), attribute.String("outcome", ...)
	Utterances metric.Int64Counter

	// FramesDropped counts capture frames discarded by a full queue.
	FramesDropped metric.Int64Counter

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// MonitorCheckErrors counts failed host metric checks. Use with
	// attribute.String("check", ...).
	MonitorCheckErrors metric.Int64Counter

	// --- Gauges ---

	// ConversationsActive is 1 while the assistant is in conversation mode.
	ConversationsActive metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// interactive voice latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.CommandDuration, err = m.Float64Histogram("vigil.command.duration",
		metric.WithDescription("Latency of command dispatch."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("vigil.llm.duration",
		metric.WithDescription("Latency of LLM answers."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.SpeechDuration, err = m.Float64Histogram("vigil.speech.duration",
		metric.WithDescription("Time an utterance occupied the speaker."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.MonitorCheckDuration, err = m.Float64Histogram("vigil.monitor.check.duration",
		metric.WithDescription("Latency of host metric checks."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.WakeDetections, err = m.Int64Counter("vigil.wake.detections",
		metric.WithDescription("Total trigger phrase detections by keyword."),
	); err != nil {
		return nil, err
	}
	if met.Commands, err = m.Int64Counter("vigil.commands",
		metric.WithDescription("Total dispatched commands by action and status."),
	); err != nil {
		return nil, err
	}
	if met.Alerts, err = m.Int64Counter("vigil.alerts",
		metric.WithDescription("Total alert transitions by category and status."),
	); err != nil {
		return nil, err
	}
	if met.Utterances, err = m.Int64Counter("vigil.utterances",
		metric.WithDescription("Total announcer utterances by priority and outcome."),
	); err != nil {
		return nil, err
	}
	if met.FramesDropped, err = m.Int64Counter("vigil.audio.frames_dropped",
		metric.WithDescription("Total capture frames dropped because the queue was full."),
	); err != nil {
		return nil, err
	}
	if met.ProviderRequests, err = m.Int64Counter("vigil.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("vigil.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}
	if met.MonitorCheckErrors, err = m.Int64Counter("vigil.monitor.check.errors",
		metric.WithDescription("Total failed host metric checks by check."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ConversationsActive, err = m.Int64UpDownCounter("vigil.conversations.active",
		metric.WithDescription("1 while the assistant is in conversation mode."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("vigil.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request with the standard
// attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordCommand records one dispatched command.
func (m *Metrics) RecordCommand(ctx context.Context, action, status string) {
	m.Commands.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("action", action),
			attribute.String("status", status),
		),
	)
}

// RecordAlert records an alert transition; fired is false when the cooldown
// suppressed the notification.
func (m *Metrics) RecordAlert(ctx context.Context, category string, fired bool) {
	status := "fired"
	if !fired {
		status = "suppressed"
	}
	m.Alerts.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("category", category),
			attribute.String("status", status),
		),
	)
}

// RecordUtterance records the outcome of one announcer utterance.
func (m *Metrics) RecordUtterance(ctx context.Context, priority, outcome string) {
	m.Utterances.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("priority", priority),
			attribute.String("outcome", outcome),
		),
	)
}

// RecordWake records a trigger phrase detection.
func (m *Metrics) RecordWake(ctx context.Context, keyword string) {
	m.WakeDetections.Add(ctx, 1, metric.WithAttributes(attribute.String("keyword", keyword)))
}

// RecordCheckError records a failed monitor check.
func (m *Metrics) RecordCheckError(ctx context.Context, check string) {
	m.MonitorCheckErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("check", check)))
}
