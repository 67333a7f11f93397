package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue returns the total of all data points of the named counter whose
// attribute key equals value.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	var total int64
	found := false
	for _, dp := range sum.DataPoints {
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			total += dp.Value
			found = true
		}
	}
	if !found {
		t.Fatalf("metric %q: data point with %s=%s not found", name, key, value)
	}
	return total
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"vigil.command.duration", m.CommandDuration},
		{"vigil.llm.duration", m.LLMDuration},
		{"vigil.speech.duration", m.SpeechDuration},
		{"vigil.monitor.check.duration", m.MonitorCheckDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 0.456)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestProviderRequestsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderRequest(ctx, "openai", "tts", "ok")
	m.RecordProviderRequest(ctx, "openai", "tts", "ok")
	m.RecordProviderRequest(ctx, "openai", "tts", "error")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vigil.provider.requests", "status", "ok"); got != 2 {
		t.Errorf("counter value = %d, want 2", got)
	}
}

func TestAlertsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordAlert(ctx, "battery_low", true)
	m.RecordAlert(ctx, "battery_low", false)
	m.RecordAlert(ctx, "memory_high", false)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vigil.alerts", "status", "suppressed"); got != 2 {
		t.Errorf("suppressed = %d, want 2", got)
	}
	if got := sumValue(t, rm, "vigil.alerts", "status", "fired"); got != 1 {
		t.Errorf("fired = %d, want 1", got)
	}
	if got := sumValue(t, rm, "vigil.alerts", "category", "memory_high"); got != 1 {
		t.Errorf("memory_high = %d, want 1", got)
	}
}

func TestCommandAndWakeCounters(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordCommand(ctx, "time", "ok")
	m.RecordWake(ctx, "vigil")
	m.RecordWake(ctx, "vigil")
	m.RecordUtterance(ctx, "alert", "preempted")
	m.RecordCheckError(ctx, "battery")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vigil.commands", "action", "time"); got != 1 {
		t.Errorf("commands = %d, want 1", got)
	}
	if got := sumValue(t, rm, "vigil.wake.detections", "keyword", "vigil"); got != 2 {
		t.Errorf("wake detections = %d, want 2", got)
	}
	if got := sumValue(t, rm, "vigil.utterances", "outcome", "preempted"); got != 1 {
		t.Errorf("utterances = %d, want 1", got)
	}
	if got := sumValue(t, rm, "vigil.monitor.check.errors", "check", "battery"); got != 1 {
		t.Errorf("check errors = %d, want 1", got)
	}
}

func TestProviderErrorsCounter(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordProviderError(ctx, "openai", "tts")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "vigil.provider.errors", "kind", "tts"); got != 1 {
		t.Errorf("counter value = %d, want 1", got)
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.ConversationsActive.Add(ctx, 1)
	m.ConversationsActive.Add(ctx, -1)
	m.ConversationsActive.Add(ctx, 1)
	m.FramesDropped.Add(ctx, 7)

	rm := collect(t, reader)

	gauges := []struct {
		name string
		want int64
	}{
		{"vigil.conversations.active", 1},
		{"vigil.audio.frames_dropped", 7},
	}

	for _, tc := range gauges {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			sum, ok := met.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("metric %q is not a sum", tc.name)
			}
			if len(sum.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := sum.DataPoints[0].Value; got != tc.want {
				t.Errorf("value = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestHTTPRequestDuration(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.HTTPRequestDuration.Record(ctx, 0.05,
		metric.WithAttributes(
			attribute.String("method", "GET"),
			attribute.String("path", "/healthz"),
		),
	)

	rm := collect(t, reader)
	met := findMetric(rm, "vigil.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		t.Fatal("metric is not a histogram")
	}
	if len(hist.DataPoints) == 0 {
		t.Fatal("no data points")
	}
	if got := hist.DataPoints[0].Count; got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}

// metricCount returns the total sample count of a histogram metric.
func metricCount(met *metricdata.Metrics) uint64 {
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok {
		return 0
	}
	var n uint64
	for _, dp := range hist.DataPoints {
		n += dp.Count
	}
	return n
}
