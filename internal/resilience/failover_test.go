package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/resilience"
	"github.com/MrWong99/vigil/pkg/provider/llm"
	llmmock "github.com/MrWong99/vigil/pkg/provider/llm/mock"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	sttmock "github.com/MrWong99/vigil/pkg/provider/stt/mock"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

var errDown = errors.New("backend down")

func question() llm.Request {
	return llm.Request{Messages: []llm.Message{{Role: llm.RoleUser, Content: "What is the capital of France?"}}}
}

func TestLLMFailover_PrimarySucceeds(t *testing.T) {
	primary := &llmmock.Provider{Response: &llm.Response{Content: "Paris."}, ModelName: "gpt-4o-mini"}
	secondary := &llmmock.Provider{Response: &llm.Response{Content: "unused"}}
	f := resilience.NewLLMFailover("openai", primary, resilience.FailoverConfig{})
	f.Add("ollama", secondary)

	resp, err := f.Complete(context.Background(), question())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Paris." {
		t.Errorf("Content = %q, want Paris.", resp.Content)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Errorf("secondary called %d times, want 0", n)
	}
	if got := f.Model(); got != "gpt-4o-mini" {
		t.Errorf("Model() = %q, want primary's model", got)
	}
}

func TestLLMFailover_FallsBack(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Response: &llm.Response{Content: "Paris."}}
	f := resilience.NewLLMFailover("openai", primary, resilience.FailoverConfig{})
	f.Add("ollama", secondary)

	resp, err := f.Complete(context.Background(), question())
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "Paris." {
		t.Errorf("Content = %q, want Paris.", resp.Content)
	}
	if got := f.Names(); len(got) != 2 || got[0] != "openai" || got[1] != "ollama" {
		t.Errorf("Names() = %v, want [openai ollama]", got)
	}
}

func TestLLMFailover_SkipsOpenBreaker(t *testing.T) {
	primary := &llmmock.Provider{Err: errDown}
	secondary := &llmmock.Provider{Response: &llm.Response{Content: "ok"}}
	f := resilience.NewLLMFailover("openai", primary, resilience.FailoverConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.Add("ollama", secondary)

	for range 4 {
		if _, err := f.Complete(context.Background(), question()); err != nil {
			t.Fatalf("Complete: %v", err)
		}
	}
	if n := len(primary.Calls()); n != 2 {
		t.Errorf("primary called %d times, want 2 before its breaker opened", n)
	}
	if st := f.Breaker("openai").State(); st != resilience.StateOpen {
		t.Errorf("primary breaker = %v, want open", st)
	}
	if f.Breaker("missing") != nil {
		t.Error("Breaker(missing) != nil")
	}
}

func TestLLMFailover_AllFail(t *testing.T) {
	f := resilience.NewLLMFailover("a", &llmmock.Provider{Err: errDown}, resilience.FailoverConfig{})
	f.Add("b", &llmmock.Provider{Err: errDown})

	_, err := f.Complete(context.Background(), question())
	if !errors.Is(err, resilience.ErrAllFailed) {
		t.Errorf("err = %v, want ErrAllFailed", err)
	}
	if !errors.Is(err, errDown) {
		t.Errorf("err = %v, want it to wrap the last backend error", err)
	}
}

func TestLLMFailover_CancelledContextStopsChain(t *testing.T) {
	secondary := &llmmock.Provider{}
	f := resilience.NewLLMFailover("a", &llmmock.Provider{}, resilience.FailoverConfig{})
	f.Add("b", secondary)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.Complete(ctx, question())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if n := len(secondary.Calls()); n != 0 {
		t.Errorf("secondary called %d times after cancellation", n)
	}
}

func TestSTTFailover_StartStream(t *testing.T) {
	primary := &sttmock.Provider{StartStreamErr: errDown}
	secondary := &sttmock.Provider{}
	f := resilience.NewSTTFailover("deepgram", primary, resilience.FailoverConfig{})
	f.Add("whisper", secondary)

	sess, err := f.StartStream(context.Background(), stt.StreamConfig{SampleRate: 16000, Channels: 1})
	if err != nil {
		t.Fatalf("StartStream: %v", err)
	}
	defer sess.Close()
	if n := secondary.StartStreamCallCount(); n != 1 {
		t.Errorf("secondary StartStream calls = %d, want 1", n)
	}
	if got := secondary.StartStreamCalls[0].SampleRate; got != 16000 {
		t.Errorf("SampleRate = %d, want 16000", got)
	}
}

func TestDo_RecordsProviderMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	m, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	f := resilience.NewFailover("discord", errDown, resilience.FailoverConfig{Kind: "notify", Metrics: m})
	f.Add("desktop", nil)
	err = resilience.Do(context.Background(), f, func(_ context.Context, e error) error { return e })
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	got := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, met := range sm.Metrics {
			if met.Name != "vigil.provider.requests" {
				continue
			}
			for _, dp := range met.Data.(metricdata.Sum[int64]).DataPoints {
				p, _ := dp.Attributes.Value(attribute.Key("provider"))
				s, _ := dp.Attributes.Value(attribute.Key("status"))
				got[p.AsString()+"/"+s.AsString()] += dp.Value
			}
		}
	}
	if got["discord/error"] != 1 || got["desktop/ok"] != 1 {
		t.Errorf("provider requests = %v, want discord/error=1 desktop/ok=1", got)
	}
}
