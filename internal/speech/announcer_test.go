package speech_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/speech"
)

// fakeVoice records spoken text. When gate is non-nil each Say blocks until
// a value is received from gate or ctx is cancelled.
type fakeVoice struct {
	mu       sync.Mutex
	started  []string
	finished []string
	sounds   []string
	gate     chan struct{}
	began    chan string
	err      error
}

func newFakeVoice(gated bool) *fakeVoice {
	v := &fakeVoice{began: make(chan string, 64)}
	if gated {
		v.gate = make(chan struct{})
	}
	return v
}

func (v *fakeVoice) Say(ctx context.Context, text string) error {
	v.mu.Lock()
	v.started = append(v.started, text)
	v.mu.Unlock()
	v.began <- text

	if v.gate != nil {
		select {
		case <-v.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finished = append(v.finished, text)
	return v.err
}

func (v *fakeVoice) PlaySound(ctx context.Context, path string) error {
	v.mu.Lock()
	v.sounds = append(v.sounds, path)
	v.mu.Unlock()
	return v.Say(ctx, "sound:"+path)
}

func (v *fakeVoice) finishedTexts() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.finished)
}

func (v *fakeVoice) waitStart(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-v.began:
		if got != want {
			t.Fatalf("started %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q to start", want)
	}
}

func newAnnouncer(t *testing.T, v *fakeVoice, opts ...speech.Option) *speech.Announcer {
	t.Helper()
	a := speech.New(v, opts...)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAnnouncer_SpeakBlocksUntilSpoken(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(false)
	a := newAnnouncer(t, v)

	if err := a.Speak(context.Background(), "It is 3 PM", speech.PriorityReply); err != nil {
		t.Fatalf("Speak: %v", err)
	}
	if got := v.finishedTexts(); !slices.Equal(got, []string{"It is 3 PM"}) {
		t.Errorf("spoken = %v, want [It is 3 PM]", got)
	}
}

func TestAnnouncer_SpeakEmptyIsNoop(t *testing.T) {
	t.Parallel()

	a := newAnnouncer(t, newFakeVoice(false))
	if err := a.Speak(context.Background(), "", speech.PriorityReply); err != nil {
		t.Errorf("Speak(\"\") = %v, want nil", err)
	}
}

func TestAnnouncer_OneAtATimeInPriorityOrder(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(true)
	a := newAnnouncer(t, v)

	a.Announce("first", speech.PriorityReply)
	v.waitStart(t, "first")

	// Queued while "first" plays; equal priority must not preempt.
	a.Announce("suggestion", speech.PrioritySuggestion)
	a.Announce("alert-1", speech.PriorityAlert)
	a.Announce("alert-2", speech.PriorityAlert)

	for _, want := range []string{"first", "alert-1", "alert-2", "suggestion"} {
		if want != "first" {
			v.waitStart(t, want)
		}
		v.gate <- struct{}{}
	}

	want := []string{"first", "alert-1", "alert-2", "suggestion"}
	deadline := time.After(2 * time.Second)
	for !slices.Equal(v.finishedTexts(), want) {
		select {
		case <-deadline:
			t.Fatalf("spoken = %v, want %v", v.finishedTexts(), want)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestAnnouncer_PreemptedUtteranceIsReplayed(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(true)
	a := newAnnouncer(t, v)

	alertDone := make(chan error, 1)
	go func() { alertDone <- a.Speak(context.Background(), "battery low", speech.PriorityAlert) }()
	v.waitStart(t, "battery low")

	replyDone := make(chan error, 1)
	go func() { replyDone <- a.Speak(context.Background(), "opening Safari", speech.PriorityReply) }()

	// The reply interrupts the alert and plays first.
	v.waitStart(t, "opening Safari")
	v.gate <- struct{}{}
	if err := <-replyDone; err != nil {
		t.Fatalf("reply Speak: %v", err)
	}

	// The alert is replayed from the start.
	v.waitStart(t, "battery low")
	v.gate <- struct{}{}
	if err := <-alertDone; err != nil {
		t.Fatalf("alert Speak: %v", err)
	}
	if got, want := v.finishedTexts(), []string{"opening Safari", "battery low"}; !slices.Equal(got, want) {
		t.Errorf("spoken = %v, want %v", got, want)
	}
}

func TestAnnouncer_PreemptedCueIsDropped(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(true)
	a := newAnnouncer(t, v, speech.WithCue("Yes?", ""))

	a.Acknowledge()
	v.waitStart(t, "Yes?")

	done := make(chan error, 1)
	go func() { done <- a.Speak(context.Background(), "memory critical", speech.PriorityAlert) }()
	v.waitStart(t, "memory critical")
	v.gate <- struct{}{}
	if err := <-done; err != nil {
		t.Fatalf("Speak: %v", err)
	}

	select {
	case got := <-v.began:
		t.Errorf("cue replayed as %q after preemption", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAnnouncer_AcknowledgePlaysSound(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(false)
	a := newAnnouncer(t, v, speech.WithCue("Yes?", "/tmp/ping.wav"))
	a.Acknowledge()
	v.waitStart(t, "sound:/tmp/ping.wav")
}

func TestAnnouncer_StopDiscardsQueue(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(true)
	a := newAnnouncer(t, v)

	first := make(chan error, 1)
	queued := make(chan error, 1)
	go func() { first <- a.Speak(context.Background(), "long answer", speech.PriorityReply) }()
	v.waitStart(t, "long answer")
	go func() { queued <- a.Speak(context.Background(), "later", speech.PrioritySuggestion) }()

	// Give the second Speak time to enqueue.
	time.Sleep(20 * time.Millisecond)
	a.Stop()

	for name, ch := range map[string]chan error{"playing": first, "queued": queued} {
		select {
		case err := <-ch:
			if !errors.Is(err, speech.ErrInterrupted) {
				t.Errorf("%s Speak = %v, want ErrInterrupted", name, err)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("%s Speak did not return after Stop", name)
		}
	}
}

func TestAnnouncer_SpeakContextCancelled(t *testing.T) {
	t.Parallel()

	v := newFakeVoice(true)
	a := newAnnouncer(t, v)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Speak(ctx, "never finished", speech.PriorityReply) }()
	v.waitStart(t, "never finished")
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Speak = %v, want context.Canceled", err)
	}
	// The speaker is released for the next utterance.
	a.Announce("next", speech.PriorityReply)
	v.waitStart(t, "next")
	v.gate <- struct{}{}
}

func TestAnnouncer_IsSpeakingWithTail(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	now := time.Unix(1000, 0)
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	v := newFakeVoice(true)
	a := newAnnouncer(t, v, speech.WithTail(300*time.Millisecond), speech.WithClock(clock))

	if a.IsSpeaking() {
		t.Fatal("IsSpeaking() = true before anything was queued")
	}

	done := make(chan error, 1)
	go func() { done <- a.Speak(context.Background(), "hello", speech.PriorityReply) }()
	v.waitStart(t, "hello")
	if !a.IsSpeaking() {
		t.Error("IsSpeaking() = false during playback")
	}
	v.gate <- struct{}{}
	<-done

	if !a.IsSpeaking() {
		t.Error("IsSpeaking() = false within the tail")
	}
	advance(301 * time.Millisecond)
	if a.IsSpeaking() {
		t.Error("IsSpeaking() = true after the tail")
	}
}

func TestAnnouncer_PlaybackError(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })
	met, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	boom := errors.New("device busy")
	v := newFakeVoice(false)
	v.err = boom
	a := newAnnouncer(t, v, speech.WithMetrics(met))

	if err := a.Speak(context.Background(), "hi", speech.PriorityReply); !errors.Is(err, boom) {
		t.Errorf("Speak = %v, want %v", err, boom)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vigil.utterances" {
				continue
			}
			for _, dp := range m.Data.(metricdata.Sum[int64]).DataPoints {
				if o, ok := dp.Attributes.Value(attribute.Key("outcome")); ok {
					outcomes[o.AsString()] += dp.Value
				}
			}
		}
	}
	if outcomes["failed"] != 1 || outcomes["spoken"] != 0 {
		t.Errorf("utterance outcomes = %v, want one failed and none spoken", outcomes)
	}
}

func TestAnnouncer_CloseRejectsNewWork(t *testing.T) {
	t.Parallel()

	a := speech.New(newFakeVoice(false))
	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := a.Speak(context.Background(), "late", speech.PriorityReply); !errors.Is(err, speech.ErrInterrupted) {
		t.Errorf("Speak after Close = %v, want ErrInterrupted", err)
	}
}

func TestPriority_String(t *testing.T) {
	t.Parallel()

	tests := map[speech.Priority]string{
		speech.PriorityReply:      "reply",
		speech.PriorityAlert:      "alert",
		speech.PriorityCue:        "cue",
		speech.PrioritySuggestion: "suggestion",
		speech.Priority(3):        "custom",
	}
	for p, want := range tests {
		if got := p.String(); got != want {
			t.Errorf("Priority(%d).String() = %q, want %q", int(p), got, want)
		}
	}
}
