package interaction_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/vigil/internal/interaction"
	"github.com/MrWong99/vigil/internal/interaction/mock"
	"github.com/MrWong99/vigil/pkg/audio"
	audiomock "github.com/MrWong99/vigil/pkg/audio/mock"
	sttmock "github.com/MrWong99/vigil/pkg/provider/stt/mock"
	wwmock "github.com/MrWong99/vigil/pkg/provider/wakeword/mock"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	t.Parallel()
	if _, err := interaction.New(nil, &sttmock.Transcriber{}, &mock.Announcer{}, &mock.CommandSink{}); err == nil {
		t.Error("New(nil source): want error")
	}
}

func TestMachine_RunEndToEnd(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{}
	det := &wwmock.Detector{
		Results:        []int{-1, 0},
		FormatResult:   audio.Format{SampleRate: 16000, Channels: 1, FrameLength: 512},
		KeywordsResult: []string{"vigil"},
	}
	tr := &sttmock.Transcriber{Results: []sttmock.Result{{Partial: "what"}, {Final: "what time is it"}}}
	ann := &mock.Announcer{}
	sink := &mock.CommandSink{}

	m, err := interaction.New(src, tr, ann, sink,
		interaction.WithDetector(det),
		interaction.WithReceiveTimeout(5*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	waitFor(t, "stream open", m.Ready)
	if got := src.OpenCalls[0]; got.FrameLength != 512 || got.SampleRate != 16000 {
		t.Errorf("opened with %+v, want the detector format", got)
	}

	frame := audio.FrameFromSamples(make([]int16, 512), 16000, 1, 0)
	src.Deliver(frame)
	src.Deliver(frame)
	waitFor(t, "listen state", func() bool { return m.State() == interaction.StateListen })

	src.Deliver(frame)
	src.Deliver(frame)
	waitFor(t, "dispatch", func() bool { return len(sink.Dispatched()) == 1 })
	if got := sink.Dispatched()[0]; got != "what time is it" {
		t.Errorf("dispatched %q, want %q", got, "what time is it")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if n := src.LastStream().Closed(); n != 1 {
		t.Errorf("stream closed %d times, want 1", n)
	}
	if m.Ready() {
		t.Error("Ready() = true after Run returned")
	}
}

func TestMachine_RunStreamFailureIsFatal(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{}
	m, _ := interaction.New(src, &sttmock.Transcriber{}, &mock.Announcer{}, &mock.CommandSink{},
		interaction.WithReceiveTimeout(5*time.Millisecond))

	done := make(chan error, 1)
	go func() { done <- m.Run(context.Background()) }()
	waitFor(t, "stream open", m.Ready)

	unplugged := errors.New("device unplugged")
	src.LastStream().Fail(unplugged)

	select {
	case err := <-done:
		if !errors.Is(err, unplugged) {
			t.Errorf("Run = %v, want %v", err, unplugged)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stream failure")
	}
	if n := src.LastStream().Closed(); n != 1 {
		t.Errorf("stream closed %d times, want 1", n)
	}
}

func TestMachine_RunOpenFailure(t *testing.T) {
	t.Parallel()

	busy := errors.New("device busy")
	m, _ := interaction.New(&audiomock.Source{OpenErr: busy}, &sttmock.Transcriber{}, &mock.Announcer{}, &mock.CommandSink{})
	if err := m.Run(context.Background()); !errors.Is(err, busy) {
		t.Errorf("Run = %v, want %v", err, busy)
	}
}

func TestMachine_AlwaysListeningWithoutDetector(t *testing.T) {
	t.Parallel()

	src := &audiomock.Source{}
	tr := &sttmock.Transcriber{Results: []sttmock.Result{{Final: "status"}}}
	ann := &mock.Announcer{}
	sink := &mock.CommandSink{}
	m, _ := interaction.New(src, tr, ann, sink, interaction.WithReceiveTimeout(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = m.Run(ctx) }()
	waitFor(t, "stream open", m.Ready)

	if m.State() != interaction.StateListen {
		t.Errorf("state = %v, want listen", m.State())
	}
	src.Deliver(audio.FrameFromSamples(make([]int16, 512), 16000, 1, 0))
	waitFor(t, "dispatch", func() bool { return len(sink.Dispatched()) == 1 })
	if ann.Acks() != 0 {
		t.Errorf("Acknowledge calls = %d, want 0", ann.Acks())
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	if interaction.StateWake.String() != "wake" || interaction.StateListen.String() != "listen" {
		t.Error("unexpected state names")
	}
}
