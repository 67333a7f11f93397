package phonetic_test

import (
	"errors"
	"testing"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/stt/mock"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
	"github.com/MrWong99/vigil/pkg/provider/wakeword/phonetic"
)

func TestNew_Validation(t *testing.T) {
	t.Parallel()
	if _, err := phonetic.New(nil, []string{"vigil"}); err == nil {
		t.Error("New(nil transcriber): want error")
	}
	if _, err := phonetic.New(&mock.Transcriber{}, nil); err == nil {
		t.Error("New(no keywords): want error")
	}
}

func TestSpotter_Process(t *testing.T) {
	t.Parallel()

	tr := &mock.Transcriber{Results: []mock.Result{
		{Partial: "what is"},
		{Partial: "what is the"},
		{Partial: "hey vigel"},
		{Final: "the weather"},
		{Final: "okay computer"},
	}}
	s, err := phonetic.New(tr, []string{"vigil", "computer"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []int{wakeword.NoMatch, wakeword.NoMatch, 0, wakeword.NoMatch, 1}
	for i, w := range want {
		got, err := s.Process(audio.AudioFrame{})
		if err != nil {
			t.Fatalf("Process #%d: %v", i, err)
		}
		if got != w {
			t.Errorf("Process #%d = %d, want %d", i, got, w)
		}
	}
	if tr.ResetCount != 2 {
		t.Errorf("ResetCount = %d, want 2 (one per match)", tr.ResetCount)
	}
}

func TestSpotter_RepeatedPartialChecksOnce(t *testing.T) {
	t.Parallel()

	tr := &mock.Transcriber{Results: []mock.Result{
		{Partial: "vigil"},
		{Partial: "vigil"},
	}}
	s, _ := phonetic.New(tr, []string{"vigil"})

	if got, _ := s.Process(audio.AudioFrame{}); got != 0 {
		t.Fatalf("first Process = %d, want 0", got)
	}
	// The recognizer was reset; a stale partial arriving afterwards is
	// treated as new text again.
	if got, _ := s.Process(audio.AudioFrame{}); got != 0 {
		t.Errorf("second Process = %d, want 0", got)
	}
}

func TestSpotter_TranscriberError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	tr := &mock.Transcriber{Results: []mock.Result{{Err: boom}}}
	s, _ := phonetic.New(tr, []string{"vigil"})

	got, err := s.Process(audio.AudioFrame{})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapping %v", err, boom)
	}
	if got != wakeword.NoMatch {
		t.Errorf("index = %d, want NoMatch", got)
	}
}

func TestSpotter_FormatAndKeywords(t *testing.T) {
	t.Parallel()

	s, _ := phonetic.New(&mock.Transcriber{}, []string{"vigil"},
		phonetic.WithFormat(audio.Format{SampleRate: 8000, Channels: 1, FrameLength: 256}))
	if f := s.Format(); f.SampleRate != 8000 || f.FrameLength != 256 {
		t.Errorf("Format() = %+v, want 8000Hz/256", f)
	}
	kw := s.Keywords()
	kw[0] = "changed"
	if s.Keywords()[0] != "vigil" {
		t.Error("Keywords() exposes internal slice")
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
