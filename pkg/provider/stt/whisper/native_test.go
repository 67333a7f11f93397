package whisper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/stt"
)

// 20ms chunks at 16kHz.
const chunkSamples = 320

func speechChunk() []byte {
	s := make([]int16, chunkSamples)
	for i := range s {
		if i%2 == 0 {
			s[i] = 8000
		} else {
			s[i] = -8000
		}
	}
	return audio.SamplesToBytes(s)
}

func silenceChunk() []byte { return make([]byte, chunkSamples*2) }

type fakeEngine struct {
	mu    sync.Mutex
	calls [][]byte
	text  string
	err   error
}

func (f *fakeEngine) infer(pcm []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, pcm)
	return f.text, f.err
}

func (f *fakeEngine) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func receive(t *testing.T, ch <-chan stt.Transcript) stt.Transcript {
	t.Helper()
	select {
	case tr, ok := <-ch:
		if !ok {
			t.Fatal("channel closed")
		}
		return tr
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for transcript")
	}
	return stt.Transcript{}
}

func TestSegmenter_SilenceAloneProducesNothing(t *testing.T) {
	seg := newSegmenter(16000, 100, 10_000, 0, defaultRMSThreshold)
	for range 50 {
		if ev := seg.push(silenceChunk()); ev != segNone {
			t.Fatalf("event = %v, want segNone", ev)
		}
	}
	if seg.pending() {
		t.Error("pending() = true after silence only")
	}
}

func TestSegmenter_SpeechThenSilenceEndsUtterance(t *testing.T) {
	seg := newSegmenter(16000, 100, 10_000, 0, defaultRMSThreshold)
	for range 10 {
		seg.push(speechChunk())
	}
	var ev segEvent
	n := 0
	for ev != segFinal && n < 20 {
		ev = seg.push(silenceChunk())
		n++
	}
	if ev != segFinal {
		t.Fatal("no segFinal after trailing silence")
	}
	if n != 5 {
		t.Errorf("segFinal after %d silent chunks, want 5 (100ms)", n)
	}
	pcm := seg.take()
	if len(pcm) != 15*chunkSamples*2 {
		t.Errorf("utterance = %d bytes, want %d", len(pcm), 15*chunkSamples*2)
	}
	if seg.pending() {
		t.Error("pending() = true after take")
	}
}

func TestSegmenter_MaxDurationForcesFinal(t *testing.T) {
	seg := newSegmenter(16000, 500, 100, 0, defaultRMSThreshold)
	var got segEvent
	for range 5 {
		got = seg.push(speechChunk())
	}
	if got != segFinal {
		t.Errorf("event = %v, want segFinal after 100ms of speech", got)
	}
}

func TestSegmenter_PartialInterval(t *testing.T) {
	seg := newSegmenter(16000, 500, 10_000, 60, defaultRMSThreshold)
	var partials int
	for range 9 {
		if seg.push(speechChunk()) == segPartial {
			partials++
		}
	}
	if partials != 3 {
		t.Errorf("partials = %d, want 3", partials)
	}
}

func TestSession_EmitsFinalAfterSilence(t *testing.T) {
	eng := &fakeEngine{text: "what time is it"}
	seg := newSegmenter(16000, 100, 10_000, 0, defaultRMSThreshold)
	s := newSession(context.Background(), eng.infer, "en", seg)
	defer s.Close()

	for range 10 {
		if err := s.SendAudio(speechChunk()); err != nil {
			t.Fatalf("SendAudio: %v", err)
		}
	}
	for range 10 {
		s.SendAudio(silenceChunk())
	}
	tr := receive(t, s.Finals())
	if tr.Text != "what time is it" || !tr.IsFinal {
		t.Errorf("final = %+v", tr)
	}
}

func TestSession_InferenceErrorDoesNotEmit(t *testing.T) {
	eng := &fakeEngine{err: errors.New("boom")}
	seg := newSegmenter(16000, 40, 10_000, 0, defaultRMSThreshold)
	s := newSession(context.Background(), eng.infer, "en", seg)

	s.SendAudio(speechChunk())
	s.SendAudio(silenceChunk())
	s.SendAudio(silenceChunk())
	time.Sleep(50 * time.Millisecond)
	s.Close()

	for tr := range s.Finals() {
		t.Errorf("unexpected final %+v", tr)
	}
	if eng.callCount() == 0 {
		t.Error("inference was never attempted")
	}
}

func TestSession_CloseFlushesPendingSpeech(t *testing.T) {
	eng := &fakeEngine{text: "goodbye"}
	seg := newSegmenter(16000, 1000, 10_000, 0, defaultRMSThreshold)
	s := newSession(context.Background(), eng.infer, "en", seg)

	for range 5 {
		s.SendAudio(speechChunk())
	}
	// Let the loop consume the queued chunks before closing.
	time.Sleep(50 * time.Millisecond)
	s.Close()

	tr, ok := <-s.Finals()
	if !ok || tr.Text != "goodbye" {
		t.Errorf("final = (%+v, %v), want goodbye", tr, ok)
	}
	if _, ok := <-s.Partials(); ok {
		t.Error("Partials not closed after Close")
	}
}

func TestSession_SendAfterClose(t *testing.T) {
	eng := &fakeEngine{}
	s := newSession(context.Background(), eng.infer, "en", newSegmenter(16000, 100, 0, 0, defaultRMSThreshold))
	s.Close()
	s.Close()
	if err := s.SendAudio(speechChunk()); !errors.Is(err, stt.ErrSessionClosed) {
		t.Errorf("err = %v, want ErrSessionClosed", err)
	}
}

func TestNewNative_EmptyPath(t *testing.T) {
	if _, err := NewNative(""); err == nil {
		t.Fatal("expected error for empty model path")
	}
}

func TestIsNonSpeechMarker(t *testing.T) {
	for in, want := range map[string]bool{
		"[BLANK_AUDIO]":  true,
		"(wind blowing)": true,
		"open safari":    false,
		"[open":          false,
	} {
		if got := isNonSpeechMarker(in); got != want {
			t.Errorf("isNonSpeechMarker(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPcmToFloat32(t *testing.T) {
	got := pcmToFloat32(audio.SamplesToBytes([]int16{0, 16384, -32768}))
	want := []float32{0, 0.5, -1}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
	if len(pcmToFloat32([]byte{1})) != 0 {
		t.Error("odd trailing byte should be ignored")
	}
}
