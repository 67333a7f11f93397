package stt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
)

// Transcriber turns a stream of audio frames into text one frame at a time.
type Transcriber interface {
	// ProcessAudio feeds one frame and returns the text of any utterance that
	// completed since the previous call (final) together with the current
	// interim hypothesis (partial). Either may be empty.
	ProcessAudio(frame audio.AudioFrame) (final, partial string, err error)
}

// Resetter is implemented by transcribers that hold per-utterance state which
// should be discarded when the caller starts a new listening window.
type Resetter interface {
	Reset()
}

var (
	_ Transcriber = (*StreamTranscriber)(nil)
	_ Resetter    = (*StreamTranscriber)(nil)
)

// StreamTranscriber adapts a streaming [Provider] to the [Transcriber]
// interface. The session is opened lazily on the first frame and reopened
// after the provider ends it or after [StreamTranscriber.Reset].
//
// ProcessAudio never blocks on the provider: results that are not yet
// available are returned by a later call.
type StreamTranscriber struct {
	ctx      context.Context
	provider Provider
	cfg      StreamConfig

	mu      sync.Mutex
	sess    SessionHandle
	partial string
	finals  []string
}

// NewStreamTranscriber returns a Transcriber backed by p. ctx bounds the
// lifetime of every session it opens.
func NewStreamTranscriber(ctx context.Context, p Provider, cfg StreamConfig) *StreamTranscriber {
	return &StreamTranscriber{ctx: ctx, provider: p, cfg: cfg}
}

// ProcessAudio implements [Transcriber].
func (t *StreamTranscriber) ProcessAudio(frame audio.AudioFrame) (string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sess == nil {
		sess, err := t.provider.StartStream(t.ctx, t.cfg)
		if err != nil {
			return "", "", fmt.Errorf("stt: start stream: %w", err)
		}
		t.sess = sess
	}

	if err := t.sess.SendAudio(frame.Data); err != nil {
		t.closeLocked()
		return "", "", fmt.Errorf("stt: send audio: %w", err)
	}

	t.collectLocked()

	final := strings.TrimSpace(strings.Join(t.finals, " "))
	t.finals = t.finals[:0]
	return final, t.partial, nil
}

// collectLocked drains whatever the session has produced without blocking.
// Finals are drained before partials, so a partial that follows a final is
// kept. A partial that is only a prefix of the newest final is stale.
func (t *StreamTranscriber) collectLocked() {
	partials, finals := t.sess.Partials(), t.sess.Finals()
	last := ""
	for drained := false; !drained; {
		select {
		case tr, ok := <-finals:
			if !ok {
				t.closeLocked()
				return
			}
			if s := strings.TrimSpace(tr.Text); s != "" {
				t.finals = append(t.finals, s)
				last = s
			}
			t.partial = ""
		default:
			drained = true
		}
	}
	for {
		select {
		case tr, ok := <-partials:
			if !ok {
				t.closeLocked()
				return
			}
			p := strings.TrimSpace(tr.Text)
			if last != "" && strings.HasPrefix(last, p) {
				p = ""
			}
			t.partial = p
		default:
			return
		}
	}
}

// Reset closes the current session and discards pending text. The next call
// to ProcessAudio opens a fresh session.
func (t *StreamTranscriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	t.partial = ""
	t.finals = t.finals[:0]
}

// Close releases the current session, if any.
func (t *StreamTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closeLocked()
	return nil
}

func (t *StreamTranscriber) closeLocked() {
	if t.sess == nil {
		return
	}
	_ = t.sess.Close()
	t.sess = nil
}
