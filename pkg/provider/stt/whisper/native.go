// Package whisper provides a local speech-to-text provider backed by the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a) and
// headers (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// whisper.cpp is a batch engine. Each session segments the incoming PCM with
// an energy-based silence detector, emits interim partials by re-running
// inference on the growing utterance, and emits one final per utterance.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/MrWong99/vigil/pkg/provider/stt"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

const (
	defaultLanguage            = "en"
	defaultSampleRate          = 16000
	defaultSilenceThresholdMs  = 700
	defaultMaxBufferDurationMs = 10_000
	defaultPartialIntervalMs   = 1_000

	// defaultRMSThreshold is the normalized RMS level below which audio is
	// considered silent (about 300 in int16 units).
	defaultRMSThreshold = 0.009
)

var _ stt.Provider = (*NativeProvider)(nil)

// inferFunc transcribes one utterance of 16-bit mono PCM.
type inferFunc func(pcm []byte, language string) (string, error)

// NativeProvider implements stt.Provider using whisper.cpp. The model is
// loaded once and shared by all sessions.
type NativeProvider struct {
	model    whisperlib.Model
	language string

	sampleRate          int
	silenceThresholdMs  int
	maxBufferDurationMs int
	partialIntervalMs   int
}

// NativeOption is a functional option for configuring a NativeProvider.
type NativeOption func(*NativeProvider)

// WithNativeLanguage sets the language code for transcription (e.g., "en").
func WithNativeLanguage(lang string) NativeOption {
	return func(p *NativeProvider) { p.language = lang }
}

// WithNativeSampleRate sets the sample rate of the PCM delivered via SendAudio.
func WithNativeSampleRate(rate int) NativeOption {
	return func(p *NativeProvider) { p.sampleRate = rate }
}

// WithNativeSilenceThresholdMs sets the silence duration that ends an utterance.
func WithNativeSilenceThresholdMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.silenceThresholdMs = ms }
}

// WithNativeMaxBufferDurationMs sets the longest utterance before a forced flush.
func WithNativeMaxBufferDurationMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.maxBufferDurationMs = ms }
}

// WithNativePartialIntervalMs sets how much new speech triggers an interim
// transcription. Zero disables partials.
func WithNativePartialIntervalMs(ms int) NativeOption {
	return func(p *NativeProvider) { p.partialIntervalMs = ms }
}

// NewNative loads the whisper.cpp model at modelPath. Call Close to release it.
func NewNative(modelPath string, opts ...NativeOption) (*NativeProvider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	p := &NativeProvider{
		language:            defaultLanguage,
		sampleRate:          defaultSampleRate,
		silenceThresholdMs:  defaultSilenceThresholdMs,
		maxBufferDurationMs: defaultMaxBufferDurationMs,
		partialIntervalMs:   defaultPartialIntervalMs,
	}
	for _, o := range opts {
		o(p)
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}
	p.model = model
	return p, nil
}

// Close releases the whisper model.
func (p *NativeProvider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// StartStream opens a new transcription session. Only mono audio is accepted.
func (p *NativeProvider) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if cfg.Channels > 1 {
		return nil, fmt.Errorf("whisper: %d channels requested, only mono is supported", cfg.Channels)
	}
	lang := cfg.Language
	if lang == "" {
		lang = p.language
	}
	sr := cfg.SampleRate
	if sr <= 0 {
		sr = p.sampleRate
	}
	seg := newSegmenter(sr, p.silenceThresholdMs, p.maxBufferDurationMs, p.partialIntervalMs, defaultRMSThreshold)
	return newSession(ctx, p.infer, lang, seg), nil
}

// infer runs whisper.cpp on one utterance using a fresh context. Contexts are
// not goroutine-safe but the model is.
func (p *NativeProvider) infer(pcm []byte, language string) (string, error) {
	wctx, err := p.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}
	if err := wctx.SetLanguage(language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", language, "err", err)
	}
	if err := wctx.Process(pcmToFloat32(pcm), nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" && !isNonSpeechMarker(text) {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

// isNonSpeechMarker reports annotations such as "[BLANK_AUDIO]" or "(wind)"
// that whisper emits for audio without words.
func isNonSpeechMarker(s string) bool {
	return (strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]")) ||
		(strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"))
}

// session is a live transcription session. All segmentation state is
// confined to the processLoop goroutine.
type session struct {
	infer    inferFunc
	language string
	seg      *segmenter

	audioCh  chan []byte
	partials chan stt.Transcript
	finals   chan stt.Transcript

	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

var _ stt.SessionHandle = (*session)(nil)

func newSession(ctx context.Context, infer inferFunc, language string, seg *segmenter) *session {
	s := &session{
		infer:    infer,
		language: language,
		seg:      seg,
		audioCh:  make(chan []byte, 256),
		partials: make(chan stt.Transcript, 64),
		finals:   make(chan stt.Transcript, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.processLoop(ctx)
	return s
}

// SendAudio queues a chunk of 16-bit little-endian mono PCM.
func (s *session) SendAudio(chunk []byte) error {
	select {
	case <-s.done:
		return fmt.Errorf("whisper: %w", stt.ErrSessionClosed)
	case s.audioCh <- chunk:
		return nil
	}
}

func (s *session) Partials() <-chan stt.Transcript { return s.partials }

func (s *session) Finals() <-chan stt.Transcript { return s.finals }

// Close flushes pending speech, closes the output channels and stops the
// session goroutine.
func (s *session) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
	return nil
}

func (s *session) processLoop(ctx context.Context) {
	defer s.wg.Done()
	defer close(s.partials)
	defer close(s.finals)

	for {
		select {
		case <-ctx.Done():
			s.flush()
			return
		case <-s.done:
			s.flush()
			return
		case chunk := <-s.audioCh:
			switch s.seg.push(chunk) {
			case segPartial:
				s.emit(s.partials, s.seg.snapshot(), false)
			case segFinal:
				s.emit(s.finals, s.seg.take(), true)
			}
		}
	}
}

func (s *session) flush() {
	if s.seg.pending() {
		s.emit(s.finals, s.seg.take(), true)
	}
}

func (s *session) emit(out chan<- stt.Transcript, pcm []byte, final bool) {
	text, err := s.infer(pcm, s.language)
	if err != nil {
		slog.Error("whisper: inference failed", "err", err)
		return
	}
	if text == "" {
		return
	}
	select {
	case out <- stt.Transcript{Text: text, IsFinal: final}:
	default:
		slog.Warn("whisper: transcript dropped, consumer too slow", "final", final)
	}
}
