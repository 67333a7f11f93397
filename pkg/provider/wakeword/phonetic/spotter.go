// Package phonetic implements a wakeword.Detector on top of a streaming
// speech recognizer. Every recognized fragment is searched for the
// configured keywords with Double Metaphone and Jaro-Winkler matching, so
// near-miss transcriptions ("vigel", "vigile") still trigger.
//
// It trades latency for independence from proprietary keyword engines: a
// trigger is reported only once the recognizer has produced text covering
// the keyword.
package phonetic

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/phonetic"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
)

const (
	defaultSampleRate  = 16000
	defaultFrameLength = 512
)

var _ wakeword.Detector = (*Spotter)(nil)

// Option is a functional option for configuring a [Spotter].
type Option func(*Spotter)

// WithMatcher replaces the default phonetic matcher.
func WithMatcher(m *phonetic.Matcher) Option {
	return func(s *Spotter) {
		s.matcher = m
	}
}

// WithFormat overrides the frame format requested from the capture device.
// Default: 16 kHz mono, 512 samples per frame.
func WithFormat(f audio.Format) Option {
	return func(s *Spotter) {
		s.format = f
	}
}

// Spotter detects keywords in the text produced by an [stt.Transcriber].
type Spotter struct {
	transcriber stt.Transcriber
	keywords    []string
	matcher     *phonetic.Matcher
	format      audio.Format

	lastPartial string

	closeOnce sync.Once
	closeErr  error
}

// New creates a Spotter for keywords fed by transcriber. The spotter takes
// ownership of transcriber and closes it on Close when it implements
// io.Closer.
func New(transcriber stt.Transcriber, keywords []string, opts ...Option) (*Spotter, error) {
	if transcriber == nil {
		return nil, errors.New("wakeword phonetic: transcriber must not be nil")
	}
	if len(keywords) == 0 {
		return nil, errors.New("wakeword phonetic: at least one keyword is required")
	}
	s := &Spotter{
		transcriber: transcriber,
		keywords:    append([]string(nil), keywords...),
		matcher:     phonetic.New(),
		format: audio.Format{
			SampleRate:  defaultSampleRate,
			Channels:    1,
			FrameLength: defaultFrameLength,
		},
	}
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// Process feeds frame to the recognizer and searches any new text for a
// keyword. After a match the recognizer is reset so the same utterance does
// not trigger twice.
func (s *Spotter) Process(frame audio.AudioFrame) (int, error) {
	final, partial, err := s.transcriber.ProcessAudio(frame)
	if err != nil {
		return wakeword.NoMatch, fmt.Errorf("wakeword phonetic: %w", err)
	}

	idx := wakeword.NoMatch
	if final != "" {
		idx, _ = s.matcher.Find(final, s.keywords)
		s.lastPartial = ""
	} else if partial != "" && partial != s.lastPartial {
		s.lastPartial = partial
		idx, _ = s.matcher.Find(partial, s.keywords)
	}
	if idx < 0 {
		return wakeword.NoMatch, nil
	}

	s.lastPartial = ""
	if r, ok := s.transcriber.(stt.Resetter); ok {
		r.Reset()
	}
	return idx, nil
}

// Format implements wakeword.Detector.
func (s *Spotter) Format() audio.Format { return s.format }

// Keywords implements wakeword.Detector.
func (s *Spotter) Keywords() []string { return append([]string(nil), s.keywords...) }

// Close closes the underlying recognizer.
func (s *Spotter) Close() error {
	s.closeOnce.Do(func() {
		if c, ok := s.transcriber.(interface{ Close() error }); ok {
			s.closeErr = c.Close()
		}
	})
	return s.closeErr
}
