// Package mock provides in-memory mock implementations of [audio.Source],
// [audio.Stream], and [audio.Sink] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	src := &mock.Source{}
//	stream, _ := src.Open(ctx, format, ch.Send)
//	src.Deliver(frame)          // simulates the driver callback
//	src.LastStream().Fail(err)  // simulates a device failure
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of [audio.Source].
type Source struct {
	mu sync.Mutex

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// OpenCalls records the format of every Open call.
	OpenCalls []audio.Format

	deliver func(audio.AudioFrame)
	streams []*Stream
}

// Open records the call and returns a new [Stream] unless OpenErr is set.
func (s *Source) Open(_ context.Context, format audio.Format, deliver func(audio.AudioFrame)) (audio.Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.OpenCalls = append(s.OpenCalls, format)
	if s.OpenErr != nil {
		return nil, s.OpenErr
	}
	st := NewStream()
	s.deliver = deliver
	s.streams = append(s.streams, st)
	return st, nil
}

// Deliver invokes the deliver function of the most recent Open call, as the
// driver callback would. It is a no-op before Open.
func (s *Source) Deliver(frame audio.AudioFrame) {
	s.mu.Lock()
	deliver := s.deliver
	s.mu.Unlock()
	if deliver != nil {
		deliver(frame)
	}
}

// LastStream returns the stream created by the most recent Open call, or nil.
func (s *Source) LastStream() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.streams) == 0 {
		return nil
	}
	return s.streams[len(s.streams)-1]
}

// ─── Stream ───────────────────────────────────────────────────────────────────

var _ audio.Stream = (*Stream)(nil)

// Stream is a mock implementation of [audio.Stream].
type Stream struct {
	mu sync.Mutex

	// CloseErr is returned by Close.
	CloseErr error

	// CallCountClose records how many times Close was called.
	CallCountClose int

	errCh chan error
}

// NewStream returns a ready-to-use Stream.
func NewStream() *Stream {
	return &Stream{errCh: make(chan error, 1)}
}

// Err implements [audio.Stream].
func (s *Stream) Err() <-chan error { return s.errCh }

// Close records the call and returns CloseErr.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// Fail publishes err on the error channel. Only the first call has an effect.
func (s *Stream) Fail(err error) {
	select {
	case s.errCh <- err:
	default:
	}
}

// Closed returns the number of Close calls.
func (s *Stream) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountClose
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

var _ audio.Sink = (*Sink)(nil)

// Sink is a mock implementation of [audio.Sink]. Play drains the frame
// channel and records every frame.
type Sink struct {
	mu sync.Mutex

	// PlayErr, if non-nil, is returned by Play after draining.
	PlayErr error

	// Frames records every frame received across all Play calls.
	Frames []audio.AudioFrame

	// CallCountPlay records how many times Play was called.
	CallCountPlay int

	// Block, if non-nil, is received from before each frame is accepted,
	// letting tests hold playback mid-utterance.
	Block chan struct{}
}

// Play drains frames until the channel closes or ctx is cancelled.
func (s *Sink) Play(ctx context.Context, frames <-chan audio.AudioFrame) error {
	s.mu.Lock()
	s.CallCountPlay++
	block := s.Block
	s.mu.Unlock()

	for {
		if block != nil {
			select {
			case <-block:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		select {
		case f, ok := <-frames:
			if !ok {
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.PlayErr
			}
			s.mu.Lock()
			s.Frames = append(s.Frames, f)
			s.mu.Unlock()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// PlayCount returns the number of Play calls.
func (s *Sink) PlayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CallCountPlay
}

// FrameCount returns the number of frames played.
func (s *Sink) FrameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Frames)
}
