// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider and Session to exercise code built on streaming sessions, and
// Transcriber to script the frame-by-frame results seen by the interaction
// loop.
//
// Example:
//
//	tr := &mock.Transcriber{Results: []mock.Result{
//	    {Partial: "what"},
//	    {Final: "what time is it"},
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/stt"
)

var (
	_ stt.Provider      = (*Provider)(nil)
	_ stt.SessionHandle = (*Session)(nil)
	_ stt.Transcriber   = (*Transcriber)(nil)
	_ stt.Resetter      = (*Transcriber)(nil)
)

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Sessions are returned by StartStream in order. When exhausted, a new
	// Session with buffered channels is returned.
	Sessions []*Session

	// StartStreamErr, if non-nil, is returned as the error from StartStream.
	StartStreamErr error

	// StartStreamCalls records the config of every call to StartStream.
	StartStreamCalls []stt.StreamConfig
}

// StartStream records the call and returns the next Session.
func (p *Provider) StartStream(_ context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartStreamCalls = append(p.StartStreamCalls, cfg)
	if p.StartStreamErr != nil {
		return nil, p.StartStreamErr
	}
	if len(p.Sessions) > 0 {
		s := p.Sessions[0]
		p.Sessions = p.Sessions[1:]
		return s, nil
	}
	return NewSession(), nil
}

// StartStreamCallCount returns the number of StartStream calls.
func (p *Provider) StartStreamCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.StartStreamCalls)
}

// Session is a mock implementation of stt.SessionHandle. Tests send
// Transcript values on PartialsCh and FinalsCh and close them to simulate the
// provider ending the session.
type Session struct {
	mu sync.Mutex

	PartialsCh chan stt.Transcript
	FinalsCh   chan stt.Transcript

	// SendAudioErr, if non-nil, is returned by every SendAudio call.
	SendAudioErr error

	// Chunks records a copy of every chunk passed to SendAudio.
	Chunks [][]byte

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// NewSession returns a Session with buffered channels.
func NewSession() *Session {
	return &Session{
		PartialsCh: make(chan stt.Transcript, 16),
		FinalsCh:   make(chan stt.Transcript, 16),
	}
}

// SendAudio records the chunk and returns SendAudioErr.
func (s *Session) SendAudio(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Chunks = append(s.Chunks, append([]byte(nil), chunk...))
	return s.SendAudioErr
}

// Partials returns PartialsCh.
func (s *Session) Partials() <-chan stt.Transcript { return s.PartialsCh }

// Finals returns FinalsCh.
func (s *Session) Finals() <-chan stt.Transcript { return s.FinalsCh }

// Close records the call.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return nil
}

// Closed reports how many times Close was called.
func (s *Session) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.CloseCallCount
}

// Result is one scripted return value of Transcriber.ProcessAudio.
type Result struct {
	Final   string
	Partial string
	Err     error
}

// Transcriber is a scripted stt.Transcriber. Each call to ProcessAudio
// consumes the next entry of Results; once exhausted it returns empty text.
type Transcriber struct {
	mu sync.Mutex

	Results []Result

	// Frames records every frame passed to ProcessAudio.
	Frames []audio.AudioFrame

	// ResetCount is the number of Reset calls.
	ResetCount int
}

// ProcessAudio returns the next scripted Result.
func (t *Transcriber) ProcessAudio(frame audio.AudioFrame) (string, string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Frames = append(t.Frames, frame)
	if len(t.Results) == 0 {
		return "", "", nil
	}
	r := t.Results[0]
	t.Results = t.Results[1:]
	return r.Final, r.Partial, r.Err
}

// Reset records the call.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ResetCount++
}

// FrameCount returns the number of frames processed.
func (t *Transcriber) FrameCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Frames)
}
