// Package stt defines the interfaces for Speech-to-Text backends.
//
// Two abstractions live here:
//
//   - [Provider] wraps a streaming transcription service (Deepgram, a local
//     whisper.cpp model). A session accepts raw PCM chunks and emits interim
//     partials and authoritative finals on channels.
//   - [Transcriber] is the frame-at-a-time view the interaction loop uses:
//     feed one frame, get back whatever final and partial text is available.
//     [StreamTranscriber] adapts any Provider to it.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
)

// ErrSessionClosed is returned by SendAudio after the session was closed or
// the provider ended it.
var ErrSessionClosed = errors.New("stt: session closed")

// StreamConfig describes the audio format and recognition hints for a new STT
// session.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (16000 for microphone capture).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// An empty string lets the provider pick its default.
	Language string

	// Keywords boosts the recognition of uncommon words such as application
	// names or the assistant's own name.
	Keywords []KeywordBoost
}

// SessionHandle represents an open STT streaming session.
//
// Callers must call Close when the session is no longer needed.
type SessionHandle interface {
	// SendAudio delivers a chunk of 16-bit little-endian PCM to the provider.
	// Calling SendAudio after Close returns an error wrapping ErrSessionClosed.
	SendAudio(chunk []byte) error

	// Partials emits low-latency interim transcripts. Closed when the session ends.
	Partials() <-chan Transcript

	// Finals emits committed transcripts. Closed when the session ends.
	Finals() <-chan Transcript

	// Close terminates the session and releases its resources. After Close
	// returns, Partials and Finals are closed. Safe to call more than once.
	Close() error
}

// Provider is the abstraction over any streaming STT backend.
type Provider interface {
	// StartStream opens a new streaming transcription session. The returned
	// SessionHandle is ready to accept audio immediately.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
