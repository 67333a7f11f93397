// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g. ElevenLabs or the
// OpenAI speech endpoint) and presents a uniform streaming interface. Text
// fragments go in, raw 16-bit mono PCM comes out as soon as it is available,
// so the announcer can start playback before synthesis has finished.
//
// Implementations must be safe for concurrent use.
package tts

import "context"

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits raw PCM audio chunks (signed 16-bit
	// little-endian mono at [Provider.SampleRate]).
	//
	// The returned audio channel is closed when all text has been synthesised
	// or when ctx is cancelled. The caller must drain the audio channel.
	//
	// Returns a non-nil error only if the stream cannot be started.
	SynthesizeStream(ctx context.Context, text <-chan string, voice VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]VoiceProfile, error)

	// SampleRate reports the sample rate of the PCM emitted by SynthesizeStream.
	SampleRate() int
}
