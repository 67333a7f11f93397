// Package audio defines the frame type, the bounded capture queue and the
// device abstractions used by Vigil's audio pipeline.
//
// The two device abstractions are:
//
//   - [Source] opens the microphone and pushes frames from the driver's
//     callback thread; the returned [Stream] reports fatal device failures.
//   - [Sink] plays synthesized speech on the output device.
//
// Implementations live in device-specific packages (e.g. audio/portaudio).
// Between capture and consumption sits a [BoundedChannel], which is the only
// point of synchronization between the driver thread and the interaction loop.
package audio

import (
	"context"
	"errors"
)

// ErrStreamClosed is reported by a [Stream] that was closed by its owner.
var ErrStreamClosed = errors.New("audio: stream closed")

// Stream is an open capture stream.
//
// Implementations must be safe for concurrent use.
type Stream interface {
	// Err returns a channel that receives at most one value: the fatal error
	// that stopped the stream (device unplugged, driver failure). The channel
	// is never closed, so a clean Close does not wake readers.
	Err() <-chan error

	// Close stops capture and releases the device. Safe to call more than once.
	Close() error
}

// Source opens capture streams on an input device.
type Source interface {
	// Open starts capturing mono int16 PCM in the given format. Every captured
	// block of format.FrameLength samples is handed to deliver on the driver's
	// callback goroutine; deliver must not block.
	Open(ctx context.Context, format Format, deliver func(AudioFrame)) (Stream, error)
}

// Sink plays PCM audio on an output device.
type Sink interface {
	// Play writes frames to the device until frames is closed or ctx is
	// cancelled. Play blocks until the last frame has been handed to the
	// device. Cancelling ctx stops playback immediately and returns ctx.Err().
	Play(ctx context.Context, frames <-chan AudioFrame) error
}
