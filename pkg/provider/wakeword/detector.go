// Package wakeword defines the Detector interface for trigger-phrase
// spotting backends.
//
// A detector consumes fixed-size PCM frames in the format it reports and
// answers, per frame, which of its configured keywords (if any) was heard.
// Detection is synchronous: Process returns as soon as the frame has been
// analysed, so it can run directly in the interaction loop.
//
// A Detector instance holds per-stream state and is not safe for concurrent
// use.
package wakeword

import "github.com/MrWong99/vigil/pkg/audio"

// NoMatch is returned by [Detector.Process] when no keyword was detected.
const NoMatch = -1

// Detector spots trigger phrases in a stream of audio frames.
type Detector interface {
	// Process analyses one frame and returns the index of the detected
	// keyword, or [NoMatch]. Frames in a format other than Format are
	// converted by the caller.
	Process(frame audio.AudioFrame) (int, error)

	// Format reports the sample rate, channel count, and frame length the
	// detector expects.
	Format() audio.Format

	// Keywords returns the configured trigger phrases, indexed as reported
	// by Process.
	Keywords() []string

	// Close releases engine resources. Calling Close more than once is safe.
	Close() error
}
