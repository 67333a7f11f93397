package audio

import (
	"encoding/binary"
	"time"
)

// AudioFrame is a single block of captured audio flowing from the input device
// to the interaction loop. Frames are treated as immutable once enqueued:
// ownership passes from the capture callback to the consumer.
type AudioFrame struct {
	// PCM audio data: signed 16-bit little-endian samples.
	Data []byte

	// SampleRate in Hz (16000 for wake word detection and transcription).
	SampleRate int

	// Channels is 1 for microphone capture.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Samples decodes Data into int16 samples. Channels are left interleaved.
func (f AudioFrame) Samples() []int16 {
	out := make([]int16, len(f.Data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(f.Data[i*2:]))
	}
	return out
}

// Duration returns the playback length of the frame. It returns zero when the
// format is unknown.
func (f AudioFrame) Duration() time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	samples := len(f.Data) / 2 / f.Channels
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// FrameFromSamples encodes int16 samples into a new frame.
func FrameFromSamples(samples []int16, sampleRate, channels int, ts time.Duration) AudioFrame {
	return AudioFrame{
		Data:       SamplesToBytes(samples),
		SampleRate: sampleRate,
		Channels:   channels,
		Timestamp:  ts,
	}
}
