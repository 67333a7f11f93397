package portaudio

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

const defaultSinkBuffer = 1024

var _ audio.Sink = (*Sink)(nil)

// Sink plays mono int16 frames on the default output device. The output
// stream is opened at the sample rate of the first frame; later frames with a
// different rate are resampled to it.
type Sink struct {
	framesPerBuffer int
}

// NewSink creates a playback sink writing framesPerBuffer samples per device
// write. A non-positive value selects 1024.
func NewSink(framesPerBuffer int) *Sink {
	if framesPerBuffer <= 0 {
		framesPerBuffer = defaultSinkBuffer
	}
	return &Sink{framesPerBuffer: framesPerBuffer}
}

// Play opens the output device, writes every frame received on frames and
// closes the device again. Cancelling ctx aborts playback between writes.
func (s *Sink) Play(ctx context.Context, frames <-chan audio.AudioFrame) (err error) {
	var (
		first audio.AudioFrame
		ok    bool
	)
	select {
	case first, ok = <-frames:
		if !ok {
			return nil
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio: initialize: %w", err)
	}
	defer func() {
		if terr := portaudio.Terminate(); terr != nil && err == nil {
			err = fmt.Errorf("portaudio: terminate: %w", terr)
		}
	}()

	rate := first.SampleRate
	conv := &audio.FormatConverter{Target: audio.Format{SampleRate: rate, Channels: 1}}
	buf := make([]int16, s.framesPerBuffer)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(rate), len(buf), &buf)
	if err != nil {
		return fmt.Errorf("portaudio: open output stream: %w", err)
	}
	defer stream.Close()
	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio: start output stream: %w", err)
	}
	defer stream.Stop()

	var pending []int16
	write := func(final bool) error {
		for len(pending) >= len(buf) || (final && len(pending) > 0) {
			if err := ctx.Err(); err != nil {
				return err
			}
			n := fillBuffer(buf, pending)
			pending = pending[n:]
			if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
				return fmt.Errorf("portaudio: write: %w", err)
			}
		}
		return nil
	}

	pending = append(pending, conv.Convert(first).Samples()...)
	for {
		if err := write(false); err != nil {
			return err
		}
		select {
		case f, ok := <-frames:
			if !ok {
				return write(true)
			}
			pending = append(pending, conv.Convert(f).Samples()...)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// fillBuffer copies as many samples of src as fit into dst, zero-padding the
// remainder, and returns the number of samples consumed.
func fillBuffer(dst, src []int16) int {
	n := copy(dst, src)
	clear(dst[n:])
	return n
}
