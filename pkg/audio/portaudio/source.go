// Package portaudio implements audio.Source and audio.Sink on the host's
// input and output devices via PortAudio.
//
// Capture uses PortAudio's callback mode: the driver thread invokes the
// stream callback with one block of samples at a time, which is handed
// straight to the deliver function given to Open. Playback uses a blocking
// output stream.
//
// Every successful Open or Play call pairs portaudio.Initialize with
// portaudio.Terminate, so sources and sinks can be used independently.
package portaudio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

const defaultStallTimeout = 5 * time.Second

// ErrStalled is reported on the stream error channel when the driver stopped
// invoking the capture callback.
var ErrStalled = errors.New("portaudio: capture stalled")

var _ audio.Source = (*Source)(nil)

// SourceOption is a functional option for configuring a [Source].
type SourceOption func(*Source)

// WithStallTimeout sets how long the capture callback may stay silent before
// the stream is considered dead. Default: 5s.
func WithStallTimeout(d time.Duration) SourceOption {
	return func(s *Source) {
		s.stallTimeout = d
	}
}

// WithDevice selects the input device by name. An exact (case-insensitive)
// match wins over a substring match. Empty selects the system default.
func WithDevice(name string) SourceOption {
	return func(s *Source) {
		s.device = name
	}
}

// Source captures from an input device.
type Source struct {
	stallTimeout time.Duration
	device       string
}

// NewSource creates a capture source. Without [WithDevice] it uses the
// system's default input device.
func NewSource(opts ...SourceOption) *Source {
	s := &Source{stallTimeout: defaultStallTimeout}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Open starts a mono int16 capture stream. deliver runs on the PortAudio
// callback thread and must not block.
func (s *Source) Open(ctx context.Context, format audio.Format, deliver func(audio.AudioFrame)) (audio.Stream, error) {
	if format.SampleRate <= 0 || format.FrameLength <= 0 {
		return nil, fmt.Errorf("portaudio: invalid capture format %+v", format)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}

	cs := &captureStream{
		errCh: make(chan error, 1),
		done:  make(chan struct{}),
	}
	rate := format.SampleRate
	cs.lastCallback.Store(time.Now().UnixNano())

	var captured time.Duration
	callback := func(in []int16) {
		cs.lastCallback.Store(time.Now().UnixNano())
		frame := audio.FrameFromSamples(in, rate, 1, captured)
		captured += frame.Duration()
		deliver(frame)
	}

	stream, device, err := s.openStream(format, callback)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("portaudio: start input stream: %w", err)
	}
	cs.stream = stream

	slog.Info("audio capture started", "device", device, "sample_rate", rate, "frame_length", format.FrameLength)

	go cs.watch(ctx, s.stallTimeout)
	return cs, nil
}

// openStream opens a mono input stream on the configured device and returns
// the name of the device used.
func (s *Source) openStream(format audio.Format, callback func([]int16)) (*portaudio.Stream, string, error) {
	if s.device == "" {
		stream, err := portaudio.OpenDefaultStream(1, 0, float64(format.SampleRate), format.FrameLength, callback)
		return stream, "default", err
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, "", fmt.Errorf("list devices: %w", err)
	}
	dev, err := findInputDevice(devices, s.device)
	if err != nil {
		return nil, "", err
	}
	params := portaudio.LowLatencyParameters(dev, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(format.SampleRate)
	params.FramesPerBuffer = format.FrameLength
	stream, err := portaudio.OpenStream(params, callback)
	return stream, dev.Name, err
}

// findInputDevice returns the capture-capable device called name. An exact
// case-insensitive match is preferred over the first substring match.
func findInputDevice(devices []*portaudio.DeviceInfo, name string) (*portaudio.DeviceInfo, error) {
	want := strings.ToLower(name)
	var partial *portaudio.DeviceInfo
	for _, d := range devices {
		if d == nil || d.MaxInputChannels < 1 {
			continue
		}
		got := strings.ToLower(d.Name)
		if got == want {
			return d, nil
		}
		if partial == nil && strings.Contains(got, want) {
			partial = d
		}
	}
	if partial == nil {
		return nil, fmt.Errorf("no input device matches %q", name)
	}
	return partial, nil
}

// captureStream is an open PortAudio input stream. It implements audio.Stream.
type captureStream struct {
	stream       *portaudio.Stream
	lastCallback atomic.Int64

	errCh     chan error
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

func (c *captureStream) Err() <-chan error { return c.errCh }

// Close stops the stream and releases PortAudio.
func (c *captureStream) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		errs := []error{c.stream.Stop(), c.stream.Close(), portaudio.Terminate()}
		c.closeErr = errors.Join(errs...)
		if c.closeErr != nil {
			c.closeErr = fmt.Errorf("portaudio: close input stream: %w", c.closeErr)
		}
	})
	return c.closeErr
}

// watch reports a fatal error when the callback has not run for longer than
// timeout. A device that disappears leaves the stream open but silent.
func (c *captureStream) watch(ctx context.Context, timeout time.Duration) {
	if timeout <= 0 {
		return
	}
	ticker := time.NewTicker(timeout / 4)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if stalled(c.lastCallback.Load(), time.Now(), timeout) {
				c.fail(fmt.Errorf("%w: no audio for %s", ErrStalled, timeout))
				return
			}
		}
	}
}

func (c *captureStream) fail(err error) {
	select {
	case c.errCh <- err:
	default:
	}
}

// stalled reports whether more than timeout has passed since the last
// callback, given as Unix nanoseconds.
func stalled(last int64, now time.Time, timeout time.Duration) bool {
	return now.Sub(time.Unix(0, last)) > timeout
}
