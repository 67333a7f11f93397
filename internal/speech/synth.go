package speech

import (
	"context"
	"fmt"
	"time"

	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/tts"
)

var _ Voice = (*SynthVoice)(nil)

// SynthVoice speaks through a streaming TTS provider and plays the PCM on an
// audio sink.
type SynthVoice struct {
	provider tts.Provider
	profile  tts.VoiceProfile
	sink     audio.Sink
	name     string
	metrics  *observe.Metrics
}

// NewSynthVoice creates a voice using profile on provider. name identifies
// the provider in metrics; m may be nil.
func NewSynthVoice(provider tts.Provider, profile tts.VoiceProfile, sink audio.Sink, name string, m *observe.Metrics) *SynthVoice {
	return &SynthVoice{provider: provider, profile: profile, sink: sink, name: name, metrics: m}
}

// Say synthesizes text and blocks until the sink has played it.
func (v *SynthVoice) Say(ctx context.Context, text string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	pcm, err := v.provider.SynthesizeStream(ctx, textCh, v.profile)
	if err != nil {
		v.record(ctx, "error")
		return fmt.Errorf("speech: synthesize: %w", err)
	}
	v.record(ctx, "ok")

	rate := v.provider.SampleRate()
	frames := make(chan audio.AudioFrame)
	go func() {
		defer close(frames)
		var ts time.Duration
		for chunk := range pcm {
			f := audio.AudioFrame{Data: chunk, SampleRate: rate, Channels: 1, Timestamp: ts}
			ts += f.Duration()
			select {
			case frames <- f:
			case <-ctx.Done():
				audio.Drain(pcm)
				return
			}
		}
	}()

	if err := v.sink.Play(ctx, frames); err != nil {
		return fmt.Errorf("speech: play: %w", err)
	}
	return nil
}

func (v *SynthVoice) record(ctx context.Context, status string) {
	if v.metrics == nil {
		return
	}
	v.metrics.RecordProviderRequest(ctx, v.name, "tts", status)
	if status != "ok" {
		v.metrics.RecordProviderError(ctx, v.name, "tts")
	}
}
