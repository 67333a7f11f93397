// Package openai provides a TTS provider backed by the OpenAI speech endpoint.
//
// The endpoint is not incremental: every text fragment received on the input
// channel becomes one request whose raw PCM body is streamed back in chunks.
package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/vigil/pkg/provider/tts"
)

const (
	defaultModel = "gpt-4o-mini-tts"
	// The speech endpoint always returns 24kHz 16-bit mono for the "pcm" format.
	pcmSampleRate = 24000
	chunkSize     = 4800
)

var _ tts.Provider = (*Provider)(nil)

// builtinVoices lists the voices the speech endpoint accepts.
var builtinVoices = []string{"alloy", "ash", "ballad", "coral", "echo", "fable", "nova", "onyx", "sage", "shimmer", "verse"}

// Provider implements tts.Provider using the OpenAI speech API.
type Provider struct {
	client oai.Client
	model  string
}

type config struct {
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new OpenAI TTS Provider. An empty model selects
// gpt-4o-mini-tts.
func New(apiKey, model string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: apiKey must not be empty")
	}
	if model == "" {
		model = defaultModel
	}
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}
	return &Provider{client: oai.NewClient(reqOpts...), model: model}, nil
}

// SampleRate implements tts.Provider.
func (p *Provider) SampleRate() int { return pcmSampleRate }

// SynthesizeStream implements tts.Provider.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice tts.VoiceProfile) (<-chan []byte, error) {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = "alloy"
	}
	out := make(chan []byte, 64)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case fragment, ok := <-text:
				if !ok {
					return
				}
				if strings.TrimSpace(fragment) == "" {
					continue
				}
				if err := p.synthesize(ctx, fragment, voiceID, voice.SpeedFactor, out); err != nil {
					slog.Warn("openai tts: synthesis failed", "err", err)
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *Provider) synthesize(ctx context.Context, text, voice string, speed float64, out chan<- []byte) error {
	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(p.model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if speed > 0 {
		params.Speed = param.NewOpt(speed)
	}

	resp, err := p.client.Audio.Speech.New(ctx, params)
	if err != nil {
		return fmt.Errorf("openai tts: request: %w", err)
	}
	defer resp.Body.Close()
	return streamBody(ctx, resp.Body, out)
}

// streamBody copies r to out in sample-aligned chunks.
func streamBody(ctx context.Context, r io.Reader, out chan<- []byte) error {
	var carry []byte
	buf := make([]byte, chunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			data := append(carry, buf[:n]...)
			aligned := len(data) &^ 1
			carry = append([]byte(nil), data[aligned:]...)
			if aligned > 0 {
				chunk := make([]byte, aligned)
				copy(chunk, data[:aligned])
				select {
				case out <- chunk:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai tts: read body: %w", err)
		}
	}
}

// ListVoices implements tts.Provider. The speech endpoint has a fixed voice set.
func (p *Provider) ListVoices(_ context.Context) ([]tts.VoiceProfile, error) {
	out := make([]tts.VoiceProfile, 0, len(builtinVoices))
	for _, v := range builtinVoices {
		out = append(out, tts.VoiceProfile{ID: v, Name: v, Provider: "openai"})
	}
	return out, nil
}
