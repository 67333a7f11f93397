// Package interaction implements the WAKE/LISTEN loop that turns microphone
// audio into commands.
//
// A single capture stream feeds a [audio.BoundedChannel]. The [Machine]
// consumes it on one goroutine: in WAKE it runs the trigger-phrase detector,
// in LISTEN it runs the transcriber and hands final text to a [CommandSink].
// The stream is opened once and never reopened while the machine runs.
//
// Per-frame failures of the detector, transcriber, or sink are logged and
// skipped. Only a failure of the audio stream ends [Machine.Run].
package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/pkg/audio"
	"github.com/MrWong99/vigil/pkg/provider/stt"
	"github.com/MrWong99/vigil/pkg/provider/wakeword"
)

const (
	DefaultCommandTimeout      = 5 * time.Second
	DefaultConversationTimeout = 15 * time.Second
	DefaultReceiveTimeout      = 100 * time.Millisecond
)

// State is the machine's mode.
type State int32

const (
	// StateWake waits for a trigger phrase.
	StateWake State = iota
	// StateListen transcribes a command.
	StateListen
)

func (s State) String() string {
	switch s {
	case StateWake:
		return "wake"
	case StateListen:
		return "listen"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Result tells the machine what to do after a command was dispatched.
type Result int

const (
	// Continue keeps the conversation open for a follow-up command.
	Continue Result = iota
	// EndConversation returns the machine to WAKE.
	EndConversation
)

// CommandSink receives recognized command text.
type CommandSink interface {
	Dispatch(ctx context.Context, text string) (Result, error)
}

// Announcer is the part of the speech output the machine needs.
type Announcer interface {
	// IsSpeaking reports whether the assistant is currently audible.
	IsSpeaking() bool
	// Acknowledge queues the short cue played after a trigger phrase.
	Acknowledge()
}

// Option is a functional option for configuring a [Machine].
type Option func(*Machine)

// WithDetector sets the trigger-phrase detector. Without one the machine
// runs in always-listening mode.
func WithDetector(d wakeword.Detector) Option {
	return func(m *Machine) {
		m.detector = d
	}
}

// WithTimeouts sets the silence timeouts for a single command and for an
// ongoing conversation. Non-positive values keep the defaults.
func WithTimeouts(command, conversation time.Duration) Option {
	return func(m *Machine) {
		m.SetTimeouts(command, conversation)
	}
}

// WithReceiveTimeout bounds how long the loop waits for a frame before
// re-checking timeouts and shutdown. Default: 100ms.
func WithReceiveTimeout(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.receiveTimeout = d
		}
	}
}

// WithQueueCapacity sets the capture queue capacity in frames.
func WithQueueCapacity(n int) Option {
	return func(m *Machine) {
		m.queueCapacity = n
	}
}

// WithFormat sets the capture format used when no detector dictates one.
func WithFormat(f audio.Format) Option {
	return func(m *Machine) {
		m.format = f
	}
}

// WithPartialHandler registers fn to receive live partial transcripts. fn
// runs on the interaction goroutine and must not block.
func WithPartialHandler(fn func(text string)) Option {
	return func(m *Machine) {
		m.onPartial = fn
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

// WithMetrics records wake detections, dropped frames, and conversation
// state to met.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Machine) {
		m.metrics = met
	}
}

// Machine is the interaction state machine. Its conversation state is
// owned by the goroutine executing [Machine.Run]; only State and Ready may
// be called concurrently.
type Machine struct {
	source      audio.Source
	detector    wakeword.Detector
	transcriber stt.Transcriber
	announcer   Announcer
	sink        CommandSink

	commandTimeout      atomic.Int64
	conversationTimeout atomic.Int64
	receiveTimeout      time.Duration
	queueCapacity       int
	format              audio.Format
	onPartial           func(string)
	now                 func() time.Time
	metrics             *observe.Metrics

	ch *audio.BoundedChannel

	state          atomic.Int32
	ready          atomic.Bool
	inConversation bool
	lastSpeech     time.Time
	lastPartial    string
}

// New creates a Machine. transcriber, announcer, and sink are required.
func New(source audio.Source, transcriber stt.Transcriber, announcer Announcer, sink CommandSink, opts ...Option) (*Machine, error) {
	if source == nil || transcriber == nil || announcer == nil || sink == nil {
		return nil, errors.New("interaction: source, transcriber, announcer and sink are required")
	}
	m := &Machine{
		source:         source,
		transcriber:    transcriber,
		announcer:      announcer,
		sink:           sink,
		receiveTimeout: DefaultReceiveTimeout,
		format:         audio.Format{SampleRate: 16000, Channels: 1, FrameLength: 512},
		now:            time.Now,
	}
	m.SetTimeouts(DefaultCommandTimeout, DefaultConversationTimeout)
	for _, o := range opts {
		o(m)
	}
	if m.detector != nil {
		m.format = m.detector.Format()
	}
	m.ch = audio.NewBoundedChannel(m.queueCapacity)
	return m, nil
}

// SetTimeouts changes the silence timeouts for a single command and for an
// ongoing conversation. Non-positive values leave the current value. Safe to
// call while Run is active; the next timeout check uses the new values.
func (m *Machine) SetTimeouts(command, conversation time.Duration) {
	if command > 0 {
		m.commandTimeout.Store(int64(command))
	}
	if conversation > 0 {
		m.conversationTimeout.Store(int64(conversation))
	}
}

// State returns the current mode. Safe for concurrent use.
func (m *Machine) State() State { return State(m.state.Load()) }

// Ready reports whether the capture stream is open. Safe for concurrent use.
func (m *Machine) Ready() bool { return m.ready.Load() }

// Run opens the capture stream and processes audio until ctx is cancelled
// (returns nil) or the stream fails (returns the error). The stream is
// closed before Run returns.
func (m *Machine) Run(ctx context.Context) error {
	stream, err := m.source.Open(ctx, m.format, m.deliver)
	if err != nil {
		return fmt.Errorf("interaction: open audio stream: %w", err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("interaction: close audio stream", "err", err)
		}
	}()
	m.ready.Store(true)
	defer m.ready.Store(false)

	m.start()
	defer m.leaveConversation()
	slog.Info("interaction loop started",
		"state", m.State().String(),
		"always_listening", m.detector == nil,
		"sample_rate", m.format.SampleRate,
	)

	for {
		select {
		case err := <-stream.Err():
			slog.Error("interaction: audio stream failed", "err", err)
			return fmt.Errorf("interaction: audio stream: %w", err)
		case <-ctx.Done():
			return nil
		default:
		}

		frame, ok := m.ch.Receive(ctx, m.receiveTimeout)
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			m.idle()
			continue
		}
		m.handle(ctx, frame)
	}
}

// deliver is the capture callback. It never blocks.
func (m *Machine) deliver(frame audio.AudioFrame) {
	if !m.ch.Send(frame) && m.metrics != nil {
		m.metrics.FramesDropped.Add(context.Background(), 1)
	}
}

// start puts the machine in its initial state.
func (m *Machine) start() {
	if m.detector == nil {
		m.enterListen(false)
		return
	}
	m.setState(StateWake)
}

// handle processes one frame in the current state.
func (m *Machine) handle(ctx context.Context, frame audio.AudioFrame) {
	switch m.State() {
	case StateWake:
		m.handleWake(frame)
	case StateListen:
		m.handleListen(ctx, frame)
	}
}

// idle runs when no frame arrived within the receive timeout.
func (m *Machine) idle() {
	if m.State() == StateListen && m.listenExpired() {
		m.toWake()
	}
}

func (m *Machine) handleWake(frame audio.AudioFrame) {
	if m.announcer.IsSpeaking() {
		return
	}
	if m.detector == nil {
		m.enterListen(false)
		return
	}
	idx, err := m.detector.Process(frame)
	if err != nil {
		slog.Warn("interaction: wake word detector failed", "err", err)
		return
	}
	if idx < 0 {
		return
	}

	keyword := ""
	if kws := m.detector.Keywords(); idx < len(kws) {
		keyword = kws[idx]
	}
	slog.Info("wake word detected", "keyword", keyword)
	if m.metrics != nil {
		m.metrics.RecordWake(context.Background(), keyword)
	}

	m.announcer.Acknowledge()
	m.ch.Clear()
	m.enterListen(true)
}

func (m *Machine) handleListen(ctx context.Context, frame audio.AudioFrame) {
	if m.listenExpired() {
		m.toWake()
		return
	}
	// Our own speech must not be transcribed as a command.
	if m.announcer.IsSpeaking() {
		return
	}

	final, partial, err := m.transcriber.ProcessAudio(frame)
	if err != nil {
		slog.Warn("interaction: transcription failed", "err", err)
		return
	}

	if partial != "" && partial != m.lastPartial {
		m.lastPartial = partial
		m.lastSpeech = m.now()
		if m.onPartial != nil {
			m.onPartial(partial)
		}
	}
	if final == "" {
		return
	}

	m.lastPartial = ""
	slog.Info("command recognized", "text", final)
	result, err := m.sink.Dispatch(ctx, final)
	m.ch.Clear()
	if err != nil {
		slog.Warn("interaction: command dispatch failed", "text", final, "err", err)
	}
	if err == nil && result == EndConversation {
		m.toWake()
		return
	}
	m.lastSpeech = m.now()
}

// listenExpired reports whether the silence timeout of the current mode has
// passed.
func (m *Machine) listenExpired() bool {
	timeout := m.commandTimeout.Load()
	if m.inConversation {
		timeout = m.conversationTimeout.Load()
	}
	return m.now().Sub(m.lastSpeech) > time.Duration(timeout)
}

func (m *Machine) enterListen(conversation bool) {
	if conversation && !m.inConversation && m.metrics != nil {
		m.metrics.ConversationsActive.Add(context.Background(), 1)
	}
	m.inConversation = conversation
	m.lastSpeech = m.now()
	m.lastPartial = ""
	m.setState(StateListen)
}

// toWake ends the conversation. Without a detector the machine immediately
// listens again.
func (m *Machine) toWake() {
	slog.Debug("interaction: returning to wake", "conversation", m.inConversation)
	m.leaveConversation()
	m.lastPartial = ""
	if r, ok := m.transcriber.(stt.Resetter); ok {
		r.Reset()
	}
	m.setState(StateWake)
	if m.detector == nil {
		m.enterListen(false)
	}
}

func (m *Machine) leaveConversation() {
	if m.inConversation && m.metrics != nil {
		m.metrics.ConversationsActive.Add(context.Background(), -1)
	}
	m.inConversation = false
}

func (m *Machine) setState(s State) { m.state.Store(int32(s)) }
