// Package speech serializes everything Vigil says out loud.
//
// An [Announcer] owns the speaker: utterances are queued by [Priority] and
// played one at a time by a single dispatch goroutine. A higher-priority
// utterance preempts the one currently playing; the preempted utterance is
// put back in the queue and replayed from the start once the speaker is free,
// so alerts are never lost to a command reply. Acknowledgment cues are the
// exception: a preempted cue is dropped because it is stale by then.
//
// The announcer also owns the "is speaking" flag that the interaction loop
// reads to avoid transcribing the assistant's own voice. The flag stays set
// for a short tail after playback ends to cover device latency and room
// echo.
package speech

import (
	"container/heap"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrWong99/vigil/internal/observe"
)

// Priority orders queued utterances. Higher values play first.
type Priority int

const (
	// PrioritySuggestion is used for advisory alerts (energy saver, reboot).
	PrioritySuggestion Priority = 10
	// PriorityCue is used for the wake acknowledgment.
	PriorityCue Priority = 15
	// PriorityAlert is used for critical alerts (battery, memory).
	PriorityAlert Priority = 20
	// PriorityReply is used for answers to the user's commands.
	PriorityReply Priority = 30
)

// String returns the lower-case priority name used in logs and metrics.
func (p Priority) String() string {
	switch p {
	case PrioritySuggestion:
		return "suggestion"
	case PriorityCue:
		return "cue"
	case PriorityAlert:
		return "alert"
	case PriorityReply:
		return "reply"
	default:
		return "custom"
	}
}

const (
	defaultTail = 300 * time.Millisecond
	queueCap    = 16
)

// ErrInterrupted is returned by [Announcer.Speak] when the utterance was
// discarded by [Announcer.Stop], by [Announcer.Close], or (for cues) by
// preemption.
var ErrInterrupted = errors.New("speech: interrupted")

// Voice turns text into audible speech. Say blocks until the text has been
// spoken or ctx is cancelled.
type Voice interface {
	Say(ctx context.Context, text string) error
}

// SoundPlayer plays a sound file. PlaySound blocks until playback ends or ctx
// is cancelled.
type SoundPlayer interface {
	PlaySound(ctx context.Context, path string) error
}

// Option is a functional option for configuring an [Announcer].
type Option func(*Announcer)

// WithTail sets how long IsSpeaking keeps reporting true after playback.
// Default: 300ms.
func WithTail(d time.Duration) Option {
	return func(a *Announcer) {
		a.tail = d
	}
}

// WithCue configures the wake acknowledgment. When sound is non-empty and
// the voice implements [SoundPlayer] the file is played; otherwise phrase is
// spoken.
func WithCue(phrase, sound string) Option {
	return func(a *Announcer) {
		a.cuePhrase = phrase
		a.cueSound = sound
	}
}

// WithMetrics records utterance outcomes to m.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *Announcer) {
		a.metrics = m
	}
}

// WithClock replaces time.Now for the speaking tail.
func WithClock(now func() time.Time) Option {
	return func(a *Announcer) {
		a.now = now
	}
}

type utterance struct {
	text     string
	sound    string
	priority Priority
	seq      uint64
	done     chan error // buffered(1), receives the final outcome

	preempted bool // guarded by Announcer.mu
	abandoned bool // guarded by Announcer.mu; caller stopped waiting
}

// Announcer is the single owner of the speaker. All methods are safe for
// concurrent use.
type Announcer struct {
	voice   Voice
	tail    time.Duration
	now     func() time.Time
	metrics *observe.Metrics

	cuePhrase string
	cueSound  string

	mu            sync.Mutex
	queue         utteranceHeap
	seq           uint64
	current       *utterance
	cancelCurrent context.CancelFunc
	closed        bool

	speaking atomic.Bool
	quietAt  atomic.Int64 // unix nanos until which the tail keeps IsSpeaking true

	notify chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates an Announcer speaking through voice and starts its dispatch
// goroutine. Call [Announcer.Close] to stop it.
func New(voice Voice, opts ...Option) *Announcer {
	a := &Announcer{
		voice:     voice,
		tail:      defaultTail,
		now:       time.Now,
		cuePhrase: "Yes?",
		queue:     make(utteranceHeap, 0, queueCap),
		notify:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	for _, o := range opts {
		o(a)
	}
	heap.Init(&a.queue)
	a.wg.Add(1)
	go a.dispatch()
	return a
}

// Speak queues text at priority and blocks until it has been spoken, it was
// discarded ([ErrInterrupted]), or ctx is done. When ctx ends first the
// utterance is withdrawn.
func (a *Announcer) Speak(ctx context.Context, text string, priority Priority) error {
	if text == "" {
		return nil
	}
	u := a.enqueue(text, "", priority)
	if u == nil {
		return ErrInterrupted
	}
	select {
	case err := <-u.done:
		return err
	case <-ctx.Done():
		a.withdraw(u)
		return ctx.Err()
	}
}

// Announce queues text at priority without waiting.
func (a *Announcer) Announce(text string, priority Priority) {
	a.enqueue(text, "", priority)
}

// Acknowledge queues the wake acknowledgment cue without waiting.
func (a *Announcer) Acknowledge() {
	a.enqueue(a.cuePhrase, a.cueSound, PriorityCue)
}

// IsSpeaking reports whether audio is playing or played within the tail.
// Reads may be slightly stale.
func (a *Announcer) IsSpeaking() bool {
	if a.speaking.Load() {
		return true
	}
	return a.now().UnixNano() < a.quietAt.Load()
}

// Stop interrupts the current utterance and discards everything queued.
// Waiting Speak calls return [ErrInterrupted].
func (a *Announcer) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopLocked()
}

// Close stops playback, discards the queue, and waits for the dispatch
// goroutine to exit. Close is idempotent.
func (a *Announcer) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.stopLocked()
	a.mu.Unlock()

	close(a.done)
	a.wg.Wait()
	return nil
}

func (a *Announcer) enqueue(text, sound string, priority Priority) *utterance {
	if text == "" && sound == "" {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}

	a.seq++
	u := &utterance{
		text:     text,
		sound:    sound,
		priority: priority,
		seq:      a.seq,
		done:     make(chan error, 1),
	}
	heap.Push(&a.queue, u)

	if a.current != nil && priority > a.current.priority {
		slog.Debug("speech: preempting utterance",
			"current", a.current.priority.String(), "incoming", priority.String())
		a.current.preempted = true
		a.cancelCurrent()
	}

	select {
	case a.notify <- struct{}{}:
	default:
	}
	return u
}

// withdraw removes u from the queue or interrupts it if it is playing.
func (a *Announcer) withdraw(u *utterance) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u.abandoned = true
	if a.current == u {
		a.cancelCurrent()
		return
	}
	for i, q := range a.queue {
		if q == u {
			heap.Remove(&a.queue, i)
			return
		}
	}
}

func (a *Announcer) stopLocked() {
	if a.current != nil {
		a.current.abandoned = true
		a.cancelCurrent()
	}
	for a.queue.Len() > 0 {
		u := heap.Pop(&a.queue).(*utterance)
		a.finish(u, ErrInterrupted, "interrupted")
	}
}

// finish delivers the outcome of u. Must be called with a.mu held.
func (a *Announcer) finish(u *utterance, err error, outcome string) {
	if a.metrics != nil {
		a.metrics.RecordUtterance(context.Background(), u.priority.String(), outcome)
	}
	u.done <- err
}

func (a *Announcer) dispatch() {
	defer a.wg.Done()
	for {
		select {
		case <-a.done:
			return
		case <-a.notify:
		}

		for {
			u, ctx, ok := a.dequeue()
			if !ok {
				break
			}
			start := a.now()
			err := a.play(ctx, u)
			elapsed := a.now().Sub(start)
			a.quietAt.Store(a.now().Add(a.tail).UnixNano())
			a.speaking.Store(false)
			a.settle(ctx, u, err, elapsed)
		}
	}
}

// dequeue pops the next utterance and marks it as playing.
func (a *Announcer) dequeue() (*utterance, context.Context, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.queue.Len() == 0 {
		return nil, nil, false
	}
	u := heap.Pop(&a.queue).(*utterance)
	u.preempted = false
	ctx, cancel := context.WithCancel(context.Background())
	a.current = u
	a.cancelCurrent = cancel
	a.speaking.Store(true)
	return u, ctx, true
}

func (a *Announcer) play(ctx context.Context, u *utterance) error {
	if u.sound != "" {
		if p, ok := a.voice.(SoundPlayer); ok {
			return p.PlaySound(ctx, u.sound)
		}
	}
	if u.text == "" {
		return nil
	}
	return a.voice.Say(ctx, u.text)
}

// settle records the outcome of a finished playback, re-queueing it when it
// was preempted.
func (a *Announcer) settle(ctx context.Context, u *utterance, err error, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cancelled := ctx.Err() != nil
	a.cancelCurrent()
	a.current = nil
	a.cancelCurrent = nil

	if a.metrics != nil {
		a.metrics.SpeechDuration.Record(context.Background(), elapsed.Seconds())
	}

	switch {
	case u.abandoned:
		a.finish(u, ErrInterrupted, "interrupted")
	case u.preempted && u.priority != PriorityCue && !a.closed:
		heap.Push(&a.queue, u)
		if a.metrics != nil {
			a.metrics.RecordUtterance(context.Background(), u.priority.String(), "preempted")
		}
	case u.preempted:
		a.finish(u, ErrInterrupted, "dropped")
	case err != nil && !cancelled:
		slog.Warn("speech: playback failed", "priority", u.priority.String(), "err", err)
		a.finish(u, err, "failed")
	default:
		a.finish(u, nil, "spoken")
	}
}
