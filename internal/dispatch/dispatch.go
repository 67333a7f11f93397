// Package dispatch turns recognized command text into host actions and spoken
// replies.
//
// A [Dispatcher] classifies the text with an [intent.Classifier], performs
// the action, and speaks one short reply at [speech.PriorityReply]. Failures
// are logged with detail and answered with a short apology; the user never
// hears an error string.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vigil/internal/intent"
	"github.com/MrWong99/vigil/internal/interaction"
	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/internal/speech"
	"github.com/MrWong99/vigil/internal/system"
)

const (
	defaultActionTimeout = 10 * time.Second
	defaultAnswerTimeout = 15 * time.Second

	timeLayout = "03:04 PM"
)

// Replies spoken by the dispatcher.
const (
	replyUnknown     = "I'm not sure how to do that yet."
	replyGoodbye     = "Goodbye."
	replyShutdown    = "Shutting down the system. Goodbye."
	replyRestart     = "Restarting the system."
	replyFailed      = "Sorry, that didn't work."
	replyUnsupported = "I can't do that on this device."
	replyPowerOff    = "Power actions are turned off in my settings."
	replyPersonal    = "I can only answer factual questions about topics, not personal questions."
)

var _ interaction.CommandSink = (*Dispatcher)(nil)

// Executor performs host actions. *system.Executor satisfies it.
type Executor interface {
	OpenApp(ctx context.Context, name string) error
	CloseApp(ctx context.Context, name string) error
	OpenURL(ctx context.Context, rawURL string) error
	Search(ctx context.Context, query string) error
	Shutdown(ctx context.Context) error
	Restart(ctx context.Context) error
	PowerActionsEnabled() bool
}

// Status answers questions about the host. *monitor.Monitor satisfies it.
type Status interface {
	StatusSummary(ctx context.Context) string
	TopMemoryProcess(ctx context.Context) string
}

// Speaker is the speech output. *speech.Announcer satisfies it.
type Speaker interface {
	Speak(ctx context.Context, text string, priority speech.Priority) error
	Stop()
}

// Answerer answers a general question in a sentence or two.
type Answerer interface {
	Answer(ctx context.Context, question string) (string, error)
}

// Option is a functional option for configuring a [Dispatcher].
type Option func(*Dispatcher)

// WithAnswerer sets the backend for general questions. Without one, factual
// questions fall back to a web search.
func WithAnswerer(a Answerer) Option {
	return func(d *Dispatcher) {
		d.answerer = a
	}
}

// WithClock overrides the clock used for the time reply and latency metrics.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

// WithMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithActionTimeout bounds each host action. Default: 10s.
func WithActionTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.actionTimeout = t
		}
	}
}

// WithAnswerTimeout bounds each call to the [Answerer]. Default: 15s.
func WithAnswerTimeout(t time.Duration) Option {
	return func(d *Dispatcher) {
		if t > 0 {
			d.answerTimeout = t
		}
	}
}

// Dispatcher implements [interaction.CommandSink]. It is safe for concurrent
// use, though the interaction loop calls it from one goroutine.
type Dispatcher struct {
	classifier *intent.Classifier
	exec       Executor
	status     Status
	speaker    Speaker
	answerer   Answerer

	now           func() time.Time
	metrics       *observe.Metrics
	actionTimeout time.Duration
	answerTimeout time.Duration
}

// New creates a Dispatcher. classifier, exec, status and speaker must be
// non-nil.
func New(classifier *intent.Classifier, exec Executor, status Status, speaker Speaker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		classifier:    classifier,
		exec:          exec,
		status:        status,
		speaker:       speaker,
		now:           time.Now,
		actionTimeout: defaultActionTimeout,
		answerTimeout: defaultAnswerTimeout,
	}
	for _, o := range opts {
		o(d)
	}
	if d.metrics == nil {
		d.metrics = observe.DefaultMetrics()
	}
	return d
}

// Dispatch classifies text, performs the action and speaks the reply. Action
// failures are spoken as an apology and do not produce an error; the returned
// error reports only a reply that could not be spoken.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) (interaction.Result, error) {
	start := d.now()
	act := d.classifier.Classify(text)
	action := act.Kind.String()

	ctx, span := observe.StartSpan(ctx, "dispatch.command")
	defer span.End()
	span.SetAttributes(attribute.String("vigil.action", action))

	reply, result, err := d.perform(ctx, act)
	status := "ok"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observe.Logger(ctx).Warn("dispatch: action failed", "action", action, "text", text, "err", err)
		reply = apology(err, act)
		result = interaction.Continue
	} else {
		observe.Logger(ctx).Info("dispatch: action done", "action", action)
	}

	d.metrics.RecordCommand(ctx, action, status)
	d.metrics.CommandDuration.Record(ctx, d.now().Sub(start).Seconds(),
		metric.WithAttributes(observe.Attr("action", action)))

	if err := d.say(ctx, reply); err != nil {
		return result, err
	}
	return result, nil
}

// perform runs act and returns the reply to speak.
func (d *Dispatcher) perform(ctx context.Context, act intent.Action) (string, interaction.Result, error) {
	switch act.Kind {
	case intent.KindTime:
		return "It is currently " + d.now().Format(timeLayout), interaction.Continue, nil

	case intent.KindStatus:
		return d.status.StatusSummary(ctx), interaction.Continue, nil

	case intent.KindTopProcess:
		return d.status.TopMemoryProcess(ctx), interaction.Continue, nil

	case intent.KindOpenApp, intent.KindCloseApp:
		if act.App == "" {
			return "", interaction.Continue, fmt.Errorf("dispatch: %q: %w", act.Target, system.ErrUnknownApp)
		}
		run, verb := d.exec.OpenApp, "Opening"
		if act.Kind == intent.KindCloseApp {
			run, verb = d.exec.CloseApp, "Closing"
		}
		if err := d.act(ctx, func(ctx context.Context) error { return run(ctx, act.App) }); err != nil {
			return "", interaction.Continue, err
		}
		return verb + " " + act.App + ".", interaction.Continue, nil

	case intent.KindOpenURL:
		if err := d.act(ctx, func(ctx context.Context) error { return d.exec.OpenURL(ctx, act.Target) }); err != nil {
			return "", interaction.Continue, err
		}
		return "Opening " + hostOf(act.Target) + ".", interaction.Continue, nil

	case intent.KindSearch:
		if err := d.act(ctx, func(ctx context.Context) error { return d.exec.Search(ctx, act.Target) }); err != nil {
			return "", interaction.Continue, err
		}
		return "Searching for " + act.Target + ".", interaction.Continue, nil

	case intent.KindShutdown:
		return d.power(ctx, replyShutdown, d.exec.Shutdown)

	case intent.KindRestart:
		return d.power(ctx, replyRestart, d.exec.Restart)

	case intent.KindGoodbye:
		return replyGoodbye, interaction.EndConversation, nil

	case intent.KindStopTalking:
		d.speaker.Stop()
		return "", interaction.Continue, nil

	case intent.KindAsk:
		reply, err := d.ask(ctx, act.Target)
		return reply, interaction.Continue, err

	default:
		return replyUnknown, interaction.Continue, nil
	}
}

// power announces a power action before running it, since the machine may be
// gone by the time a reply could be spoken.
func (d *Dispatcher) power(ctx context.Context, announce string, run func(context.Context) error) (string, interaction.Result, error) {
	if !d.exec.PowerActionsEnabled() {
		return "", interaction.Continue, system.ErrPowerActionsDisabled
	}
	if err := d.say(ctx, announce); err != nil {
		return "", interaction.Continue, err
	}
	if err := d.act(ctx, run); err != nil {
		return "", interaction.Continue, err
	}
	return "", interaction.EndConversation, nil
}

// act runs one host action bounded by the action timeout.
func (d *Dispatcher) act(ctx context.Context, run func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.actionTimeout)
	defer cancel()
	return run(ctx)
}

// say speaks text and waits for it. An interrupted reply is not an error.
func (d *Dispatcher) say(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}
	err := d.speaker.Speak(ctx, text, speech.PriorityReply)
	if err != nil && !errors.Is(err, speech.ErrInterrupted) {
		return fmt.Errorf("dispatch: speak reply: %w", err)
	}
	return nil
}

// apology maps an action error to the sentence spoken to the user.
func apology(err error, act intent.Action) string {
	switch {
	case errors.Is(err, system.ErrUnknownApp):
		name := act.App
		if name == "" {
			name = act.Target
		}
		return "I don't know an app called " + name + "."
	case errors.Is(err, system.ErrUnsupported):
		return replyUnsupported
	case errors.Is(err, system.ErrPowerActionsDisabled):
		return replyPowerOff
	default:
		return replyFailed
	}
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return rawURL
	}
	return u.Host
}
