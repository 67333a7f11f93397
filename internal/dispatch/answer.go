package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/vigil/internal/intent"
	"github.com/MrWong99/vigil/internal/observe"
	"github.com/MrWong99/vigil/pkg/provider/llm"
)

// DefaultAnswerPrompt instructs the model to answer briefly in plain spoken
// language.
const DefaultAnswerPrompt = "You are Vigil, a desktop voice assistant. Answer the user's question " +
	"in at most two short sentences of plain spoken English. Do not use lists, markdown, " +
	"or links. If you do not know the answer, say so."

// ErrEmptyAnswer is returned by [LLMAnswerer.Answer] when the model replied
// with no text.
var ErrEmptyAnswer = errors.New("dispatch: empty answer")

// searchReplies are spoken when a question is handed to the web browser.
var searchReplies = map[intent.Topic]string{
	intent.TopicPricing: "I'll search the web for pricing information.",
	intent.TopicCurrent: "I'll search the web for the latest information.",
	intent.TopicOpinion: "I'll search the web for reviews and opinions.",
	intent.TopicFactual: "I'll search the web for that.",
}

// ask answers a general question. Pricing, current-events and opinion
// questions go straight to a web search, personal questions are declined, and
// factual ones go to the answerer with a web search as the fallback.
func (d *Dispatcher) ask(ctx context.Context, question string) (string, error) {
	topic := intent.TopicOf(question)
	switch topic {
	case intent.TopicPersonal:
		return replyPersonal, nil
	case intent.TopicFactual:
		if d.answerer == nil {
			break
		}
		actx, cancel := context.WithTimeout(ctx, d.answerTimeout)
		answer, err := d.answerer.Answer(actx, question)
		cancel()
		if err == nil && strings.TrimSpace(answer) != "" {
			return strings.TrimSpace(answer), nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		observe.Logger(ctx).Warn("dispatch: answer failed, searching instead", "question", question, "err", err)
	}

	if err := d.act(ctx, func(ctx context.Context) error { return d.exec.Search(ctx, question) }); err != nil {
		return "", err
	}
	return searchReplies[topic], nil
}

// LLMAnswerer answers questions with an [llm.Provider].
type LLMAnswerer struct {
	provider  llm.Provider
	prompt    string
	maxTokens int
	metrics   *observe.Metrics
}

// AnswererOption configures an [LLMAnswerer].
type AnswererOption func(*LLMAnswerer)

// WithPrompt replaces [DefaultAnswerPrompt].
func WithPrompt(prompt string) AnswererOption {
	return func(a *LLMAnswerer) {
		if prompt != "" {
			a.prompt = prompt
		}
	}
}

// WithMaxTokens caps the reply length. Default: 120.
func WithMaxTokens(n int) AnswererOption {
	return func(a *LLMAnswerer) {
		a.maxTokens = n
	}
}

// WithAnswerMetrics sets the metrics sink. Default: [observe.DefaultMetrics].
func WithAnswerMetrics(m *observe.Metrics) AnswererOption {
	return func(a *LLMAnswerer) {
		a.metrics = m
	}
}

// NewLLMAnswerer creates an [LLMAnswerer] backed by p.
func NewLLMAnswerer(p llm.Provider, opts ...AnswererOption) *LLMAnswerer {
	a := &LLMAnswerer{provider: p, prompt: DefaultAnswerPrompt, maxTokens: 120}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	return a
}

// Answer sends question to the model and returns its reply.
func (a *LLMAnswerer) Answer(ctx context.Context, question string) (string, error) {
	ctx, span := observe.StartSpan(ctx, "dispatch.answer")
	defer span.End()

	start := time.Now()
	resp, err := a.provider.Complete(ctx, llm.Request{
		SystemPrompt: a.prompt,
		Messages:     []llm.Message{{Role: llm.RoleUser, Content: question}},
		MaxTokens:    a.maxTokens,
	})
	a.metrics.LLMDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(observe.Attr("model", a.provider.Model())))
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("dispatch: answer: %w", err)
	}
	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", ErrEmptyAnswer
	}
	return text, nil
}
