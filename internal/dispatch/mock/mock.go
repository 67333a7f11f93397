// Package mock provides test doubles for the dispatch package interfaces.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vigil/internal/dispatch"
	"github.com/MrWong99/vigil/internal/speech"
)

var (
	_ dispatch.Executor = (*Executor)(nil)
	_ dispatch.Status   = (*Status)(nil)
	_ dispatch.Speaker  = (*Speaker)(nil)
	_ dispatch.Answerer = (*Answerer)(nil)
)

// Call records one Executor invocation. Arg is empty for power actions.
type Call struct {
	Method string
	Arg    string
}

// Executor is a mock implementation of dispatch.Executor.
type Executor struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by every action.
	Err error

	// PowerEnabled is returned by PowerActionsEnabled.
	PowerEnabled bool

	calls []Call
}

func (e *Executor) record(method, arg string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, Call{Method: method, Arg: arg})
	return e.Err
}

func (e *Executor) OpenApp(_ context.Context, name string) error  { return e.record("OpenApp", name) }
func (e *Executor) CloseApp(_ context.Context, name string) error { return e.record("CloseApp", name) }
func (e *Executor) OpenURL(_ context.Context, u string) error     { return e.record("OpenURL", u) }
func (e *Executor) Search(_ context.Context, q string) error      { return e.record("Search", q) }
func (e *Executor) Shutdown(context.Context) error                { return e.record("Shutdown", "") }
func (e *Executor) Restart(context.Context) error                 { return e.record("Restart", "") }

// PowerActionsEnabled returns PowerEnabled.
func (e *Executor) PowerActionsEnabled() bool { return e.PowerEnabled }

// Calls returns a copy of the recorded calls.
func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	copy(out, e.calls)
	return out
}

// Status is a mock implementation of dispatch.Status.
type Status struct {
	Summary string
	Top     string
}

func (s *Status) StatusSummary(context.Context) string    { return s.Summary }
func (s *Status) TopMemoryProcess(context.Context) string { return s.Top }

// Utterance is one recorded Speak call.
type Utterance struct {
	Text     string
	Priority speech.Priority
}

// Speaker is a mock implementation of dispatch.Speaker.
type Speaker struct {
	mu sync.Mutex

	// Err, if non-nil, is returned by Speak.
	Err error

	spoken []Utterance
	stops  int
}

// Speak records the utterance and returns Err.
func (s *Speaker) Speak(_ context.Context, text string, priority speech.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, Utterance{Text: text, Priority: priority})
	return s.Err
}

// Stop counts the call.
func (s *Speaker) Stop() {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
}

// Spoken returns a copy of the recorded utterances.
func (s *Speaker) Spoken() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Utterance, len(s.spoken))
	copy(out, s.spoken)
	return out
}

// Texts returns the text of every recorded utterance.
func (s *Speaker) Texts() []string {
	var out []string
	for _, u := range s.Spoken() {
		out = append(out, u.Text)
	}
	return out
}

// Stops returns the number of Stop calls.
func (s *Speaker) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// Answerer is a mock implementation of dispatch.Answerer.
type Answerer struct {
	mu sync.Mutex

	Reply string
	Err   error

	questions []string
}

// Answer records question and returns Reply, Err.
func (a *Answerer) Answer(_ context.Context, question string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.questions = append(a.questions, question)
	return a.Reply, a.Err
}

// Questions returns a copy of the recorded questions.
func (a *Answerer) Questions() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.questions...)
}
