// Package mock provides test doubles for the collaborators of
// interaction.Machine.
package mock

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/MrWong99/vigil/internal/interaction"
)

var (
	_ interaction.Announcer   = (*Announcer)(nil)
	_ interaction.CommandSink = (*CommandSink)(nil)
)

// Announcer is a mock interaction.Announcer.
type Announcer struct {
	// Speaking is returned by IsSpeaking.
	Speaking atomic.Bool

	acks atomic.Int64
}

// IsSpeaking returns Speaking.
func (a *Announcer) IsSpeaking() bool { return a.Speaking.Load() }

// Acknowledge records the call.
func (a *Announcer) Acknowledge() { a.acks.Add(1) }

// Acks returns the number of Acknowledge calls.
func (a *Announcer) Acks() int { return int(a.acks.Load()) }

// CommandSink is a mock interaction.CommandSink. Results maps command text
// to the result returned for it; unknown text yields Continue.
type CommandSink struct {
	mu sync.Mutex

	Results map[string]interaction.Result
	Err     error

	// Commands records every dispatched text in order.
	Commands []string

	// OnDispatch, if set, runs inside Dispatch before it returns.
	OnDispatch func(text string)
}

// Dispatch records text and returns the scripted result.
func (s *CommandSink) Dispatch(_ context.Context, text string) (interaction.Result, error) {
	s.mu.Lock()
	s.Commands = append(s.Commands, text)
	res, err, hook := s.Results[text], s.Err, s.OnDispatch
	s.mu.Unlock()
	if hook != nil {
		hook(text)
	}
	return res, err
}

// Dispatched returns a copy of the recorded commands.
func (s *CommandSink) Dispatched() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.Commands...)
}
