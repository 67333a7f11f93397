// Package mock provides a test double for the notify.Sink interface.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/notify"
)

var _ notify.Sink = (*Sink)(nil)

// Sink is a mock implementation of notify.Sink.
type Sink struct {
	mu sync.Mutex

	// SinkName is returned by Name; empty means "mock".
	SinkName string

	// Err, if non-nil, is returned by Send.
	Err error

	// Block, if non-nil, makes Send wait until it is closed or ctx is done.
	Block chan struct{}

	alerts []monitor.Alert
}

func (s *Sink) Name() string {
	if s.SinkName == "" {
		return "mock"
	}
	return s.SinkName
}

// Send records a and returns Err.
func (s *Sink) Send(ctx context.Context, a monitor.Alert) error {
	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return s.Err
}

// Alerts returns a copy of the recorded alerts.
func (s *Sink) Alerts() []monitor.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]monitor.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
