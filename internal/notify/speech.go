package notify

import (
	"context"

	"github.com/MrWong99/vigil/internal/monitor"
	"github.com/MrWong99/vigil/internal/speech"
)

// Announcer queues speech without waiting. *speech.Announcer satisfies it.
type Announcer interface {
	Announce(text string, priority speech.Priority)
}

// SpeechSink speaks alerts. Alerts preempt suggestions but never a reply to
// the user.
type SpeechSink struct {
	announcer Announcer
}

// NewSpeechSink creates a [SpeechSink].
func NewSpeechSink(a Announcer) *SpeechSink {
	return &SpeechSink{announcer: a}
}

func (s *SpeechSink) Name() string { return "speech" }

// Send queues the alert message and returns immediately.
func (s *SpeechSink) Send(_ context.Context, a monitor.Alert) error {
	s.announcer.Announce(a.Message, Priority(a.Severity))
	return nil
}

// Priority maps an alert severity to a speech priority.
func Priority(sev monitor.Severity) speech.Priority {
	if sev == monitor.SeverityAlert {
		return speech.PriorityAlert
	}
	return speech.PrioritySuggestion
}
