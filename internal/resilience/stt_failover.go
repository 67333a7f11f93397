package resilience

import (
	"context"

	"github.com/MrWong99/vigil/pkg/provider/stt"
)

var _ stt.Provider = (*STTFailover)(nil)

// STTFailover implements [stt.Provider] over a [Failover] of STT backends.
// Failover happens when a session is opened; a session that breaks later is
// not migrated.
type STTFailover struct {
	*Failover[stt.Provider]
}

// NewSTTFailover creates an [STTFailover] with primary as the preferred
// backend. cfg.Kind defaults to "stt".
func NewSTTFailover(primaryName string, primary stt.Provider, cfg FailoverConfig) *STTFailover {
	if cfg.Kind == "" {
		cfg.Kind = "stt"
	}
	return &STTFailover{NewFailover(primaryName, primary, cfg)}
}

// StartStream opens a session on the first backend that accepts one.
func (f *STTFailover) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return Call(ctx, f.Failover, func(ctx context.Context, p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
