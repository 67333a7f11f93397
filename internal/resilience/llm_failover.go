package resilience

import (
	"context"

	"github.com/MrWong99/vigil/pkg/provider/llm"
)

var _ llm.Provider = (*LLMFailover)(nil)

// LLMFailover implements [llm.Provider] over a [Failover] of LLM backends.
type LLMFailover struct {
	*Failover[llm.Provider]
}

// NewLLMFailover creates an [LLMFailover] with primary as the preferred
// backend. cfg.Kind defaults to "llm".
func NewLLMFailover(primaryName string, primary llm.Provider, cfg FailoverConfig) *LLMFailover {
	if cfg.Kind == "" {
		cfg.Kind = "llm"
	}
	return &LLMFailover{NewFailover(primaryName, primary, cfg)}
}

// Complete sends req to the first healthy backend.
func (f *LLMFailover) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	return Call(ctx, f.Failover, func(ctx context.Context, p llm.Provider) (*llm.Response, error) {
		return p.Complete(ctx, req)
	})
}

// Model returns the primary backend's model name.
func (f *LLMFailover) Model() string { return f.Primary().Model() }
