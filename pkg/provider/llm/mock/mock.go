// Package mock provides a test double for the llm.Provider interface.
//
// Example:
//
//	p := &mock.Provider{Response: &llm.Response{Content: "Paris."}}
//	resp, err := p.Complete(ctx, req)
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/vigil/pkg/provider/llm"
)

var _ llm.Provider = (*Provider)(nil)

// Provider is a mock implementation of llm.Provider. A nil Response with a
// nil Err yields an empty reply.
type Provider struct {
	mu sync.Mutex

	// Response and Err are returned by Complete.
	Response *llm.Response
	Err      error

	// ModelName is returned by Model.
	ModelName string

	// Requests records every request passed to Complete, in order.
	Requests []llm.Request
}

// Complete records req and returns Response, Err. It honours ctx
// cancellation.
func (p *Provider) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = append(p.Requests, req)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}
	if p.Response == nil {
		return &llm.Response{}, nil
	}
	r := *p.Response
	return &r, nil
}

// Model returns ModelName.
func (p *Provider) Model() string { return p.ModelName }

// Calls returns a copy of the recorded requests.
func (p *Provider) Calls() []llm.Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.Request, len(p.Requests))
	copy(out, p.Requests)
	return out
}
