// Package llm defines the Provider interface for language model backends.
//
// Vigil uses a model only to answer general questions that no built-in
// action covers, so the interface is a single blocking completion. Answers
// are spoken, which keeps them short enough that streaming buys nothing.
//
// Implementations must be safe for concurrent use.
package llm

import "context"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string
	Content string
}

// Usage holds token accounting returned by the backend.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Request carries everything the model needs to produce a reply. Messages
// must not be empty.
type Request struct {
	// SystemPrompt is sent ahead of Messages with the system role.
	SystemPrompt string
	Messages     []Message
	// Temperature of zero leaves the backend default.
	Temperature float64
	// MaxTokens of zero leaves the backend default.
	MaxTokens int
}

// Response is a completed reply.
type Response struct {
	Content string
	Usage   Usage
}

// Provider is the abstraction over any LLM backend.
type Provider interface {
	// Complete sends req and waits for the full reply. It returns promptly
	// when ctx is cancelled.
	Complete(ctx context.Context, req Request) (*Response, error)

	// Model returns the model name requests are sent to.
	Model() string
}
