package llm

import (
	"context"
	"time"
)

// StreamFunc receives incremental text deltas during a streaming invocation.
// Returning an error stops the stream and fails the call.
type StreamFunc func(delta string) error

// Client is the language-model call abstraction consumed by the pipelines.
// Each provider implementation knows how to speak its own API; callers only
// see messages in and text (or a decoded structure) out.
type Client interface {
	// Name returns the client identifier (e.g. "anthropic:claude-3-5-haiku-latest").
	Name() string

	// Invoke sends the messages and returns the complete response.
	Invoke(ctx context.Context, msgs []Message) (*Response, error)

	// InvokeStream sends the messages, calling fn for each text delta as it
	// arrives, and returns the assembled response when the stream completes.
	InvokeStream(ctx context.Context, msgs []Message, fn StreamFunc) (*Response, error)

	// InvokeStructured sends the messages requesting a JSON response and
	// decodes it into out. A response that cannot be decoded into out fails
	// with ErrValidation.
	InvokeStructured(ctx context.Context, msgs []Message, out any) error
}

// Response represents a complete model response.
type Response struct {
	// Model that generated the response.
	Model string `json:"model"`

	// Text is the assistant's response text.
	Text string `json:"text"`

	// StopReason reports why generation stopped (e.g. "stop", "end_turn", "length").
	StopReason string `json:"stop_reason,omitempty"`

	// CreatedAt is the response timestamp.
	CreatedAt time.Time `json:"created_at,omitzero"`

	// Usage holds token counts when the provider reports them.
	Usage *Usage `json:"usage,omitempty"`
}

// Usage contains token counts for a model call.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}
