package domain

import "context"

// Message is one turn of a chat-style generation request.
type Message struct {
	Role    string
	Content string
}

// LLMClient sends chat prompts to the text-generation provider.
type LLMClient interface {
	Generate(ctx context.Context, messages []Message, maxTokens int) (*LLMResponse, error)
	Version() string

	// Ping verifies the provider is reachable without generating.
	Ping(ctx context.Context) error
}

// LLMResponse carries the raw generation output and whether it finished.
type LLMResponse struct {
	Text string
	Done bool
}
