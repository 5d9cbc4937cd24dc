// Package llm provides an abstraction for LLM API clients.
package llm

import "context"

// ChatClient defines the interface for LLM chat-completion operations.
type ChatClient interface {
	// CreateChatCompletion sends a chat completion request and returns the
	// model's reply, which may carry tool-call requests instead of text.
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
}

// Ensure Client implements ChatClient interface.
var _ ChatClient = (*Client)(nil)
