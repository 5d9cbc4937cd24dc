package llm

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockClient is a scripted ChatClient for testing. Responses are returned in
// the order they were queued; an exhausted script repeats its last entry so a
// pathological always-tools model can be simulated.
type MockClient struct {
	mu        sync.Mutex
	script    []scriptEntry
	pos       int
	CallCount int
	Requests  []*ChatCompletionRequest
}

type scriptEntry struct {
	message *ChatMessage
	err     error
}

// NewMockClient creates an empty scripted client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Ensure MockClient implements ChatClient interface.
var _ ChatClient = (*MockClient)(nil)

// QueueText queues a plain-text assistant reply.
func (m *MockClient) QueueText(content string) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{message: &ChatMessage{Role: "assistant", Content: content}})
	return m
}

// QueueToolCalls queues an assistant reply requesting the given tool calls.
func (m *MockClient) QueueToolCalls(calls ...ToolCall) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{message: &ChatMessage{Role: "assistant", ToolCalls: calls}})
	return m
}

// QueueError queues a transport-level failure.
func (m *MockClient) QueueError(err error) *MockClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, scriptEntry{err: err})
	return m
}

// CreateChatCompletion replays the next scripted entry.
func (m *MockClient) CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount++
	m.Requests = append(m.Requests, req)

	if len(m.script) == 0 {
		return nil, fmt.Errorf("mock client has no scripted responses")
	}
	entry := m.script[m.pos]
	if m.pos < len(m.script)-1 {
		m.pos++
	}
	if entry.err != nil {
		return nil, entry.err
	}

	finishReason := "stop"
	if len(entry.message.ToolCalls) > 0 {
		finishReason = "tool_calls"
	}
	return &ChatCompletionResponse{
		ID:      fmt.Sprintf("mock-chatcmpl-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      entry.message,
				FinishReason: finishReason,
			},
		},
		Usage: &Usage{PromptTokens: 10, CompletionTokens: 10, TotalTokens: 20},
	}, nil
}
