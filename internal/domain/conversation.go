package domain

import (
	"encoding/json"
	"time"
)

// Conversation is an append-only exchange between one member and the concierge.
type Conversation struct {
	ConversationID string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Message is a single entry in a conversation. Seq is assigned by the store
// and is strictly increasing within a conversation. ToolCalls carries the
// assistant's tool-call requests; ToolCallID correlates a tool-role result
// back to the request that produced it.
type Message struct {
	MessageID      string          `json:"message_id"`
	ConversationID string          `json:"conversation_id"`
	Seq            int             `json:"seq"`
	Role           Role            `json:"role"`
	Content        string          `json:"content,omitempty"`
	ToolCalls      json.RawMessage `json:"tool_calls,omitempty"`
	ToolCallID     string          `json:"tool_call_id,omitempty"`
	ToolName       string          `json:"tool_name,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}
