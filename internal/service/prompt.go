package service

import (
	"encoding/json"
	"log"

	"github.com/velvetlist/concierge/internal/adapter/llm"
	"github.com/velvetlist/concierge/internal/domain"
)

// buildWireMessages converts the persisted conversation into the model's
// message format, system prompt first. Assistant tool-call requests and their
// tool results survive the round trip so follow-up turns keep full context.
func (s *Service) buildWireMessages(history []domain.Message) []llm.ChatMessage {
	wire := make([]llm.ChatMessage, 0, len(history)+1)
	wire = append(wire, llm.ChatMessage{Role: "system", Content: s.config.SystemPrompt})

	for _, msg := range history {
		cm := llm.ChatMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
		if len(msg.ToolCalls) > 0 {
			var calls []llm.ToolCall
			if err := json.Unmarshal(msg.ToolCalls, &calls); err != nil {
				log.Printf("WARN: failed to decode stored tool calls for %s: %v", msg.MessageID, err)
			} else {
				cm.ToolCalls = calls
			}
		}
		if msg.Role == domain.RoleTool {
			cm.ToolCallID = msg.ToolCallID
			cm.Name = msg.ToolName
		}
		wire = append(wire, cm)
	}
	return wire
}

// toolDefinitions renders the registry as function declarations for the model.
func (s *Service) toolDefinitions() []llm.Tool {
	list := s.registry.List()
	defs := make([]llm.Tool, 0, len(list))
	for _, t := range list {
		defs = append(defs, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Schema(),
			},
		})
	}
	return defs
}
