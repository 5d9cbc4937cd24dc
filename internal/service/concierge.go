package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/velvetlist/concierge/internal/adapter/llm"
	"github.com/velvetlist/concierge/internal/domain"
	"github.com/velvetlist/concierge/internal/tools"
	"golang.org/x/sync/errgroup"
)

// fallbackReply is returned when the tool-call loop hits its bound. The
// promise is kept honest by filing a real escalation first.
const fallbackReply = "I wasn't able to finish arranging that myself, so I've escalated it to our concierge team — someone will follow up with you shortly."

// ProcessMessage runs one concierge turn: append the member's message, drive
// the bounded tool-call loop, persist everything, return the final reply.
// Request-shape validation happens at the HTTP boundary; this assumes the
// caller's identity is already authenticated.
func (s *Service) ProcessMessage(ctx context.Context, userID, conversationID, userMessage string) (*domain.ProcessMessageResponse, error) {
	conv, err := s.resolveConversation(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg := &domain.Message{
		ConversationID: conv.ConversationID,
		Role:           domain.RoleUser,
		Content:        userMessage,
	}
	if err := s.store.AppendMessage(ctx, userMsg); err != nil {
		return nil, domain.NewError(domain.ErrKindStorage, "failed to persist message", err)
	}

	history, err := s.store.GetMessages(ctx, conv.ConversationID, 0, 0)
	if err != nil {
		return nil, domain.NewError(domain.ErrKindStorage, "failed to load conversation", err)
	}

	wire := s.buildWireMessages(history)
	defs := s.toolDefinitions()
	tctx := tools.ToolContext{UserID: userID, ConversationID: conv.ConversationID}

	for call := 1; call <= s.config.MaxModelCalls; call++ {
		resp, err := s.completeWithRetry(ctx, &llm.ChatCompletionRequest{
			Model:    s.config.LLMModel,
			Messages: wire,
			Tools:    defs,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, domain.NewError(domain.ErrKindTimeout, "request deadline exceeded", err)
			}
			return nil, domain.NewError(domain.ErrKindModel, "model call failed", err)
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message == nil {
			return nil, domain.NewError(domain.ErrKindModel, "model returned no choices", nil)
		}
		assistant := resp.Choices[0].Message

		if len(assistant.ToolCalls) == 0 {
			// FINAL_ANSWER
			final := &domain.Message{
				ConversationID: conv.ConversationID,
				Role:           domain.RoleAssistant,
				Content:        assistant.Content,
			}
			if err := s.store.AppendMessage(ctx, final); err != nil {
				return nil, domain.NewError(domain.ErrKindStorage, "failed to persist reply", err)
			}
			return &domain.ProcessMessageResponse{
				ConversationID: conv.ConversationID,
				Reply:          assistant.Content,
			}, nil
		}

		// EXECUTING_TOOLS
		callsJSON, _ := json.Marshal(assistant.ToolCalls)
		assistantMsg := &domain.Message{
			ConversationID: conv.ConversationID,
			Role:           domain.RoleAssistant,
			Content:        assistant.Content,
			ToolCalls:      callsJSON,
		}
		if err := s.store.AppendMessage(ctx, assistantMsg); err != nil {
			return nil, domain.NewError(domain.ErrKindStorage, "failed to persist tool requests", err)
		}
		wire = append(wire, llm.ChatMessage{
			Role:      "assistant",
			Content:   assistant.Content,
			ToolCalls: assistant.ToolCalls,
		})

		results, err := s.executeToolCalls(ctx, tctx, assistant.ToolCalls)
		if err != nil {
			return nil, err
		}
		for i, tc := range assistant.ToolCalls {
			toolMsg := &domain.Message{
				ConversationID: conv.ConversationID,
				Role:           domain.RoleTool,
				Content:        string(results[i]),
				ToolCallID:     tc.ID,
				ToolName:       tc.Function.Name,
			}
			if err := s.store.AppendMessage(ctx, toolMsg); err != nil {
				return nil, domain.NewError(domain.ErrKindStorage, "failed to persist tool result", err)
			}
			wire = append(wire, llm.ChatMessage{
				Role:       "tool",
				Content:    string(results[i]),
				ToolCallID: tc.ID,
				Name:       tc.Function.Name,
			})
		}
	}

	// Loop bound exhausted: escalate instead of looping forever.
	log.Printf("WARN: tool-call loop bound reached conversation=%s user=%s", conv.ConversationID, userID)
	esc := &domain.Escalation{
		UserID:         userID,
		ConversationID: conv.ConversationID,
		Category:       "unresolved_request",
		Summary:        truncate(userMessage, 200),
	}
	if err := s.store.CreateEscalation(ctx, esc); err != nil {
		log.Printf("ERROR: failed to record loop-bound escalation: %v", err)
	}
	final := &domain.Message{
		ConversationID: conv.ConversationID,
		Role:           domain.RoleAssistant,
		Content:        fallbackReply,
	}
	if err := s.store.AppendMessage(ctx, final); err != nil {
		return nil, domain.NewError(domain.ErrKindStorage, "failed to persist reply", err)
	}
	return &domain.ProcessMessageResponse{
		ConversationID: conv.ConversationID,
		Reply:          fallbackReply,
	}, nil
}

func (s *Service) resolveConversation(ctx context.Context, userID, conversationID string) (*domain.Conversation, error) {
	if conversationID == "" {
		conv, err := s.store.CreateConversation(ctx, userID)
		if err != nil {
			return nil, domain.NewError(domain.ErrKindStorage, "failed to create conversation", err)
		}
		return conv, nil
	}
	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, domain.NewError(domain.ErrKindStorage, "failed to load conversation", err)
	}
	if conv == nil {
		return nil, domain.NewError(domain.ErrKindNotFound, "conversation not found", nil)
	}
	if conv.UserID != userID {
		// Do not reveal whether the conversation exists.
		return nil, domain.NewError(domain.ErrKindNotFound, "conversation not found", nil)
	}
	return conv, nil
}

// completeWithRetry performs one model call with a per-call timeout, retrying
// exactly once with backoff on transient failure.
func (s *Service) completeWithRetry(ctx context.Context, req *llm.ChatCompletionRequest) (*llm.ChatCompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.config.ModelRetryDelay):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.config.ModelTimeout)
		start := time.Now()
		resp, err := s.llmClient.CreateChatCompletion(callCtx, req)
		cancel()
		if err == nil {
			log.Printf("INFO: model call ok latency_ms=%d", time.Since(start).Milliseconds())
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("WARN: model call failed (attempt %d): %v", attempt+1, err)
	}
	return nil, fmt.Errorf("model call failed after retry: %w", lastErr)
}

// executeToolCalls runs all tool calls from one model response concurrently
// and waits for every one of them — a barrier, not a pipeline. Individual
// tool failures become structured error payloads for the model; only context
// cancellation aborts the turn.
func (s *Service) executeToolCalls(ctx context.Context, tctx tools.ToolContext, calls []llm.ToolCall) ([]json.RawMessage, error) {
	results := make([]json.RawMessage, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = s.executeToolCall(gctx, tctx, call)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, domain.NewError(domain.ErrKindTimeout, "tool execution cancelled", err)
	}
	return results, nil
}

func (s *Service) executeToolCall(ctx context.Context, tc tools.ToolContext, call llm.ToolCall) json.RawMessage {
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)
	// The tool-call id doubles as the idempotency fallback for mutating tools.
	tc.RequestID = call.ID
	start := time.Now()

	decision, err := s.policyEngine.Evaluate(ctx, policyInput(name, tc.UserID, args))
	if err != nil {
		log.Printf("ERROR: policy evaluation failed tool=%s: %v", name, err)
		return toolErrorPayload(domain.ErrKindToolExecution, "policy evaluation failed")
	}

	switch domain.PolicyDecision(decision) {
	case domain.PolicyBlock:
		log.Printf("INFO: tool blocked by policy tool=%s user=%s", name, tc.UserID)
		return toolErrorPayload(domain.ErrKindPolicyBlocked, "this action is not permitted")
	case domain.PolicyEscalate:
		esc := &domain.Escalation{
			UserID:         tc.UserID,
			ConversationID: tc.ConversationID,
			Category:       "policy_" + name,
			Summary:        truncate(string(args), 200),
		}
		if err := s.store.CreateEscalation(ctx, esc); err != nil {
			log.Printf("ERROR: failed to record policy escalation: %v", err)
			return toolErrorPayload(domain.ErrKindToolExecution, "escalation failed")
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"escalation_id": esc.EscalationID,
			"status":        esc.Status,
			"note":          "this request needs the human concierge team; they have been notified and will follow up",
		})
		return payload
	}

	result, err := s.registry.Execute(ctx, tc, name, args, s.config.ToolTimeout)
	if err != nil {
		log.Printf("WARN: tool failed tool=%s latency_ms=%d: %v", name, time.Since(start).Milliseconds(), err)
		var derr *domain.Error
		if errors.As(err, &derr) {
			return toolErrorPayload(derr.Kind, derr.Message)
		}
		return toolErrorPayload(domain.ErrKindToolExecution, err.Error())
	}
	log.Printf("INFO: tool ok tool=%s latency_ms=%d", name, time.Since(start).Milliseconds())
	return result
}

func policyInput(toolName, userID string, args json.RawMessage) map[string]interface{} {
	input := map[string]interface{}{
		"tool_name": toolName,
		"user_id":   userID,
		"args":      map[string]interface{}{},
	}
	var argsMap map[string]interface{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &argsMap); err == nil {
			input["args"] = argsMap
		}
	}
	return input
}

// toolErrorPayload renders a tool failure as a structured result the model
// can read and recover from.
func toolErrorPayload(kind domain.ErrorKind, message string) json.RawMessage {
	payload, _ := json.Marshal(map[string]interface{}{
		"error": domain.ToolError{Code: string(kind), Message: message},
	})
	return payload
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
