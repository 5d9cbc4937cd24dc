package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/velvetlist/concierge/internal/adapter/llm"
	"github.com/velvetlist/concierge/internal/config"
	"github.com/velvetlist/concierge/internal/domain"
	store "github.com/velvetlist/concierge/internal/repository"
	"github.com/velvetlist/concierge/internal/tools"
	"github.com/velvetlist/concierge/policy"
	"github.com/velvetlist/concierge/tests/helpers"
)

func newTestService(t *testing.T, mock llm.ChatClient) (*Service, *store.SQLiteStore) {
	t.Helper()
	db := helpers.NewTestSQLiteStore(t)
	registry := tools.NewConciergeRegistry(db)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	cfg := &config.Config{
		LLMModel:        "test-model",
		SystemPrompt:    config.DefaultSystemPrompt,
		MaxModelCalls:   5,
		ModelTimeout:    time.Second,
		ToolTimeout:     time.Second,
		ModelRetryDelay: time.Millisecond,
		RequestTimeout:  5 * time.Second,
	}
	return New(db, mock, registry, cfg, engine), db
}

func toolCall(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:   id,
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      name,
			Arguments: args,
		},
	}
}

func TestProcessMessagePlainReply(t *testing.T) {
	mock := llm.NewMockClient().QueueText("Of course — what date did you have in mind?")
	svc, db := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "can you get me a table somewhere nice?")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.ConversationID == "" {
		t.Fatalf("expected conversation id")
	}
	if resp.Reply != "Of course — what date did you have in mind?" {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}

	messages, err := db.GetMessages(context.Background(), resp.ConversationID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages))
	}
	if messages[0].Role != domain.RoleUser || messages[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected roles: %+v", messages)
	}
}

func TestProcessMessageConversationIDIsStable(t *testing.T) {
	mock := llm.NewMockClient().QueueText("noted")
	svc, _ := newTestService(t, mock)

	first, err := svc.ProcessMessage(context.Background(), "u1", "", "hello")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	second, err := svc.ProcessMessage(context.Background(), "u1", first.ConversationID, "hello again")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if second.ConversationID != first.ConversationID {
		t.Fatalf("conversation id changed: %s vs %s", second.ConversationID, first.ConversationID)
	}
}

func TestProcessMessageRejectsForeignConversation(t *testing.T) {
	mock := llm.NewMockClient().QueueText("hi")
	svc, db := newTestService(t, mock)

	conv, err := db.CreateConversation(context.Background(), "someone_else")
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	_, err = svc.ProcessMessage(context.Background(), "u1", conv.ConversationID, "hello")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.KindOf(err) != domain.ErrKindNotFound {
		t.Fatalf("expected not_found, got %s", domain.KindOf(err))
	}
}

func TestProcessMessageBookingScenario(t *testing.T) {
	mock := llm.NewMockClient().
		QueueToolCalls(toolCall("call_1", "search_venues", `{"query":"Nobu"}`)).
		QueueToolCalls(toolCall("call_2", "check_availability",
			`{"venue_id":"ven_nobu","date":"2026-08-29","slot":"20:00","party_size":4}`)).
		QueueToolCalls(toolCall("call_3", "create_booking",
			`{"venue_id":"ven_nobu","date":"2026-08-29","slot":"20:00","party_size":4,"idempotency_key":"idem-nobu-1"}`)).
		QueueText("All set — table for 4 at Nobu tomorrow at 8pm. Your reference is in the booking confirmation.")
	svc, db := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "book me a table for 4 at Nobu tomorrow at 8pm")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(resp.Reply, "Nobu") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}

	seats, err := db.CountBookedSeats(context.Background(), "ven_nobu", "2026-08-29", "20:00")
	if err != nil {
		t.Fatalf("CountBookedSeats: %v", err)
	}
	if seats != 4 {
		t.Fatalf("expected 4 booked seats, got %d", seats)
	}

	// user, 3x (assistant tool request + tool result), final assistant.
	messages, err := db.GetMessages(context.Background(), resp.ConversationID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	if len(messages) != 8 {
		t.Fatalf("expected 8 messages, got %d", len(messages))
	}
	if messages[2].Role != domain.RoleTool || messages[2].ToolCallID != "call_1" {
		t.Fatalf("tool result not correlated: %+v", messages[2])
	}
	if !strings.Contains(messages[6].Content, "reference") {
		t.Fatalf("booking tool result missing reference: %s", messages[6].Content)
	}
}

func TestProcessMessageEscalationScenario(t *testing.T) {
	mock := llm.NewMockClient().
		QueueToolCalls(toolCall("call_1", "escalate_to_concierge",
			`{"category":"yacht_charter","summary":"member wants to charter a yacht"}`)).
		QueueText("A member of our concierge team will reach out shortly to arrange the yacht.")
	svc, db := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "charter a yacht for saturday")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if !strings.Contains(resp.Reply, "concierge team") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}

	escalations, err := db.ListEscalations(context.Background(), domain.EscalationStatusPending)
	if err != nil {
		t.Fatalf("ListEscalations: %v", err)
	}
	if len(escalations) != 1 || escalations[0].Category != "yacht_charter" {
		t.Fatalf("expected a pending yacht escalation, got %+v", escalations)
	}
}

func TestProcessMessageLoopBoundForcesFallback(t *testing.T) {
	// A pathological model that always wants another tool call.
	mock := llm.NewMockClient().
		QueueToolCalls(toolCall("call_x", "search_venues", `{"query":"anything"}`))
	svc, db := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "keep searching forever")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Reply != fallbackReply {
		t.Fatalf("expected fallback reply, got %q", resp.Reply)
	}
	if mock.CallCount != 5 {
		t.Fatalf("expected exactly 5 model calls, got %d", mock.CallCount)
	}

	escalations, err := db.ListEscalations(context.Background(), domain.EscalationStatusPending)
	if err != nil {
		t.Fatalf("ListEscalations: %v", err)
	}
	if len(escalations) != 1 || escalations[0].Category != "unresolved_request" {
		t.Fatalf("expected an unresolved_request escalation, got %+v", escalations)
	}
}

func TestProcessMessageToolErrorIsNotFatal(t *testing.T) {
	mock := llm.NewMockClient().
		QueueToolCalls(toolCall("call_1", "check_availability",
			`{"venue_id":"ven_unknown","date":"2026-08-29","slot":"20:00","party_size":2}`)).
		QueueText("I couldn't find that venue — could you tell me its name again?")
	svc, db := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "table at the usual place")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if mock.CallCount != 2 {
		t.Fatalf("expected 2 model calls, got %d", mock.CallCount)
	}
	if !strings.Contains(resp.Reply, "couldn't find") {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}

	messages, err := db.GetMessages(context.Background(), resp.ConversationID, 0, 0)
	if err != nil {
		t.Fatalf("GetMessages: %v", err)
	}
	// The tool result carries a structured error the model could read.
	if !strings.Contains(messages[2].Content, string(domain.ErrKindToolExecution)) {
		t.Fatalf("expected structured tool error, got %s", messages[2].Content)
	}
}

func TestProcessMessagePolicyEscalatesOversizedBooking(t *testing.T) {
	mock := llm.NewMockClient().
		QueueToolCalls(toolCall("call_1", "create_booking",
			`{"venue_id":"ven_nobu","date":"2026-08-29","slot":"20:00","party_size":16}`)).
		QueueText("For a party that size our concierge team will arrange it personally — they've been notified.")
	svc, db := newTestService(t, mock)

	_, err := svc.ProcessMessage(context.Background(), "u1", "", "book Nobu for 16 people")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}

	seats, err := db.CountBookedSeats(context.Background(), "ven_nobu", "2026-08-29", "20:00")
	if err != nil {
		t.Fatalf("CountBookedSeats: %v", err)
	}
	if seats != 0 {
		t.Fatalf("oversized booking must not be created, got %d seats", seats)
	}

	escalations, err := db.ListEscalations(context.Background(), domain.EscalationStatusPending)
	if err != nil {
		t.Fatalf("ListEscalations: %v", err)
	}
	if len(escalations) != 1 {
		t.Fatalf("expected a policy escalation, got %+v", escalations)
	}
}

func TestProcessMessageModelRetrySucceeds(t *testing.T) {
	mock := llm.NewMockClient().
		QueueError(fmt.Errorf("connection reset")).
		QueueText("hello there")
	svc, _ := newTestService(t, mock)

	resp, err := svc.ProcessMessage(context.Background(), "u1", "", "hi")
	if err != nil {
		t.Fatalf("ProcessMessage: %v", err)
	}
	if resp.Reply != "hello there" {
		t.Fatalf("unexpected reply: %q", resp.Reply)
	}
	if mock.CallCount != 2 {
		t.Fatalf("expected retry, got %d calls", mock.CallCount)
	}
}

func TestProcessMessageModelFailureAfterRetry(t *testing.T) {
	mock := llm.NewMockClient().
		QueueError(fmt.Errorf("rate limited"))
	svc, _ := newTestService(t, mock)

	_, err := svc.ProcessMessage(context.Background(), "u1", "", "hi")
	if err == nil {
		t.Fatalf("expected error")
	}
	if domain.KindOf(err) != domain.ErrKindModel {
		t.Fatalf("expected model_error, got %s", domain.KindOf(err))
	}
	if mock.CallCount != 2 {
		t.Fatalf("expected exactly one retry, got %d calls", mock.CallCount)
	}
}
