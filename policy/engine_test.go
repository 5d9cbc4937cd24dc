package policy

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return e
}

func TestDecisionAllowsKnownTool(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), map[string]interface{}{
		"tool_name": "search_venues",
		"user_id":   "u1",
		"args":      map[string]interface{}{"query": "Nobu"},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "allow" {
		t.Fatalf("expected allow, got %s", decision)
	}
}

func TestDecisionBlocksUnknownTool(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), map[string]interface{}{
		"tool_name": "transfer_funds",
		"user_id":   "u1",
		"args":      map[string]interface{}{},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "block" {
		t.Fatalf("expected block, got %s", decision)
	}
}

func TestDecisionEscalatesOversizedBooking(t *testing.T) {
	e := newTestEngine(t)

	decision, err := e.Evaluate(context.Background(), map[string]interface{}{
		"tool_name": "create_booking",
		"user_id":   "u1",
		"args":      map[string]interface{}{"venue_id": "ven_nobu", "party_size": 16},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "escalate" {
		t.Fatalf("expected escalate, got %s", decision)
	}

	decision, err = e.Evaluate(context.Background(), map[string]interface{}{
		"tool_name": "create_booking",
		"user_id":   "u1",
		"args":      map[string]interface{}{"venue_id": "ven_nobu", "party_size": 4},
	})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if decision != "allow" {
		t.Fatalf("expected allow, got %s", decision)
	}
}
