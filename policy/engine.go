// Package policy gates tool invocations: the decision whether a tool call is
// executed, handed to the human concierge desk, or refused outright.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.concierge_policy.decision"),
		rego.Module("concierge_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Evaluate checks the tool policy. Input is a map with keys tool_name,
// user_id and args. Returns the decision (allow, escalate, block).
func (e *Engine) Evaluate(ctx context.Context, input interface{}) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		// The policy document defines a default; an empty result set means
		// the query itself is broken, so fail closed.
		return "block", nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "block", nil
}

// DefaultPolicy is the default concierge tool policy. Bookings above the
// party-size cap and any venue-catalog miss go to the human desk.
const DefaultPolicy = `
package concierge_policy

default decision = "block"

known_tools := {
	"search_venues",
	"check_availability",
	"create_booking",
	"get_points_balance",
	"escalate_to_concierge",
}

decision = "allow" {
	known_tools[input.tool_name]
	not oversized_booking
}

# Parties above twelve need a human to arrange the room.
oversized_booking {
	input.tool_name == "create_booking"
	input.args.party_size > 12
}

decision = "escalate" {
	oversized_booking
}
`
