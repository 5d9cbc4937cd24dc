// Package tools declares the concierge tool registry: typed, schema-validated
// adapters over the club's data gateway that the model can invoke.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/velvetlist/concierge/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

// ToolContext carries the authenticated caller's identity into a tool so the
// model can never act as another member.
type ToolContext struct {
	UserID         string
	ConversationID string
	RequestID      string
}

// Tool is a callable concierge function. Schema is a JSON Schema document for
// the tool's arguments; Description is fed verbatim to the model.
type Tool interface {
	Name() string
	Description() string
	Schema() map[string]interface{}
	Call(ctx context.Context, tctx ToolContext, args json.RawMessage) (json.RawMessage, error)
}

// Registry stores tools keyed by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]Tool),
	}
}

// Register adds a tool. Names are unique within a registry.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tool is required")
	}
	if t.Name() == "" {
		return fmt.Errorf("tool name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// MustRegister adds a tool or panics.
func (r *Registry) MustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// List returns the registered tools in stable name order.
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Execute validates args against the tool's schema and runs it under the
// given timeout. Schema violations come back as invalid_arguments so the
// orchestrator can feed them to the model instead of failing the request.
func (r *Registry) Execute(ctx context.Context, tctx ToolContext, name string, args json.RawMessage, timeout time.Duration) (json.RawMessage, error) {
	r.mu.RLock()
	t := r.tools[name]
	r.mu.RUnlock()
	if t == nil {
		return nil, domain.NewError(domain.ErrKindToolExecution, fmt.Sprintf("unknown tool: %s", name), nil)
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	if schema := t.Schema(); schema != nil {
		result, err := gojsonschema.Validate(
			gojsonschema.NewGoLoader(schema),
			gojsonschema.NewBytesLoader(args))
		if err != nil {
			return nil, domain.NewError(domain.ErrKindInvalidArguments, "arguments are not valid JSON", err)
		}
		if !result.Valid() {
			var problems []string
			for _, desc := range result.Errors() {
				problems = append(problems, desc.String())
			}
			return nil, domain.NewError(domain.ErrKindInvalidArguments, strings.Join(problems, "; "), nil)
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := t.Call(callCtx, tctx, args)
	if err != nil {
		var derr *domain.Error
		if errors.As(err, &derr) {
			return nil, err
		}
		return nil, domain.NewError(domain.ErrKindToolExecution, err.Error(), err)
	}
	return out, nil
}
