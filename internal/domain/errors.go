package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures at the HTTP boundary and inside the
// orchestration loop. Tool-level kinds never escape as HTTP errors; they are
// fed back to the model as tool results.
type ErrorKind string

const (
	ErrKindValidation  ErrorKind = "validation_error"
	ErrKindAuth        ErrorKind = "auth_error"
	ErrKindNotFound    ErrorKind = "not_found"
	ErrKindRateLimited ErrorKind = "rate_limited"
	ErrKindModel       ErrorKind = "model_error"
	ErrKindTimeout     ErrorKind = "timeout"
	ErrKindStorage     ErrorKind = "storage_error"
	ErrKindInternal    ErrorKind = "internal_error"

	// Tool-loop kinds, surfaced to the model rather than the client.
	ErrKindToolExecution    ErrorKind = "tool_execution_error"
	ErrKindInvalidArguments ErrorKind = "invalid_arguments"
	ErrKindPolicyBlocked    ErrorKind = "policy_blocked"
)

// Error is a kinded error used across service and transport layers.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a kinded error.
func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the kind from an error, defaulting to internal_error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindInternal
}

// ToolError is the structured error payload embedded in a tool result so the
// model can adapt (retry with corrected arguments, apologize, or escalate).
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
