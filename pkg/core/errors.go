package core

import (
	"errors"
	"fmt"
)

// ExecutionError is a structured error with a category and a machine-readable
// code. The category decides the healing policy: transient errors may be
// handed to the agent fallback, everything else is fatal.
type ExecutionError struct {
	Category ErrorCategory
	Code     string         // machine-readable: element_not_ready, timeout, etc.
	Message  string         // human-readable message
	Details  map[string]any // additional context
	Cause    error          // underlying error
}

// Error implements the error interface.
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Is matches predefined errors by code so errors.Is works on derived copies.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	return ok && t.Code == e.Code
}

// Healable reports whether the error indicates environment mismatch rather
// than a programming or validation defect, making it eligible for healing.
func (e *ExecutionError) Healable() bool {
	return e.Category == ErrCategoryTransient
}

// WithCause returns a copy of the error with the given cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details merged in.
func (e *ExecutionError) WithDetails(details map[string]any) *ExecutionError {
	merged := make(map[string]any)
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors covering the runner's failure taxonomy.
var (
	// Validation defects. Always fatal, never healed.
	ErrSchema = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "schema",
		Message:  "workflow definition failed validation",
	}
	ErrMissingVariable = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "missing_variable",
		Message:  "required variable has no binding",
	}
	ErrTemplate = &ExecutionError{
		Category: ErrCategoryValidation,
		Code:     "template",
		Message:  "argument template failed to render",
	}

	// Environment mismatch. Eligible for healing.
	ErrElementNotReady = &ExecutionError{
		Category: ErrCategoryTransient,
		Code:     "element_not_ready",
		Message:  "target element was not ready before the deadline",
	}
	ErrTimeout = &ExecutionError{
		Category: ErrCategoryTransient,
		Code:     "timeout",
		Message:  "operation timed out",
	}
	ErrActionRejected = &ExecutionError{
		Category: ErrCategoryTransient,
		Code:     "action_rejected",
		Message:  "automation surface rejected the action",
	}

	// Semantic replay. Fatal: there is no AI fallback in no-AI mode.
	ErrUnmappableAction = &ExecutionError{
		Category: ErrCategoryMapping,
		Code:     "unmappable_action",
		Message:  "step has no semantic counterpart",
	}

	// Agent and generation failures.
	ErrAgentExecution = &ExecutionError{
		Category: ErrCategoryAgent,
		Code:     "agent_execution",
		Message:  "agent run did not complete the task",
	}
	ErrSynthesis = &ExecutionError{
		Category: ErrCategorySynthesis,
		Code:     "synthesis",
		Message:  "trace could not be synthesized into a valid workflow",
	}
)

// NewExecutionError creates a new ExecutionError with the given parameters.
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// AsExecutionError extracts an *ExecutionError from err's chain, or wraps err
// in fallback if none is present.
func AsExecutionError(err error, fallback *ExecutionError) *ExecutionError {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee
	}
	return fallback.WithCause(err)
}
