package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestExecutionError_IsMatchesByCode(t *testing.T) {
	derived := ErrElementNotReady.WithMessage("no match for css=#x").WithDetails(map[string]any{"step": 3})
	if !errors.Is(derived, ErrElementNotReady) {
		t.Error("derived error should match its predefined error")
	}
	if errors.Is(derived, ErrTimeout) {
		t.Error("derived error must not match a different code")
	}
}

func TestExecutionError_Healable(t *testing.T) {
	healable := []*ExecutionError{ErrElementNotReady, ErrTimeout, ErrActionRejected}
	for _, e := range healable {
		if !e.Healable() {
			t.Errorf("%s should be healable", e.Code)
		}
	}
	fatal := []*ExecutionError{ErrSchema, ErrMissingVariable, ErrTemplate, ErrUnmappableAction, ErrAgentExecution, ErrSynthesis}
	for _, e := range fatal {
		if e.Healable() {
			t.Errorf("%s must not be healable", e.Code)
		}
	}
}

func TestExecutionError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("connection reset")
	err := ErrActionRejected.WithCause(cause)
	if !errors.Is(err, cause) {
		t.Error("cause should be reachable through Unwrap")
	}
	if err.Error() == cause.Error() {
		t.Error("message should wrap, not replace")
	}
}

func TestExecutionError_DerivationDoesNotMutate(t *testing.T) {
	before := ErrTimeout.Message
	_ = ErrTimeout.WithMessage("replay cancelled")
	if ErrTimeout.Message != before {
		t.Error("WithMessage must copy, not mutate the predefined error")
	}
}

func TestAsExecutionError(t *testing.T) {
	inner := ErrElementNotReady.WithMessage("wrapped")
	wrapped := fmt.Errorf("attempt 3: %w", inner)
	got := AsExecutionError(wrapped, ErrActionRejected)
	if got.Code != "element_not_ready" {
		t.Errorf("Code = %q", got.Code)
	}

	plain := fmt.Errorf("socket closed")
	got = AsExecutionError(plain, ErrActionRejected)
	if got.Code != "action_rejected" {
		t.Errorf("fallback Code = %q", got.Code)
	}
	if !errors.Is(got, plain) {
		t.Error("fallback should carry the original as cause")
	}
}
