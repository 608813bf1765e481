package core

// StepStatus represents the execution state of one step. Per step the
// machine is Pending -> Executing -> {Succeeded | Failed}; a Failed step of a
// healable kind transitions Healing -> {HealedSucceeded | HealedFailed}.
type StepStatus int

// Step statuses.
const (
	StatusPending StepStatus = iota
	StatusExecuting
	StatusSucceeded
	StatusFailed
	StatusHealing
	StatusHealedSucceeded
	StatusHealedFailed
	StatusSkipped // never reached because an earlier step aborted the run
)

// String returns the string representation of StepStatus.
func (s StepStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusExecuting:
		return "executing"
	case StatusSucceeded:
		return "succeeded"
	case StatusFailed:
		return "failed"
	case StatusHealing:
		return "healing"
	case StatusHealedSucceeded:
		return "healed_succeeded"
	case StatusHealedFailed:
		return "healed_failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsSuccess reports whether the step reached its goal, directly or through
// healing.
func (s StepStatus) IsSuccess() bool {
	return s == StatusSucceeded || s == StatusHealedSucceeded
}

// IsTerminal reports whether the status is a final state.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusHealedSucceeded, StatusHealedFailed, StatusSkipped:
		return true
	default:
		return false
	}
}

// RunStatus is the overall outcome of one workflow execution.
type RunStatus int

// Run statuses.
const (
	// RunSucceeded means every step succeeded, directly or after healing.
	RunSucceeded RunStatus = iota
	// RunFailed means a step failed fatally without a healing attempt.
	RunFailed
	// RunAborted means healing was attempted and failed, or the run was
	// cancelled.
	RunAborted
)

// String returns the string representation of RunStatus.
func (s RunStatus) String() string {
	switch s {
	case RunSucceeded:
		return "succeeded"
	case RunFailed:
		return "failed"
	case RunAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// ErrorCategory classifies a failure for the healing policy and reporting.
type ErrorCategory int

// Error categories.
const (
	ErrCategoryNone       ErrorCategory = iota
	ErrCategoryValidation               // schema, binding, template defects; fatal
	ErrCategoryTransient                // environment mismatch; healable
	ErrCategoryMapping                  // no semantic counterpart; fatal in no-AI mode
	ErrCategoryAgent                    // agent run failure
	ErrCategorySynthesis                // generation-time synthesis failure
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryValidation:
		return "validation"
	case ErrCategoryTransient:
		return "transient"
	case ErrCategoryMapping:
		return "mapping"
	case ErrCategoryAgent:
		return "agent"
	case ErrCategorySynthesis:
		return "synthesis"
	default:
		return "unknown"
	}
}
