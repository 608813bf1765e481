// Package executor walks a workflow definition, binds variables, issues
// actions through the automation surface, and records per-step outcomes.
package executor

import (
	"time"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
)

// StepOutcome records the terminal state of one step.
type StepOutcome struct {
	Index          int                  `json:"index"`
	Status         core.StepStatus      `json:"status"`
	Err            *core.ExecutionError `json:"-"`
	Error          string               `json:"error,omitempty"`
	HealingInvoked bool                 `json:"healingInvoked"`
	Output         string               `json:"output,omitempty"` // extraction steps only
	Duration       time.Duration        `json:"duration"`
}

// ExecutionContext is the mutable state of one in-flight execution. It is
// owned exclusively by that execution and never shared across concurrent
// runs.
type ExecutionContext struct {
	RunID      string
	WorkflowID string

	// StepIndex is the index of the step currently executing.
	StepIndex int

	// Bindings maps variable name to the concrete value bound for this run,
	// rendered to its template form.
	Bindings map[string]string

	// Outputs accumulates extraction results, visible to later templates.
	Outputs map[string]string

	History       []StepOutcome
	HealingEvents []core.HealingEvent
}

// scope returns the names resolvable in templates at the current step:
// variable bindings plus outputs extracted so far.
func (ec *ExecutionContext) scope() map[string]string {
	values := make(map[string]string, len(ec.Bindings)+len(ec.Outputs))
	for k, v := range ec.Bindings {
		values[k] = v
	}
	for k, v := range ec.Outputs {
		values[k] = v
	}
	return values
}

// RunResult is the terminal summary of one execution; it is all that
// outlives the ExecutionContext.
type RunResult struct {
	RunID      string               `json:"runId"`
	WorkflowID string               `json:"workflowId"`
	Status     core.RunStatus       `json:"status"`
	FailedStep int                  `json:"failedStep"` // -1 when no step failed
	Failure    *core.ExecutionError `json:"-"`
	Outcomes   []StepOutcome        `json:"outcomes"`
	Outputs    map[string]string    `json:"outputs,omitempty"`
	Healing    []core.HealingEvent  `json:"healing,omitempty"`
	Duration   time.Duration        `json:"duration"`
}

// Succeeded reports whether every step succeeded, directly or after healing.
func (r *RunResult) Succeeded() bool {
	return r.Status == core.RunSucceeded
}
