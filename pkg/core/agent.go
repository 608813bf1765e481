package core

import (
	"context"

	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// AgentAction is one concrete action from an agent's own log: what it did,
// where, and with which literal argument.
type AgentAction struct {
	Kind    workflow.ActionKind `json:"kind"`
	Target  workflow.Target     `json:"target,omitempty"`
	Value   string              `json:"value,omitempty"`
	PageURL string              `json:"pageUrl,omitempty"`
}

// AgentTrace is the ordered action log of one agent run. It is produced by
// the generation pipeline and discarded after synthesis; traces are never
// persisted.
type AgentTrace []AgentAction

// AgentFinalState is the agent's own verdict on its run.
type AgentFinalState string

// Agent final states.
const (
	AgentSucceeded AgentFinalState = "succeeded"
	AgentFailed    AgentFinalState = "failed"
)

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	Trace AgentTrace      `json:"trace"`
	Final AgentFinalState `json:"finalState"`
}

// AgentRunner delegates a natural-language goal to an autonomous LLM-driven
// agent inside a browser session. Consumed by the self-healing controller
// and by the generation pipeline; never implemented by the core itself.
type AgentRunner interface {
	Run(ctx context.Context, goal string, page *PageContext) (*AgentResult, error)
}

// HealingEvent records one agent fallback invocation: which step failed, why,
// the goal handed to the agent, and the outcome. Events are appended to the
// run history and never mutated after creation.
type HealingEvent struct {
	StepIndex   int        `json:"stepIndex"`
	FailureKind string     `json:"failureKind"` // code of the error that triggered healing
	Goal        string     `json:"goal"`
	Succeeded   bool       `json:"succeeded"`
	Trace       AgentTrace `json:"trace,omitempty"` // present on success
	Error       string     `json:"error,omitempty"` // present on failure
}
