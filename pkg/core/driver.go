// Package core defines the shared contracts of the workflow runner: the
// automation surface consumed by executors, the agent runner boundary, and
// the structured error and status types used across packages.
package core

import (
	"context"

	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// ActionDescriptor is a fully rendered browser action, ready to issue
// against a live session. Unlike workflow.ActionStep, Value carries a
// concrete argument, never a template.
type ActionDescriptor struct {
	Kind   workflow.ActionKind `json:"kind"`
	Target workflow.Target     `json:"target,omitempty"`
	Value  string              `json:"value,omitempty"`
}

// Describe returns a human-readable description of the action.
func (a ActionDescriptor) Describe() string {
	if a.Kind == workflow.ActionNavigate {
		return "navigate: " + a.Value
	}
	if a.Value != "" {
		return string(a.Kind) + " " + a.Target.Describe() + ": \"" + a.Value + "\""
	}
	return string(a.Kind) + ": " + a.Target.Describe()
}

// ExtractionDescriptor identifies page state to read.
type ExtractionDescriptor struct {
	Target workflow.Target `json:"target"`
}

// ActStatus is the automation surface's verdict on one action attempt.
type ActStatus int

// Act statuses.
const (
	// ActReady means the action was performed.
	ActReady ActStatus = iota
	// ActNotReady means the target is not yet actionable (still loading,
	// not present). The executor retries with backoff up to its deadline.
	ActNotReady
)

// ActResult is the outcome of one Act call.
type ActResult struct {
	Status  ActStatus
	Message string // detail for NotReady, e.g. "no match for css=#submit"
}

// PageContext is an observation of the current page, used to ground healing
// goals and agent delegation.
type PageContext struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// Driver is the automation surface: the capability to issue concrete browser
// actions and observe page state. One Driver models one browser session at a
// time; concurrent executions each own their own Driver.
//
// All methods honor ctx cancellation; remote implementations propagate it to
// the outstanding call best-effort.
type Driver interface {
	// OpenSession starts the browser session.
	OpenSession(ctx context.Context) error

	// CloseSession tears the session down.
	CloseSession(ctx context.Context) error

	// Act issues one action. A nil error with ActNotReady means the target
	// was not actionable yet; the caller decides whether to retry. A non-nil
	// error means the attempt itself failed.
	Act(ctx context.Context, action ActionDescriptor) (*ActResult, error)

	// Extract reads a value from the page.
	Extract(ctx context.Context, desc ExtractionDescriptor) (string, error)

	// PageContext observes the current page.
	PageContext(ctx context.Context) (*PageContext, error)
}
