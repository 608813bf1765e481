// Package workflow defines the persisted representation of a browser workflow:
// ordered steps, declared variables, and metadata.
package workflow

import "fmt"

// StepKind discriminates the step variants.
type StepKind string

// Step kind constants.
const (
	KindAction     StepKind = "action"
	KindExtraction StepKind = "extraction"
	KindAgent      StepKind = "agent"
)

// ActionKind identifies a concrete, deterministic browser action.
type ActionKind string

// Action kind constants. These mirror the event kinds produced by recorders
// and agent traces.
const (
	ActionNavigate ActionKind = "navigation"
	ActionClick    ActionKind = "click"
	ActionInput    ActionKind = "input"
	ActionSelect   ActionKind = "select_change"
	ActionKeyPress ActionKind = "key_press"
	ActionScroll   ActionKind = "scroll"
)

// IsKnownAction reports whether kind is a supported deterministic action.
func IsKnownAction(kind ActionKind) bool {
	switch kind {
	case ActionNavigate, ActionClick, ActionInput, ActionSelect, ActionKeyPress, ActionScroll:
		return true
	}
	return false
}

// Target identifies the element a step operates on. A target may carry
// several addressing strategies; executors pick the strongest one available.
type Target struct {
	CSS         string `json:"cssSelector,omitempty"`
	XPath       string `json:"xpath,omitempty"`
	Text        string `json:"text,omitempty"`
	ElementTag  string `json:"elementTag,omitempty"`
	ElementHash string `json:"elementHash,omitempty"` // stable semantic identity
}

// IsEmpty returns true if no addressing strategy is set.
func (t Target) IsEmpty() bool {
	return t.CSS == "" && t.XPath == "" && t.Text == "" && t.ElementHash == ""
}

// Describe returns a human-readable description of the target.
func (t Target) Describe() string {
	switch {
	case t.Text != "":
		return "\"" + t.Text + "\""
	case t.CSS != "":
		return "css=" + t.CSS
	case t.XPath != "":
		return "xpath=" + t.XPath
	case t.ElementHash != "":
		return "element#" + t.ElementHash
	default:
		return ""
	}
}

// Step is the interface for all workflow steps. A step's index is its stable
// position in the definition, used for resumption and healing reference.
type Step interface {
	Kind() StepKind
	Index() int
	Describe() string
}

// BaseStep contains fields common to all step variants.
type BaseStep struct {
	StepIndex   int    `json:"index"`
	Description string `json:"description,omitempty"`
}

// Index returns the step's position in the definition.
func (b *BaseStep) Index() int { return b.StepIndex }

// ActionStep is a concrete, deterministic browser action. Value is an
// argument template and may reference declared variables as ${name}.
type ActionStep struct {
	BaseStep
	Action ActionKind `json:"action"`
	Target Target     `json:"target,omitempty"`
	Value  string     `json:"value,omitempty"`
}

// Kind returns KindAction.
func (s *ActionStep) Kind() StepKind { return KindAction }

// Describe returns a human-readable description of the action.
func (s *ActionStep) Describe() string {
	switch s.Action {
	case ActionNavigate:
		return fmt.Sprintf("navigate: %s", s.Value)
	case ActionInput, ActionSelect, ActionKeyPress:
		return fmt.Sprintf("%s %s: %q", s.Action, s.Target.Describe(), s.Value)
	default:
		return fmt.Sprintf("%s: %s", s.Action, s.Target.Describe())
	}
}

// ExtractionStep reads page state into a named output, visible to later
// steps' templates under the output name.
type ExtractionStep struct {
	BaseStep
	Target Target `json:"target,omitempty"`
	Output string `json:"output"`
}

// Kind returns KindExtraction.
func (s *ExtractionStep) Kind() StepKind { return KindExtraction }

// Describe returns a human-readable description of the extraction.
func (s *ExtractionStep) Describe() string {
	return fmt.Sprintf("extract %s -> %s", s.Target.Describe(), s.Output)
}

// AgentStep delegates a natural-language sub-goal entirely to the agent
// runner. It is used when no reliable deterministic action could be derived.
type AgentStep struct {
	BaseStep
	Goal string `json:"goal"`
}

// Kind returns KindAgent.
func (s *AgentStep) Kind() StepKind { return KindAgent }

// Describe returns a human-readable description of the delegated goal.
func (s *AgentStep) Describe() string {
	return fmt.Sprintf("agent: %s", s.Goal)
}
