// Package semantic maps deterministic workflow steps onto a remote
// environment that addresses elements by semantic identity rather than raw
// selectors. Used only for no-AI replay; an unmappable step is always fatal
// since there is by construction no agent fallback in this mode.
package semantic

import (
	"fmt"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Remote action names understood by a semantically-addressable session.
const (
	RemoteNavigate = "navigate"
	RemoteClick    = "click"
	RemoteFill     = "fill"
	RemoteSelect   = "select"
	RemotePress    = "press"
	RemoteScroll   = "scroll"
	RemoteRead     = "read"
)

// RemoteAction is the remote-native descriptor of one action: a verb, the
// element's stable semantic identity, and a concrete argument.
type RemoteAction struct {
	Name       string `json:"name"`
	ElementID  string `json:"elementId,omitempty"` // semantic element identity
	ElementTag string `json:"elementTag,omitempty"`
	Argument   string `json:"argument,omitempty"`
}

// Describe returns a human-readable description of the remote action.
func (a *RemoteAction) Describe() string {
	if a.ElementID != "" {
		return fmt.Sprintf("%s element#%s", a.Name, a.ElementID)
	}
	return fmt.Sprintf("%s %q", a.Name, a.Argument)
}

// MapAction resolves an action step's declared intent into the equivalent
// remote-native action. rendered is the step's argument with variables
// already substituted. It fails with an unmappable-action error when the
// step's target carries no semantic identity or the kind has no remote
// counterpart.
func MapAction(step *workflow.ActionStep, rendered string) (*RemoteAction, error) {
	name, needsElement, err := remoteName(step.Action)
	if err != nil {
		return nil, err
	}

	action := &RemoteAction{Name: name, Argument: rendered}
	if needsElement {
		if step.Target.ElementHash == "" {
			return nil, core.ErrUnmappableAction.WithMessage(
				fmt.Sprintf("step %d (%s) has no semantic element identity", step.Index(), step.Action))
		}
		action.ElementID = step.Target.ElementHash
		action.ElementTag = step.Target.ElementTag
	}
	return action, nil
}

// MapExtraction resolves an extraction step into a remote read.
func MapExtraction(step *workflow.ExtractionStep) (*RemoteAction, error) {
	if step.Target.ElementHash == "" {
		return nil, core.ErrUnmappableAction.WithMessage(
			fmt.Sprintf("step %d (extract %s) has no semantic element identity", step.Index(), step.Output))
	}
	return &RemoteAction{
		Name:       RemoteRead,
		ElementID:  step.Target.ElementHash,
		ElementTag: step.Target.ElementTag,
	}, nil
}

func remoteName(kind workflow.ActionKind) (name string, needsElement bool, err error) {
	switch kind {
	case workflow.ActionNavigate:
		return RemoteNavigate, false, nil
	case workflow.ActionClick:
		return RemoteClick, true, nil
	case workflow.ActionInput:
		return RemoteFill, true, nil
	case workflow.ActionSelect:
		return RemoteSelect, true, nil
	case workflow.ActionKeyPress:
		return RemotePress, true, nil
	case workflow.ActionScroll:
		return RemoteScroll, false, nil
	default:
		return "", false, core.ErrUnmappableAction.WithMessage(
			fmt.Sprintf("action kind %q has no remote counterpart", kind))
	}
}
