// Package builder synthesizes a parameterized workflow definition from a
// single autonomous agent run: it captures the agent's action trace, decides
// which concrete values are caller-supplied parameters, and emits a
// definition that passes workflow validation.
package builder

import (
	"context"
	"strings"

	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// LiteralCandidate is one concrete value observed in a trace, offered to the
// classifier.
type LiteralCandidate struct {
	StepIndex int                 `json:"stepIndex"`
	Action    workflow.ActionKind `json:"action"`
	Value     string              `json:"value"`
}

// Classification is the classifier's verdict on one literal value: either a
// plausible caller-supplied parameter with a suggested role name, or a
// structural constant.
type Classification struct {
	Value     string `json:"value"`
	Parameter bool   `json:"parameter"`
	Role      string `json:"role,omitempty"`
}

// VariableExtractor classifies literal values from an agent trace. The
// production implementation is LLM-backed; tests substitute a deterministic
// fake. Role classification is a user-reviewable suggestion, not an oracle.
type VariableExtractor interface {
	Classify(ctx context.Context, task string, candidates []LiteralCandidate) ([]Classification, error)
}

// sanitizeRole turns a free-form role suggestion into a variable name:
// lowercase, underscores for separators, leading digit prefixed.
func sanitizeRole(role string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(role)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	name := strings.Trim(b.String(), "_")
	if name == "" {
		return ""
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "param_" + name
	}
	return name
}
