package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Service is the generation pipeline: one agent run, parameter extraction,
// and synthesis of a workflow definition.
type Service struct {
	agent     core.AgentRunner
	extractor VariableExtractor
}

// NewService creates a generation pipeline.
func NewService(agent core.AgentRunner, extractor VariableExtractor) *Service {
	return &Service{agent: agent, extractor: extractor}
}

// Generate runs the agent once against the task, classifies the literal
// values of its trace, and synthesizes a validated workflow definition. The
// trace is consumed here and never persisted. No definition is returned if
// any stage fails.
func (s *Service) Generate(ctx context.Context, task string) (*workflow.Definition, error) {
	trace, err := s.runAgent(ctx, task)
	if err != nil {
		return nil, err
	}
	logger.Info("builder: agent completed task with %d actions", len(trace))

	params, err := s.extractParameters(ctx, task, trace)
	if err != nil {
		return nil, err
	}
	logger.Info("builder: extracted %d parameter(s)", len(params))

	def, err := synthesize(task, trace, params)
	if err != nil {
		return nil, err
	}
	return def, nil
}

// runAgent is stage 1: a single autonomous run of the task.
func (s *Service) runAgent(ctx context.Context, task string) (core.AgentTrace, error) {
	result, err := s.agent.Run(ctx, task, nil)
	if err != nil {
		return nil, core.ErrAgentExecution.WithCause(err)
	}
	if result == nil || result.Final != core.AgentSucceeded {
		return nil, core.ErrAgentExecution.WithMessage("agent did not complete the task")
	}
	if len(result.Trace) == 0 {
		return nil, core.ErrAgentExecution.WithMessage("agent produced an empty trace")
	}
	return result.Trace, nil
}

// parameter is one extracted variable: its name and the exact literal value
// it replaces everywhere in the trace.
type parameter struct {
	name  string
	value string
}

// extractParameters is stage 2: classify the trace's literal values and
// assign one deterministic, unique variable name per extracted role.
func (s *Service) extractParameters(ctx context.Context, task string, trace core.AgentTrace) ([]parameter, error) {
	var candidates []LiteralCandidate
	seen := map[string]bool{}
	for i, action := range trace {
		if action.Value == "" || !isArgumentAction(action.Kind) {
			continue
		}
		if seen[action.Value] {
			continue // classification is per distinct literal value
		}
		seen[action.Value] = true
		candidates = append(candidates, LiteralCandidate{
			StepIndex: i,
			Action:    action.Kind,
			Value:     action.Value,
		})
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	classifications, err := s.extractor.Classify(ctx, task, candidates)
	if err != nil {
		return nil, core.ErrSynthesis.WithMessage("literal classification failed").WithCause(err)
	}

	taken := map[string]bool{}
	byRole := map[string]string{} // role name -> first value claiming it
	var params []parameter

	for _, c := range classifications {
		if !c.Parameter {
			continue
		}
		name := sanitizeRole(c.Role)
		if name == "" {
			logger.Warn("builder: parameter %q has no usable role suggestion, skipping", c.Value)
			continue
		}
		if first, ok := byRole[name]; ok && first != c.Value {
			// Two distinct literals under one role: keep names unique and
			// substitution exact-value-consistent. Ambiguous, so log it for
			// the caller to review.
			logger.Warn("builder: role %q claimed by distinct values %q and %q", name, first, c.Value)
		} else if !ok {
			byRole[name] = c.Value
		}
		unique := name
		for n := 2; taken[unique]; n++ {
			unique = fmt.Sprintf("%s_%d", name, n)
		}
		taken[unique] = true
		params = append(params, parameter{name: unique, value: c.Value})
	}
	return params, nil
}

// synthesize is stage 3: map each trace action to a step, thread parameter
// references through argument templates, and validate the result.
func synthesize(task string, trace core.AgentTrace, params []parameter) (*workflow.Definition, error) {
	substitute := func(value string) string {
		for _, p := range params {
			if value == p.value {
				return workflow.Placeholder(p.name)
			}
			value = strings.ReplaceAll(value, p.value, workflow.Placeholder(p.name))
		}
		return value
	}

	var steps []workflow.Step
	for i, action := range trace {
		base := workflow.BaseStep{StepIndex: i}

		if !workflow.IsKnownAction(action.Kind) || needsTarget(action.Kind) && action.Target.IsEmpty() {
			// No reliable deterministic action could be derived; delegate.
			steps = append(steps, &workflow.AgentStep{
				BaseStep: base,
				Goal:     describeAction(action, substitute(action.Value)),
			})
			continue
		}

		steps = append(steps, &workflow.ActionStep{
			BaseStep: base,
			Action:   action.Kind,
			Target:   action.Target,
			Value:    substitute(action.Value),
		})
	}

	variables := make([]workflow.Variable, 0, len(params))
	for _, p := range params {
		variables = append(variables, workflow.Variable{Name: p.name, Type: workflow.TypeString})
	}

	def := &workflow.Definition{
		ID:        uuid.NewString(),
		Name:      workflowName(task),
		Version:   "1.0",
		Variables: variables,
		Steps:     steps,
		Metadata: workflow.Metadata{
			GenerationMode: workflow.ModeAgent,
			SourceTask:     task,
			CreatedAt:      time.Now().UTC(),
		},
	}

	if err := workflow.Validate(def); err != nil {
		return nil, core.ErrSynthesis.WithMessage("synthesized definition failed validation").WithCause(err)
	}
	return def, nil
}

// isArgumentAction reports whether the action kind carries a caller-visible
// literal argument worth offering to the classifier. Navigation URLs and
// scroll offsets are structural.
func isArgumentAction(kind workflow.ActionKind) bool {
	switch kind {
	case workflow.ActionInput, workflow.ActionSelect, workflow.ActionKeyPress:
		return true
	}
	return false
}

func needsTarget(kind workflow.ActionKind) bool {
	switch kind {
	case workflow.ActionNavigate, workflow.ActionScroll:
		return false
	}
	return true
}

func describeAction(action core.AgentAction, value string) string {
	switch {
	case value != "" && !action.Target.IsEmpty():
		return fmt.Sprintf("%s %q into the element %s", action.Kind, value, action.Target.Describe())
	case value != "":
		return fmt.Sprintf("%s %q", action.Kind, value)
	default:
		return fmt.Sprintf("%s the element %s", action.Kind, action.Target.Describe())
	}
}

// workflowName derives a display name from the source task.
func workflowName(task string) string {
	name := strings.Join(strings.Fields(task), " ")
	if len(name) > 60 {
		name = strings.TrimSpace(name[:60])
	}
	if name == "" {
		name = "generated workflow"
	}
	return name
}
