package executor

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// mockDriver implements core.Driver for testing.
type mockDriver struct {
	actFunc     func(action core.ActionDescriptor) (*core.ActResult, error)
	extractFunc func(desc core.ExtractionDescriptor) (string, error)

	acts     []core.ActionDescriptor
	extracts []core.ExtractionDescriptor
	opened   int
	closed   int
}

func (m *mockDriver) OpenSession(ctx context.Context) error  { m.opened++; return nil }
func (m *mockDriver) CloseSession(ctx context.Context) error { m.closed++; return nil }

func (m *mockDriver) Act(ctx context.Context, action core.ActionDescriptor) (*core.ActResult, error) {
	m.acts = append(m.acts, action)
	if m.actFunc != nil {
		return m.actFunc(action)
	}
	return &core.ActResult{Status: core.ActReady}, nil
}

func (m *mockDriver) Extract(ctx context.Context, desc core.ExtractionDescriptor) (string, error) {
	m.extracts = append(m.extracts, desc)
	if m.extractFunc != nil {
		return m.extractFunc(desc)
	}
	return "extracted", nil
}

func (m *mockDriver) PageContext(ctx context.Context) (*core.PageContext, error) {
	return &core.PageContext{URL: "https://example.com", Title: "Example"}, nil
}

// mockHealer implements Healer for testing.
type mockHealer struct {
	healFunc func(stepIndex int, step workflow.Step, rendered *core.ActionDescriptor, cause *core.ExecutionError) *core.HealingEvent
	goalFunc func(stepIndex int, goal string) *core.HealingEvent

	healCalls int
	goalCalls int
}

func (m *mockHealer) HealStep(ctx context.Context, stepIndex int, step workflow.Step, rendered *core.ActionDescriptor, cause *core.ExecutionError) *core.HealingEvent {
	m.healCalls++
	if m.healFunc != nil {
		return m.healFunc(stepIndex, step, rendered, cause)
	}
	return &core.HealingEvent{StepIndex: stepIndex, Succeeded: true}
}

func (m *mockHealer) RunAgentGoal(ctx context.Context, stepIndex int, goal string) *core.HealingEvent {
	m.goalCalls++
	if m.goalFunc != nil {
		return m.goalFunc(stepIndex, goal)
	}
	return &core.HealingEvent{StepIndex: stepIndex, Goal: goal, Succeeded: true}
}

func fastConfig() Config {
	return Config{
		ActionTimeout:        50 * time.Millisecond,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		ManageSession:        true,
	}
}

func searchDefinition() *workflow.Definition {
	return &workflow.Definition{
		ID:   "wf-search",
		Name: "search",
		Variables: []workflow.Variable{
			{Name: "query", Type: workflow.TypeString},
		},
		Steps: []workflow.Step{
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 0},
				Action:   workflow.ActionNavigate,
				Value:    "https://example.com/search",
			},
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 1},
				Action:   workflow.ActionInput,
				Target:   workflow.Target{CSS: "#q"},
				Value:    "${query}",
			},
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 2},
				Action:   workflow.ActionClick,
				Target:   workflow.Target{CSS: "#submit"},
			},
		},
	}
}

func TestRun_DeterministicActionSequence(t *testing.T) {
	driver := &mockDriver{}
	exec := New(driver, nil, fastConfig())

	result, err := exec.Run(context.Background(), searchDefinition(), map[string]any{"query": "workflow use"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got %s", result.Status)
	}

	want := []core.ActionDescriptor{
		{Kind: workflow.ActionNavigate, Value: "https://example.com/search"},
		{Kind: workflow.ActionInput, Target: workflow.Target{CSS: "#q"}, Value: "workflow use"},
		{Kind: workflow.ActionClick, Target: workflow.Target{CSS: "#submit"}},
	}
	if !reflect.DeepEqual(driver.acts, want) {
		t.Errorf("action sequence mismatch:\n got: %v\nwant: %v", driver.acts, want)
	}
	if driver.opened != 1 || driver.closed != 1 {
		t.Errorf("session open/close = %d/%d, want 1/1", driver.opened, driver.closed)
	}
}

func TestRun_SameInputsSameActions(t *testing.T) {
	inputs := map[string]any{"query": "workflow use"}

	first := &mockDriver{}
	if _, err := New(first, nil, fastConfig()).Run(context.Background(), searchDefinition(), inputs); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	second := &mockDriver{}
	if _, err := New(second, nil, fastConfig()).Run(context.Background(), searchDefinition(), inputs); err != nil {
		t.Fatalf("second run failed: %v", err)
	}

	if !reflect.DeepEqual(first.acts, second.acts) {
		t.Errorf("runs diverged:\nfirst:  %v\nsecond: %v", first.acts, second.acts)
	}
}

func TestRun_MissingVariableFailsBeforeAnyAction(t *testing.T) {
	driver := &mockDriver{}
	exec := New(driver, nil, fastConfig())

	_, err := exec.Run(context.Background(), searchDefinition(), nil)
	if err == nil {
		t.Fatal("expected missing-variable error")
	}
	if !errors.Is(err, core.ErrMissingVariable) {
		t.Errorf("expected ErrMissingVariable, got %v", err)
	}
	if len(driver.acts) != 0 {
		t.Errorf("no actions should be issued, got %d", len(driver.acts))
	}
	if driver.opened != 0 {
		t.Error("session should not be opened on binding failure")
	}
}

func TestRun_InvalidDefinitionFailsPreFlight(t *testing.T) {
	def := searchDefinition()
	def.Steps[1].(*workflow.ActionStep).Value = "${undeclared}"

	_, err := New(&mockDriver{}, nil, fastConfig()).Run(context.Background(), def, map[string]any{"query": "x"})
	if err == nil {
		t.Fatal("expected schema error")
	}
	if !errors.Is(err, core.ErrSchema) {
		t.Errorf("expected ErrSchema, got %v", err)
	}
}

func TestRun_ExtractionOutputFeedsLaterTemplate(t *testing.T) {
	def := &workflow.Definition{
		ID:   "wf-extract",
		Name: "extract",
		Steps: []workflow.Step{
			&workflow.ExtractionStep{
				BaseStep: workflow.BaseStep{StepIndex: 0},
				Target:   workflow.Target{CSS: ".price"},
				Output:   "price",
			},
			&workflow.ActionStep{
				BaseStep: workflow.BaseStep{StepIndex: 1},
				Action:   workflow.ActionInput,
				Target:   workflow.Target{CSS: "#bid"},
				Value:    "${price}",
			},
		},
	}

	driver := &mockDriver{
		extractFunc: func(core.ExtractionDescriptor) (string, error) { return "42.50", nil },
	}
	result, err := New(driver, nil, fastConfig()).Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if result.Outputs["price"] != "42.50" {
		t.Errorf("Outputs[price] = %q", result.Outputs["price"])
	}
	if len(driver.acts) != 1 || driver.acts[0].Value != "42.50" {
		t.Errorf("extraction output not threaded into action: %v", driver.acts)
	}
}

func TestRun_NotReadyRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	driver := &mockDriver{
		actFunc: func(action core.ActionDescriptor) (*core.ActResult, error) {
			attempts++
			if attempts < 3 {
				return &core.ActResult{Status: core.ActNotReady, Message: "still loading"}, nil
			}
			return &core.ActResult{Status: core.ActReady}, nil
		},
	}

	def := searchDefinition()
	def.Steps = def.Steps[:1]
	def.Variables = nil

	result, err := New(driver, nil, fastConfig()).Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Succeeded() {
		t.Fatalf("expected success after retries, got %s", result.Status)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestRun_NotReadyUntilDeadlineFailsStep(t *testing.T) {
	driver := &mockDriver{
		actFunc: func(core.ActionDescriptor) (*core.ActResult, error) {
			return &core.ActResult{Status: core.ActNotReady}, nil
		},
	}

	def := searchDefinition()
	def.Steps = def.Steps[:1]
	def.Variables = nil

	result, err := New(driver, nil, fastConfig()).Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.RunFailed {
		t.Fatalf("expected RunFailed, got %s", result.Status)
	}
	if result.FailedStep != 0 {
		t.Errorf("FailedStep = %d, want 0", result.FailedStep)
	}
	if !errors.Is(result.Failure, core.ErrElementNotReady) {
		t.Errorf("Failure = %v, want element_not_ready", result.Failure)
	}
	if len(driver.acts) < 2 {
		t.Errorf("expected repeated attempts before the deadline, got %d", len(driver.acts))
	}
}

func TestRun_FatalErrorNotRetriedNotHealed(t *testing.T) {
	fatal := core.NewExecutionError(core.ErrCategoryValidation, "boom", "fatal driver defect")
	driver := &mockDriver{
		actFunc: func(core.ActionDescriptor) (*core.ActResult, error) { return nil, fatal },
	}
	healer := &mockHealer{}

	def := searchDefinition()
	def.Steps = def.Steps[:1]
	def.Variables = nil

	result, err := New(driver, healer, fastConfig()).Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.RunFailed {
		t.Fatalf("expected RunFailed, got %s", result.Status)
	}
	if len(driver.acts) != 1 {
		t.Errorf("fatal error must not be retried, got %d attempts", len(driver.acts))
	}
	if healer.healCalls != 0 {
		t.Errorf("fatal error must not trigger healing, got %d calls", healer.healCalls)
	}
	if result.Outcomes[0].HealingInvoked {
		t.Error("outcome should not report healing")
	}
}

func TestRun_HealableFailureInvokesHealerOnce(t *testing.T) {
	driver := &mockDriver{
		actFunc: func(action core.ActionDescriptor) (*core.ActResult, error) {
			if action.Kind == workflow.ActionInput {
				return &core.ActResult{Status: core.ActNotReady}, nil
			}
			return &core.ActResult{Status: core.ActReady}, nil
		},
	}
	healer := &mockHealer{}

	result, err := New(driver, healer, fastConfig()).Run(context.Background(), searchDefinition(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if healer.healCalls != 1 {
		t.Fatalf("healer invoked %d times, want exactly 1", healer.healCalls)
	}
	if !result.Succeeded() {
		t.Fatalf("expected healed success, got %s", result.Status)
	}
	if result.Outcomes[1].Status != core.StatusHealedSucceeded {
		t.Errorf("step 1 status = %s, want healed_succeeded", result.Outcomes[1].Status)
	}
	if !result.Outcomes[1].HealingInvoked {
		t.Error("step 1 should report healing invoked")
	}
	if len(result.Healing) != 1 {
		t.Errorf("expected 1 healing event, got %d", len(result.Healing))
	}
	// Deterministic replay resumed at the next step.
	last := driver.acts[len(driver.acts)-1]
	if last.Kind != workflow.ActionClick {
		t.Errorf("run did not resume after healing, last action %s", last.Kind)
	}
}

func TestRun_HealingFailureAbortsRun(t *testing.T) {
	driver := &mockDriver{
		actFunc: func(action core.ActionDescriptor) (*core.ActResult, error) {
			if action.Kind == workflow.ActionInput {
				return &core.ActResult{Status: core.ActNotReady}, nil
			}
			return &core.ActResult{Status: core.ActReady}, nil
		},
	}
	healer := &mockHealer{
		healFunc: func(stepIndex int, _ workflow.Step, _ *core.ActionDescriptor, _ *core.ExecutionError) *core.HealingEvent {
			return &core.HealingEvent{StepIndex: stepIndex, Error: "agent reported failure"}
		},
	}

	result, err := New(driver, healer, fastConfig()).Run(context.Background(), searchDefinition(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.RunAborted {
		t.Fatalf("expected RunAborted after failed healing, got %s", result.Status)
	}
	if result.Outcomes[1].Status != core.StatusHealedFailed {
		t.Errorf("step 1 status = %s, want healed_failed", result.Outcomes[1].Status)
	}
	if result.FailedStep != 1 {
		t.Errorf("FailedStep = %d, want 1", result.FailedStep)
	}
	// History up to the failure is preserved.
	if len(result.Outcomes) != 2 {
		t.Errorf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	// No further deterministic steps after the abort.
	for _, act := range driver.acts {
		if act.Kind == workflow.ActionClick {
			t.Error("steps after the aborted one must not run")
		}
	}
}

func TestRun_AgentStepDelegatedExactlyOnce(t *testing.T) {
	def := &workflow.Definition{
		ID:   "wf-agent",
		Name: "agent",
		Variables: []workflow.Variable{
			{Name: "query", Type: workflow.TypeString},
		},
		Steps: []workflow.Step{
			&workflow.AgentStep{
				BaseStep: workflow.BaseStep{StepIndex: 0},
				Goal:     "find the page about ${query}",
			},
		},
	}
	healer := &mockHealer{}

	result, err := New(&mockDriver{}, healer, fastConfig()).Run(context.Background(), def, map[string]any{"query": "laptops"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if healer.goalCalls != 1 {
		t.Fatalf("agent goal invoked %d times, want 1", healer.goalCalls)
	}
	if healer.healCalls != 0 {
		t.Error("agent step failure path must not go through HealStep")
	}
	if !result.Succeeded() {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if len(result.Healing) != 1 {
		t.Errorf("expected 1 healing event, got %d", len(result.Healing))
	}
	if result.Healing[0].Goal != "find the page about laptops" {
		t.Errorf("goal not rendered: %q", result.Healing[0].Goal)
	}
}

func TestRun_AgentStepWithoutHealerFails(t *testing.T) {
	def := &workflow.Definition{
		ID:   "wf-agent",
		Name: "agent",
		Steps: []workflow.Step{
			&workflow.AgentStep{BaseStep: workflow.BaseStep{StepIndex: 0}, Goal: "do the thing"},
		},
	}
	result, err := New(&mockDriver{}, nil, fastConfig()).Run(context.Background(), def, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.RunFailed {
		t.Fatalf("expected RunFailed, got %s", result.Status)
	}
	if !errors.Is(result.Failure, core.ErrAgentExecution) {
		t.Errorf("Failure = %v, want agent_execution", result.Failure)
	}
}

func TestRun_CancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	driver := &mockDriver{
		actFunc: func(core.ActionDescriptor) (*core.ActResult, error) {
			cancel() // cancel mid-run, before the next step is checked
			return &core.ActResult{Status: core.ActReady}, nil
		},
	}

	result, err := New(driver, nil, fastConfig()).Run(ctx, searchDefinition(), map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Status != core.RunAborted {
		t.Fatalf("expected RunAborted, got %s", result.Status)
	}
	if len(driver.acts) != 1 {
		t.Errorf("expected exactly 1 action before cancellation, got %d", len(driver.acts))
	}
}

func TestBindVariables(t *testing.T) {
	def := &workflow.Definition{
		Name: "bind",
		Variables: []workflow.Variable{
			{Name: "query", Type: workflow.TypeString},
			{Name: "limit", Type: workflow.TypeNumber, Default: float64(10)},
			{Name: "strict", Type: workflow.TypeBool, Default: true},
		},
	}

	bindings, err := BindVariables(def, map[string]any{"query": "laptop", "limit": float64(5)})
	if err != nil {
		t.Fatalf("BindVariables failed: %v", err)
	}
	want := map[string]string{"query": "laptop", "limit": "5", "strict": "true"}
	if !reflect.DeepEqual(bindings, want) {
		t.Errorf("bindings = %v, want %v", bindings, want)
	}
}

func TestBindVariables_TypeMismatch(t *testing.T) {
	def := &workflow.Definition{
		Name: "bind",
		Variables: []workflow.Variable{
			{Name: "limit", Type: workflow.TypeNumber},
		},
	}
	_, err := BindVariables(def, map[string]any{"limit": "five"})
	if err == nil {
		t.Fatal("expected type mismatch error")
	}
	if !errors.Is(err, core.ErrSchema) {
		t.Errorf("expected ErrSchema, got %v", err)
	}
}

func TestBindVariables_EnumDefault(t *testing.T) {
	def := &workflow.Definition{
		Name: "bind",
		Variables: []workflow.Variable{
			{Name: "mode", Type: workflow.TypeEnum, Options: []string{"fast", "slow"}, Default: "fast"},
		},
	}
	bindings, err := BindVariables(def, nil)
	if err != nil {
		t.Fatalf("BindVariables failed: %v", err)
	}
	if bindings["mode"] != "fast" {
		t.Errorf("mode = %q", bindings["mode"])
	}

	_, err = BindVariables(def, map[string]any{"mode": "reckless"})
	if err == nil {
		t.Fatal("expected rejection of value outside enum options")
	}
}
