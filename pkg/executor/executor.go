package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Healer is the agent fallback consumed by the executor. The self-healing
// controller implements it; a nil Healer makes every failure terminal and
// every agent step fail.
type Healer interface {
	// HealStep is invoked after a healable step failure. It must call the
	// agent at most once and report the outcome as a HealingEvent.
	HealStep(ctx context.Context, stepIndex int, step workflow.Step, rendered *core.ActionDescriptor, cause *core.ExecutionError) *core.HealingEvent

	// RunAgentGoal executes a delegated agent-step goal.
	RunAgentGoal(ctx context.Context, stepIndex int, goal string) *core.HealingEvent
}

// Config tunes the executor's bounded waits.
type Config struct {
	// ActionTimeout is the per-step deadline for NotReady retries before the
	// step is classified as failed.
	ActionTimeout time.Duration
	// RetryInitialInterval is the first backoff interval.
	RetryInitialInterval time.Duration
	// RetryMaxInterval caps the backoff interval.
	RetryMaxInterval time.Duration
	// ManageSession makes Run open the driver session before the first step
	// and close it afterward.
	ManageSession bool
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		ActionTimeout:        10 * time.Second,
		RetryInitialInterval: 250 * time.Millisecond,
		RetryMaxInterval:     2 * time.Second,
		ManageSession:        true,
	}
}

// Executor executes workflow definitions strictly in step-index order
// against one automation surface session.
type Executor struct {
	driver core.Driver
	healer Healer
	config Config
}

// New creates an Executor. healer may be nil for strict deterministic runs.
func New(driver core.Driver, healer Healer, cfg Config) *Executor {
	if cfg.ActionTimeout <= 0 {
		cfg.ActionTimeout = DefaultConfig().ActionTimeout
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = DefaultConfig().RetryInitialInterval
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = DefaultConfig().RetryMaxInterval
	}
	return &Executor{driver: driver, healer: healer, config: cfg}
}

// Run executes def with the given variable bindings. It returns an error
// only for pre-flight problems (schema or binding defects); step-level
// failures are reported in the RunResult.
func (e *Executor) Run(ctx context.Context, def *workflow.Definition, inputs map[string]any) (*RunResult, error) {
	if err := workflow.Validate(def); err != nil {
		return nil, core.ErrSchema.WithCause(err)
	}

	bindings, err := BindVariables(def, inputs)
	if err != nil {
		return nil, err
	}

	ec := &ExecutionContext{
		RunID:      uuid.NewString(),
		WorkflowID: def.ID,
		Bindings:   bindings,
		Outputs:    map[string]string{},
	}

	logger.Info("run %s: starting workflow %q (%d steps)", ec.RunID, def.Name, len(def.Steps))
	start := time.Now()

	if e.config.ManageSession {
		if err := e.driver.OpenSession(ctx); err != nil {
			return nil, core.ErrActionRejected.WithMessage("failed to open session").WithCause(err)
		}
		defer func() {
			// Session teardown must survive run cancellation.
			closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if cerr := e.driver.CloseSession(closeCtx); cerr != nil {
				logger.Warn("run %s: failed to close session: %v", ec.RunID, cerr)
			}
		}()
	}

	result := &RunResult{
		RunID:      ec.RunID,
		WorkflowID: def.ID,
		Status:     core.RunSucceeded,
		FailedStep: -1,
	}

	for _, step := range def.Steps {
		if ctx.Err() != nil {
			result.Status = core.RunAborted
			result.Failure = core.ErrTimeout.WithMessage("run cancelled").WithCause(ctx.Err())
			result.FailedStep = step.Index()
			break
		}

		ec.StepIndex = step.Index()
		outcome := e.executeStep(ctx, ec, step)
		ec.History = append(ec.History, outcome)

		if !outcome.Status.IsSuccess() {
			result.FailedStep = outcome.Index
			result.Failure = outcome.Err
			if outcome.Status == core.StatusHealedFailed {
				result.Status = core.RunAborted
			} else {
				result.Status = core.RunFailed
			}
			break
		}
	}

	result.Outcomes = ec.History
	result.Outputs = ec.Outputs
	result.Healing = ec.HealingEvents
	result.Duration = time.Since(start)

	logger.Info("run %s: finished with status %s in %s", ec.RunID, result.Status, result.Duration)
	return result, nil
}

// executeStep runs one step to a terminal status, including a healing
// attempt when the failure kind allows it.
func (e *Executor) executeStep(ctx context.Context, ec *ExecutionContext, step workflow.Step) StepOutcome {
	stepStart := time.Now()
	outcome := StepOutcome{Index: step.Index(), Status: core.StatusExecuting}

	var rendered *core.ActionDescriptor
	var stepErr *core.ExecutionError

	switch s := step.(type) {
	case *workflow.ActionStep:
		rendered, stepErr = e.renderAction(ec, s)
		if stepErr == nil {
			stepErr = e.performAction(ctx, *rendered)
		}
	case *workflow.ExtractionStep:
		value, err := e.performExtraction(ctx, s)
		if err != nil {
			stepErr = err
		} else {
			ec.Outputs[s.Output] = value
			outcome.Output = value
		}
	case *workflow.AgentStep:
		// Definitionally non-deterministic: always delegated through the
		// healing machinery.
		stepErr = e.runAgentStep(ctx, ec, s, &outcome)
	default:
		stepErr = core.ErrSchema.WithMessage(fmt.Sprintf("unknown step variant %T", step))
	}

	if stepErr == nil {
		outcome.Status = core.StatusSucceeded
		outcome.Duration = time.Since(stepStart)
		logger.Debug("run %s: step %d succeeded (%s)", ec.RunID, step.Index(), step.Describe())
		return outcome
	}

	outcome.Err = stepErr
	outcome.Error = stepErr.Error()

	// Agent steps already went through the agent; no second fallback.
	if _, isAgent := step.(*workflow.AgentStep); !isAgent && stepErr.Healable() && e.healer != nil {
		logger.Warn("run %s: step %d failed (%s), invoking healing", ec.RunID, step.Index(), stepErr.Code)
		outcome.Status = core.StatusHealing
		outcome.HealingInvoked = true

		event := e.healer.HealStep(ctx, step.Index(), step, rendered, stepErr)
		if event != nil {
			ec.HealingEvents = append(ec.HealingEvents, *event)
		}
		if event != nil && event.Succeeded {
			outcome.Status = core.StatusHealedSucceeded
			outcome.Err = nil
			outcome.Error = ""
		} else {
			outcome.Status = core.StatusHealedFailed
		}
	} else {
		outcome.Status = core.StatusFailed
	}

	outcome.Duration = time.Since(stepStart)
	return outcome
}

// renderAction renders the step's argument template against the current
// scope. A render failure on a validated definition means a missing
// extraction output.
func (e *Executor) renderAction(ec *ExecutionContext, s *workflow.ActionStep) (*core.ActionDescriptor, *core.ExecutionError) {
	value, err := workflow.Render(s.Value, ec.scope())
	if err != nil {
		return nil, core.ErrTemplate.WithCause(err)
	}
	return &core.ActionDescriptor{Kind: s.Action, Target: s.Target, Value: value}, nil
}

// performAction issues one action with a bounded backoff wait: NotReady and
// transient errors are retried until the configured deadline.
func (e *Executor) performAction(ctx context.Context, action core.ActionDescriptor) *core.ExecutionError {
	var last *core.ExecutionError

	op := func() error {
		res, err := e.driver.Act(ctx, action)
		if err != nil {
			ee := core.AsExecutionError(err, core.ErrActionRejected)
			last = ee
			if ee.Healable() {
				return ee
			}
			return backoff.Permanent(ee)
		}
		if res.Status == core.ActNotReady {
			last = core.ErrElementNotReady.WithDetails(map[string]any{
				"action": action.Describe(),
				"detail": res.Message,
			})
			return last
		}
		return nil
	}

	if err := e.retry(ctx, op); err != nil {
		if ctx.Err() != nil && last == nil {
			return core.ErrTimeout.WithCause(ctx.Err())
		}
		if last != nil {
			return last
		}
		return core.AsExecutionError(err, core.ErrActionRejected)
	}
	return nil
}

// performExtraction reads a value with the same bounded wait as actions.
func (e *Executor) performExtraction(ctx context.Context, s *workflow.ExtractionStep) (string, *core.ExecutionError) {
	var value string
	var last *core.ExecutionError

	op := func() error {
		v, err := e.driver.Extract(ctx, core.ExtractionDescriptor{Target: s.Target})
		if err != nil {
			ee := core.AsExecutionError(err, core.ErrActionRejected)
			last = ee
			if ee.Healable() {
				return ee
			}
			return backoff.Permanent(ee)
		}
		value = v
		return nil
	}

	if err := e.retry(ctx, op); err != nil {
		if last != nil {
			return "", last
		}
		return "", core.AsExecutionError(err, core.ErrActionRejected)
	}
	return value, nil
}

// runAgentStep forwards a delegated goal to the healer's agent machinery.
func (e *Executor) runAgentStep(ctx context.Context, ec *ExecutionContext, s *workflow.AgentStep, outcome *StepOutcome) *core.ExecutionError {
	if e.healer == nil {
		return core.ErrAgentExecution.WithMessage("agent step requires an agent runner, none configured")
	}

	outcome.HealingInvoked = true
	event := e.healer.RunAgentGoal(ctx, s.StepIndex, renderLenient(s.Goal, ec.scope()))
	if event != nil {
		ec.HealingEvents = append(ec.HealingEvents, *event)
	}
	if event == nil || !event.Succeeded {
		msg := "agent did not achieve the goal"
		if event != nil && event.Error != "" {
			msg = event.Error
		}
		return core.ErrAgentExecution.WithMessage(msg)
	}
	return nil
}

func (e *Executor) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.config.RetryInitialInterval
	b.MaxInterval = e.config.RetryMaxInterval
	b.MaxElapsedTime = e.config.ActionTimeout
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// renderLenient substitutes known references and leaves unknown ones
// untouched; agent goals tolerate free-form ${...} text.
func renderLenient(template string, values map[string]string) string {
	out := template
	for _, ref := range workflow.TemplateRefs(template) {
		if v, ok := values[ref]; ok {
			out = strings.ReplaceAll(out, workflow.Placeholder(ref), v)
		}
	}
	return out
}

// BindVariables resolves every declared variable to a concrete string value
// from inputs or defaults. It fails with a missing-variable error when a
// variable without a default has no binding, and with a schema error when a
// binding does not match the declared type.
func BindVariables(def *workflow.Definition, inputs map[string]any) (map[string]string, error) {
	bindings := make(map[string]string, len(def.Variables))
	for _, v := range def.Variables {
		value, ok := inputs[v.Name]
		if !ok {
			if !v.HasDefault() {
				return nil, core.ErrMissingVariable.WithMessage(
					fmt.Sprintf("variable %q has no binding and no default", v.Name))
			}
			value = v.Default
		}
		if !v.Matches(value) {
			return nil, core.ErrSchema.WithMessage(
				fmt.Sprintf("binding for %q does not match declared type %s", v.Name, v.Type))
		}
		bindings[v.Name] = formatValue(value)
	}
	return bindings, nil
}

// formatValue renders a typed binding into its template substitution form.
func formatValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
