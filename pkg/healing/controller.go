// Package healing folds an autonomous agent fallback into deterministic
// workflow execution. A failed step of a healable kind is handed to the
// agent exactly once; the outcome is recorded as a HealingEvent either way,
// and repeated failure is a policy decision for the caller, never a silent
// retry loop.
package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/executor"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Config tunes the controller.
type Config struct {
	// AgentTimeout bounds each agent invocation. Zero means no extra bound
	// beyond the run's own context.
	AgentTimeout time.Duration
	// Executor is the configuration for the deterministic leg of Execute.
	Executor executor.Config
}

// DefaultConfig returns the controller defaults.
func DefaultConfig() Config {
	return Config{
		AgentTimeout: 2 * time.Minute,
		Executor:     executor.DefaultConfig(),
	}
}

// Controller orchestrates the deterministic executor and the agent fallback.
// It implements executor.Healer.
type Controller struct {
	driver core.Driver
	agent  core.AgentRunner
	config Config
}

// NewController creates a Controller for one automation surface session.
func NewController(driver core.Driver, agent core.AgentRunner, cfg Config) *Controller {
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = DefaultConfig().AgentTimeout
	}
	return &Controller{driver: driver, agent: agent, config: cfg}
}

// Execute runs a workflow with self-healing enabled: the deterministic
// executor walks the steps, and this controller is its fallback.
func (c *Controller) Execute(ctx context.Context, def *workflow.Definition, inputs map[string]any) (*executor.RunResult, error) {
	exec := executor.New(c.driver, c, c.config.Executor)
	return exec.Run(ctx, def, inputs)
}

// HealStep delegates a failed step's intent to the agent. The attempt budget
// is exactly one invocation per failed step occurrence.
func (c *Controller) HealStep(ctx context.Context, stepIndex int, step workflow.Step, rendered *core.ActionDescriptor, cause *core.ExecutionError) *core.HealingEvent {
	page := c.observePage(ctx)
	goal := describeGoal(step, rendered, cause, page)
	event := c.invoke(ctx, stepIndex, cause.Code, goal, page)
	if event.Succeeded {
		logger.Info("healing: step %d recovered by agent", stepIndex)
	} else {
		logger.Error("healing: step %d not recovered: %s", stepIndex, event.Error)
	}
	return event
}

// RunAgentGoal executes a delegated agent-step goal through the same bounded
// machinery as healing.
func (c *Controller) RunAgentGoal(ctx context.Context, stepIndex int, goal string) *core.HealingEvent {
	return c.invoke(ctx, stepIndex, "agent_step", goal, c.observePage(ctx))
}

// observePage reads the current page context; a goal is still actionable
// without an observation, so failures only log.
func (c *Controller) observePage(ctx context.Context) *core.PageContext {
	page, err := c.driver.PageContext(ctx)
	if err != nil {
		logger.Warn("healing: page context unavailable: %v", err)
		return nil
	}
	return page
}

// invoke performs the single agent call and records it as an event.
func (c *Controller) invoke(ctx context.Context, stepIndex int, failureKind, goal string, page *core.PageContext) *core.HealingEvent {
	event := &core.HealingEvent{
		StepIndex:   stepIndex,
		FailureKind: failureKind,
		Goal:        goal,
	}

	if c.agent == nil {
		event.Error = "no agent runner configured"
		return event
	}

	runCtx := ctx
	if c.config.AgentTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.config.AgentTimeout)
		defer cancel()
	}

	result, err := c.agent.Run(runCtx, goal, page)
	switch {
	case err != nil:
		event.Error = err.Error()
	case result == nil || result.Final != core.AgentSucceeded:
		event.Error = "agent reported failure"
	default:
		event.Succeeded = true
		event.Trace = result.Trace
	}
	return event
}

// describeGoal builds the natural-language goal from the original step's
// intent and the current page context.
func describeGoal(step workflow.Step, rendered *core.ActionDescriptor, cause *core.ExecutionError, page *core.PageContext) string {
	intent := step.Describe()
	if rendered != nil {
		intent = rendered.Describe()
	}

	goal := fmt.Sprintf("The deterministic step %q failed (%s).", intent, cause.Code)
	if page != nil {
		goal += fmt.Sprintf(" The browser is currently on %s", page.URL)
		if page.Title != "" {
			goal += fmt.Sprintf(" (%q)", page.Title)
		}
		goal += "."
	}
	goal += " Achieve the step's intent, then stop."
	return goal
}
