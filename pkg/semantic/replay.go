package semantic

import (
	"context"
	"fmt"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/executor"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// Surface performs remote-native actions against a semantically-addressable
// session, typically a managed remote browser.
type Surface interface {
	Perform(ctx context.Context, action *RemoteAction) error
	Read(ctx context.Context, action *RemoteAction) (string, error)
}

// Replay runs a workflow in no-AI mode: every step must map onto the remote
// session's semantic surface, and any failure is terminal. Agent steps are
// unmappable by definition.
func Replay(ctx context.Context, def *workflow.Definition, inputs map[string]any, surface Surface) (map[string]string, error) {
	if err := workflow.Validate(def); err != nil {
		return nil, core.ErrSchema.WithCause(err)
	}
	bindings, err := executor.BindVariables(def, inputs)
	if err != nil {
		return nil, err
	}

	outputs := map[string]string{}
	scope := func() map[string]string {
		values := make(map[string]string, len(bindings)+len(outputs))
		for k, v := range bindings {
			values[k] = v
		}
		for k, v := range outputs {
			values[k] = v
		}
		return values
	}

	for _, step := range def.Steps {
		if err := ctx.Err(); err != nil {
			return nil, core.ErrTimeout.WithMessage("replay cancelled").WithCause(err)
		}

		switch s := step.(type) {
		case *workflow.ActionStep:
			rendered, err := workflow.Render(s.Value, scope())
			if err != nil {
				return nil, core.ErrTemplate.WithCause(err)
			}
			action, err := MapAction(s, rendered)
			if err != nil {
				return nil, err
			}
			logger.Debug("replay: step %d -> %s", s.Index(), action.Describe())
			if err := surface.Perform(ctx, action); err != nil {
				return nil, core.AsExecutionError(err, core.ErrActionRejected).WithDetails(map[string]any{
					"step": s.Index(),
				})
			}
		case *workflow.ExtractionStep:
			action, err := MapExtraction(s)
			if err != nil {
				return nil, err
			}
			value, err := surface.Read(ctx, action)
			if err != nil {
				return nil, core.AsExecutionError(err, core.ErrActionRejected).WithDetails(map[string]any{
					"step": s.Index(),
				})
			}
			outputs[s.Output] = value
		case *workflow.AgentStep:
			return nil, core.ErrUnmappableAction.WithMessage(
				fmt.Sprintf("step %d delegates to an agent; no-AI replay cannot execute it", s.Index()))
		}
	}

	return outputs, nil
}
