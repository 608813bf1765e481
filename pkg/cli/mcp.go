package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/browserlab-dev/workflow-runner/pkg/executor"
	"github.com/browserlab-dev/workflow-runner/pkg/healing"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/mcpserver"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

var mcpCommand = &cli.Command{
	Name:  "mcp",
	Usage: "Serve stored workflows as MCP tools over stdio",
	Description: `Expose every stored workflow as an MCP tool so agent frameworks can
trigger deterministic replays. Tool arguments mirror the workflow's
declared variables.`,
	Action: runMCP,
}

func runMCP(c *cli.Context) error {
	initLogger(c)
	defer logger.Close()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	invoke := func(ctx context.Context, def *workflow.Definition, inputs map[string]any) (map[string]string, error) {
		driver, err := buildDriver(c, cfg)
		if err != nil {
			return nil, err
		}
		execCfg := executor.DefaultConfig()
		execCfg.ActionTimeout = cfg.ActionTimeout.Std()

		var result *executor.RunResult
		if agentRunner := buildAgent(cfg); agentRunner != nil {
			controller := healing.NewController(driver, agentRunner, healing.Config{
				AgentTimeout: cfg.AgentTimeout.Std(),
				Executor:     execCfg,
			})
			result, err = controller.Execute(ctx, def, inputs)
		} else {
			result, err = executor.New(driver, nil, execCfg).Run(ctx, def, inputs)
		}
		if err != nil {
			return nil, err
		}
		if !result.Succeeded() {
			msg := result.Status.String()
			if result.Failure != nil {
				msg = result.Failure.Error()
			}
			return nil, fmt.Errorf("workflow %q failed at step %d: %s", def.Name, result.FailedStep, msg)
		}
		return result.Outputs, nil
	}

	srv, err := mcpserver.NewServer(store, invoke)
	if err != nil {
		return err
	}
	return srv.ServeStdio()
}
