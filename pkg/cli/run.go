package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/executor"
	"github.com/browserlab-dev/workflow-runner/pkg/healing"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/semantic"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

var runCommand = &cli.Command{
	Name:      "run",
	Usage:     "Replay a stored workflow",
	ArgsUsage: "<workflow-file, id, or name>",
	Description: `Replay a workflow deterministically. When a step fails with a
recoverable error and an agent sidecar is configured, the agent is asked
to recover that one step before deterministic replay resumes.

Examples:
  workflow-runner run checkout.workflow.json --input query=laptop
  workflow-runner run "Search example" --input query=laptop --input limit=5
  workflow-runner run checkout.workflow.json --no-ai
  workflow-runner run checkout.workflow.json --dry-run`,
	Flags: []cli.Flag{
		&cli.StringSliceFlag{
			Name:    "input",
			Aliases: []string{"i"},
			Usage:   "Workflow inputs (KEY=VALUE)",
		},
		&cli.BoolFlag{
			Name:  "no-ai",
			Usage: "Semantic replay without any agent fallback",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Validate and bind inputs without touching a browser",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall run timeout (0 = none)",
		},
	},
	Action: runRun,
}

func runRun(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one workflow reference")
	}
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
	def, err := resolveDefinition(store, c.Args().First())
	if err != nil {
		return err
	}
	inputs, err := parseInputs(def, c.StringSlice("input"), cfg.Env)
	if err != nil {
		return err
	}

	if c.Bool("dry-run") {
		return dryRun(def, inputs)
	}

	ctx, cancel := signalContext(c.Duration("timeout"))
	defer cancel()

	driver, err := buildDriver(c, cfg)
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s%s%s (%d steps)\n", color(colorBold), def.Name, color(colorReset), len(def.Steps))

	if c.Bool("no-ai") {
		return runNoAI(ctx, def, inputs, driver)
	}

	execCfg := executor.DefaultConfig()
	execCfg.ActionTimeout = cfg.ActionTimeout.Std()
	agentRunner := buildAgent(cfg)
	if agentRunner == nil {
		logger.Info("run: no agent sidecar configured, healing disabled")
		result, err := executor.New(driver, nil, execCfg).Run(ctx, def, inputs)
		if err != nil {
			return err
		}
		return printResult(result)
	}

	controller := healing.NewController(driver, agentRunner, healing.Config{
		AgentTimeout: cfg.AgentTimeout.Std(),
		Executor:     execCfg,
	})
	result, err := controller.Execute(ctx, def, inputs)
	if err != nil {
		return err
	}
	return printResult(result)
}

func dryRun(def *workflow.Definition, inputs map[string]any) error {
	if err := workflow.Validate(def); err != nil {
		return err
	}
	bindings, err := executor.BindVariables(def, inputs)
	if err != nil {
		return err
	}
	fmt.Printf("  %s✓ %q is valid%s\n", color(colorGreen), def.Name, color(colorReset))
	for name, value := range bindings {
		fmt.Printf("    %s%s%s = %s\n", color(colorCyan), name, color(colorReset), value)
	}
	for _, step := range def.Steps {
		fmt.Printf("    %s[%d]%s %s\n", color(colorGray), step.Index(), color(colorReset), step.Describe())
	}
	return nil
}

func runNoAI(ctx context.Context, def *workflow.Definition, inputs map[string]any, driver core.Driver) error {
	surface, ok := driver.(semantic.Surface)
	if !ok {
		return fmt.Errorf("the selected driver cannot replay semantically; use the remote driver")
	}
	if err := driver.OpenSession(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := driver.CloseSession(closeCtx); err != nil {
			logger.Warn("run: failed to close session: %v", err)
		}
	}()

	outputs, err := semantic.Replay(ctx, def, inputs, surface)
	if err != nil {
		fmt.Printf("  %s✗ semantic replay failed: %v%s\n", color(colorRed), err, color(colorReset))
		return err
	}
	fmt.Printf("  %s✓ semantic replay succeeded%s\n", color(colorGreen), color(colorReset))
	printOutputs(outputs)
	return nil
}

func printResult(result *executor.RunResult) error {
	for _, outcome := range result.Outcomes {
		mark := "✓"
		tint := colorGreen
		if !outcome.Status.IsSuccess() {
			mark = "✗"
			tint = colorRed
		}
		healed := ""
		if outcome.HealingInvoked {
			healed = " (healed)"
		}
		fmt.Printf("  %s%s [%d] %s%s%s %s(%dms)%s\n",
			color(tint), mark, outcome.Index, outcome.Status, healed, color(colorReset),
			color(colorGray), outcome.Duration.Milliseconds(), color(colorReset))
		if outcome.Error != "" {
			fmt.Printf("      %s%s%s\n", color(colorRed), outcome.Error, color(colorReset))
		}
	}

	printOutputs(result.Outputs)

	if !result.Succeeded() {
		return fmt.Errorf("run %s: %s", result.RunID, result.Status)
	}
	fmt.Printf("\n  %s✓ run %s succeeded in %dms%s\n",
		color(colorGreen), result.RunID, result.Duration.Milliseconds(), color(colorReset))
	return nil
}

func printOutputs(outputs map[string]string) {
	for name, value := range outputs {
		fmt.Printf("  %s%s%s = %s\n", color(colorCyan), name, color(colorReset), value)
	}
}

// signalContext cancels on SIGINT/SIGTERM and, when timeout is nonzero,
// after the timeout.
func signalContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx := context.Background()
	var cancelTimeout context.CancelFunc = func() {}
	if timeout > 0 {
		ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
	}
	ctx, cancelSignal := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	return ctx, func() {
		cancelSignal()
		cancelTimeout()
	}
}
