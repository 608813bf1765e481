package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/browserlab-dev/workflow-runner/pkg/builder"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

var generateCommand = &cli.Command{
	Name:      "generate",
	Usage:     "Synthesize a reusable workflow from a one-off agent run",
	ArgsUsage: "\"<task>\"",
	Description: `Hand the task to the browsing agent once, record what it did, and
turn the trace into a parameterized workflow. The result is saved to the
store unless --output is given.

Examples:
  workflow-runner generate "search example.com for browser-use"
  workflow-runner generate "file a vacation request" --output vacation.workflow.json`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the workflow to a file instead of the store",
		},
		&cli.StringFlag{
			Name:  "name",
			Usage: "Override the derived workflow name",
		},
	},
	Action: runGenerate,
}

func runGenerate(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one task description")
	}
	task := c.Args().First()
	initLogger(c)
	defer logger.Close()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	agentRunner := buildAgent(cfg)
	if agentRunner == nil {
		return fmt.Errorf("generation needs an agent sidecar; set agentUrl in config.yaml or pass --agent-url")
	}

	ctx, cancel := signalContext(0)
	defer cancel()

	fmt.Printf("  %s⏳ Running agent for: %s%s\n", color(colorCyan), task, color(colorReset))

	def, err := builder.NewService(agentRunner, agentRunner).Generate(ctx, task)
	if err != nil {
		return err
	}
	if name := c.String("name"); name != "" {
		def.Name = name
	}

	fmt.Printf("  %s✓ Synthesized %q: %d steps, %d variables%s\n",
		color(colorGreen), def.Name, len(def.Steps), len(def.Variables), color(colorReset))
	for _, v := range def.Variables {
		fmt.Printf("    %s%s%s (%s)\n", color(colorCyan), v.Name, color(colorReset), v.Type)
	}

	if path := c.String("output"); path != "" {
		data, err := workflow.Serialize(def)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		fmt.Printf("  %s✓ Wrote %s%s\n", color(colorGreen), path, color(colorReset))
		return nil
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	id, err := store.Put(def)
	if err != nil {
		return err
	}
	fmt.Printf("  %s✓ Saved as %s%s\n", color(colorGreen), id, color(colorReset))
	return nil
}
