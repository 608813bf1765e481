// Package cli provides the command-line interface for workflow-runner.
package cli

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

// Version is set at build time.
var Version = "dev"

// GlobalFlags are available to all commands.
var GlobalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "config",
		Usage:   "Path to workspace config.yaml",
		EnvVars: []string{"WORKFLOW_CONFIG"},
	},
	&cli.StringFlag{
		Name:    "storage-dir",
		Usage:   "Workflow store directory (overrides config)",
		EnvVars: []string{"WORKFLOW_STORAGE_DIR"},
	},
	&cli.StringFlag{
		Name:    "remote-url",
		Usage:   "Websocket URL of the browser companion",
		EnvVars: []string{"WORKFLOW_REMOTE_URL"},
	},
	&cli.StringFlag{
		Name:    "agent-url",
		Usage:   "HTTP URL of the agent sidecar",
		EnvVars: []string{"WORKFLOW_AGENT_URL"},
	},
	&cli.StringFlag{
		Name:    "driver",
		Aliases: []string{"d"},
		Usage:   "Driver to use (remote, mock)",
		Value:   "remote",
		EnvVars: []string{"WORKFLOW_DRIVER"},
	},
	&cli.BoolFlag{
		Name:    "verbose",
		Usage:   "Enable verbose logging",
		EnvVars: []string{"WORKFLOW_VERBOSE"},
	},
	&cli.BoolFlag{
		Name:  "no-ansi",
		Usage: "Disable ANSI colors",
	},
}

// Execute runs the CLI.
func Execute() {
	app := &cli.App{
		Name:    "workflow-runner",
		Usage:   "Record-once, replay-forever browser workflows",
		Version: Version,
		Description: `Workflow Runner replays saved browser workflows deterministically,
falling back to a browsing agent only when a step breaks.

Examples:
  workflow-runner run checkout.workflow.json --input query=laptop
  workflow-runner generate "order a laptop from the usual shop"
  workflow-runner workflows list
  workflow-runner mcp`,
		Flags: GlobalFlags,
		Commands: []*cli.Command{
			runCommand,
			generateCommand,
			workflowsCommand,
			mcpCommand,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
