package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/browserlab-dev/workflow-runner/pkg/storage"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

var workflowsCommand = &cli.Command{
	Name:  "workflows",
	Usage: "Manage the workflow store",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "List stored workflows",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:  "query",
					Usage: "Filter by name or source task substring",
				},
				&cli.StringFlag{
					Name:  "mode",
					Usage: "Filter by generation mode (recorded, agent-generated)",
				},
			},
			Action: runWorkflowsList,
		},
		{
			Name:      "show",
			Usage:     "Print a stored workflow as JSON",
			ArgsUsage: "<id or name>",
			Action:    runWorkflowsShow,
		},
		{
			Name:      "delete",
			Usage:     "Delete a stored workflow",
			ArgsUsage: "<id>",
			Action:    runWorkflowsDelete,
		},
	},
}

func runWorkflowsList(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}

	summaries := store.List(storage.Filter{
		Query:          c.String("query"),
		GenerationMode: workflow.GenerationMode(c.String("mode")),
	})
	if len(summaries) == 0 {
		fmt.Println("  no workflows stored")
		return nil
	}
	for _, s := range summaries {
		fmt.Printf("  %s%s%s  %s%s%s (%s)\n",
			color(colorGray), s.ID, color(colorReset),
			color(colorBold), s.Name, color(colorReset), s.GenerationMode)
		if s.SourceTask != "" {
			fmt.Printf("      %s%s%s\n", color(colorGray), s.SourceTask, color(colorReset))
		}
	}
	return nil
}

func runWorkflowsShow(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one workflow id or name")
	}
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
	data, err := workflow.Serialize(def)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runWorkflowsDelete(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one workflow id")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	if err := store.Delete(c.Args().First()); err != nil {
		return err
	}
	fmt.Printf("  %s✓ deleted %s%s\n", color(colorGreen), c.Args().First(), color(colorReset))
	return nil
}
