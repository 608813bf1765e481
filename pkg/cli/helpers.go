package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/browserlab-dev/workflow-runner/pkg/agent"
	"github.com/browserlab-dev/workflow-runner/pkg/config"
	"github.com/browserlab-dev/workflow-runner/pkg/core"
	"github.com/browserlab-dev/workflow-runner/pkg/driver/mock"
	"github.com/browserlab-dev/workflow-runner/pkg/driver/remote"
	"github.com/browserlab-dev/workflow-runner/pkg/logger"
	"github.com/browserlab-dev/workflow-runner/pkg/storage"
	"github.com/browserlab-dev/workflow-runner/pkg/workflow"
)

// ANSI color codes
const (
	colorReset = "\033[0m"
	colorBold  = "\033[1m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorGray  = "\033[90m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	// Respect NO_COLOR environment variable
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	// Check if stdout is a terminal
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

// loadConfig merges the workspace config with global flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var cfg *config.Config
	var err error
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadFromDir(".")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if v := c.String("storage-dir"); v != "" {
		cfg.StorageDir = v
	}
	if v := c.String("remote-url"); v != "" {
		cfg.RemoteURL = v
	}
	if v := c.String("agent-url"); v != "" {
		cfg.AgentURL = v
	}
	if c.Bool("no-ansi") {
		colorsEnabled = false
	}
	return cfg, nil
}

func initLogger(c *cli.Context) {
	if err := logger.Init(c.Bool("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: logging disabled: %v\n", err)
	}
}

func openStore(cfg *config.Config) (*storage.Service, error) {
	store, err := storage.New(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open workflow store at %s: %w", cfg.StorageDir, err)
	}
	return store, nil
}

// buildDriver selects the driver from the --driver flag.
func buildDriver(c *cli.Context, cfg *config.Config) (core.Driver, error) {
	switch strings.ToLower(c.String("driver")) {
	case "mock":
		return mock.New(mock.Config{}), nil
	case "", "remote":
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("no browser companion configured; set remoteUrl in config.yaml or pass --remote-url")
		}
		return remote.New(cfg.RemoteURL), nil
	default:
		return nil, fmt.Errorf("unknown driver %q (want remote or mock)", c.String("driver"))
	}
}

// buildAgent returns nil when no sidecar is configured; callers degrade to
// deterministic-only execution.
func buildAgent(cfg *config.Config) *agent.RemoteRunner {
	if cfg.AgentURL == "" {
		return nil
	}
	return agent.NewRemoteRunner(cfg.AgentURL)
}

// resolveDefinition loads a workflow from a file path, a store id, or a
// store name, in that order.
func resolveDefinition(store *storage.Service, ref string) (*workflow.Definition, error) {
	if _, err := os.Stat(ref); err == nil {
		return workflow.ParseFile(ref)
	}
	if def, err := store.Get(ref); err == nil {
		return def, nil
	}
	def, err := store.GetByName(ref)
	if err != nil {
		return nil, fmt.Errorf("no workflow file, id, or name matches %q", ref)
	}
	return def, nil
}

// parseInputs turns --input KEY=VALUE pairs into typed workflow inputs,
// using the declared variable types to coerce values.
func parseInputs(def *workflow.Definition, pairs []string, defaults map[string]string) (map[string]any, error) {
	inputs := map[string]any{}
	for name, value := range defaults {
		if v, ok := def.Variable(name); ok {
			typed, err := coerceInput(v, value)
			if err != nil {
				return nil, err
			}
			inputs[name] = typed
		}
	}
	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, fmt.Errorf("invalid --input %q (want KEY=VALUE)", pair)
		}
		v, ok := def.Variable(name)
		if !ok {
			return nil, fmt.Errorf("workflow %q declares no variable %q", def.Name, name)
		}
		typed, err := coerceInput(v, value)
		if err != nil {
			return nil, err
		}
		inputs[name] = typed
	}
	return inputs, nil
}

func coerceInput(v workflow.Variable, raw string) (any, error) {
	switch v.Type {
	case workflow.TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("variable %q expects a number, got %q", v.Name, raw)
		}
		return n, nil
	case workflow.TypeBool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("variable %q expects a bool, got %q", v.Name, raw)
		}
		return b, nil
	default:
		return raw, nil
	}
}
