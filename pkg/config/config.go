// Package config handles configuration for workflow-runner.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from yaml strings like "15s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the standard library representation.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config represents the workspace configuration (config.yaml).
type Config struct {
	// Storage settings
	StorageDir string `yaml:"storageDir"` // Workflow store root (default ./workflows)

	// Endpoints
	RemoteURL string `yaml:"remoteUrl"` // Websocket browser companion
	AgentURL  string `yaml:"agentUrl"`  // HTTP agent sidecar

	// Execution settings
	ActionTimeout Duration          `yaml:"actionTimeout"` // Per-action ceiling
	AgentTimeout  Duration          `yaml:"agentTimeout"`  // Per-healing-invocation ceiling
	Env           map[string]string `yaml:"env"`           // Default workflow inputs
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- user-provided config file
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// LoadFromDir looks for config.yaml or config.yml in the directory.
func LoadFromDir(dir string) (*Config, error) {
	// Try config.yaml first
	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// Try config.yml
	configPath = filepath.Join(dir, "config.yml")
	if _, err := os.Stat(configPath); err == nil {
		return Load(configPath)
	}

	// No config file found, return defaults
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.StorageDir == "" {
		c.StorageDir = "./workflows"
	}
	if c.ActionTimeout == 0 {
		c.ActionTimeout = Duration(10 * time.Second)
	}
	if c.AgentTimeout == 0 {
		c.AgentTimeout = Duration(2 * time.Minute)
	}
}
