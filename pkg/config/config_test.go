package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
storageDir: /var/lib/workflows
remoteUrl: ws://localhost:9222/session
agentUrl: http://localhost:8090
actionTimeout: 15s
agentTimeout: 3m
env:
  query: default-query
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StorageDir != "/var/lib/workflows" {
		t.Errorf("StorageDir = %q", cfg.StorageDir)
	}
	if cfg.RemoteURL != "ws://localhost:9222/session" {
		t.Errorf("RemoteURL = %q", cfg.RemoteURL)
	}
	if cfg.ActionTimeout.Std() != 15*time.Second {
		t.Errorf("ActionTimeout = %v", cfg.ActionTimeout)
	}
	if cfg.AgentTimeout.Std() != 3*time.Minute {
		t.Errorf("AgentTimeout = %v", cfg.AgentTimeout)
	}
	if cfg.Env["query"] != "default-query" {
		t.Errorf("Env = %v", cfg.Env)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("storageDir: [unclosed"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid yaml")
	}
}

func TestLoadFromDir_Defaults(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.StorageDir != "./workflows" {
		t.Errorf("default StorageDir = %q", cfg.StorageDir)
	}
	if cfg.ActionTimeout.Std() != 10*time.Second {
		t.Errorf("default ActionTimeout = %v", cfg.ActionTimeout)
	}
	if cfg.AgentTimeout.Std() != 2*time.Minute {
		t.Errorf("default AgentTimeout = %v", cfg.AgentTimeout)
	}
}

func TestLoadFromDir_FindsYml(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yml"), []byte("storageDir: ./wf"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.StorageDir != "./wf" {
		t.Errorf("StorageDir = %q", cfg.StorageDir)
	}
}
