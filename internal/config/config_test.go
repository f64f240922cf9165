package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MEKXH/glyphx/internal/policy"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Agent.MaxSteps != 6 {
		t.Errorf("expected MaxSteps=6, got %d", cfg.Agent.MaxSteps)
	}
	if cfg.Agent.MaxRetries != 2 || cfg.Agent.RetryBaseDelayMs != 1000 {
		t.Errorf("unexpected retry defaults: %+v", cfg.Agent)
	}
	if !cfg.Policy.Enabled || !cfg.Policy.RequireConfirmation {
		t.Error("expected policy and confirmation enabled by default")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoadFrom_CreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Agent.Provider != "openai" {
		t.Fatalf("expected defaults, got %+v", cfg.Agent)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}

	again, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reloading saved defaults failed: %v", err)
	}
	if len(again.Policy.ShellDeny) != len(policy.DefaultShellDeny) {
		t.Fatalf("expected deny list to round-trip, got %d entries", len(again.Policy.ShellDeny))
	}
}

func TestLoadFrom_SnakeCaseKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	raw := `{
  "agent": {"provider": "Claude", "model": "claude-sonnet", "max_tokens": 1024, "mode": "AGENT", "max_steps": 3},
  "policy": {"enabled": true, "require_confirmation": false, "shell_allow": ["ls"], "shell_deny": ["rm\\s+-rf"], "shell_timeout": 30},
  "confirm": {"provider": "auto-deny"},
  "log": {"level": "DEBUG"}
}`
	if err := os.WriteFile(path, []byte(raw), 0600); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom error: %v", err)
	}
	if cfg.Agent.Provider != "claude" || cfg.Agent.Mode != "agent" || cfg.Agent.MaxSteps != 3 {
		t.Fatalf("unexpected agent section: %+v", cfg.Agent)
	}
	if cfg.Policy.RequireConfirmation || cfg.Policy.ShellTimeout != 30 {
		t.Fatalf("unexpected policy section: %+v", cfg.Policy)
	}
	if len(cfg.Policy.ShellAllow) != 1 || cfg.Policy.ShellAllow[0] != "ls" {
		t.Fatalf("unexpected allow list: %v", cfg.Policy.ShellAllow)
	}
	if cfg.Log.Level != "debug" || cfg.Confirm.Provider != ConfirmAutoDeny {
		t.Fatalf("expected normalised values, got log=%q confirm=%q", cfg.Log.Level, cfg.Confirm.Provider)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad provider", func(c *Config) { c.Agent.Provider = "gemini" }, "agent.provider"},
		{"bad mode", func(c *Config) { c.Agent.Mode = "yolo" }, "agent.mode"},
		{"negative steps", func(c *Config) { c.Agent.MaxSteps = -1 }, "max_steps"},
		{"bad temperature", func(c *Config) { c.Agent.Temperature = 3 }, "temperature"},
		{"timeout too long", func(c *Config) { c.Policy.ShellTimeout = 7200 }, "shell_timeout"},
		{"bad pattern", func(c *Config) { c.Policy.ShellDeny = []string{"("} }, "policy"},
		{"telegram without token", func(c *Config) { c.Confirm.Provider = ConfirmTelegram }, "telegram"},
		{"bad confirm provider", func(c *Config) { c.Confirm.Provider = "carrier-pigeon" }, "confirm.provider"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestPolicySnapshot_JailDefaultsToWorkspace(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Agent.WorkspaceMode = "path"
	cfg.Agent.Workspace = ws

	snap := cfg.PolicySnapshot()
	if snap.FileJailRoot != ws {
		t.Fatalf("expected jail %q, got %q", ws, snap.FileJailRoot)
	}

	cfg.Policy.JailToWorkspace = false
	if snap := cfg.PolicySnapshot(); snap.FileJailRoot != "" {
		t.Fatalf("expected no jail, got %q", snap.FileJailRoot)
	}

	explicit := filepath.Join(ws, "only-here")
	cfg.Policy.FileJailRoot = explicit
	if snap := cfg.PolicySnapshot(); snap.FileJailRoot != explicit {
		t.Fatalf("expected explicit jail, got %q", snap.FileJailRoot)
	}
}

func TestPolicySnapshot_IsIndependentCopy(t *testing.T) {
	cfg := DefaultConfig()
	snap := cfg.PolicySnapshot()
	snap.ShellAllow[0] = "mutated"
	if cfg.Policy.ShellAllow[0] == "mutated" {
		t.Fatal("snapshot must not alias config slices")
	}
}
