package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config root configuration
type Config struct {
	Agent     AgentConfig     `mapstructure:"agent"`
	Providers ProvidersConfig `mapstructure:"providers"`
	Policy    PolicyConfig    `mapstructure:"policy"`
	Confirm   ConfirmConfig   `mapstructure:"confirm"`
	Log       LogConfig       `mapstructure:"log"`
	Audit     AuditConfig     `mapstructure:"audit"`
}

// AgentConfig conversation loop settings
type AgentConfig struct {
	Provider           string  `mapstructure:"provider"`
	Model              string  `mapstructure:"model"`
	MaxTokens          int     `mapstructure:"max_tokens"`
	Temperature        float64 `mapstructure:"temperature"`
	Mode               string  `mapstructure:"mode"`
	Workspace          string  `mapstructure:"workspace"`
	WorkspaceMode      string  `mapstructure:"workspace_mode"`
	MaxSteps           int     `mapstructure:"max_steps"`
	MaxRetries         int     `mapstructure:"max_retries"`
	RetryBaseDelayMs   int     `mapstructure:"retry_base_delay_ms"`
	RetryMaxDelayMs    int     `mapstructure:"retry_max_delay_ms"`
	RateLimitPerMinute int     `mapstructure:"rate_limit_per_minute"`
	ContextMaxBytes    int     `mapstructure:"context_max_bytes"`
}

// ProvidersConfig LLM provider settings
type ProvidersConfig struct {
	OpenRouter ProviderConfig `mapstructure:"openrouter"`
	Claude     ProviderConfig `mapstructure:"claude"`
	OpenAI     ProviderConfig `mapstructure:"openai"`
	DeepSeek   ProviderConfig `mapstructure:"deepseek"`
	Ollama     ProviderConfig `mapstructure:"ollama"`
}

// ProviderConfig single provider settings
type ProviderConfig struct {
	APIKey  string `mapstructure:"api_key"`
	BaseURL string `mapstructure:"base_url"`
}

// PolicyConfig safety policy settings
type PolicyConfig struct {
	Enabled             bool     `mapstructure:"enabled"`
	RequireConfirmation bool     `mapstructure:"require_confirmation"`
	AgentConfirmation   bool     `mapstructure:"agent_confirmation"`
	ShellAllow          []string `mapstructure:"shell_allow"`
	ShellDeny           []string `mapstructure:"shell_deny"`
	ShellTimeout        int      `mapstructure:"shell_timeout"` // seconds
	MaxOutputBytes      int      `mapstructure:"max_output_bytes"`
	FileJailRoot        string   `mapstructure:"file_jail_root"`
	JailToWorkspace     bool     `mapstructure:"jail_to_workspace"`
	FileMaxBytes        int64    `mapstructure:"file_max_bytes"`
	FileAllowExt        []string `mapstructure:"file_allow_ext"`
	FileDenyPatterns    []string `mapstructure:"file_deny_patterns"`
}

// ConfirmConfig confirmation provider settings
type ConfirmConfig struct {
	Provider   string         `mapstructure:"provider"`
	TimeoutSec int            `mapstructure:"timeout_sec"`
	Telegram   TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig telegram confirmation bot settings
type TelegramConfig struct {
	Token  string `mapstructure:"token"`
	ChatID int64  `mapstructure:"chat_id"`
}

// LogConfig application logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// AuditConfig audit trail settings
type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

// Confirmation providers.
const (
	ConfirmTUI       = "tui"
	ConfirmTerminal  = "terminal"
	ConfirmTelegram  = "telegram"
	ConfirmAutoAllow = "auto-allow"
	ConfirmAutoDeny  = "auto-deny"
)

// DefaultConfig returns config with sensible defaults
func DefaultConfig() *Config {
	p := policy.DefaultConfig()
	return &Config{
		Agent: AgentConfig{
			Provider:         "openai",
			Model:            "gpt-4o-mini",
			MaxTokens:        4096,
			Temperature:      0.2,
			Mode:             string(policy.ModeChat),
			WorkspaceMode:    "cwd",
			MaxSteps:         6,
			MaxRetries:       2,
			RetryBaseDelayMs: 1000,
			RetryMaxDelayMs:  30000,
			ContextMaxBytes:  16000,
		},
		Providers: ProvidersConfig{},
		Policy: PolicyConfig{
			Enabled:             p.Enabled,
			RequireConfirmation: p.RequireConfirmation,
			AgentConfirmation:   p.AgentConfirmation,
			ShellAllow:          p.ShellAllow,
			ShellDeny:           p.ShellDeny,
			ShellTimeout:        60,
			MaxOutputBytes:      p.MaxOutputBytes,
			JailToWorkspace:     true,
			FileMaxBytes:        p.FileMaxBytes,
			FileAllowExt:        p.FileAllowExt,
			FileDenyPatterns:    p.FileDenyPatterns,
		},
		Confirm: ConfirmConfig{
			Provider:   ConfirmTUI,
			TimeoutSec: 120,
		},
		Log: LogConfig{
			Level: "info",
			File:  "",
		},
		Audit: AuditConfig{
			Enabled: true,
		},
	}
}

// ConfigDir returns the glyphx config directory
func ConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		slog.Warn("failed to resolve home directory, using current directory as fallback", "error", err)
		homeDir = "."
	}
	return filepath.Join(homeDir, ".glyphx")
}

// ConfigPath returns the config file path
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.json")
}

// StateDir returns where the audit trail and runtime metrics live.
func (c *Config) StateDir() string {
	if dir := strings.TrimSpace(c.Audit.Dir); dir != "" {
		return expandHome(dir)
	}
	return filepath.Join(ConfigDir(), "state")
}

// Load loads config from the default path, creating it on first use.
func Load() (*Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom loads config from configPath or returns defaults when the file
// does not exist yet.
func LoadFrom(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := SaveTo(configPath, cfg); err != nil {
			return cfg, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("json")
	v.SetEnvPrefix("GLYPHX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.MatchName = func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		}
	}); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func normalizeKey(input string) string {
	input = strings.ReplaceAll(input, "_", "")
	input = strings.ReplaceAll(input, "-", "")
	return strings.ToLower(input)
}

// Save saves config to the default path
func Save(cfg *Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo saves config to configPath
func SaveTo(configPath string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, data, 0600)
}

// Validate checks that the configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	a := &c.Agent

	if a.MaxSteps < 0 {
		return fmt.Errorf("agent.max_steps must not be negative, got %d", a.MaxSteps)
	}
	if a.MaxSteps == 0 {
		a.MaxSteps = 6
	}
	if a.MaxRetries < 0 {
		return fmt.Errorf("agent.max_retries must not be negative, got %d", a.MaxRetries)
	}
	if a.RateLimitPerMinute < 0 {
		return fmt.Errorf("agent.rate_limit_per_minute must not be negative, got %d", a.RateLimitPerMinute)
	}

	if a.Temperature < 0 || a.Temperature > 2.0 {
		return fmt.Errorf("agent.temperature must be between 0 and 2.0, got %f", a.Temperature)
	}
	if a.MaxTokens <= 0 {
		return fmt.Errorf("agent.max_tokens must be > 0, got %d", a.MaxTokens)
	}

	provider := strings.ToLower(strings.TrimSpace(a.Provider))
	validProviders := map[string]bool{"openai": true, "openrouter": true, "deepseek": true, "claude": true, "ollama": true}
	if !validProviders[provider] {
		return fmt.Errorf("agent.provider must be one of openai, openrouter, deepseek, claude, ollama; got %q", a.Provider)
	}
	a.Provider = provider

	mode := strings.ToLower(strings.TrimSpace(a.Mode))
	if mode == "" {
		mode = string(policy.ModeChat)
	}
	if mode != string(policy.ModeChat) && mode != string(policy.ModeAgent) {
		return fmt.Errorf("agent.mode must be chat or agent, got %q", a.Mode)
	}
	a.Mode = mode

	wsMode := strings.TrimSpace(a.WorkspaceMode)
	if wsMode != "" {
		validModes := map[string]bool{"default": true, "cwd": true, "path": true}
		if !validModes[strings.ToLower(wsMode)] {
			return fmt.Errorf("agent.workspace_mode must be one of: default, cwd, path; got %q", wsMode)
		}
		if strings.EqualFold(wsMode, "path") && strings.TrimSpace(a.Workspace) == "" {
			return fmt.Errorf("agent.workspace must be non-empty when workspace_mode is \"path\"")
		}
	}

	p := &c.Policy
	if p.ShellTimeout == 0 {
		p.ShellTimeout = 60
	}
	if p.ShellTimeout < 1 || p.ShellTimeout > 3600 {
		return fmt.Errorf("policy.shell_timeout must be between 1 and 3600 seconds, got %d", p.ShellTimeout)
	}
	if _, err := policy.Compile(c.PolicySnapshot()); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	confirm := strings.ToLower(strings.TrimSpace(c.Confirm.Provider))
	switch confirm {
	case "":
		confirm = ConfirmTUI
	case ConfirmTUI, ConfirmTerminal, ConfirmAutoAllow, ConfirmAutoDeny:
	case ConfirmTelegram:
		if strings.TrimSpace(c.Confirm.Telegram.Token) == "" || c.Confirm.Telegram.ChatID == 0 {
			return fmt.Errorf("confirm.telegram.token and confirm.telegram.chat_id are required for the telegram provider")
		}
	default:
		return fmt.Errorf("confirm.provider must be one of tui, terminal, telegram, auto-allow, auto-deny; got %q", c.Confirm.Provider)
	}
	c.Confirm.Provider = confirm
	if c.Confirm.TimeoutSec < 0 {
		return fmt.Errorf("confirm.timeout_sec must not be negative, got %d", c.Confirm.TimeoutSec)
	}

	level := strings.ToLower(strings.TrimSpace(c.Log.Level))
	if level == "" {
		c.Log.Level = "info"
	} else {
		validLevels := map[string]bool{
			"debug": true,
			"info":  true,
			"warn":  true,
			"error": true,
		}
		if !validLevels[level] {
			return fmt.Errorf("log.level must be one of debug, info, warn, error; got %q", c.Log.Level)
		}
		c.Log.Level = level
	}

	return nil
}

// PolicySnapshot converts the policy section into an immutable rule set.
// The jail defaults to the workspace when jail_to_workspace is set.
func (c *Config) PolicySnapshot() policy.Config {
	p := c.Policy
	jail := strings.TrimSpace(p.FileJailRoot)
	if jail == "" && p.JailToWorkspace {
		if ws, err := c.WorkspacePathChecked(); err == nil {
			jail = ws
		}
	}
	return policy.Config{
		Enabled:             p.Enabled,
		RequireConfirmation: p.RequireConfirmation,
		AgentConfirmation:   p.AgentConfirmation,
		ShellAllow:          append([]string(nil), p.ShellAllow...),
		ShellDeny:           append([]string(nil), p.ShellDeny...),
		MaxOutputBytes:      p.MaxOutputBytes,
		FileJailRoot:        expandHome(jail),
		FileMaxBytes:        p.FileMaxBytes,
		FileAllowExt:        append([]string(nil), p.FileAllowExt...),
		FileDenyPatterns:    append([]string(nil), p.FileDenyPatterns...),
	}
}

// WorkspacePathChecked returns the expanded workspace path or an error if invalid.
func (c *Config) WorkspacePathChecked() (string, error) {
	mode := strings.TrimSpace(c.Agent.WorkspaceMode)
	if strings.EqualFold(mode, "default") {
		return filepath.Join(ConfigDir(), "workspace"), nil
	}
	if mode == "" || strings.EqualFold(mode, "cwd") {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to resolve cwd: %w", err)
		}
		return wd, nil
	}
	if !strings.EqualFold(mode, "path") {
		return "", fmt.Errorf("unknown workspace_mode: %s", mode)
	}
	if c.Agent.Workspace == "" {
		return "", fmt.Errorf("workspace is required when workspace_mode=path")
	}
	return expandHome(c.Agent.Workspace), nil
}

func expandHome(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	rest := path[1:]
	rest = strings.TrimPrefix(rest, string(filepath.Separator))
	rest = strings.TrimPrefix(rest, "/")
	return filepath.Join(homeDir, rest)
}
