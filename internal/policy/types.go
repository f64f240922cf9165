package policy

import (
	"fmt"
	"strings"
)

// Config is the declarative rule set consumed by the validator.
// A Config is treated as an immutable snapshot once compiled.
type Config struct {
	Enabled             bool
	RequireConfirmation bool
	// AgentConfirmation controls whether agent mode may prompt the operator.
	// When false, agent mode fails closed instead of prompting.
	AgentConfirmation bool

	ShellAllow     []string
	ShellDeny      []string
	MaxOutputBytes int

	FileJailRoot     string
	FileMaxBytes     int64
	FileAllowExt     []string
	FileDenyPatterns []string
}

// Decision is the verdict for a single operation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Reason: reason}
}

func deny(format string, args ...any) Decision {
	return Decision{Allowed: false, Reason: fmt.Sprintf(format, args...)}
}

// DefaultShellAllow is the built-in executable allow list.
var DefaultShellAllow = []string{
	"ls", "dir", "echo", "pwd", "cd", "git", "npm", "pip", "python", "python3",
	"node", "cat", "type", "find", "grep", "curl", "wget", "pytest",
	"make", "cargo", "go", "dotnet", "java", "mvn", "gradle",
}

// DefaultShellDeny holds the built-in denied command patterns.
var DefaultShellDeny = []string{
	`rm\s+-rf`, `del\s+/f`, `format\s+`, `shutdown`, `reboot`,
	`kill\s+-9`, `taskkill\s+/f`, `net\s+user`, `reg\s+`,
	`mkfs\.`, `dd\s+if=`, `fdisk`, `diskpart`,
}

// DefaultFileAllowExt lists extensions that may be written.
var DefaultFileAllowExt = []string{
	".txt", ".md", ".json", ".yml", ".yaml", ".py", ".js", ".ts",
	".html", ".css", ".csv", ".log", ".conf", ".ini", ".toml",
	".xml", ".rst", ".sh", ".bash", ".sql", ".c", ".cpp", ".h",
	".java", ".go", ".rs", ".rb", ".php", ".pl", ".r", ".m",
}

// DefaultFileDenyPatterns holds the built-in denied path patterns.
var DefaultFileDenyPatterns = []string{
	`.*\.exe$`, `.*\.dll$`, `.*\.sys$`, `.*\.bat$`, `.*\.cmd$`,
	`.*/System32/.*`, `.*/Windows/.*`, `.*/etc/passwd.*`,
	`.*\.so$`, `.*\.dylib$`, `.*/bin/.*`,
}

const (
	DefaultMaxOutputBytes = 50000
	DefaultFileMaxBytes   = 1 << 20
)

// DefaultConfig returns the built-in policy.
func DefaultConfig() Config {
	return Config{
		Enabled:             true,
		RequireConfirmation: true,
		AgentConfirmation:   true,
		ShellAllow:          append([]string(nil), DefaultShellAllow...),
		ShellDeny:           append([]string(nil), DefaultShellDeny...),
		MaxOutputBytes:      DefaultMaxOutputBytes,
		FileMaxBytes:        DefaultFileMaxBytes,
		FileAllowExt:        append([]string(nil), DefaultFileAllowExt...),
		FileDenyPatterns:    append([]string(nil), DefaultFileDenyPatterns...),
	}
}

// shortDenyList is the size under which a deny list is considered thin.
const shortDenyList = 5

// Warnings reports configuration combinations that amount to unrestricted execution.
func (c Config) Warnings() []string {
	var warnings []string
	if !c.Enabled {
		warnings = append(warnings, "policy disabled: every shell command and file path is allowed without validation")
		return warnings
	}
	if !c.RequireConfirmation && len(c.ShellAllow) == 0 && len(c.ShellDeny) < shortDenyList {
		warnings = append(warnings, fmt.Sprintf(
			"effectively unrestricted shell execution: confirmation off, empty allow list, only %d deny patterns",
			len(c.ShellDeny)))
	}
	if c.FileJailRoot == "" {
		warnings = append(warnings, "no file jail root configured: file tools may touch any path not matched by a deny pattern")
	}
	return warnings
}

// Mode is the execution mode of a session.
type Mode string

const (
	ModeChat  Mode = "chat"
	ModeAgent Mode = "agent"
)

// ParseMode normalizes a mode name. Unknown names fall back to chat,
// the mode that prompts for everything not policy-allowed.
func ParseMode(raw string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeAgent:
		return ModeAgent
	default:
		return ModeChat
	}
}

// MayPrompt reports whether an operation the validator rejected may be
// escalated to the operator in the given mode.
func (c Config) MayPrompt(mode Mode) bool {
	if !c.RequireConfirmation {
		return false
	}
	if mode == ModeAgent {
		return c.AgentConfirmation
	}
	return true
}
