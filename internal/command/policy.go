package command

import (
	"context"
	"fmt"
	"strings"
)

// PolicyCommand implements /policy: summarises the active safety policy.
type PolicyCommand struct{}

func (c *PolicyCommand) Name() string        { return "policy" }
func (c *PolicyCommand) Description() string { return "Show the active safety policy" }

func (c *PolicyCommand) Execute(_ context.Context, _ string, env Env) Result {
	if env.Bridge == nil {
		return Result{Content: "Tool execution is not available."}
	}
	cfg := env.Bridge.Validator().Config()

	var sb strings.Builder
	sb.WriteString("**Safety Policy**\n\n")
	sb.WriteString(fmt.Sprintf("- Enabled: `%t`\n", cfg.Enabled))
	sb.WriteString(fmt.Sprintf("- Confirmation: `%t` (agent mode: `%t`)\n", cfg.RequireConfirmation, cfg.AgentConfirmation))
	if len(cfg.ShellAllow) > 0 {
		sb.WriteString(fmt.Sprintf("- Shell allow: %s\n", strings.Join(cfg.ShellAllow, ", ")))
	} else {
		sb.WriteString("- Shell allow: (any)\n")
	}
	sb.WriteString(fmt.Sprintf("- Shell deny patterns: %d\n", len(cfg.ShellDeny)))
	jail := cfg.FileJailRoot
	if jail == "" {
		jail = "(none)"
	}
	sb.WriteString(fmt.Sprintf("- File jail: `%s`\n", jail))
	sb.WriteString(fmt.Sprintf("- Max output: %d bytes, max file: %d bytes\n", cfg.MaxOutputBytes, cfg.FileMaxBytes))

	if warnings := cfg.Warnings(); len(warnings) > 0 {
		sb.WriteString("\n**Warnings:**\n\n")
		for _, w := range warnings {
			sb.WriteString("- " + w + "\n")
		}
	}
	return Result{Content: sb.String()}
}
