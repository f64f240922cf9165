package command

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/MEKXH/glyphx/internal/config"
)

// StatusCommand implements /status: shows runtime status summary.
type StatusCommand struct{}

func (c *StatusCommand) Name() string        { return "status" }
func (c *StatusCommand) Description() string { return "Show runtime status" }

func (c *StatusCommand) Execute(_ context.Context, _ string, env Env) Result {
	var sb strings.Builder
	sb.WriteString("**Glyphx Status**\n\n")

	if env.Config != nil {
		sb.WriteString(fmt.Sprintf("- **Model:** `%s/%s`\n", env.Config.Agent.Provider, env.Config.Agent.Model))
	}
	sb.WriteString(fmt.Sprintf("- **Workspace:** `%s`\n", env.WorkspacePath))
	if env.Bridge != nil {
		sb.WriteString(fmt.Sprintf("- **Mode:** `%s`, %d remembered decision(s)\n", env.Bridge.Mode(), env.Bridge.Approvals()))
	}
	if env.Sessions != nil && env.SessionKey != "" {
		sb.WriteString(fmt.Sprintf("- **Conversation:** %d message(s)\n", env.Sessions.GetOrCreate(env.SessionKey).Len()))
	}

	sb.WriteString("\n**Metrics:**\n\n")
	if env.Metrics != nil {
		snap := env.Metrics.Snapshot()
		if snap.HasData() {
			sb.WriteString(fmt.Sprintf("- Updated: `%s`\n", snap.UpdatedAt.Format(time.RFC3339)))
			sb.WriteString(fmt.Sprintf("- Tools: %d calls, denied=%.1f%%, timeouts=%.1f%%, p95=%dms\n",
				snap.Tool.Total,
				snap.Tool.DenialRatio()*100,
				snap.Tool.TimeoutRatio()*100,
				snap.Tool.P95ProxyLatencyMs,
			))
			sb.WriteString(fmt.Sprintf("- Model: %d calls, %d retries, %d failures\n",
				snap.Model.Calls, snap.Model.Retries, snap.Model.Failures))
		} else {
			sb.WriteString("- No data yet\n")
		}
	} else {
		sb.WriteString("- Unavailable\n")
	}

	configStatus := ""
	if _, err := os.Stat(config.ConfigPath()); err != nil {
		configStatus = " (not found)"
	}
	sb.WriteString(fmt.Sprintf("\n- **Config:** `%s`%s\n", config.ConfigPath(), configStatus))

	return Result{Content: sb.String()}
}
