package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// ApprovalsCommand implements /approvals: shows or clears remembered decisions.
type ApprovalsCommand struct{}

func (c *ApprovalsCommand) Name() string        { return "approvals" }
func (c *ApprovalsCommand) Description() string { return "Show remembered approvals; `/approvals reset` forgets them" }

func (c *ApprovalsCommand) Execute(_ context.Context, args string, env Env) Result {
	if env.Bridge == nil {
		return Result{Content: "Tool execution is not available."}
	}
	switch strings.ToLower(strings.TrimSpace(args)) {
	case "":
		return Result{Content: fmt.Sprintf("%d remembered decision(s) this session.", env.Bridge.Approvals())}
	case "reset", "clear":
		n := env.Bridge.Approvals()
		env.Bridge.ResetApprovals()
		slog.Info("approvals reset via /approvals", "session_key", env.SessionKey, "forgotten", n)
		return Result{Content: fmt.Sprintf("Forgot %d remembered decision(s).", n)}
	default:
		return Result{Content: "Usage: `/approvals` or `/approvals reset`"}
	}
}
