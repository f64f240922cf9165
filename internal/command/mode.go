package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/MEKXH/glyphx/internal/policy"
)

// ModeCommand implements /mode: shows or switches the execution mode.
type ModeCommand struct{}

func (c *ModeCommand) Name() string        { return "mode" }
func (c *ModeCommand) Description() string { return "Show or switch execution mode (chat|agent)" }

func (c *ModeCommand) Execute(_ context.Context, args string, env Env) Result {
	if env.Bridge == nil {
		return Result{Content: "Tool execution is not available."}
	}
	args = strings.ToLower(strings.TrimSpace(args))
	if args == "" {
		return Result{Content: fmt.Sprintf("Mode: `%s`", env.Bridge.Mode())}
	}
	if args != string(policy.ModeChat) && args != string(policy.ModeAgent) {
		return Result{Content: fmt.Sprintf("Unknown mode %q. Use `/mode chat` or `/mode agent`.", args)}
	}
	mode := policy.Mode(args)
	env.Bridge.SetMode(mode)

	msg := fmt.Sprintf("Mode switched to `%s`.", mode)
	if !env.Bridge.Validator().Config().MayPrompt(mode) {
		msg += " Operations outside policy will be blocked without asking."
	}
	return Result{Content: msg}
}
