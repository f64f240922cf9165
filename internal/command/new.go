package command

import (
	"context"
	"log/slog"
)

// NewSessionCommand implements /new and resets the current conversation.
// Remembered approvals belong to the bridge and survive.
type NewSessionCommand struct{}

func (c *NewSessionCommand) Name() string        { return "new" }
func (c *NewSessionCommand) Description() string { return "Start a new conversation" }

func (c *NewSessionCommand) Execute(_ context.Context, _ string, env Env) Result {
	if env.Sessions == nil {
		return Result{Content: "No conversation to reset."}
	}
	if err := env.Sessions.Reset(env.SessionKey); err != nil {
		slog.Warn("session reset failed", "session_key", env.SessionKey, "error", err)
		return Result{Content: "Conversation cleared, but the saved history could not be removed: " + err.Error()}
	}
	slog.Info("session reset via /new", "session_key", env.SessionKey)
	return Result{Content: "New conversation started."}
}
