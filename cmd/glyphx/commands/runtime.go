package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/MEKXH/glyphx/internal/agent"
	"github.com/MEKXH/glyphx/internal/approval"
	"github.com/MEKXH/glyphx/internal/audit"
	"github.com/MEKXH/glyphx/internal/command"
	"github.com/MEKXH/glyphx/internal/config"
	"github.com/MEKXH/glyphx/internal/metrics"
	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/MEKXH/glyphx/internal/session"
	"github.com/MEKXH/glyphx/internal/tools"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// historyLimit bounds the remembered turns sent with each request.
const historyLimit = 40

// runtime is everything one interactive or one-shot session needs.
type runtime struct {
	cfg        *config.Config
	workspace  string
	sessionKey string

	gate     *approval.Gate
	bridge   *tools.Bridge
	loop     *agent.Loop
	sessions *session.Manager
	commands *command.Registry
	metrics  *metrics.RuntimeMetrics
	audit    audit.Recorder
}

func newRuntime(cfg *config.Config, chatModel einomodel.BaseChatModel, mode policy.Mode) (*runtime, error) {
	workspace, err := cfg.WorkspacePathChecked()
	if err != nil {
		return nil, fmt.Errorf("invalid workspace: %w", err)
	}
	if err := os.MkdirAll(workspace, 0755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	validator, err := policy.Compile(cfg.PolicySnapshot())
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}

	stateDir := cfg.StateDir()
	var rec audit.Recorder = audit.Nop{}
	if cfg.Audit.Enabled {
		rec = audit.NewWriter(stateDir)
	}
	m := metrics.NewRuntimeMetrics(stateDir)

	registry, err := tools.DefaultRegistry()
	if err != nil {
		return nil, fmt.Errorf("register tools: %w", err)
	}

	sessionKey := session.NewKey()
	gate := approval.NewGate(approval.DefaultGateBuffer, time.Duration(cfg.Confirm.TimeoutSec)*time.Second)
	bridge := tools.NewBridge(validator, gate, tools.Options{
		Mode:                mode,
		Session:             sessionKey,
		DefaultShellTimeout: time.Duration(cfg.Policy.ShellTimeout) * time.Second,
		Audit:               rec,
		Metrics:             m,
	})

	loop := agent.NewLoop(chatModel, registry, bridge, agent.Options{
		MaxSteps: cfg.Agent.MaxSteps,
		Retry: agent.RetryPolicy{
			MaxAttempts: cfg.Agent.MaxRetries + 1,
			BaseDelay:   time.Duration(cfg.Agent.RetryBaseDelayMs) * time.Millisecond,
			MaxDelay:    time.Duration(cfg.Agent.RetryMaxDelayMs) * time.Millisecond,
		},
		ContextMaxBytes:    cfg.Agent.ContextMaxBytes,
		RateLimitPerMinute: cfg.Agent.RateLimitPerMinute,
		Metrics:            m,
	})

	logAndAuditPolicyStartup(rec, sessionKey, validator.Config(), mode)

	return &runtime{
		cfg:        cfg,
		workspace:  workspace,
		sessionKey: sessionKey,
		gate:       gate,
		bridge:     bridge,
		loop:       loop,
		sessions:   session.NewManager(stateDir),
		commands:   command.DefaultRegistry(),
		metrics:    m,
		audit:      rec,
	}, nil
}

// messages builds the model input on top of the remembered history. The
// system prompt follows the current mode, which /mode may have changed.
func (rt *runtime) messages(input string) []*schema.Message {
	hist := rt.sessions.GetOrCreate(rt.sessionKey).GetHistory(historyLimit)
	turns := make([]agent.Turn, 0, len(hist))
	for _, m := range hist {
		turns = append(turns, agent.Turn{Role: m.Role, Content: m.Content})
	}
	return agent.NewContextBuilder(rt.workspace, rt.bridge.Mode()).BuildMessages(turns, input)
}

// remember stores a completed exchange.
func (rt *runtime) remember(input, answer string) {
	sess := rt.sessions.GetOrCreate(rt.sessionKey)
	sess.AddMessage("user", input)
	sess.AddMessage("assistant", answer)
	if err := rt.sessions.Save(sess); err != nil {
		slog.Warn("failed to save session", "session", rt.sessionKey, "error", err)
	}
}

// slashCommand runs input as a slash command when it is one.
func (rt *runtime) slashCommand(ctx context.Context, input string) (string, bool) {
	cmd, args, ok := rt.commands.Lookup(input)
	if !ok {
		return "", false
	}
	res := cmd.Execute(ctx, args, command.Env{
		SessionKey:    rt.sessionKey,
		Sessions:      rt.sessions,
		Bridge:        rt.bridge,
		WorkspacePath: rt.workspace,
		Config:        rt.cfg,
		Metrics:       rt.metrics,
		ListCommands:  rt.commands.List,
	})
	return res.Content, true
}
