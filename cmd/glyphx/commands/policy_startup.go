package commands

import (
	"log/slog"

	"github.com/MEKXH/glyphx/internal/audit"
	"github.com/MEKXH/glyphx/internal/policy"
)

// logAndAuditPolicyStartup reports the active policy and every warning it
// produces to both the log and the audit trail.
func logAndAuditPolicyStartup(rec audit.Recorder, sessionKey string, cfg policy.Config, mode policy.Mode) {
	slog.Info("safety policy configured",
		"session", sessionKey,
		"mode", mode,
		"enabled", cfg.Enabled,
		"require_confirmation", cfg.RequireConfirmation,
		"agent_confirmation", cfg.AgentConfirmation,
		"shell_allow", len(cfg.ShellAllow),
		"shell_deny", len(cfg.ShellDeny),
		"jail", cfg.FileJailRoot,
	)

	for _, warning := range cfg.Warnings() {
		slog.Warn(warning, "session", sessionKey, "mode", mode)
		if rec == nil {
			continue
		}
		if err := rec.Append(audit.Event{
			Type:    audit.TypePolicyWarn,
			Session: sessionKey,
			Mode:    string(mode),
			Reason:  warning,
		}); err != nil {
			slog.Warn("failed to audit policy warning", "error", err)
		}
	}
}
