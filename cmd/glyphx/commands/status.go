package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MEKXH/glyphx/internal/metrics"
	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration and runtime metrics",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, "=== Glyphx Status ===")
	fmt.Fprintln(out)

	path := configPath()
	fmt.Fprintf(out, "Config: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Fprintln(out, "  Status: OK")
	} else {
		fmt.Fprintln(out, "  Status: Not found (run 'glyphx init')")
	}

	workspacePath, err := cfg.WorkspacePathChecked()
	if err != nil {
		return fmt.Errorf("invalid workspace: %w", err)
	}
	fmt.Fprintf(out, "\nWorkspace: %s (%s)\n", workspacePath, cfg.Agent.WorkspaceMode)
	fmt.Fprintf(out, "Model: %s/%s\n", cfg.Agent.Provider, cfg.Agent.Model)
	fmt.Fprintf(out, "Mode: %s\n", cfg.Agent.Mode)
	fmt.Fprintf(out, "Confirmations: %s (timeout %ds)\n", cfg.Confirm.Provider, cfg.Confirm.TimeoutSec)

	stateDir := cfg.StateDir()
	fmt.Fprintf(out, "\nState: %s\n", stateDir)
	if cfg.Audit.Enabled {
		fmt.Fprintf(out, "  Audit: %s\n", filepath.Join(stateDir, "audit.jsonl"))
	} else {
		fmt.Fprintln(out, "  Audit: disabled")
	}

	snap, err := metrics.ReadRuntimeSnapshot(stateDir)
	if err != nil {
		fmt.Fprintf(out, "  Metrics: unreadable (%v)\n", err)
		return nil
	}
	if !snap.HasData() {
		fmt.Fprintln(out, "  Metrics: no data yet")
		return nil
	}
	fmt.Fprintf(out, "  Metrics (updated %s):\n", snap.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "    %s\n", snap.Summary())
	fmt.Fprintf(out, "    denied %.1f%%, timeouts %.1f%%, avg %.0fms, p95 %dms\n",
		snap.Tool.DenialRatio()*100,
		snap.Tool.TimeoutRatio()*100,
		snap.Tool.AvgLatencyMs(),
		snap.Tool.P95ProxyLatencyMs,
	)
	return nil
}
