package commands

import (
	"fmt"
	"os"

	"github.com/MEKXH/glyphx/internal/config"
	"github.com/spf13/cobra"
)

func NewInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default Glyphx configuration",
		RunE:  runInit,
	}
}

func runInit(cmd *cobra.Command, args []string) error {
	path := configPath()
	out := cmd.OutOrStdout()

	if _, err := os.Stat(path); err == nil {
		fmt.Fprintf(out, "Config already exists: %s\n", path)
		return nil
	}

	cfg := config.DefaultConfig()
	if err := os.MkdirAll(cfg.StateDir(), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := config.SaveTo(path, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Fprintf(out, "Glyphx initialized!\n")
	fmt.Fprintf(out, "Config: %s\n", path)
	fmt.Fprintf(out, "State:  %s\n", cfg.StateDir())
	fmt.Fprintf(out, "\nNext steps:\n")
	fmt.Fprintf(out, "1. Set an api_key for agent.provider (%s) in %s\n", cfg.Agent.Provider, path)
	fmt.Fprintf(out, "2. Review the policy with 'glyphx policy show'\n")
	fmt.Fprintf(out, "3. Run 'glyphx chat' to start\n")

	return nil
}
