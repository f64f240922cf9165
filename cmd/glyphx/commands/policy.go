package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/MEKXH/glyphx/internal/policy"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewPolicyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Inspect the safety policy",
	}

	cmd.AddCommand(
		newPolicyShowCmd(),
		newPolicyCheckShellCmd(),
		newPolicyCheckPathCmd(),
	)

	return cmd
}

func newPolicyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy and its warnings",
		RunE:  runPolicyShow,
	}
}

func newPolicyCheckShellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-shell <command>",
		Short: "Validate a shell command without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runPolicyCheckShell,
	}
}

func newPolicyCheckPathCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check-path <path>",
		Short: "Validate a file path without touching it",
		Args:  cobra.ExactArgs(1),
		RunE:  runPolicyCheckPath,
	}
	cmd.Flags().Bool("write", false, "Validate for writing instead of reading")
	return cmd
}

func loadValidator() (*policy.Validator, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	v, err := policy.Compile(cfg.PolicySnapshot())
	if err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	return v, nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	v, err := loadValidator()
	if err != nil {
		return err
	}
	printPolicy(cmd.OutOrStdout(), v.Config())
	return nil
}

func printPolicy(w io.Writer, cfg policy.Config) {
	fmt.Fprintf(w, "Enabled:              %t\n", cfg.Enabled)
	fmt.Fprintf(w, "Require confirmation: %t\n", cfg.RequireConfirmation)
	fmt.Fprintf(w, "Agent confirmation:   %t\n", cfg.AgentConfirmation)
	if len(cfg.ShellAllow) > 0 {
		fmt.Fprintf(w, "Shell allow:          %s\n", strings.Join(cfg.ShellAllow, " "))
	} else {
		fmt.Fprintln(w, "Shell allow:          (any)")
	}
	fmt.Fprintf(w, "Shell deny:           %d pattern(s)\n", len(cfg.ShellDeny))
	for _, p := range cfg.ShellDeny {
		fmt.Fprintf(w, "  %s\n", p)
	}
	jail := cfg.FileJailRoot
	if jail == "" {
		jail = "(none)"
	}
	fmt.Fprintf(w, "File jail:            %s\n", jail)
	fmt.Fprintf(w, "File max bytes:       %d\n", cfg.FileMaxBytes)
	fmt.Fprintf(w, "Max output bytes:     %d\n", cfg.MaxOutputBytes)
	fmt.Fprintf(w, "Writable extensions:  %s\n", strings.Join(cfg.FileAllowExt, " "))

	warn := color.New(color.FgYellow, color.Bold)
	for _, msg := range cfg.Warnings() {
		warn.Fprintf(w, "WARNING: %s\n", msg)
	}
}

func runPolicyCheckShell(cmd *cobra.Command, args []string) error {
	v, err := loadValidator()
	if err != nil {
		return err
	}
	printDecision(cmd.OutOrStdout(), v.ValidateShellCommand(strings.Join(args, " ")))
	return nil
}

func runPolicyCheckPath(cmd *cobra.Command, args []string) error {
	v, err := loadValidator()
	if err != nil {
		return err
	}
	write, _ := cmd.Flags().GetBool("write")
	printDecision(cmd.OutOrStdout(), v.ValidateFilePath(args[0], write))
	return nil
}

func printDecision(w io.Writer, d policy.Decision) {
	if d.Allowed {
		color.New(color.FgGreen).Fprint(w, "allowed")
	} else {
		color.New(color.FgRed).Fprint(w, "denied")
	}
	fmt.Fprintf(w, ": %s\n", d.Reason)
}
