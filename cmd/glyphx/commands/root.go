package commands

import (
	"strings"

	"github.com/MEKXH/glyphx/internal/config"
	"github.com/spf13/cobra"
)

var (
	logLevelOverride   string
	configPathOverride string
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "glyphx",
		Short: "Glyphx - guarded command assistant",
		Long: `Glyphx is a terminal assistant that lets a language model run shell commands
and touch files, but only through a safety policy and your confirmation.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "init" || cmd.Name() == "version" {
				return configureLogger(config.DefaultConfig(), logLevelOverride, false)
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return configureLogger(cfg, logLevelOverride, cmd.Name() == "chat")
		},
	}

	cmd.PersistentFlags().StringVar(&logLevelOverride, "log-level", "", "Override log level (debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&configPathOverride, "config", "", "Config file (default ~/.glyphx/config.json)")

	cmd.AddCommand(
		NewInitCmd(),
		NewChatCmd(),
		NewRunCmd(),
		NewPolicyCmd(),
		NewStatusCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func configPath() string {
	if p := strings.TrimSpace(configPathOverride); p != "" {
		return p
	}
	return config.ConfigPath()
}

func loadConfig() (*config.Config, error) {
	return config.LoadFrom(configPath())
}
