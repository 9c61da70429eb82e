// Package cmd holds the cobra commands of the agent binary.
package cmd

import (
	"browsernerd-agent/internal/config"

	"github.com/spf13/cobra"
)

// Version is injected at build time via -ldflags.
var Version = "dev"

// NewRootCommand creates the root command and its subcommands.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browsernerd",
		Short: "Vision-guided browser agent with sub-goal supervision",
		Long: `browsernerd drives a Chrome page towards a task goal. Each step it
annotates the interactive elements, asks a vision model for the next action
and lets a rule-based supervisor rewrite actions that stray from the task's
sub-goals before executing them.

Configuration merges defaults, .browsernerd/config.yaml found by walking up
from the working directory, and --config.`,
		Version:      Version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().String("config", "", "Path to a config file (overrides the workspace config)")
	cmd.PersistentFlags().String("workspace-dir", "", "Use this directory as the workspace root")
	cmd.PersistentFlags().Bool("no-workspace", false, "Skip .browsernerd workspace discovery")

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewTasksCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewServeCommand())
	cmd.AddCommand(NewInitCommand())

	return cmd
}

// loadConfig reads the persistent config flags and merges the config layers.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	wsDir, _ := cmd.Flags().GetString("workspace-dir")
	noWS, _ := cmd.Flags().GetBool("no-workspace")

	cfg, _, err := config.LoadWithWorkspace(path, config.WorkspaceOptions{
		Disable:     noWS,
		ExplicitDir: wsDir,
	})
	return cfg, err
}
