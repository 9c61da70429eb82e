package cmd

import (
	"browsernerd-agent/internal/history"

	"github.com/spf13/cobra"
)

// NewHistoryCommand shows recorded runs.
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show past runs",
		Long: `Without arguments, list the most recent runs. With a run id, print that
run's step log.`,
		Args: cobra.MaximumNArgs(1),
		RunE: historyCommand,
	}
	cmd.Flags().Int("limit", 20, "Number of runs to list")
	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.History.Path, cfg.History.KeepRecent)
	if err != nil {
		return err
	}
	defer store.Close()

	out := printer{w: cmd.OutOrStdout()}
	if len(args) == 1 {
		run, err := store.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out.Run(run)
		return nil
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}
	out.Runs(runs)
	return nil
}
