package cmd

import (
	"encoding/json"

	"browsernerd-agent/internal/observability"
	"browsernerd-agent/internal/tasks"
	"browsernerd-agent/internal/vision"

	"github.com/spf13/cobra"
)

// NewTasksCommand lists the catalogue and parses queries without running them.
func NewTasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List predefined tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := tasks.All()
			if app, _ := cmd.Flags().GetString("app"); app != "" {
				list = tasks.ByApp(app)
			}
			printer{w: cmd.OutOrStdout()}.Tasks(list)
			return nil
		},
	}
	cmd.Flags().String("app", "", "Only tasks for this app (linear, notion)")

	cmd.AddCommand(newTasksParseCommand())
	return cmd
}

func newTasksParseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <query...>",
		Short: "Show the task a natural-language request turns into",
		Long: `Parse a request the way "run" does and print the task as JSON, together
with the per-object tasks a multi-object request expands into.

The model is consulted only when vision.llm_parsing is set and an API key is
available.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			var gen tasks.Generator
			if cfg.Vision.LLMParsing {
				gemini, err := vision.NewGemini(cmd.Context(), cfg.Vision.APIKey(), cfg.Vision.Model, cfg.Vision.Temperature)
				if err != nil {
					return err
				}
				gen = gemini
			}

			task, err := resolveTask(cmd, newParser(cfg, logger, gen), args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"task": task, "expanded": tasks.Expand(task)})
		},
	}
}
