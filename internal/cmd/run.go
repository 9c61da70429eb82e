package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"browsernerd-agent/internal/agent"
	"browsernerd-agent/internal/observability"
	"browsernerd-agent/internal/tasks"

	"github.com/spf13/cobra"
)

var errTasksFailed = errors.New("task run failed")

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <task-id | query...>",
		Short: "Run a predefined task or a natural-language request",
		Long: `Run a task in the browser until it validates as complete, runs out of
steps or fails too many steps in a row.

The argument is first looked up in the task catalogue (see "tasks"); anything
else is parsed as a natural-language request. Requests naming several
objects run as a sequence that stops at the first failure.

Examples:
  browsernerd run linear_create_project
  browsernerd run "In Linear, create a project named Apollo with priority high"
  browsernerd run --no-supervise --max-steps 30 notion_create_page`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCommand,
	}

	cmd.Flags().Int("max-steps", 0, "Override the task's step budget")
	cmd.Flags().Bool("no-supervise", false, "Execute the model's actions without sub-goal arbitration")
	cmd.Flags().Bool("headless", true, "Run Chrome headless")
	cmd.Flags().Bool("json", false, "Print the summary as JSON")

	return cmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("headless") {
		headless, _ := cmd.Flags().GetBool("headless")
		cfg.Browser.Headless = &headless
	}
	if noSupervise, _ := cmd.Flags().GetBool("no-supervise"); noSupervise {
		enabled := false
		cfg.Supervisor.Enable = &enabled
	}

	observability.InitializeStderr("browsernerd", cfg.Logging)
	defer observability.Sync()
	logger := observability.GetLogger()

	ctx := cmd.Context()
	out := printer{w: cmd.OutOrStdout()}
	asJSON, _ := cmd.Flags().GetBool("json")

	var options []agent.Option
	if !asJSON {
		options = append(options, agent.WithObserver(out.Step))
	}
	a, err := newApp(ctx, cfg, logger, true, options...)
	if err != nil {
		return err
	}
	defer a.Close()

	task, err := resolveTask(cmd, a.parser, args)
	if err != nil {
		return err
	}
	if maxSteps, _ := cmd.Flags().GetInt("max-steps"); maxSteps > 0 {
		task.MaxSteps = maxSteps
	}

	summary := a.runner.RunAll(ctx, tasks.Expand(task))
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		out.Summary(summary)
	}

	if !summary.Success {
		return fmt.Errorf("%w: %s", errTasksFailed, summary.Summary)
	}
	return nil
}

// resolveTask treats a single argument naming a catalogue task as its id and
// everything else as a query.
func resolveTask(cmd *cobra.Command, parser *tasks.Parser, args []string) (tasks.Task, error) {
	if len(args) == 1 {
		if task, err := tasks.Lookup(args[0]); err == nil {
			return task, nil
		}
	}
	return parser.Parse(cmd.Context(), strings.Join(args, " "))
}
