package cmd

import (
	"fmt"
	"io"
	"strings"

	"browsernerd-agent/internal/agent"
	"browsernerd-agent/internal/history"
	"browsernerd-agent/internal/tasks"

	"github.com/fatih/color"
)

var (
	stepColor    = color.New(color.FgCyan, color.Bold)
	rewriteColor = color.New(color.FgMagenta)
	blockColor   = color.New(color.FgYellow)
	okColor      = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	dimColor     = color.New(color.Faint)
)

// printer renders run progress for a terminal.
type printer struct {
	w io.Writer
}

// Step prints one executed step. It is handed to agent.WithObserver.
func (p printer) Step(r agent.StepReport) {
	fmt.Fprintf(p.w, "%s %s\n", stepColor.Sprintf("[%d/%d]", r.Step, r.MaxSteps), r.Action)
	if r.Rule != "" {
		fmt.Fprintf(p.w, "  %s\n", rewriteColor.Sprintf("rewritten by %s (proposed %s)", r.Rule, r.Proposed))
	}
	if r.Blocked != "" {
		fmt.Fprintf(p.w, "  %s\n", blockColor.Sprintf("finish held: %s", r.Blocked))
	}
	if r.Observation != "" {
		fmt.Fprintf(p.w, "  %s\n", dimColor.Sprint(r.Observation))
	}
}

// Summary prints the outcome of a task sequence.
func (p printer) Summary(s agent.Summary) {
	fmt.Fprintln(p.w)
	for _, res := range s.Results {
		status := okColor.Sprint("OK  ")
		if !res.Success {
			status = failColor.Sprint("FAIL")
		}
		fmt.Fprintf(p.w, "%s %s (%d steps)", status, res.TaskName, res.Steps)
		if res.Error != "" {
			fmt.Fprintf(p.w, ": %s", res.Error)
		}
		fmt.Fprintln(p.w)
		if res.DatasetDir != "" {
			fmt.Fprintf(p.w, "     %s\n", dimColor.Sprint(res.DatasetDir))
		}
	}
	line := okColor.Sprint(s.Summary)
	if !s.Success {
		line = failColor.Sprint(s.Summary)
	}
	fmt.Fprintln(p.w, line)
}

// Tasks prints one line per catalogue task.
func (p printer) Tasks(list []tasks.Task) {
	for _, t := range list {
		fmt.Fprintf(p.w, "%-26s %-7s %s\n", stepColor.Sprint(t.ID), t.App, t.Goal)
	}
}

// Runs prints the run list, newest first.
func (p printer) Runs(runs []history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.w, "no runs recorded")
		return
	}
	for _, r := range runs {
		status := okColor.Sprint("OK  ")
		if !r.Success {
			status = failColor.Sprint("FAIL")
		}
		fmt.Fprintf(p.w, "%s %s %s %s (%d steps)\n",
			status, dimColor.Sprint(r.StartedAt.Format("2006-01-02 15:04:05")), r.ID, r.TaskID, r.Steps)
	}
}

// Run prints one run with its step log.
func (p printer) Run(r history.Run) {
	fmt.Fprintf(p.w, "%s %s\n", stepColor.Sprint(r.ID), r.TaskName)
	fmt.Fprintf(p.w, "goal: %s\n", r.Goal)
	if r.Query != "" {
		fmt.Fprintf(p.w, "query: %s\n", r.Query)
	}
	for _, e := range r.StepLog {
		fmt.Fprintf(p.w, "%s %s\n", stepColor.Sprintf("%3d", e.Step), e.Action)
		if obs := strings.TrimSpace(e.Observation); obs != "" {
			fmt.Fprintf(p.w, "    %s\n", dimColor.Sprint(obs))
		}
	}
	if r.Success {
		fmt.Fprintln(p.w, okColor.Sprintf("succeeded in %d steps", r.Steps))
	} else {
		fmt.Fprintln(p.w, failColor.Sprintf("failed after %d steps: %s", r.Steps, r.Error))
	}
}
