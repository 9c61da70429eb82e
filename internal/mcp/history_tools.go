package mcp

import (
	"context"

	"browsernerd-agent/internal/history"
)

type runReader interface {
	GetRun(ctx context.Context, id string) (history.Run, error)
	ListRuns(ctx context.Context, limit int) ([]history.Run, error)
}

type RunHistoryTool struct {
	store runReader
}

func (t *RunHistoryTool) Name() string { return "run-history" }
func (t *RunHistoryTool) Description() string {
	return `Read past runs from the history database.

With run_id, returns that run including its step log. Otherwise lists the
most recent runs, newest first.`
}
func (t *RunHistoryTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"run_id": map[string]interface{}{"type": "string"},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Number of runs to list (default 20)",
			},
		},
	}
}
func (t *RunHistoryTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if id := getStringArg(args, "run_id"); id != "" {
		run, err := t.store.GetRun(ctx, id)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"run": run}, nil
	}
	runs, err := t.store.ListRuns(ctx, getIntArg(args, "limit", 20))
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"runs": runs, "count": len(runs)}, nil
}
