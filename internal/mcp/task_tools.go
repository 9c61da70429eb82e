package mcp

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"browsernerd-agent/internal/tasks"
)

type ParseTaskTool struct {
	parser *tasks.Parser
}

func (t *ParseTaskTool) Name() string { return "parse-task" }
func (t *ParseTaskTool) Description() string {
	return `Turn a natural-language request into a runnable task.

Detects the app (linear, notion, asana), the action and object, and extracts
parameters such as names, status, priority, target date and description.
Requests for several objects come back expanded into one task per object.

Returns: {task, expanded: [task...]}.`
}
func (t *ParseTaskTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language request",
			},
		},
		"required": []string{"query"},
	}
}
func (t *ParseTaskTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	query := getStringArg(args, "query")
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	task, err := t.parser.Parse(ctx, query)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"task": task, "expanded": tasks.Expand(task)}, nil
}

type ListTasksTool struct{}

func (t *ListTasksTool) Name() string { return "list-tasks" }
func (t *ListTasksTool) Description() string {
	return `List the predefined tasks, optionally for one app.

Returns: {tasks: [{task_id, name, app, goal, start_url, max_steps, parameters}]}.`
}
func (t *ListTasksTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"app": map[string]interface{}{
				"type":        "string",
				"description": "Only tasks for this app (linear, notion)",
			},
		},
	}
}
func (t *ListTasksTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	list := tasks.All()
	if app := getStringArg(args, "app"); app != "" {
		list = tasks.ByApp(app)
	}
	return map[string]interface{}{"tasks": list, "count": len(list)}, nil
}

var errRunInProgress = errors.New("a task is already running")

// RunTaskTool drives the browser, so only one run is allowed at a time.
type RunTaskTool struct {
	runner TaskRunner
	parser *tasks.Parser
	mu     sync.Mutex
}

func (t *RunTaskTool) Name() string { return "run-task" }
func (t *RunTaskTool) Description() string {
	return `Run a predefined task or a natural-language request in the browser.

Blocks until the task (or every part of a multi-task) finishes. Multi-task
sequences stop at the first failure.

Returns: {success, total_tasks, successful_tasks, failed_tasks, individual_results, summary}.`
}
func (t *RunTaskTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task_id": map[string]interface{}{
				"type":        "string",
				"description": "Id of a predefined task (see list-tasks)",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language request, used when task_id is empty",
			},
		},
	}
}
func (t *RunTaskTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var task tasks.Task
	switch id, query := getStringArg(args, "task_id"), getStringArg(args, "query"); {
	case id != "":
		found, err := tasks.Lookup(id)
		if err != nil {
			return nil, err
		}
		task = found
	case query != "":
		parsed, err := t.parser.Parse(ctx, query)
		if err != nil {
			return nil, err
		}
		task = parsed
	default:
		return nil, fmt.Errorf("task_id or query is required")
	}

	if !t.mu.TryLock() {
		return nil, errRunInProgress
	}
	defer t.mu.Unlock()
	return t.runner.RunAll(ctx, tasks.Expand(task)), nil
}
