package mcp

import (
	"context"
	"fmt"

	"browsernerd-agent/internal/supervisor"
	"browsernerd-agent/internal/tasks"
)

type PlanSubgoalsTool struct {
	vocab  supervisor.Vocabulary
	parser *tasks.Parser
}

func (t *PlanSubgoalsTool) Name() string { return "plan-subgoals" }
func (t *PlanSubgoalsTool) Description() string {
	return `Decompose a task into the ordered sub-goals the supervisor will enforce.

Pass either a natural-language query, or an explicit goal with parameters.

Returns: {goals: [{key, value, completed}], task: {...}}. An empty goal list
means the task runs unsupervised.`
}
func (t *PlanSubgoalsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Natural-language request, e.g. \"create a project named Apollo with priority high\"",
			},
			"goal":   map[string]interface{}{"type": "string"},
			"object": map[string]interface{}{"type": "string"},
			"app":    map[string]interface{}{"type": "string"},
			"parameters": map[string]interface{}{
				"type":        "object",
				"description": "Task parameters such as project_name, status, priority, target_date, filter, description",
			},
		},
	}
}
func (t *PlanSubgoalsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var cfg supervisor.TaskConfig
	if query := getStringArg(args, "query"); query != "" {
		task, err := t.parser.Parse(ctx, query)
		if err != nil {
			return nil, err
		}
		cfg = task.Supervision()
	} else {
		cfg.Goal = getStringArg(args, "goal")
		cfg.Object = getStringArg(args, "object")
		cfg.App = getStringArg(args, "app")
		if err := decodeArg(args, "parameters", &cfg.Parameters); err != nil {
			return nil, err
		}
		if cfg.Goal == "" {
			return nil, fmt.Errorf("query or goal is required")
		}
	}

	goals := supervisor.Extract(cfg, t.vocab)
	if goals == nil {
		goals = []supervisor.SubGoal{}
	}
	return map[string]interface{}{"task": cfg, "goals": goals}, nil
}

// ArbitrateActionTool runs one supervision step without a browser. Earlier
// executed actions can be replayed so completion state carries over.
type ArbitrateActionTool struct {
	vocab supervisor.Vocabulary
}

func (t *ArbitrateActionTool) Name() string { return "arbitrate-action" }
func (t *ArbitrateActionTool) Description() string {
	return `Ask the supervisor what it would do with a proposed action.

Supply the task, the current UI state and interactive elements, the proposed
action, and optionally the actions already executed (replayed in order).

Returns: {action, rule, rewritten, finish_blocked, block_reason, pending, goals, hint}.`
}
func (t *ArbitrateActionTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "object",
				"description": "{goal, object, app, parameters}",
			},
			"action": map[string]interface{}{
				"type":        "object",
				"description": "{action: click|type|scroll|wait|finish, element_id, text, direction, summary, reasoning}",
			},
			"ui_state": map[string]interface{}{
				"type":        "object",
				"description": "{url, title, modals, forms, dropdowns, loading, page_hash}",
			},
			"elements": map[string]interface{}{
				"type":        "array",
				"description": "Interactive elements: {index, type, text, ariaLabel, x, y, width, height}",
			},
			"executed": map[string]interface{}{
				"type":        "array",
				"description": "Actions already executed, oldest first",
			},
		},
		"required": []string{"task", "action"},
	}
}
func (t *ArbitrateActionTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	var (
		cfg      supervisor.TaskConfig
		proposed supervisor.Action
		state    supervisor.UIState
		elements []supervisor.Element
		executed []supervisor.Action
	)
	for key, out := range map[string]interface{}{
		"task":     &cfg,
		"action":   &proposed,
		"ui_state": &state,
		"elements": &elements,
		"executed": &executed,
	} {
		if err := decodeArg(args, key, out); err != nil {
			return nil, err
		}
	}
	if !proposed.Kind.Valid() {
		return nil, fmt.Errorf("action: unknown kind %q", proposed.Kind)
	}

	sup := supervisor.New(cfg, supervisor.WithVocabulary(t.vocab))
	for _, a := range executed {
		sup.Record(a)
	}
	sup.Update(state, elements)

	decision := sup.Decide(proposed, state, elements)
	final := decision.Action
	reason, blocked := sup.CheckFinish(final, state)
	if blocked {
		final = supervisor.Wait(fmt.Sprintf("%s - waiting before finishing", reason))
	}

	return map[string]interface{}{
		"action":         final,
		"rule":           decision.Rule,
		"rewritten":      decision.Rewritten(proposed) || blocked,
		"finish_blocked": blocked,
		"block_reason":   reason,
		"pending":        sup.Pending(),
		"goals":          sup.Goals(),
		"hint":           sup.Hint(state, sup.SubmitHint(state, elements)),
	}, nil
}
