package mcp

import (
	"context"
	"fmt"

	"browsernerd-agent/internal/mangle"
)

type QueryFactsTool struct {
	engine *mangle.Engine
}

func (t *QueryFactsTool) Name() string { return "query-facts" }
func (t *QueryFactsTool) Description() string {
	return `Query supervision facts recorded during runs.

Either pass a Mangle atom such as stalled_goal(Run, Kind). or
rewritten_step("<run_id>", Step, Proposed, Final). and get one binding per
match, or pass a predicate name to read the raw facts (newest last).

Base predicates: run_step, step_follows, subgoal_pending, goal_completed,
modal_open, action_proposed, action_final, action_rewritten, finish_blocked,
next_step. Derived: stalled_goal, rewritten_step, finish_with_modal.`
}
func (t *QueryFactsTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Mangle atom ending in a period",
			},
			"predicate": map[string]interface{}{
				"type":        "string",
				"description": "Predicate to read when no query is given",
			},
			"limit": map[string]interface{}{
				"type":        "integer",
				"description": "Maximum facts returned in predicate mode (default 50)",
			},
		},
	}
}
func (t *QueryFactsTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if query := getStringArg(args, "query"); query != "" {
		results, err := t.engine.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"query": query, "count": len(results), "results": results}, nil
	}

	predicate := getStringArg(args, "predicate")
	if predicate == "" {
		return nil, fmt.Errorf("query or predicate is required")
	}
	limit := getIntArg(args, "limit", 50)
	facts := t.engine.FactsByPredicate(predicate)
	if limit > 0 && len(facts) > limit {
		facts = facts[len(facts)-limit:]
	}
	return map[string]interface{}{"predicate": predicate, "count": len(facts), "facts": facts}, nil
}

type SubmitRuleTool struct {
	engine *mangle.Engine
}

func (t *SubmitRuleTool) Name() string { return "submit-rule" }
func (t *SubmitRuleTool) Description() string {
	return `Add Mangle declarations and rules over the supervision facts.

Example:
  Decl blocked_run(Run).
  blocked_run(Run) :- finish_blocked(Run, _, _).

The program is re-evaluated immediately; query the new predicate with query-facts.`
}
func (t *SubmitRuleTool) InputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"rule": map[string]interface{}{
				"type":        "string",
				"description": "Mangle source",
			},
		},
		"required": []string{"rule"},
	}
}
func (t *SubmitRuleTool) Execute(_ context.Context, args map[string]interface{}) (interface{}, error) {
	rule := getStringArg(args, "rule")
	if rule == "" {
		return nil, fmt.Errorf("rule is required")
	}
	if err := t.engine.AddRule(rule); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true}, nil
}
