package mangle

import (
	"time"

	"browsernerd-agent/internal/supervisor"
)

// StepSnapshot is the supervision state of one agent step.
type StepSnapshot struct {
	RunID    string
	Step     int
	PrevStep int // 0 on the first step

	Pending *supervisor.SubGoal
	Goals   []supervisor.SubGoal
	Modals  int

	Proposed supervisor.Action
	Final    supervisor.Action
	// Rule is set when the arbiter replaced the proposed action.
	Rule supervisor.Rule

	FinishBlocked string
	Hint          string
}

// SnapshotFacts converts a step snapshot to facts of the supervision schema.
func SnapshotFacts(s StepSnapshot, at time.Time) []Fact {
	fact := func(pred string, args ...any) Fact {
		return Fact{Predicate: pred, Args: append([]any{s.RunID, s.Step}, args...), Timestamp: at}
	}

	out := []Fact{{Predicate: "run_step", Args: []any{s.RunID, s.Step}, Timestamp: at}}
	if s.PrevStep > 0 {
		out = append(out, Fact{Predicate: "step_follows", Args: []any{s.RunID, s.PrevStep, s.Step}, Timestamp: at})
	}
	if s.Pending != nil {
		out = append(out, fact("subgoal_pending", string(s.Pending.Kind)))
	}
	for _, g := range s.Goals {
		if g.Completed {
			out = append(out, fact("goal_completed", string(g.Kind)))
		}
	}
	if s.Modals > 0 {
		out = append(out, fact("modal_open", s.Modals))
	}
	if s.Proposed.Kind != "" {
		out = append(out, fact("action_proposed", string(s.Proposed.Kind), s.Proposed.ElementID))
	}
	if s.Final.Kind != "" {
		out = append(out, fact("action_final", string(s.Final.Kind), s.Final.ElementID))
	}
	if s.Rule != "" {
		out = append(out, fact("action_rewritten", string(s.Rule)))
	}
	if s.FinishBlocked != "" {
		out = append(out, fact("finish_blocked", s.FinishBlocked))
	}
	if s.Hint != "" {
		out = append(out, fact("next_step", s.Hint))
	}
	return out
}
