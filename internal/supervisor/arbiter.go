package supervisor

import (
	"go.uber.org/zap"
)

// Rule names the arbitration step that produced a decision.
type Rule string

const (
	RuleUnsupervised    Rule = "unsupervised"
	RuleForceFinish     Rule = "force_finish"
	RulePassWait        Rule = "pass_wait"
	RulePreempt         Rule = "preempt"
	RuleCancelBlock     Rule = "cancel_block"
	RuleTypingBlock     Rule = "typing_block"
	RuleGuide           Rule = "guide"
	RuleDecorationBlock Rule = "decoration_block"
	RuleAutoSubmit      Rule = "auto_submit"
	RulePass            Rule = "pass"
)

// Decision is the arbiter's output together with the rule that fired.
type Decision struct {
	Action Action
	Rule   Rule
}

// Rewritten reports whether the final action differs from the proposal.
func (d Decision) Rewritten(proposed Action) bool {
	f := d.Action
	return f.Kind != proposed.Kind ||
		(f.Kind.TargetsElement() && f.ElementID != proposed.ElementID) ||
		f.Text != proposed.Text
}

// Arbitrate rewrites a proposed action so it serves the pending sub-goal.
// It reads only its arguments and the completion flags, so repeated calls
// with the same inputs return the same action.
func (s *Supervisor) Arbitrate(proposed Action, state UIState, elements []Element) Action {
	return s.Decide(proposed, state, elements).Action
}

// Decide is Arbitrate plus the name of the rule that fired.
func (s *Supervisor) Decide(proposed Action, state UIState, elements []Element) Decision {
	d := s.decide(proposed, state, elements)
	if d.Rewritten(proposed) {
		s.logger.Debug("action rewritten",
			zap.Stringer("proposed", proposed),
			zap.Stringer("final", d.Action),
			zap.String("rule", string(d.Rule)),
			zap.String("reason", d.Action.Reasoning),
		)
	}
	return d
}

func (s *Supervisor) decide(proposed Action, state UIState, elements []Element) Decision {
	if len(s.goals) == 0 {
		return Decision{proposed, RuleUnsupervised}
	}

	c := newStepContext(s.vocab, s.task, state, elements, s.goals)
	pending := s.Pending()
	allDone := s.AllCompleted()

	if proposed.Kind != ActionWait && proposed.Kind != ActionFinish && pending == nil && allDone && !state.HasModal() {
		const reason = "All required steps completed"
		return Decision{Finish(reason, reason), RuleForceFinish}
	}

	if proposed.Kind == ActionWait {
		return Decision{proposed, RulePassWait}
	}

	var behavior Behavior
	if pending != nil {
		behavior = s.registry[pending.Kind]
		if behavior.Preempt != nil {
			if a, ok := behavior.Preempt(c, proposed, *pending); ok {
				return Decision{a, RulePreempt}
			}
		}
	}

	var text string
	if proposed.Kind.TargetsElement() {
		text = c.elementText(proposed.ElementID)
	}

	if proposed.Kind == ActionClick && text != "" && state.HasModal() && containsAny(text, s.vocab.CancelKeywords) {
		return Decision{Wait("Blocked cancel/close while modal is open"), RuleCancelBlock}
	}

	if proposed.Kind == ActionType && pending != nil && !behavior.Typeable {
		return Decision{Wait("Focus on pending sub-goal instead of typing"), RuleTypingBlock}
	}

	if pending != nil && behavior.Guide != nil {
		if a, ok := behavior.Guide(c, proposed, *pending); ok {
			return Decision{a, RuleGuide}
		}
	}

	if proposed.Kind == ActionClick && text != "" && containsAny(text, s.vocab.DecorationKeywords) {
		if pending == nil || !behavior.AllowsDecoration {
			return Decision{Wait("Ignoring optional decoration controls"), RuleDecorationBlock}
		}
	}

	if pending == nil && allDone && proposed.Kind != ActionFinish {
		if button, ok := findSubmitControl(s.vocab, elements, nil); ok {
			return Decision{Click(button.Index, "All fields complete. Submit the form to finish."), RuleAutoSubmit}
		}
		const reason = "All required steps complete"
		return Decision{Finish(reason, reason), RuleAutoSubmit}
	}

	return Decision{proposed, RulePass}
}
