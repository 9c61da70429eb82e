// Package supervisor keeps a model-driven browser agent on track. It turns a
// task into ordered sub-goals, marks them complete from UI state and executed
// actions, rewrites proposed actions that conflict with the pending goal and
// vetoes premature finishes.
//
// A Supervisor is owned by one task execution and called from a single
// goroutine in the fixed order Update, Arbitrate, CheckFinish, Record.
package supervisor

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Supervisor tracks the sub-goals of one task.
type Supervisor struct {
	task     TaskConfig
	vocab    Vocabulary
	registry Registry
	goals    []SubGoal
	gate     FinishGate
	logger   *zap.Logger
}

// Option configures a Supervisor.
type Option func(*Supervisor)

// WithVocabulary replaces the keyword tables. Empty tables keep defaults.
func WithVocabulary(v Vocabulary) Option {
	return func(s *Supervisor) { s.vocab = v.withDefaults() }
}

// WithRegistry overrides behaviour per goal kind. Kinds absent from r keep
// their default behaviour.
func WithRegistry(r Registry) Option {
	return func(s *Supervisor) {
		for k, b := range r {
			s.registry[k] = b
		}
	}
}

// WithLogger sets the logger used for rewrite and completion events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Supervisor) {
		if l != nil {
			s.logger = l
		}
	}
}

// New extracts the sub-goals for task.
func New(task TaskConfig, opts ...Option) *Supervisor {
	s := &Supervisor{
		task:     task,
		vocab:    DefaultVocabulary(),
		registry: DefaultRegistry(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.goals = Extract(task, s.vocab)
	s.logger.Debug("sub-goals initialised", zap.Any("goals", s.goals))
	return s
}

// Goals returns a copy of the sub-goal list in its fixed order.
func (s *Supervisor) Goals() []SubGoal {
	out := make([]SubGoal, len(s.goals))
	copy(out, s.goals)
	return out
}

// Pending returns the first incomplete sub-goal, or nil when none remain.
// It is derived from the flags on every call and never cached.
func (s *Supervisor) Pending() *SubGoal {
	for _, g := range s.goals {
		if !g.Completed {
			g := g
			return &g
		}
	}
	return nil
}

// AllCompleted is true when there are no goals or every goal is complete.
func (s *Supervisor) AllCompleted() bool {
	return s.Pending() == nil
}

// Update evaluates every incomplete sub-goal against the current page.
// Completed goals are never re-evaluated, so flags only move false to true.
func (s *Supervisor) Update(state UIState, elements []Element) {
	if len(s.goals) == 0 {
		return
	}
	c := newStepContext(s.vocab, s.task, state, elements, s.goals)
	for i := range s.goals {
		g := s.goals[i]
		if g.Completed {
			continue
		}
		check := s.registry[g.Kind].Check
		if check == nil {
			continue
		}
		if check(c, g, i) {
			s.complete(i, "state")
		}
	}
}

// CheckFinish returns a reason and true when a finish action must be held
// back. Any other action resets the loading debounce and passes.
func (s *Supervisor) CheckFinish(proposed Action, state UIState) (string, bool) {
	return s.gate.Check(proposed, state, s.Pending(), s.AllCompleted())
}

// Record infers completion from an action that was just executed and
// returns the new pending goal.
func (s *Supervisor) Record(executed Action) *SubGoal {
	switch executed.Kind {
	case ActionClick:
		clicked := strings.ToLower(executed.ElementText)
		if clicked == "" {
			break
		}
		for i, g := range s.goals {
			if g.Completed {
				continue
			}
			if rec := s.registry[g.Kind].RecordClick; rec != nil && rec(s.vocab, g, clicked) {
				s.complete(i, "click")
			}
		}
	case ActionType:
		typed := normalize(executed.Text)
		if typed == "" {
			break
		}
		for i, g := range s.goals {
			if g.Completed {
				continue
			}
			if rec := s.registry[g.Kind].RecordType; rec != nil && rec(s.vocab, g, typed) {
				s.complete(i, "type")
			}
		}
	}
	return s.Pending()
}

func (s *Supervisor) complete(i int, source string) {
	s.goals[i].Completed = true
	s.logger.Debug("sub-goal completed",
		zap.String("goal", string(s.goals[i].Kind)),
		zap.String("value", s.goals[i].Value),
		zap.String("source", source),
	)
}

// SubmitHint looks for the primary button of a filled modal form.
func (s *Supervisor) SubmitHint(state UIState, elements []Element) *SubmitHint {
	return BuildSubmitHint(s.vocab, state, elements)
}

// Hint combines the pending goal's guidance with the submit hint. It
// returns nil when there is nothing to say.
func (s *Supervisor) Hint(state UIState, submit *SubmitHint) *Hint {
	var messages []string
	pending := s.Pending()
	if pending != nil {
		if msg := goalHint(*pending); msg != "" {
			messages = append(messages, msg)
		}
	}
	if submit != nil {
		messages = append(messages, submit.Message)
	}
	if len(s.goals) > 0 && pending == nil && !state.HasModal() && submit == nil {
		messages = append(messages, "All required steps satisfied. Finish the task now.")
	}
	if len(messages) == 0 {
		return nil
	}
	h := &Hint{Message: strings.Join(messages, " | ")}
	if submit != nil {
		id := submit.ElementID
		h.ElementID = &id
	}
	return h
}

// BuildSubmitHint returns a hint naming the first button whose label reads
// like a submit and not like a cancel, when a modal with filled fields is
// open.
func BuildSubmitHint(vocab Vocabulary, state UIState, elements []Element) *SubmitHint {
	vocab = vocab.withDefaults()
	if !state.HasModal() {
		return nil
	}
	filled := false
	for _, f := range state.Forms {
		if f.Filled {
			filled = true
			break
		}
	}
	if !filled {
		return nil
	}
	for _, e := range elements {
		text := strings.TrimSpace(e.Text)
		if e.Type != "button" || text == "" {
			continue
		}
		lower := strings.ToLower(text)
		if containsAny(lower, vocab.HintSubmitKeywords) && !containsAny(lower, vocab.CancelKeywords) {
			return &SubmitHint{
				Message:   fmt.Sprintf("Modal detected with filled fields. Consider clicking [%d] '%s' to submit.", e.Index, text),
				ElementID: e.Index,
			}
		}
	}
	return nil
}
