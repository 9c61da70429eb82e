package agent

import (
	"context"
	"fmt"
	"strings"

	"browsernerd-agent/internal/detector"
	"browsernerd-agent/internal/history"
	"browsernerd-agent/internal/mangle"
	"browsernerd-agent/internal/recorder"
	"browsernerd-agent/internal/supervisor"
	"browsernerd-agent/internal/tasks"
	"browsernerd-agent/internal/vision"

	"go.uber.org/zap"
)

const (
	completedObservation = "Task completed successfully"
	notCompleteReasoning = "Task not actually complete - continuing automation"
)

// step runs one iteration and reports whether the task completed.
func (r *Runner) step(ctx context.Context, run *taskRun, n int) (bool, error) {
	ann, err := r.browser.Annotate(ctx)
	if err != nil {
		return false, fmt.Errorf("annotate: %w", err)
	}
	if len(ann.Elements) == 0 {
		r.logger.Warn("no interactive elements, page may be loading", zap.Int("step", n))
		r.sleep(ctx, r.opts.EmptyPageDelay)
		return false, nil
	}
	elements := ann.Elements

	shot, err := run.dataset.SaveScreenshot(n, ann.Screenshot)
	if err != nil {
		return false, err
	}

	state, err := detector.Detect(ctx, r.browser)
	if err != nil {
		return false, err
	}
	description := detector.Describe(state)
	transition := recorder.NewTransition(n, state, run.prev)

	submit := run.sup.SubmitHint(state, elements)
	var hint *supervisor.Hint
	if r.opts.Supervise {
		run.sup.Update(state, elements)
		hint = run.sup.Hint(state, submit)
	} else if submit != nil {
		id := submit.ElementID
		hint = &supervisor.Hint{Message: submit.Message, ElementID: &id}
	}

	proposed, err := r.decider.NextAction(ctx, vision.Request{
		Goal:       run.task.Goal,
		URL:        r.browser.URL(ctx),
		Screenshot: ann.Annotated,
		Elements:   elements,
		History:    run.history,
		Parameters: run.task.Parameters,
		Hint:       hint,
	})
	if err != nil {
		return false, fmt.Errorf("next action: %w", err)
	}
	proposed, bbox := enrich(proposed, elements)

	snap := mangle.StepSnapshot{
		RunID:    run.id,
		Step:     n,
		PrevStep: run.lastStep,
		Modals:   len(state.Modals),
		Proposed: proposed,
	}
	if hint != nil {
		snap.Hint = hint.Message
	}

	action := proposed
	report := StepReport{RunID: run.id, Step: n, MaxSteps: run.maxSteps, Description: description, Proposed: proposed}
	if r.opts.Supervise {
		d := run.sup.Decide(proposed, state, elements)
		if d.Rewritten(proposed) {
			action, bbox = enrich(d.Action, elements)
			snap.Rule = d.Rule
			report.Rule = d.Rule
			r.traceLog(recorder.EventRewrite, n, map[string]any{
				"rule":     d.Rule,
				"proposed": proposed,
				"final":    action,
			})
		}
		if reason, blocked := run.sup.CheckFinish(action, state); blocked {
			r.logger.Info("finish blocked", zap.Int("step", n), zap.String("reason", reason))
			action = supervisor.Wait(fmt.Sprintf("%s - waiting before finishing", reason))
			bbox = nil
			snap.FinishBlocked = reason
			report.Blocked = reason
			r.traceLog(recorder.EventFinishDenied, n, map[string]string{"reason": reason})
		}
		snap.Pending = run.sup.Pending()
		snap.Goals = run.sup.Goals()
	}

	record := recorder.Step{
		Step:        n,
		Screenshot:  shot,
		BBox:        bbox,
		UIState:     state,
		Description: description,
		Transition:  &transition,
	}

	if action.Kind == supervisor.ActionFinish {
		ok, why := tasks.ValidateCompletion(run.task, action, r.browser.URL(ctx), r.browser.Title(ctx))
		if ok {
			snap.Final = action
			r.emitFacts(ctx, snap)
			record.URL = r.browser.URL(ctx)
			record.Action = action
			record.Observation = completedObservation
			if err := run.dataset.SaveStep(record); err != nil {
				r.logger.Warn("save step", zap.Int("step", n), zap.Error(err))
			}
			run.lastStep = n
			run.stepLog = append(run.stepLog, history.StepEntry{
				Step: n, Action: action.String(), Observation: completedObservation, URL: record.URL,
			})
			report.Action = action
			report.Observation = completedObservation
			r.traceLog(recorder.EventStep, n, record)
			r.notify(report)
			return true, nil
		}
		r.logger.Info("completion validation failed", zap.Int("step", n), zap.String("reason", why))
		action = supervisor.Wait(notCompleteReasoning)
		bbox = nil
		record.BBox = nil
	}

	snap.Final = action
	r.emitFacts(ctx, snap)

	observation := r.browser.Execute(ctx, action, elements)
	if strings.HasPrefix(observation, "Error:") {
		r.logger.Warn("action failed", zap.Int("step", n), zap.String("observation", observation))
	}

	record.URL = r.browser.URL(ctx)
	record.Action = action
	record.Observation = observation
	if err := run.dataset.SaveStep(record); err != nil {
		r.logger.Warn("save step", zap.Int("step", n), zap.Error(err))
	}

	if r.opts.Supervise {
		run.sup.Record(action)
	}
	run.history = append(run.history, vision.HistoryEntry{
		Step: n, Action: string(action.Kind), Observation: observation,
	})
	run.stepLog = append(run.stepLog, history.StepEntry{
		Step: n, Action: action.String(), Observation: observation, URL: record.URL,
	})
	run.prev = &recorder.StepState{Step: n, URL: state.URL, PageHash: state.PageHash}
	run.lastStep = n

	report.Action = action
	report.Observation = observation
	r.traceLog(recorder.EventStep, n, record)
	r.notify(report)
	return false, nil
}

// enrich copies the target element's text and type onto the action and
// returns its box as [x, y, width, height].
func enrich(a supervisor.Action, elements []supervisor.Element) (supervisor.Action, []float64) {
	if !a.Kind.TargetsElement() {
		return a, nil
	}
	for _, e := range elements {
		if e.Index != a.ElementID {
			continue
		}
		a.ElementText = strings.TrimSpace(e.Text)
		a.ElementType = e.Type
		return a, []float64{e.X, e.Y, e.Width, e.Height}
	}
	return a, nil
}

func (r *Runner) emitFacts(ctx context.Context, snap mangle.StepSnapshot) {
	if r.facts == nil {
		return
	}
	if err := r.facts.AddFacts(ctx, mangle.SnapshotFacts(snap, r.now())); err != nil {
		r.logger.Debug("add supervision facts", zap.Int("step", snap.Step), zap.Error(err))
	}
}

func (r *Runner) traceLog(eventType string, step int, data any) {
	if r.trace != nil {
		r.trace.Log(eventType, step, data)
	}
}

func (r *Runner) notify(rep StepReport) {
	if r.observer != nil {
		r.observer(rep)
	}
}
