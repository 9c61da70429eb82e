// Package agent runs tasks: it loops annotate, detect, decide, supervise and
// act against one browser page until the task validates as complete, the
// step budget runs out or too many steps fail in a row.
package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"browsernerd-agent/internal/browser"
	"browsernerd-agent/internal/detector"
	"browsernerd-agent/internal/history"
	"browsernerd-agent/internal/mangle"
	"browsernerd-agent/internal/recorder"
	"browsernerd-agent/internal/supervisor"
	"browsernerd-agent/internal/tasks"
	"browsernerd-agent/internal/vision"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrTooManyFailures stops a task after MaxFailures consecutive failed steps.
	ErrTooManyFailures = errors.New("too many consecutive failures")
	// ErrStepBudget is returned when a task reaches its step limit unfinished.
	ErrStepBudget = errors.New("reached maximum steps")
)

// Browser is the page the runner drives.
type Browser interface {
	detector.Evaluator
	Start(ctx context.Context) error
	Open(ctx context.Context, url string) error
	Annotate(ctx context.Context) (browser.Annotation, error)
	Screenshot(ctx context.Context) ([]byte, error)
	Execute(ctx context.Context, action supervisor.Action, elements []supervisor.Element) string
	URL(ctx context.Context) string
	Title(ctx context.Context) string
	Close() error
}

// Decider proposes the next action. *vision.Client satisfies it.
type Decider interface {
	NextAction(ctx context.Context, req vision.Request) (supervisor.Action, error)
}

// RunStore persists finished runs. *history.Store satisfies it.
type RunStore interface {
	SaveRun(ctx context.Context, run history.Run) error
}

// FactSink receives the supervision facts of every step. *mangle.Engine
// satisfies it.
type FactSink interface {
	AddFacts(ctx context.Context, facts []mangle.Fact) error
}

// Options bound the loop.
type Options struct {
	// MaxSteps applies to tasks that carry no max_steps of their own.
	MaxSteps    int
	MaxFailures int
	StepDelay   time.Duration
	// EmptyPageDelay is the pause after a step that found no elements.
	EmptyPageDelay time.Duration
	// TaskPause separates the parts of a multi-task.
	TaskPause   time.Duration
	DatasetRoot string
	Supervise   bool
	Vocabulary  supervisor.Vocabulary
}

// DefaultOptions mirrors the agent section of the default config.
func DefaultOptions() Options {
	return Options{
		MaxSteps:       20,
		MaxFailures:    3,
		StepDelay:      time.Second,
		EmptyPageDelay: 2 * time.Second,
		TaskPause:      2 * time.Second,
		DatasetRoot:    "dataset",
		Supervise:      true,
	}
}

// StepReport is handed to the observer after every executed step.
type StepReport struct {
	RunID       string
	Step        int
	MaxSteps    int
	Description string
	Proposed    supervisor.Action
	Action      supervisor.Action
	Rule        supervisor.Rule
	Blocked     string
	Observation string
}

// Runner executes tasks one at a time. It is not safe for concurrent use.
type Runner struct {
	browser Browser
	decider Decider
	opts    Options

	trace    *recorder.Trace
	store    RunStore
	facts    FactSink
	observer func(StepReport)
	logger   *zap.Logger

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration)
}

// Option configures a Runner.
type Option func(*Runner)

// WithTrace logs run and step events to a JSONL trace.
func WithTrace(t *recorder.Trace) Option { return func(r *Runner) { r.trace = t } }

// WithHistory saves every finished run.
func WithHistory(s RunStore) Option { return func(r *Runner) { r.store = s } }

// WithFacts mirrors supervision state into a fact sink.
func WithFacts(f FactSink) Option { return func(r *Runner) { r.facts = f } }

// WithObserver is called after every executed step.
func WithObserver(fn func(StepReport)) Option { return func(r *Runner) { r.observer = fn } }

func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

func NewRunner(b Browser, d Decider, opts Options, options ...Option) *Runner {
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = 20
	}
	if opts.MaxFailures <= 0 {
		opts.MaxFailures = 3
	}
	if opts.DatasetRoot == "" {
		opts.DatasetRoot = "dataset"
	}
	r := &Runner{
		browser: b,
		decider: d,
		opts:    opts,
		logger:  zap.NewNop(),
		now:     time.Now,
		newID:   uuid.NewString,
		sleep:   sleepCtx,
	}
	for _, o := range options {
		o(r)
	}
	r.logger = r.logger.Named("agent")
	return r
}

// Result is the outcome of one task.
type Result struct {
	RunID         string                `json:"run_id"`
	TaskID        string                `json:"task_id"`
	TaskName      string                `json:"task_name"`
	Goal          string                `json:"goal"`
	Success       bool                  `json:"success"`
	Steps         int                   `json:"steps"`
	Error         string                `json:"error,omitempty"`
	DatasetDir    string                `json:"dataset_dir,omitempty"`
	History       []vision.HistoryEntry `json:"history"`
	TaskNumber    int                   `json:"task_number,omitempty"`
	TotalTasks    int                   `json:"total_tasks,omitempty"`
	OriginalQuery string                `json:"original_query,omitempty"`
}

// taskRun is the per-task state of the loop.
type taskRun struct {
	id       string
	task     tasks.Task
	maxSteps int
	sup      *supervisor.Supervisor
	dataset  *recorder.Dataset
	started  time.Time

	history  []vision.HistoryEntry
	stepLog  []history.StepEntry
	prev     *recorder.StepState
	lastStep int
}

// Run executes task in a fresh page. Task-level failures are reported both
// in the Result and as the returned error; ErrTooManyFailures and
// ErrStepBudget can be matched with errors.Is.
func (r *Runner) Run(ctx context.Context, task tasks.Task) (Result, error) {
	res := Result{TaskID: task.ID, TaskName: task.Name, Goal: task.Goal, OriginalQuery: task.Query}
	if err := task.Validate(); err != nil {
		res.Error = err.Error()
		return res, err
	}

	run := &taskRun{
		id:       r.newID(),
		task:     task,
		maxSteps: task.MaxSteps,
		started:  r.now(),
	}
	if run.maxSteps <= 0 {
		run.maxSteps = r.opts.MaxSteps
	}
	res.RunID = run.id
	run.sup = supervisor.New(task.Supervision(),
		supervisor.WithVocabulary(r.opts.Vocabulary),
		supervisor.WithLogger(r.logger.Named("supervisor")),
	)

	ds, err := recorder.NewDataset(r.opts.DatasetRoot, r.datasetName(task), recorder.Metadata{
		TaskID:   task.ID,
		TaskName: task.Name,
		App:      task.App,
		Goal:     task.Goal,
		StartURL: task.StartURL,
		Query:    task.Query,
		RunID:    run.id,
	})
	if err != nil {
		res.Error = err.Error()
		return res, err
	}
	run.dataset = ds
	res.DatasetDir = ds.Dir()

	log := r.logger.With(zap.String("run_id", run.id), zap.String("task_id", task.ID))
	log.Info("task started", zap.String("goal", task.Goal), zap.Int("max_steps", run.maxSteps))
	if r.trace != nil {
		if err := r.trace.Start(run.id); err != nil {
			log.Warn("trace unavailable", zap.Error(err))
		}
		r.trace.Log(recorder.EventRunStarted, 0, map[string]any{
			"task_id":    task.ID,
			"goal":       task.Goal,
			"parameters": task.Parameters,
			"goals":      run.sup.Goals(),
		})
	}

	if err := r.browser.Start(ctx); err != nil {
		return r.finish(ctx, run, res, false, fmt.Errorf("browser setup failed: %w", err))
	}
	defer func() {
		if err := r.browser.Close(); err != nil {
			log.Debug("browser close", zap.Error(err))
		}
	}()
	if err := r.browser.Open(ctx, task.StartURL); err != nil {
		return r.finish(ctx, run, res, false, fmt.Errorf("navigation failed: %w", err))
	}

	success, loopErr := r.loop(ctx, run, log)
	return r.finish(ctx, run, res, success, loopErr)
}

func (r *Runner) loop(ctx context.Context, run *taskRun, log *zap.Logger) (bool, error) {
	failures := 0
	for n := 1; n <= run.maxSteps; n++ {
		if err := ctx.Err(); err != nil {
			return false, err
		}

		done, err := r.step(ctx, run, n)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			failures++
			log.Warn("step failed", zap.Int("step", n), zap.Int("consecutive", failures), zap.Error(err))
			if failures >= r.opts.MaxFailures {
				return false, fmt.Errorf("%w (%d)", ErrTooManyFailures, r.opts.MaxFailures)
			}
			r.saveErrorScreenshot(ctx, run, n, log)
			continue
		}
		if done {
			log.Info("task completion validated", zap.Int("step", n))
			return true, nil
		}
		failures = 0
		r.sleep(ctx, r.opts.StepDelay)
	}
	log.Warn("step budget exhausted", zap.Int("max_steps", run.maxSteps))
	return false, fmt.Errorf("%w (%d)", ErrStepBudget, run.maxSteps)
}

func (r *Runner) saveErrorScreenshot(ctx context.Context, run *taskRun, n int, log *zap.Logger) {
	shot, err := r.browser.Screenshot(ctx)
	if err != nil {
		log.Debug("error screenshot unavailable", zap.Error(err))
		return
	}
	if err := run.dataset.SaveErrorScreenshot(n, shot); err != nil {
		log.Debug("save error screenshot", zap.Error(err))
	}
}

func (r *Runner) finish(ctx context.Context, run *taskRun, res Result, success bool, runErr error) (Result, error) {
	res.Success = success
	res.Steps = run.lastStep
	res.History = append([]vision.HistoryEntry(nil), run.history...)
	if runErr != nil {
		res.Error = runErr.Error()
	}

	if _, err := run.dataset.Finish(success, runErr); err != nil {
		r.logger.Warn("write dataset metadata", zap.Error(err))
	}

	if r.trace != nil {
		r.trace.Log(recorder.EventRunFinished, res.Steps, map[string]any{
			"success": success,
			"error":   res.Error,
		})
	}

	if r.store != nil {
		saveCtx := context.WithoutCancel(ctx)
		if err := r.store.SaveRun(saveCtx, history.Run{
			ID:         run.id,
			TaskID:     run.task.ID,
			TaskName:   run.task.Name,
			App:        run.task.App,
			Goal:       run.task.Goal,
			Query:      run.task.Query,
			Parameters: run.task.Parameters,
			Success:    success,
			Steps:      res.Steps,
			Error:      res.Error,
			DatasetDir: res.DatasetDir,
			StartedAt:  run.started,
			FinishedAt: r.now(),
			StepLog:    run.stepLog,
		}); err != nil {
			r.logger.Warn("save run history", zap.Error(err))
		}
	}

	r.logger.Info("task finished",
		zap.String("run_id", run.id),
		zap.Bool("success", success),
		zap.Int("steps", res.Steps),
		zap.String("error", res.Error),
	)
	return res, runErr
}

// datasetName stamps catalogue tasks with the start time so reruns do not
// overwrite each other. Parsed tasks already carry a timestamp in their id.
func (r *Runner) datasetName(task tasks.Task) string {
	if _, err := tasks.Lookup(task.ID); err == nil {
		return fmt.Sprintf("%s_%s", task.ID, r.now().Format("20060102_150405"))
	}
	return task.ID
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
