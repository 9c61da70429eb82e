package mangle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"browsernerd-agent/internal/config"
	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, limit int) *Engine {
	t.Helper()
	e, err := NewEngine(config.MangleConfig{Enable: true, FactBufferLimit: limit}, nil)
	require.NoError(t, err)
	require.True(t, e.Ready())
	return e
}

func pendingSteps(run string, kind supervisor.GoalKind, steps ...int) []Fact {
	var out []Fact
	prev := 0
	for _, s := range steps {
		out = append(out, SnapshotFacts(StepSnapshot{
			RunID:    run,
			Step:     s,
			PrevStep: prev,
			Pending:  &supervisor.SubGoal{Kind: kind},
		}, time.Now())...)
		prev = s
	}
	return out
}

func TestStalledGoal(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.AddFacts(ctx, pendingSteps("r1", supervisor.GoalStatus, 1, 2)))
	got, err := e.Query(ctx, "stalled_goal(Run, Kind).")
	require.NoError(t, err)
	assert.Empty(t, got, "two steps are not a stall")

	require.NoError(t, e.AddFacts(ctx, SnapshotFacts(StepSnapshot{
		RunID: "r1", Step: 3, PrevStep: 2,
		Pending: &supervisor.SubGoal{Kind: supervisor.GoalStatus},
	}, time.Now())))
	got, err = e.Query(ctx, "stalled_goal(Run, Kind).")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r1", got[0]["Run"])
	assert.Equal(t, "status", got[0]["Kind"])
}

func TestStalledGoalNeedsSameKind(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	facts := pendingSteps("r1", supervisor.GoalProjectName, 1, 2)
	facts = append(facts, SnapshotFacts(StepSnapshot{
		RunID: "r1", Step: 3, PrevStep: 2,
		Pending: &supervisor.SubGoal{Kind: supervisor.GoalSubmit},
	}, time.Now())...)
	require.NoError(t, e.AddFacts(ctx, facts))

	got, err := e.Query(ctx, "stalled_goal(Run, Kind).")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRewrittenStepAndFinishWithModal(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.AddFacts(ctx, SnapshotFacts(StepSnapshot{
		RunID:    "r2",
		Step:     4,
		Modals:   1,
		Proposed: supervisor.Finish("done", ""),
		Final:    supervisor.Wait("waiting"),
		Rule:     supervisor.RuleForceFinish,
		Goals: []supervisor.SubGoal{
			{Kind: supervisor.GoalProjectName, Completed: true},
			{Kind: supervisor.GoalSubmit},
		},
		FinishBlocked: "modal still open",
		Hint:          "Click Create",
	}, time.Now())))

	got, err := e.Query(ctx, `rewritten_step("r2", Step, Proposed, Final).`)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(4), got[0]["Step"])
	assert.Equal(t, "finish", got[0]["Proposed"])
	assert.Equal(t, "wait", got[0]["Final"])

	got, err = e.Query(ctx, "finish_with_modal(Run, Step).")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = e.Query(ctx, "goal_completed(Run, Step, Kind).")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "project_name", got[0]["Kind"])

	got, err = e.Query(ctx, `rewritten_step("other", Step, _, _).`)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSnapshotFacts(t *testing.T) {
	at := time.Unix(1700000000, 0)
	facts := SnapshotFacts(StepSnapshot{
		RunID:    "r",
		Step:     1,
		Proposed: supervisor.Click(3, ""),
		Final:    supervisor.Click(3, ""),
	}, at)

	preds := make([]string, 0, len(facts))
	for _, f := range facts {
		preds = append(preds, f.Predicate)
		assert.Equal(t, at, f.Timestamp)
	}
	assert.Equal(t, []string{"run_step", "action_proposed", "action_final"}, preds)
	assert.Equal(t, []any{"r", 1, "click", 3}, facts[1].Args)
}

func TestEvaluate(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()
	require.NoError(t, e.AddFacts(ctx, pendingSteps("r1", supervisor.GoalFilter, 1, 2, 3)))

	facts, err := e.Evaluate(ctx, "run_step")
	require.NoError(t, err)
	assert.Len(t, facts, 3)

	facts, err = e.Evaluate(ctx, "stalled_goal")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, []any{"r1", "filter"}, facts[0].Args)

	_, err = e.Evaluate(ctx, "no_such_predicate")
	assert.Error(t, err)
}

func TestAddRule(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	require.NoError(t, e.AddRule("Decl blocked_run(Run).\nblocked_run(Run) :- finish_blocked(Run, _, _)."))
	require.NoError(t, e.AddFacts(ctx, SnapshotFacts(StepSnapshot{
		RunID: "r3", Step: 2, FinishBlocked: "pending goal",
	}, time.Now())))

	got, err := e.Query(ctx, "blocked_run(Run).")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "r3", got[0]["Run"])

	assert.Error(t, e.AddRule("this is not mangle"))
	got, err = e.Query(ctx, "blocked_run(Run).")
	require.NoError(t, err)
	assert.Len(t, got, 1, "a failed rule leaves the program intact")
}

func TestBufferLimitRebuildsStore(t *testing.T) {
	e := newTestEngine(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, e.AddFacts(ctx, []Fact{{
			Predicate: "run_step", Args: []any{"r", i}, Timestamp: time.Now(),
		}}))
	}
	assert.Len(t, e.Facts(), 3)
	assert.Len(t, e.FactsByPredicate("run_step"), 3)

	got, err := e.Query(ctx, "run_step(Run, Step).")
	require.NoError(t, err)
	require.Len(t, got, 3)
	steps := []any{got[0]["Step"], got[1]["Step"], got[2]["Step"]}
	assert.ElementsMatch(t, []any{int64(3), int64(4), int64(5)}, steps)
}

func TestQueryTemporal(t *testing.T) {
	e := newTestEngine(t, 0)
	base := time.Unix(1700000000, 0)
	var facts []Fact
	for i := 0; i < 3; i++ {
		facts = append(facts, Fact{Predicate: "run_step", Args: []any{"r", i + 1}, Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}
	require.NoError(t, e.AddFacts(context.Background(), facts))

	assert.Len(t, e.QueryTemporal("run_step", time.Time{}, time.Time{}), 3)
	assert.Len(t, e.QueryTemporal("run_step", base, time.Time{}), 2)
	assert.Len(t, e.QueryTemporal("run_step", base, base.Add(2*time.Minute)), 1)
	assert.Empty(t, e.QueryTemporal("modal_open", time.Time{}, time.Time{}))
}

func TestDisabledEngine(t *testing.T) {
	e, err := NewEngine(config.MangleConfig{}, nil)
	require.NoError(t, err)
	assert.True(t, e.Ready())

	ctx := context.Background()
	require.NoError(t, e.AddFacts(ctx, pendingSteps("r", supervisor.GoalSubmit, 1)))
	require.NoError(t, e.AddRule("anything"))
	assert.Empty(t, e.Facts())

	_, err = e.Query(ctx, "run_step(R, S).")
	assert.Error(t, err)
}

func TestQueryErrors(t *testing.T) {
	e := newTestEngine(t, 0)
	ctx := context.Background()

	_, err := e.Query(ctx, "not valid ((")
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Query(cancelled, "run_step(R, S).")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, e.AddFacts(cancelled, nil), context.Canceled)
}

func TestSchemaPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.mg")
	require.NoError(t, os.WriteFile(path, []byte("Decl seen(Run).\n"), 0o644))

	e, err := NewEngine(config.MangleConfig{Enable: true, SchemaPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, e.AddFacts(context.Background(), []Fact{{Predicate: "seen", Args: []any{"r"}}}))
	got, err := e.Query(context.Background(), "seen(R).")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = NewEngine(config.MangleConfig{Enable: true, SchemaPath: filepath.Join(t.TempDir(), "missing.mg")}, nil)
	assert.Error(t, err)
}
