package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, keep int) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"), keep)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	tick := time.Unix(1700000000, 0)
	s.now = func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}
	return s
}

func TestSaveAndGetRun(t *testing.T) {
	s := openTestStore(t, 0)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	run := Run{
		ID:         "run-1",
		TaskID:     "linear_create_project",
		TaskName:   "Create Project in Linear",
		App:        "linear",
		Goal:       "Create a new project named 'Demo'",
		Parameters: map[string]any{"project_name": "Demo"},
		Success:    true,
		Steps:      2,
		DatasetDir: "dataset/linear_create_project",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		StepLog: []StepEntry{
			{Step: 2, Action: "finish", Observation: "Task finished: done"},
			{Step: 1, Action: "click", Observation: "Clicked element [3]: Projects", URL: "https://linear.app"},
		},
	}
	require.NoError(t, s.SaveRun(ctx, run))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, run.TaskID, got.TaskID)
	assert.True(t, got.Success)
	assert.Equal(t, "Demo", got.Parameters["project_name"])
	assert.True(t, started.Equal(got.StartedAt))
	require.Len(t, got.StepLog, 2)
	assert.Equal(t, 1, got.StepLog[0].Step, "steps come back in order")
	assert.Equal(t, "https://linear.app", got.StepLog[0].URL)

	run.Success = false
	run.Error = "too many consecutive failures"
	run.StepLog = run.StepLog[:1]
	require.NoError(t, s.SaveRun(ctx, run))

	got, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, got.Success)
	assert.Equal(t, "too many consecutive failures", got.Error)
	assert.Len(t, got.StepLog, 1)
}

func TestGetRunNotFound(t *testing.T) {
	s := openTestStore(t, 0)
	_, err := s.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRunsTrimsToKeepRecent(t *testing.T) {
	s := openTestStore(t, 3)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.SaveRun(ctx, Run{
			ID:      fmt.Sprintf("run-%d", i),
			TaskID:  "linear_filter_issues",
			StepLog: []StepEntry{{Step: 1, Action: "wait"}},
		}))
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-5", runs[0].ID)
	assert.Equal(t, "run-3", runs[2].ID)
	assert.Nil(t, runs[0].StepLog)

	_, err = s.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)

	runs, err = s.ListRuns(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestSaveRunRequiresID(t *testing.T) {
	s := openTestStore(t, 0)
	assert.Error(t, s.SaveRun(context.Background(), Run{}))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open("", 0)
	assert.Error(t, err)
}
