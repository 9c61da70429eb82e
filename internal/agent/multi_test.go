package agent

import (
	"context"
	"testing"

	"browsernerd-agent/internal/supervisor"
	"browsernerd-agent/internal/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	b := &fakeBrowser{elements: pageElements}
	d := &scriptedDecider{actions: []supervisor.Action{supervisor.Finish("done", "")}}
	r := newTestRunner(t, b, d)

	first := browseTask()
	first.ID = "demo_part_1"
	first.Query = "create 3 things"

	failing := browseTask()
	failing.ID = "notion_create_page"
	failing.App = "notion"
	failing.StartURL = "https://notion.so"
	failing.MaxSteps = 2

	third := browseTask()
	third.ID = "demo_part_3"

	s := r.RunAll(context.Background(), []tasks.Task{first, failing, third})
	assert.False(t, s.Success)
	assert.True(t, s.MultiTask)
	assert.Equal(t, 3, s.TotalTasks)
	assert.Equal(t, 1, s.SuccessfulTasks)
	assert.Equal(t, 2, s.FailedTasks)
	assert.Equal(t, "Completed 1/3 tasks", s.Summary)
	assert.Equal(t, "create 3 things", s.OriginalQuery)

	require.Len(t, s.Results, 2, "the third task never runs")
	assert.Equal(t, 1, s.Results[0].TaskNumber)
	assert.Equal(t, 2, s.Results[1].TaskNumber)
	assert.Equal(t, 3, s.Results[1].TotalTasks)
	assert.Equal(t, "create 3 things", s.Results[1].OriginalQuery)
	assert.Equal(t, []string{"https://linear.app/acme", "https://notion.so"}, b.opened)
}

func TestRunAllExpandedTask(t *testing.T) {
	b := &fakeBrowser{elements: pageElements}
	d := &scriptedDecider{actions: []supervisor.Action{supervisor.Finish("done", "")}}
	r := newTestRunner(t, b, d)
	r.opts.Supervise = false

	task := browseTask()
	task.ID = "linear_create_issue_1700000000"
	task.Object = "issue"
	task.MultiTask = true
	task.Parameters = map[string]any{"count": 2, "names": []string{"alpha", "beta"}}

	parts := tasks.Expand(task)
	require.Len(t, parts, 2)

	s := r.RunAll(context.Background(), parts)
	assert.True(t, s.Success)
	assert.Equal(t, "Completed 2/2 tasks", s.Summary)
	assert.Len(t, s.Results, 2)
	assert.Len(t, b.opened, 2)
	assert.Equal(t, 2, b.closed)
}

func TestRunAllSingleTask(t *testing.T) {
	r := newTestRunner(t, &fakeBrowser{elements: pageElements},
		&scriptedDecider{actions: []supervisor.Action{supervisor.Finish("done", "")}})

	s := r.RunAll(context.Background(), []tasks.Task{browseTask()})
	assert.True(t, s.Success)
	assert.False(t, s.MultiTask)
	assert.Equal(t, "Completed 1/1 tasks", s.Summary)
}
