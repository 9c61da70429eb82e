package tasks

import (
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalog(t *testing.T) {
	all := All()
	require.Len(t, all, 5)
	for _, task := range all {
		assert.NoError(t, task.Validate(), task.ID)
		assert.LessOrEqual(t, task.ExpectedSteps, task.MaxSteps, task.ID)
	}
	assert.Equal(t, []string{
		"linear_create_issue",
		"linear_create_project",
		"linear_filter_issues",
		"notion_create_database",
		"notion_create_page",
	}, IDs())
	assert.Len(t, ByApp("notion"), 2)
	assert.Empty(t, ByApp("asana"))
}

func TestLookup(t *testing.T) {
	task, err := Lookup("linear_filter_issues")
	require.NoError(t, err)
	assert.Equal(t, "https://linear.app/issues", task.StartURL)
	assert.Equal(t, 10, task.MaxSteps)

	_, err = Lookup("jira_close_ticket")
	assert.ErrorIs(t, err, ErrUnknownTask)
}

func TestLookupReturnsCopies(t *testing.T) {
	task, err := Lookup("linear_create_project")
	require.NoError(t, err)
	task.Parameters["project_name"] = "changed"
	task.SuccessCriteria[0] = "changed"

	again, err := Lookup("linear_create_project")
	require.NoError(t, err)
	assert.Equal(t, "AI Agent Demo Project", again.Parameters["project_name"])
	assert.Equal(t, "Project appears in project list", again.SuccessCriteria[0])
}

func TestSupervision(t *testing.T) {
	task, err := Lookup("linear_create_project")
	require.NoError(t, err)

	cfg := task.Supervision()
	assert.Equal(t, task.Goal, cfg.Goal)
	assert.Equal(t, "project", cfg.Object)
	assert.Equal(t, "linear", cfg.App)

	goals := supervisor.Extract(cfg, supervisor.DefaultVocabulary())
	require.NotEmpty(t, goals)
	assert.Equal(t, supervisor.GoalSubmit, goals[len(goals)-1].Kind)
}

func TestTaskValidate(t *testing.T) {
	valid := Task{ID: "x", App: "linear", Goal: "g", StartURL: "https://linear.app", MaxSteps: 1}
	assert.NoError(t, valid.Validate())

	missing := valid
	missing.StartURL = ""
	assert.EqualError(t, missing.Validate(), "task x: start_url is required")

	missing = valid
	missing.MaxSteps = 0
	assert.Error(t, missing.Validate())

	assert.EqualError(t, Task{}.Validate(), "task_id is required")
}
