package tasks

import (
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpand(t *testing.T) {
	t.Run("named parts", func(t *testing.T) {
		parent := parse(t, "In Notion, create pages named Alpha, Beta, Gamma")
		parts := Expand(parent)
		require.Len(t, parts, 3)

		second := parts[1]
		assert.Equal(t, parent.ID+"_part_2", second.ID)
		assert.False(t, second.MultiTask)
		assert.Equal(t, "Create page named 'Beta' in notion", second.Goal)
		assert.Equal(t, "Create Page: Beta", second.Name)
		assert.Equal(t, map[string]any{"page_name": "Beta"}, second.Parameters)
		assert.Equal(t, 8, second.ExpectedSteps)
		assert.Equal(t, parent.StartURL, second.StartURL)
		assert.Equal(t, []string{"Page appears in list", "Page name is 'Beta'"}, second.SuccessCriteria)
	})

	t.Run("numbered parts", func(t *testing.T) {
		parts := Expand(parse(t, "Create 3 issues in Linear"))
		require.Len(t, parts, 3)
		assert.Equal(t, map[string]any{"issue_title": "Issue 3"}, parts[2].Parameters)
	})

	t.Run("name pattern", func(t *testing.T) {
		parts := Expand(Task{
			ID: "p", App: "linear", Object: "project", MultiTask: true, ExpectedSteps: 10,
			Parameters: map[string]any{"count": float64(2), "name_pattern": "Sprint {i}"},
		})
		require.Len(t, parts, 2)
		assert.Equal(t, "Sprint 2", parts[1].Parameters["project_name"])
		assert.Equal(t, 5, parts[1].ExpectedSteps)
	})

	t.Run("single task passes through", func(t *testing.T) {
		task, err := Lookup("linear_create_project")
		require.NoError(t, err)
		assert.Equal(t, []Task{task}, Expand(task))

		task.MultiTask = true
		assert.Len(t, Expand(task), 1, "multi flag without a count")
	})
}

func TestValidateCompletion(t *testing.T) {
	finish := supervisor.Finish("done", "")
	lookup := func(id string) Task {
		task, err := Lookup(id)
		require.NoError(t, err)
		return task
	}

	tests := []struct {
		name   string
		task   Task
		action supervisor.Action
		url    string
		title  string
		ok     bool
	}{
		{"non-finish passes", lookup("linear_filter_issues"), supervisor.Click(1, ""), "https://linear.app", "", true},
		{"unknown task passes", Task{ID: "custom"}, finish, "https://linear.app", "", true},
		{"filter without title evidence", lookup("linear_filter_issues"), finish, "https://linear.app/acme/issues", "Issues", false},
		{"filter with title evidence", lookup("linear_filter_issues"), finish, "https://linear.app/acme/issues", "In Progress - Issues", true},
		{"project url miss is advisory", lookup("linear_create_project"), finish, "https://linear.app/acme/inbox", "Inbox", true},
		{"notion root is not a page", lookup("notion_create_page"), finish, "https://www.notion.so", "Notion", false},
		{"notion page", lookup("notion_create_page"), finish, "https://www.notion.so/Agent-Test-Page-1a2b", "Agent Test Page", true},
		{"notion database root", lookup("notion_create_database"), finish, "https://www.notion.so", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := ValidateCompletion(tt.task, tt.action, tt.url, tt.title)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Empty(t, reason)
			} else {
				assert.Contains(t, reason, "Goal: ")
			}
		})
	}
}
