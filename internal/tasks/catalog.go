// Package tasks defines what the agent can be asked to do: a catalogue of
// predefined tasks, a natural-language parser that builds new ones, and the
// completion rules checked before a run is accepted as finished.
package tasks

import (
	"errors"
	"fmt"
	"sort"

	"browsernerd-agent/internal/supervisor"
)

// ErrUnknownTask is returned by Lookup for ids outside the catalogue.
var ErrUnknownTask = errors.New("unknown task")

// Task is a single unit of browser work.
type Task struct {
	ID              string         `json:"task_id" yaml:"task_id"`
	Name            string         `json:"name" yaml:"name"`
	App             string         `json:"app" yaml:"app"`
	Goal            string         `json:"goal" yaml:"goal"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	StartURL        string         `json:"start_url" yaml:"start_url"`
	ExpectedSteps   int            `json:"expected_steps" yaml:"expected_steps"`
	MaxSteps        int            `json:"max_steps" yaml:"max_steps"`
	SuccessCriteria []string       `json:"success_criteria,omitempty" yaml:"success_criteria,omitempty"`
	NonURLStates    []string       `json:"non_url_states,omitempty" yaml:"non_url_states,omitempty"`
	Parameters      map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	Action          string         `json:"action,omitempty" yaml:"action,omitempty"`
	Object          string         `json:"object,omitempty" yaml:"object,omitempty"`
	MultiTask       bool           `json:"is_multi_task,omitempty" yaml:"is_multi_task,omitempty"`
	Query           string         `json:"parsed_from_query,omitempty" yaml:"parsed_from_query,omitempty"`
}

// Supervision returns the view of the task the supervisor plans from.
func (t Task) Supervision() supervisor.TaskConfig {
	return supervisor.TaskConfig{
		Goal:       t.Goal,
		Object:     t.Object,
		App:        t.App,
		Parameters: t.Parameters,
	}
}

// Validate reports the first required field that is missing.
func (t Task) Validate() error {
	switch {
	case t.ID == "":
		return errors.New("task_id is required")
	case t.App == "":
		return fmt.Errorf("task %s: app is required", t.ID)
	case t.Goal == "":
		return fmt.Errorf("task %s: goal is required", t.ID)
	case t.StartURL == "":
		return fmt.Errorf("task %s: start_url is required", t.ID)
	case t.MaxSteps <= 0:
		return fmt.Errorf("task %s: max_steps must be positive", t.ID)
	}
	return nil
}

var catalog = []Task{
	{
		ID:            "linear_create_project",
		Name:          "Create Project in Linear",
		App:           "linear",
		Goal:          "Create a new project named 'AI Agent Demo Project'",
		Description:   "Open Linear and create a project called 'AI Agent Demo Project'",
		StartURL:      "https://linear.app",
		ExpectedSteps: 7,
		MaxSteps:      15,
		SuccessCriteria: []string{
			"Project appears in project list",
			"Project name is 'AI Agent Demo Project'",
		},
		NonURLStates: []string{
			"Creation modal open",
			"Form fields visible",
			"Form filled",
			"Submission in flight",
		},
		Parameters: map[string]any{"project_name": "AI Agent Demo Project"},
		Action:     "create",
		Object:     "project",
	},
	{
		ID:            "linear_create_issue",
		Name:          "Create Issue in Linear",
		App:           "linear",
		Goal:          "Create a new issue titled 'Test Issue from Agent' and assign it to a team",
		Description:   "Open Linear issues and create one titled 'Test Issue from Agent'",
		StartURL:      "https://linear.app",
		ExpectedSteps: 8,
		MaxSteps:      15,
		SuccessCriteria: []string{
			"Issue appears in issues list",
			"Issue title is 'Test Issue from Agent'",
		},
		NonURLStates: []string{
			"Issue creation dialog",
			"Title input focused",
			"Team dropdown open",
			"Team selected",
		},
		Parameters: map[string]any{"issue_title": "Test Issue from Agent"},
		Action:     "create",
		Object:     "issue",
	},
	{
		ID:            "linear_filter_issues",
		Name:          "Filter Issues in Linear",
		App:           "linear",
		Goal:          "Filter the issues list to show only issues with 'In Progress' status",
		Description:   "Open the Linear issues page and filter it down to 'In Progress'",
		StartURL:      "https://linear.app/issues",
		ExpectedSteps: 5,
		MaxSteps:      10,
		SuccessCriteria: []string{
			"Filter is applied",
			"Only 'In Progress' issues are visible",
		},
		NonURLStates: []string{
			"Filter dropdown open",
			"Status menu open",
			"Filtered list refreshed",
		},
		Parameters: map[string]any{"filter": "In Progress"},
		Action:     "filter",
		Object:     "issue",
	},
	{
		ID:            "notion_create_page",
		Name:          "Create Page in Notion",
		App:           "notion",
		Goal:          "Create a new page titled 'Agent Test Page' with some content",
		Description:   "Open Notion, create a page titled 'Agent Test Page' and add a paragraph",
		StartURL:      "https://www.notion.so",
		ExpectedSteps: 6,
		MaxSteps:      12,
		SuccessCriteria: []string{
			"Page appears in sidebar",
			"Page title is 'Agent Test Page'",
			"Page has content",
		},
		NonURLStates: []string{
			"Page creation menu",
			"Title editor",
			"Content blocks",
		},
		Parameters: map[string]any{"page_name": "Agent Test Page"},
		Action:     "create",
		Object:     "page",
	},
	{
		ID:            "notion_create_database",
		Name:          "Create Database in Notion",
		App:           "notion",
		Goal:          "Create a table database named 'Test Database' and add one entry",
		Description:   "Open Notion, create a table database named 'Test Database' and add a row",
		StartURL:      "https://www.notion.so",
		ExpectedSteps: 9,
		MaxSteps:      15,
		SuccessCriteria: []string{
			"Database is created",
			"Database name is 'Test Database'",
			"Database has at least one entry",
		},
		NonURLStates: []string{
			"Database type selector",
			"Table view editor",
			"Column editor",
			"Row editor",
			"Cell editing",
		},
		Parameters: map[string]any{"database_name": "Test Database"},
		Action:     "create",
		Object:     "database",
	},
}

// All returns a copy of the catalogue in definition order.
func All() []Task {
	out := make([]Task, len(catalog))
	for i, t := range catalog {
		out[i] = t.clone()
	}
	return out
}

// Lookup returns the catalogue task with the given id.
func Lookup(id string) (Task, error) {
	for _, t := range catalog {
		if t.ID == id {
			return t.clone(), nil
		}
	}
	return Task{}, fmt.Errorf("%w: %s", ErrUnknownTask, id)
}

// ByApp returns the catalogue tasks for one application.
func ByApp(app string) []Task {
	var out []Task
	for _, t := range catalog {
		if t.App == app {
			out = append(out, t.clone())
		}
	}
	return out
}

// IDs lists the catalogue ids, sorted.
func IDs() []string {
	ids := make([]string, 0, len(catalog))
	for _, t := range catalog {
		ids = append(ids, t.ID)
	}
	sort.Strings(ids)
	return ids
}

func (t Task) clone() Task {
	c := t
	c.SuccessCriteria = append([]string(nil), t.SuccessCriteria...)
	c.NonURLStates = append([]string(nil), t.NonURLStates...)
	if t.Parameters != nil {
		c.Parameters = make(map[string]any, len(t.Parameters))
		for k, v := range t.Parameters {
			c.Parameters[k] = v
		}
	}
	return c
}
