package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDateVisible(t *testing.T) {
	vocab := DefaultVocabulary()
	tests := []struct {
		name  string
		value string
		texts []string
		want  bool
	}{
		{"month synonym and unpadded day", "March 5", []string{"Mar 5, 2025"}, true},
		{"zero padded day matches unpadded text", "2025-03-05", []string{"Target: 5 Mar 2025", "03"}, true},
		{"slash delimited", "12/24/2025", []string{"Dec 24 2025", "12"}, true},
		{"tokens may come from different elements", "March 5", []string{"Mar", "5 items"}, true},
		{"only one of two tokens visible", "March 7", []string{"Mar 5, 2025"}, false},
		{"month synonym missing", "June 5", []string{"Mar 5, 2025"}, false},
		{"empty value", "  ", []string{"anything"}, false},
		{"sept synonym", "September 9", []string{"Sept 9"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dateVisible(vocab, tt.value, tt.texts))
		})
	}
}

func TestDateTokenSets(t *testing.T) {
	sets := dateTokenSets(DefaultVocabulary(), "Mar 05, 2025")
	assert.Equal(t, [][]string{{"mar", "march"}, {"5", "05"}, {"2025", "2025"}}, sets)

	assert.Equal(t, [][]string{{"0", "00"}}, dateTokenSets(DefaultVocabulary(), "00"))
}

func TestFilterApplied(t *testing.T) {
	vocab := DefaultVocabulary()
	tests := []struct {
		name  string
		value string
		texts []string
		want  bool
	}{
		{"status chip", "In Progress", []string{"Status is In Progress"}, true},
		{"filter label", "Backlog", []string{"Filter: Backlog"}, true},
		{"singular form", "Todos", []string{"Showing todo"}, true},
		{"target alone in page chrome", "In Progress", []string{"In Progress", "Settings"}, false},
		{"keyword alone", "Done", []string{"Filter"}, false},
		{"target and keyword in different elements", "Done", []string{"Done", "Filter"}, false},
		{"empty target", "", []string{"Filter"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterApplied(vocab, tt.value, tt.texts))
		})
	}
}

func TestFilterAppliedStatusIsChipWithoutKeywords(t *testing.T) {
	vocab := DefaultVocabulary()
	vocab.FilterStateWords = []string{"filtered"}

	assert.True(t, filterApplied(vocab, "Blocked", []string{"Status is Blocked"}))
	assert.False(t, filterApplied(vocab, "Blocked", []string{"Blocked by 3"}))
}

func TestValueInForms(t *testing.T) {
	forms := []FormField{{Type: "input", Value: "  Demo "}, {Type: "textarea", Value: ""}}
	assert.True(t, valueInForms("demo", forms))
	assert.False(t, valueInForms("Demo Project", forms))
	assert.False(t, valueInForms("", forms), "empty target never matches an empty field")
}

func TestControlMatches(t *testing.T) {
	assert.True(t, controlMatches(Element{Text: "In Progress"}, "in progress"))
	assert.True(t, controlMatches(Element{AriaLabel: "Priority: High"}, "high"), "aria is used when text is empty")
	assert.False(t, controlMatches(Element{Text: "Backlog", AriaLabel: "Done"}, "done"), "aria is ignored when text is present")
	assert.False(t, controlMatches(Element{Text: "Backlog"}, ""))
}

func TestDescriptionFilled(t *testing.T) {
	vocab := DefaultVocabulary()
	forms := []FormField{
		{Type: "input", Value: "Alpha"},
		{Type: "div", AriaLabel: "Project summary", Value: "A short summary of the work"},
	}
	assert.True(t, descriptionFilled(vocab, "short summary", forms))
	assert.False(t, descriptionFilled(vocab, "Alpha", forms), "only description-like fields count")
	assert.True(t, descriptionFilled(vocab, "", forms), "any text satisfies an unspecified description")
	assert.False(t, descriptionFilled(vocab, "", []FormField{{Type: "textarea"}}))
}

func TestUpdateCompletesFromState(t *testing.T) {
	s := New(TaskConfig{
		Goal: "Create a project",
		Parameters: map[string]any{
			"project_name": "Demo",
			"status":       "In Progress",
			"priority":     "High",
			"target_date":  "March 5",
		},
	})

	modal := []Modal{{Type: "dialog", BBox: &BBox{X: 0, Y: 0, Width: 800, Height: 600}}}
	state := UIState{
		URL:    "https://linear.app/acme/projects/all",
		Modals: modal,
		Forms:  []FormField{{Type: "input", Value: "Demo", Filled: true}},
	}
	elements := []Element{
		{Index: 0, Text: "In Progress", AriaLabel: "Change project status"},
		{Index: 1, Text: "High", AriaLabel: "Change project priority"},
		{Index: 2, Text: "Mar 5"},
	}

	s.Update(state, elements)

	for _, g := range s.Goals() {
		if g.Kind == GoalSubmit {
			assert.False(t, g.Completed, "submit waits for the modal to close")
			continue
		}
		assert.True(t, g.Completed, "%s should be complete", g.Kind)
	}

	state.Modals = nil
	s.Update(state, elements)
	assert.True(t, s.AllCompleted())
	assert.Nil(t, s.Pending())
}

func TestUpdateSubmitNeedsPriorGoals(t *testing.T) {
	s := New(TaskConfig{Goal: "Create issue", Parameters: map[string]any{"issue_name": "Bug"}})
	s.Update(UIState{}, nil)

	goals := s.Goals()
	assert.False(t, goals[0].Completed)
	assert.False(t, goals[1].Completed, "submit cannot complete before the name")
}
