package vision

import (
	"fmt"
	"strings"
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
)

func TestFormatElements(t *testing.T) {
	lim := DefaultLimits()
	assert.Equal(t, "No interactive elements detected.", formatElements(nil, lim))

	got := formatElements([]supervisor.Element{
		{Index: 0, Type: "button", Text: " Create ", AriaLabel: "New project", Role: "button"},
		{Index: 1, Type: "a", Text: "Issues", Href: "/acme/issues"},
	}, lim)
	assert.Equal(t, "[0] button: \"Create\" (aria: New project) (role: button)\n[1] a: \"Issues\" (href: /acme/issues)", got)

	many := make([]supervisor.Element, 60)
	for i := range many {
		many[i] = supervisor.Element{Index: i, Type: "div", Text: strings.Repeat("x", 80)}
	}
	lines := strings.Split(formatElements(many, lim), "\n")
	assert.Len(t, lines, 40)
	assert.Equal(t, fmt.Sprintf("[0] div: %q", strings.Repeat("x", 50)), lines[0])
}

func TestFormatHistory(t *testing.T) {
	lim := DefaultLimits()
	assert.Equal(t, "RECENT ACTIONS: None (first step)\n", formatHistory(nil, lim))

	history := []HistoryEntry{
		{Step: 1, Action: "wait", Observation: "Waited 1 second"},
		{Step: 2, Action: "click", Observation: "Clicked element [3]: New project"},
		{Step: 3, Action: "type", Observation: "Typed into [4]: 'Demo'"},
		{Step: 4, Action: "finish"},
	}
	got := formatHistory(history, lim)
	assert.Equal(t, "RECENT ACTIONS (what you just did):\n"+
		"  Step 1: wait - Waited 1 second\n"+
		"  Step 2: click - clicked \"New project\"\n"+
		"  Step 3: type - typed \"Demo\"\n"+
		"  Step 4: finish\n", got)

	long := make([]HistoryEntry, 8)
	for i := range long {
		long[i] = HistoryEntry{Step: i + 1, Action: "wait"}
	}
	got = formatHistory(long, lim)
	assert.NotContains(t, got, "Step 3:")
	assert.Contains(t, got, "Step 4:")
	assert.Contains(t, got, "Step 8:")
}

func TestFormatParameters(t *testing.T) {
	assert.Empty(t, formatParameters(nil))

	got := formatParameters(map[string]any{
		"project_name": "Demo",
		"status":       "In Progress",
		"labels":       []any{"a", "b"},
		"description":  "",
	})
	assert.Contains(t, got, "TASK PARAMETERS")
	assert.Contains(t, got, "  - labels: a, b\n")
	assert.Contains(t, got, "  - project_name: Demo\n")
	assert.NotContains(t, got, "description:")
	assert.Contains(t, got, `exactly "Demo"`)
	assert.Contains(t, got, stayInModal)
	assert.Contains(t, got, "status chip")
	assert.NotContains(t, got, "priority chip")
	assert.Less(t, strings.Index(got, "labels"), strings.Index(got, "project_name"), "keys are sorted")
}

func TestBuildPrompt(t *testing.T) {
	id := 4
	prompt := BuildPrompt(Request{
		Goal:     "Create a project",
		URL:      "https://linear.app/acme",
		Elements: []supervisor.Element{{Index: 4, Type: "button", Text: "Create"}},
		Hint:     &supervisor.Hint{Message: "Next required step: submit.", ElementID: &id},
	}, DefaultLimits())

	assert.Contains(t, prompt, "Your goal: Create a project")
	assert.Contains(t, prompt, "Current URL: https://linear.app/acme")
	assert.Contains(t, prompt, "[4] button: \"Create\"")
	assert.Contains(t, prompt, "CONTEXT HINT:\n  - Next required step: submit.")
	assert.Contains(t, prompt, "ACTION: <action>")
	assert.NotContains(t, prompt, "%!")
}
