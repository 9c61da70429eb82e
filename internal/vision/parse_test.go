package vision

import (
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want supervisor.Action
	}{
		{"click", "ACTION: click [56]", supervisor.Click(56, "")},
		{"click with reasoning", "The modal is open.\nACTION: click [3]", supervisor.Click(3, "The modal is open.")},
		{"click bare id", "ACTION: click 7", supervisor.Click(7, "")},
		{"click without id", "ACTION: click the button", supervisor.Click(0, "")},
		{"type", "ACTION: type [12]; second task", supervisor.TypeText(12, "second task", "")},
		{"type keeps later semicolons", "ACTION: type [2]; a; b", supervisor.TypeText(2, "a; b", "")},
		{"type without text", "ACTION: type [4]", supervisor.TypeText(4, "", "")},
		{"scroll down", "ACTION: scroll down", supervisor.Scroll("down", "")},
		{"scroll defaults up", "ACTION: scroll", supervisor.Scroll("up", "")},
		{"finish", "ACTION: finish; Created project", supervisor.Finish("Created project", "")},
		{"finish default summary", "ACTION: finish", supervisor.Finish("Task completed", "")},
		{"wait", "ACTION: wait", supervisor.Wait("")},
		{"code fence", "```\nACTION: `click [9]`\n```", supervisor.Click(9, "```")},
		{"no marker", "click [5]", supervisor.Click(5, "")},
		{"uppercase verb", "ACTION: CLICK [5]", supervisor.Click(5, "")},
		{"answer shorthand finish", "ACTION: answer_finish; done", supervisor.Finish("done", "")},
		{"answer shorthand click", "ACTION: final_answer_click [8]", supervisor.Click(8, "")},
		{"answer shorthand unknown", "ACTION: answer", supervisor.Wait("")},
		{"unknown verb", "ACTION: hover [3]", supervisor.Wait("Unrecognized action payload, defaulting to wait")},
		{"empty", "", supervisor.Wait("Could not parse action")},
		{"empty action keeps reasoning", "thinking\nACTION:", supervisor.Wait("thinking")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseResponse(tt.in))
		})
	}
}

func TestParseUsesLastActionMarker(t *testing.T) {
	got := ParseResponse("plan\nACTION: click [1]\nActually\nACTION: click [2]")
	assert.Equal(t, 2, got.ElementID)
	assert.Equal(t, "plan", got.Reasoning)
}
