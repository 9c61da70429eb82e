package browser

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"browsernerd-agent/internal/supervisor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	calls []string
	err   error
}

func (f *fakeInput) ClickAt(_ context.Context, x, y float64) error {
	f.calls = append(f.calls, fmt.Sprintf("click %.0f,%.0f", x, y))
	return f.err
}

func (f *fakeInput) ClearAndType(_ context.Context, text string) error {
	f.calls = append(f.calls, "type "+text)
	return f.err
}

func (f *fakeInput) ScrollBy(_ context.Context, dy float64) error {
	f.calls = append(f.calls, fmt.Sprintf("scroll %.0f", dy))
	return f.err
}

var pageElements = []supervisor.Element{
	{Index: 0, Type: "a", Text: "Projects", CenterX: 40, CenterY: 120},
	{Index: 1, Type: "input", Text: "", CenterX: 300, CenterY: 200},
	{Index: 2, Type: "button", Text: "  Create a brand new project in this workspace right now please  ", CenterX: 500, CenterY: 600},
}

func TestPlay(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		action supervisor.Action
		want   string
		calls  []string
	}{
		{"click", supervisor.Click(0, ""), "Clicked element [0]: Projects", []string{"click 40,120"}},
		{"click clips long text", supervisor.Click(2, ""), "Clicked element [2]: Create a brand new project in this workspace rig", []string{"click 500,600"}},
		{"click missing", supervisor.Click(9, ""), "Error: Element [9] not found (max: 2)", nil},
		{"type", supervisor.TypeText(1, "Demo", ""), "Typed into [1]: 'Demo'", []string{"click 300,200", "type Demo"}},
		{"type missing", supervisor.TypeText(7, "x", ""), "Error: Element [7] not found", nil},
		{"scroll down", supervisor.Scroll("down", ""), "Scrolled down", []string{"scroll 500"}},
		{"scroll up", supervisor.Scroll("up", ""), "Scrolled up", []string{"scroll -500"}},
		{"wait", supervisor.Wait(""), "Waited 1 second", nil},
		{"finish", supervisor.Finish("made it", ""), "Task finished: made it", nil},
		{"finish default summary", supervisor.Finish("", ""), "Task finished: Task completed", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &fakeInput{}
			got := Play(ctx, in, Timings{}, tt.action, pageElements)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.calls, in.calls)
		})
	}
}

func TestPlayReportsInputFailures(t *testing.T) {
	in := &fakeInput{err: errors.New("target closed")}
	got := Play(context.Background(), in, Timings{}, supervisor.TypeText(1, "Demo", ""), pageElements)
	assert.Equal(t, "Action failed: target closed", got)
	require.Len(t, in.calls, 1, "typing stops after a failed focus click")
}

func TestPlayResolvesByIndex(t *testing.T) {
	sparse := []supervisor.Element{{Index: 5, Text: "Save", CenterX: 1, CenterY: 2}}
	in := &fakeInput{}
	assert.Equal(t, "Clicked element [5]: Save", Play(context.Background(), in, Timings{}, supervisor.Click(5, ""), sparse))
}

func TestPauseHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	in := &fakeInput{}
	got := Play(ctx, in, DefaultTimings(), supervisor.Wait(""), nil)
	assert.Equal(t, "Waited 1 second", got)
}
