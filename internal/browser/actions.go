package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"browsernerd-agent/internal/supervisor"
)

// Input is the low-level pointer and keyboard surface actions are played on.
type Input interface {
	ClickAt(ctx context.Context, x, y float64) error
	// ClearAndType selects all content of the focused field, deletes it, then inserts text.
	ClearAndType(ctx context.Context, text string) error
	ScrollBy(ctx context.Context, dy float64) error
}

// Timings are the settle pauses after each action kind.
type Timings struct {
	AfterClick time.Duration
	Focus      time.Duration
	AfterType  time.Duration
	AfterWheel time.Duration
	Wait       time.Duration
}

// DefaultTimings mirrors what dynamic single-page apps need to settle.
func DefaultTimings() Timings {
	return Timings{
		AfterClick: time.Second,
		Focus:      300 * time.Millisecond,
		AfterType:  1200 * time.Millisecond,
		AfterWheel: time.Second,
		Wait:       time.Second,
	}
}

const scrollStep = 500

// Play executes one action against in and returns the observation string.
// Element ids resolve against the Index of the annotated elements.
func Play(ctx context.Context, in Input, t Timings, action supervisor.Action, elements []supervisor.Element) string {
	switch action.Kind {
	case supervisor.ActionClick:
		el, ok := lookup(elements, action.ElementID)
		if !ok {
			return fmt.Sprintf("Error: Element [%d] not found (max: %d)", action.ElementID, len(elements)-1)
		}
		if err := in.ClickAt(ctx, el.CenterX, el.CenterY); err != nil {
			return fmt.Sprintf("Action failed: %v", err)
		}
		pause(ctx, t.AfterClick)
		return fmt.Sprintf("Clicked element [%d]: %s", action.ElementID, clip(el.Text, 50))

	case supervisor.ActionType:
		el, ok := lookup(elements, action.ElementID)
		if !ok {
			return fmt.Sprintf("Error: Element [%d] not found", action.ElementID)
		}
		if err := in.ClickAt(ctx, el.CenterX, el.CenterY); err != nil {
			return fmt.Sprintf("Action failed: %v", err)
		}
		pause(ctx, t.Focus)
		if err := in.ClearAndType(ctx, action.Text); err != nil {
			return fmt.Sprintf("Action failed: %v", err)
		}
		pause(ctx, t.AfterType)
		return fmt.Sprintf("Typed into [%d]: '%s'", action.ElementID, action.Text)

	case supervisor.ActionScroll:
		direction := action.Direction
		if direction == "" {
			direction = "down"
		}
		dy := float64(scrollStep)
		if direction != "down" {
			dy = -dy
		}
		if err := in.ScrollBy(ctx, dy); err != nil {
			return fmt.Sprintf("Action failed: %v", err)
		}
		pause(ctx, t.AfterWheel)
		return "Scrolled " + direction

	case supervisor.ActionWait:
		pause(ctx, t.Wait)
		return "Waited 1 second"

	case supervisor.ActionFinish:
		summary := action.Summary
		if summary == "" {
			summary = "Task completed"
		}
		return "Task finished: " + summary
	}
	return fmt.Sprintf("Unknown action: %s", action.Kind)
}

func lookup(elements []supervisor.Element, id int) (supervisor.Element, bool) {
	for _, el := range elements {
		if el.Index == id {
			return el, true
		}
	}
	return supervisor.Element{}, false
}

func clip(s string, n int) string {
	if len(s) > n {
		s = s[:n]
	}
	return strings.TrimSpace(s)
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
