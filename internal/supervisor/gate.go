package supervisor

import "fmt"

// FinishGate vetoes premature finish actions. It carries one piece of state,
// a debounce counter so a sticky loading indicator blocks only once.
type FinishGate struct {
	loadingBlocks int
}

// Check returns a block reason and true when a finish must not go through.
// Non-finish actions always pass and reset the debounce.
func (g *FinishGate) Check(proposed Action, state UIState, pending *SubGoal, allDone bool) (string, bool) {
	if proposed.Kind != ActionFinish {
		g.loadingBlocks = 0
		return "", false
	}
	if state.HasModal() {
		g.loadingBlocks = 0
		return fmt.Sprintf("Modal still open (%d)", len(state.Modals)), true
	}
	if pending != nil {
		g.loadingBlocks = 0
		return fmt.Sprintf("Pending sub-goal: %s", pending.Kind), true
	}
	if state.Loading.IsLoading && !allDone {
		if g.loadingBlocks == 0 {
			g.loadingBlocks = 1
			return "Page still loading", true
		}
		return "", false
	}
	g.loadingBlocks = 0
	return "", false
}
