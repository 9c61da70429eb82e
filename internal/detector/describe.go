package detector

import (
	"fmt"
	"strings"

	"browsernerd-agent/internal/supervisor"
)

// Describe renders a one-line human summary of state.
func Describe(state supervisor.UIState) string {
	parts := []string{"Page: " + state.URL}

	switch len(state.Modals) {
	case 0:
	case 1:
		m := state.Modals[0]
		kind := m.Type
		if kind == "" {
			kind = "modal"
		}
		kind = strings.ToUpper(kind[:1]) + kind[1:]
		if m.Title != "" {
			parts = append(parts, fmt.Sprintf("%s opened: '%s'", kind, m.Title))
		} else {
			parts = append(parts, kind+" is open")
		}
	default:
		parts = append(parts, fmt.Sprintf("%d modals/dialogs open", len(state.Modals)))
	}

	filled := countFilled(state.Forms)
	if filled > 0 {
		parts = append(parts, fmt.Sprintf("%d form field(s) filled", filled))
	}
	if empty := len(state.Forms) - filled; empty > 0 {
		parts = append(parts, fmt.Sprintf("%d empty form field(s) visible", empty))
	}
	if len(state.Dropdowns) > 0 {
		parts = append(parts, fmt.Sprintf("%d dropdown(s) open", len(state.Dropdowns)))
	}
	if state.Loading.IsLoading {
		parts = append(parts, "Page is loading...")
	}
	return strings.Join(parts, " | ")
}

// Diff lists what moved between two consecutive snapshots.
type Diff struct {
	URLChanged     bool     `json:"url_changed"`
	ModalsChanged  bool     `json:"modals_changed"`
	FormsChanged   bool     `json:"forms_changed"`
	LoadingChanged bool     `json:"loading_changed"`
	ContentChanged bool     `json:"content_changed"`
	Summary        []string `json:"changes_summary"`
}

// Changes compares cur against prev. A nil prev is the initial state.
func Changes(prev *supervisor.UIState, cur supervisor.UIState) Diff {
	var d Diff
	if prev == nil {
		d.Summary = []string{"Initial state"}
		return d
	}

	if cur.URL != prev.URL {
		d.URLChanged = true
		d.Summary = append(d.Summary, "URL changed")
	}
	if n, p := len(cur.Modals), len(prev.Modals); n != p {
		d.ModalsChanged = true
		if n > p {
			d.Summary = append(d.Summary, "Modal opened")
		} else {
			d.Summary = append(d.Summary, "Modal closed")
		}
	}
	if countFilled(cur.Forms) != countFilled(prev.Forms) {
		d.FormsChanged = true
		d.Summary = append(d.Summary, "Form fields changed")
	}
	if cur.Loading.IsLoading != prev.Loading.IsLoading {
		d.LoadingChanged = true
		if cur.Loading.IsLoading {
			d.Summary = append(d.Summary, "Started loading")
		} else {
			d.Summary = append(d.Summary, "Finished loading")
		}
	}
	if cur.PageHash != "" && prev.PageHash != "" && cur.PageHash != prev.PageHash {
		d.ContentChanged = true
		d.Summary = append(d.Summary, "Page content changed")
	}
	if len(d.Summary) == 0 {
		d.Summary = []string{"No significant changes detected"}
	}
	return d
}

func countFilled(forms []supervisor.FormField) int {
	n := 0
	for _, f := range forms {
		if f.Filled {
			n++
		}
	}
	return n
}
