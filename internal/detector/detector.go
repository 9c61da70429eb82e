// Package detector turns the live DOM into a supervisor.UIState snapshot.
package detector

import (
	"context"
	"crypto/md5"
	_ "embed"
	"encoding/hex"
	"fmt"
	"math"
	"strings"

	"browsernerd-agent/internal/supervisor"
)

//go:embed probe.js
var probeJS string

const minModalEdge = 10

// Evaluator runs a JS function expression in the page and decodes the result.
type Evaluator interface {
	Eval(ctx context.Context, js string, out any) error
}

type probeDialog struct {
	Title string          `json:"title"`
	BBox  supervisor.BBox `json:"bbox"`
}

type probeClassModal struct {
	Selector string          `json:"selector"`
	BBox     supervisor.BBox `json:"bbox"`
}

// probe is the raw shape returned by probe.js.
type probe struct {
	URL        string                 `json:"url"`
	Title      string                 `json:"title"`
	Text       string                 `json:"text"`
	Dialogs    []probeDialog          `json:"dialogs"`
	ClassModal *probeClassModal       `json:"class_modal"`
	Overlay    *supervisor.BBox       `json:"overlay"`
	Forms      []supervisor.FormField `json:"forms"`
	Dropdowns  []supervisor.Dropdown  `json:"dropdowns"`
	Loading    []string               `json:"loading"`
}

// Detect evaluates the probe script and assembles the UI state.
func Detect(ctx context.Context, ev Evaluator) (supervisor.UIState, error) {
	var p probe
	if err := ev.Eval(ctx, probeJS, &p); err != nil {
		return supervisor.UIState{}, fmt.Errorf("probe ui state: %w", err)
	}
	return assemble(p), nil
}

func assemble(p probe) supervisor.UIState {
	state := supervisor.UIState{
		URL:       p.URL,
		Title:     p.Title,
		Modals:    collectModals(p),
		Forms:     make([]supervisor.FormField, 0, len(p.Forms)),
		Dropdowns: p.Dropdowns,
		Loading: supervisor.Loading{
			IsLoading:  len(p.Loading) > 0,
			Indicators: p.Loading,
		},
		PageHash: PageHash(p.Text),
	}
	for _, f := range p.Forms {
		f.Filled = f.Value != ""
		state.Forms = append(state.Forms, f)
	}
	if state.Dropdowns == nil {
		state.Dropdowns = []supervisor.Dropdown{}
	}
	return state
}

// collectModals merges dialog, class and overlay hits. The overlay only
// counts when nothing else matched.
func collectModals(p probe) []supervisor.Modal {
	var modals []supervisor.Modal
	for _, d := range p.Dialogs {
		if !validBox(d.BBox) {
			continue
		}
		bbox := d.BBox
		modals = append(modals, supervisor.Modal{
			Type:  "dialog",
			Title: truncate(strings.TrimSpace(d.Title), 100),
			BBox:  &bbox,
		})
	}
	if p.ClassModal != nil && validBox(p.ClassModal.BBox) {
		bbox := p.ClassModal.BBox
		modals = append(modals, supervisor.Modal{Type: "modal", Selector: p.ClassModal.Selector, BBox: &bbox})
	}
	if p.Overlay != nil && validBox(*p.Overlay) && len(modals) == 0 {
		bbox := *p.Overlay
		modals = append(modals, supervisor.Modal{Type: "overlay", BBox: &bbox})
	}
	return dedupe(modals)
}

func validBox(b supervisor.BBox) bool {
	return b.Width >= minModalEdge && b.Height >= minModalEdge
}

// dedupe drops modals sharing a box (rounded to one decimal) or, without a
// box, sharing selector/title/type.
func dedupe(modals []supervisor.Modal) []supervisor.Modal {
	out := make([]supervisor.Modal, 0, len(modals))
	seen := make(map[string]bool, len(modals))
	for _, m := range modals {
		var key string
		if m.BBox != nil {
			key = fmt.Sprintf("%.1f|%.1f|%.1f|%.1f", round1(m.BBox.X), round1(m.BBox.Y), round1(m.BBox.Width), round1(m.BBox.Height))
		} else {
			key = firstNonEmpty(m.Selector, m.Title, m.Type)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, m)
	}
	return out
}

// PageHash fingerprints visible page text for change detection.
func PageHash(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
