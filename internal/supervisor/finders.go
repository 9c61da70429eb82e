package supervisor

import (
	"sort"
	"strings"
)

func withinModal(e Element, modal *BBox) bool {
	if modal == nil {
		return false
	}
	return modal.Contains(e.X, e.Y)
}

// outsideScope reports whether e should be skipped because a modal is open
// and e lies outside it.
func outsideScope(e Element, modal *BBox) bool {
	return modal != nil && !withinModal(e, modal)
}

// findOption returns the first element whose text equals or contains target.
func findOption(elements []Element, target string) (Element, bool) {
	if target == "" {
		return Element{}, false
	}
	for _, e := range elements {
		text := normalize(e.Text)
		if text == "" {
			continue
		}
		if text == target || strings.Contains(text, target) {
			return e, true
		}
	}
	return Element{}, false
}

// findSearchField returns a text input whose aria label or placeholder
// mentions one of keywords.
func findSearchField(elements []Element, keywords ...string) (Element, bool) {
	for _, e := range elements {
		typ := strings.ToLower(e.Type)
		if typ != "input" && typ != "textbox" && strings.ToLower(e.Role) != "textbox" {
			continue
		}
		if containsAny(strings.ToLower(e.AriaLabel), keywords) || containsAny(strings.ToLower(e.Placeholder), keywords) {
			return e, true
		}
	}
	return Element{}, false
}

func findDescriptionField(v Vocabulary, elements []Element, modal *BBox) (Element, bool) {
	for _, e := range elements {
		if outsideScope(e, modal) {
			continue
		}
		if strings.ToLower(e.Type) == "textarea" {
			return e, true
		}
		// A textbox role with a matching aria label is a subset of the
		// aria-only rule, so one check covers both.
		if containsAny(strings.ToLower(e.AriaLabel), v.DescriptionAria) {
			return e, true
		}
	}
	return Element{}, false
}

func findProjectNameField(v Vocabulary, elements []Element, modal *BBox) (Element, bool) {
	for _, e := range elements {
		if outsideScope(e, modal) {
			continue
		}
		typ := strings.ToLower(e.Type)
		if strings.ToLower(e.Role) != "textbox" && typ != "div" && typ != "input" {
			continue
		}
		if containsAny(strings.ToLower(e.AriaLabel), v.ProjectNameAria) {
			return e, true
		}
		if equalsAny(normalize(e.Text), v.ProjectNameDefaults) {
			return e, true
		}
	}
	return Element{}, false
}

type scored struct {
	el    Element
	score int
}

// pickBest returns the highest scoring candidate; ties go to the earliest.
func pickBest(candidates []scored) (Element, bool) {
	if len(candidates) == 0 {
		return Element{}, false
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	return candidates[0].el, true
}

func findStatusControl(v Vocabulary, elements []Element) (Element, bool) {
	var candidates []scored
	for _, e := range elements {
		aria := strings.ToLower(e.AriaLabel)
		text := normalize(e.Text)
		if containsAny(aria, v.SortMarkers) {
			continue
		}
		if containsAny(aria, v.StatusAriaExact) {
			return e, true
		}
		if strings.Contains(aria, "status") {
			candidates = append(candidates, scored{e, 3})
		}
		if text != "" && len(text) < 100 {
			if equalsAny(text, v.StatusOptions) {
				candidates = append(candidates, scored{e, 4})
			}
			if equalsAny(text, v.StatusOpenOptions) {
				candidates = append(candidates, scored{e, 2})
			}
			if strings.Contains(text, "status") && len(text) < 30 {
				candidates = append(candidates, scored{e, 1})
			}
		}
	}
	return pickBest(candidates)
}

func findPriorityControl(v Vocabulary, elements []Element) (Element, bool) {
	var candidates []scored
	for _, e := range elements {
		aria := strings.ToLower(e.AriaLabel)
		text := normalize(e.Text)
		if containsAny(aria, v.SortMarkers) {
			continue
		}
		if containsAny(aria, v.PriorityAriaExact) {
			return e, true
		}
		if strings.Contains(aria, "priority") {
			candidates = append(candidates, scored{e, 3})
		}
		if text != "" && len(text) < 100 {
			if containsAny(text, v.PriorityOptions) {
				candidates = append(candidates, scored{e, 4})
			}
			if equalsAny(text, v.PriorityOptions) {
				candidates = append(candidates, scored{e, 2})
			}
			if strings.Contains(text, "priority") && len(text) < 30 {
				candidates = append(candidates, scored{e, 1})
			}
		}
	}
	return pickBest(candidates)
}

// findSubmitControl returns the first button labelled with a submit keyword,
// skipping sort triggers and sibling "new" actions. With a modal open only
// buttons inside it qualify.
func findSubmitControl(v Vocabulary, elements []Element, modal *BBox) (Element, bool) {
	for _, e := range elements {
		if strings.ToLower(e.Type) != "button" && strings.ToLower(e.Role) != "button" {
			continue
		}
		if outsideScope(e, modal) {
			continue
		}
		if containsAny(strings.ToLower(e.AriaLabel), v.SortMarkers) {
			continue
		}
		combined := e.Combined()
		if !containsAny(combined, v.SubmitKeywords) {
			continue
		}
		if containsAny(combined, v.SubmitExclusions) {
			continue
		}
		return e, true
	}
	return Element{}, false
}

// findProjectsNav returns the first element whose text or aria mentions
// projects.
func findProjectsNav(elements []Element) (Element, bool) {
	for _, e := range elements {
		if strings.Contains(e.Combined(), "project") {
			return e, true
		}
	}
	return Element{}, false
}

// findFilterOption returns the first element whose text or aria contains
// the lowercased filter target.
func findFilterOption(elements []Element, target string) (Element, bool) {
	if target == "" {
		return Element{}, false
	}
	for _, e := range elements {
		if c := e.Combined(); c != "" && strings.Contains(c, target) {
			return e, true
		}
	}
	return Element{}, false
}
