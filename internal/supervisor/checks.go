package supervisor

import (
	"strings"
)

// stepContext is the per-step view handed to completion checks and guides.
type stepContext struct {
	vocab    Vocabulary
	task     TaskConfig
	state    UIState
	elements []Element
	modal    *BBox
	goals    []SubGoal
}

func newStepContext(vocab Vocabulary, task TaskConfig, state UIState, elements []Element, goals []SubGoal) *stepContext {
	return &stepContext{
		vocab:    vocab,
		task:     task,
		state:    state,
		elements: elements,
		modal:    state.ModalBBox(),
		goals:    goals,
	}
}

// priorComplete reports whether every goal before index is complete.
func (c *stepContext) priorComplete(index int) bool {
	for _, g := range c.goals[:index] {
		if !g.Completed {
			return false
		}
	}
	return true
}

func checkOpenProjects(c *stepContext, _ SubGoal, _ int) bool {
	return strings.Contains(c.state.URL, "/project")
}

func checkNameInForms(c *stepContext, g SubGoal, _ int) bool {
	return valueInForms(g.Value, c.state.Forms)
}

func checkStatus(c *stepContext, g SubGoal, _ int) bool {
	control, ok := findStatusControl(c.vocab, c.elements)
	return ok && controlMatches(control, g.Value)
}

func checkPriority(c *stepContext, g SubGoal, _ int) bool {
	control, ok := findPriorityControl(c.vocab, c.elements)
	return ok && controlMatches(control, g.Value)
}

func checkTargetDate(c *stepContext, g SubGoal, _ int) bool {
	return dateVisible(c.vocab, g.Value, visibleTexts(c.elements))
}

func checkFilter(c *stepContext, g SubGoal, _ int) bool {
	return filterApplied(c.vocab, g.Value, visibleTexts(c.elements))
}

func checkDescription(c *stepContext, g SubGoal, _ int) bool {
	return descriptionFilled(c.vocab, g.Value, c.state.Forms)
}

// checkSubmit completes once every prior goal is done and no modal remains.
func checkSubmit(c *stepContext, _ SubGoal, index int) bool {
	return c.priorComplete(index) && !c.state.HasModal()
}

func valueInForms(value string, forms []FormField) bool {
	target := normalize(value)
	if target == "" {
		return false
	}
	for _, f := range forms {
		if normalize(f.Value) == target {
			return true
		}
	}
	return false
}

// controlMatches tests the control's visible text, falling back to its aria
// label when the text is empty.
func controlMatches(control Element, value string) bool {
	target := normalize(value)
	if target == "" {
		return false
	}
	label := strings.TrimSpace(control.Text)
	if label == "" {
		label = control.AriaLabel
	}
	label = normalize(label)
	return label != "" && strings.Contains(label, target)
}

// dateTokenSets splits a date into token groups. Each group lists the forms
// that satisfy it: a number padded and unpadded, a month any synonym.
func dateTokenSets(vocab Vocabulary, value string) [][]string {
	var sets [][]string
	for _, tok := range dateDelimiters.Split(strings.ToLower(value), -1) {
		if tok == "" {
			continue
		}
		switch {
		case isDigits(tok):
			trimmed := strings.TrimLeft(tok, "0")
			if trimmed == "" {
				trimmed = "0"
			}
			sets = append(sets, []string{trimmed, tok})
		default:
			if syn := vocab.monthSynonyms(tok); syn != nil {
				sets = append(sets, syn)
			} else {
				sets = append(sets, []string{tok})
			}
		}
	}
	return sets
}

// dateVisible requires every token group to match somewhere in the visible
// text, and any form within a group is enough.
func dateVisible(vocab Vocabulary, value string, texts []string) bool {
	sets := dateTokenSets(vocab, value)
	if len(sets) == 0 {
		return false
	}
	combined := strings.ToLower(strings.Join(texts, "\n"))
	for _, set := range sets {
		if !containsAny(combined, set) {
			return false
		}
	}
	return true
}

// filterApplied looks for the target next to a filter-state keyword in the
// same element, or a "Status is <target>" chip.
func filterApplied(vocab Vocabulary, value string, texts []string) bool {
	target := searchKey(value)
	if target == "" {
		return false
	}
	targets := []string{target}
	if singular := strings.TrimSuffix(target, "s"); singular != target && singular != "" {
		targets = append(targets, singular)
	}
	for _, text := range texts {
		key := searchKey(text)
		if !containsAny(key, targets) {
			continue
		}
		if containsAny(key, vocab.FilterStateWords) {
			return true
		}
		if strings.Contains(key, "statusis"+target) {
			return true
		}
	}
	return false
}

func descriptionFilled(vocab Vocabulary, value string, forms []FormField) bool {
	target := normalize(value)
	for _, f := range forms {
		if strings.ToLower(f.Type) != "textarea" && !containsAny(strings.ToLower(f.AriaLabel), vocab.DescriptionAria) {
			continue
		}
		current := normalize(f.Value)
		if target != "" {
			if strings.Contains(current, target) {
				return true
			}
		} else if current != "" {
			return true
		}
	}
	return false
}
