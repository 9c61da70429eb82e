package supervisor

import (
	"fmt"
	"strings"
)

// A guide returns a redirect for the pending goal, or false to fall through
// to the generic arbitration rules.
type guideFunc func(c *stepContext, proposed Action, g SubGoal) (Action, bool)

// dropdownGuide drives a chip-plus-menu control: pick the option when the
// menu is open, otherwise open the chip.
type dropdownGuide struct {
	search   string
	findCtrl func(Vocabulary, []Element) (Element, bool)
	selectF  string
	searchF  string
	openF    string
	waitF    string
}

var statusGuide = dropdownGuide{
	search:   "status",
	findCtrl: findStatusControl,
	selectF:  "Select the backlog option '%s' in the dropdown.",
	searchF:  "Search for the backlog option '%s' before selecting it.",
	openF:    "Open the backlog chip to change it to '%s'.",
	waitF:    "Waiting for backlog chip or options matching '%s' to appear.",
}

var priorityGuide = dropdownGuide{
	search:   "priority",
	findCtrl: findPriorityControl,
	selectF:  "Select the priority '%s' in the dropdown.",
	searchF:  "Search for the priority '%s' before selecting it.",
	openF:    "Open the priority chip to change it to '%s'.",
	waitF:    "Waiting for priority chip or options matching '%s' to appear.",
}

func (d dropdownGuide) guide(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	if c.state.DropdownOpen() {
		if option, ok := findOption(c.elements, normalize(g.Value)); ok {
			if proposed.Targets(option.Index) {
				return Action{}, false
			}
			return Click(option.Index, fmt.Sprintf(d.selectF, g.Value)), true
		}
		if search, ok := findSearchField(c.elements, d.search); ok && !proposed.Targets(search.Index) {
			return TypeText(search.Index, g.Value, fmt.Sprintf(d.searchF, g.Value)), true
		}
	}
	if control, ok := d.findCtrl(c.vocab, c.elements); ok {
		if proposed.Targets(control.Index) {
			return Action{}, false
		}
		return Click(control.Index, fmt.Sprintf(d.openF, g.Value)), true
	}
	return Wait(fmt.Sprintf(d.waitF, g.Value)), true
}

func guideStatus(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	return statusGuide.guide(c, proposed, g)
}

func guidePriority(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	return priorityGuide.guide(c, proposed, g)
}

const descriptionReason = "Fill in the project description field with the requested text."

func guideDescription(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	field, ok := findDescriptionField(c.vocab, c.elements, c.modal)
	if !ok {
		return Action{}, false
	}
	if proposed.Kind == ActionType && proposed.Targets(field.Index) {
		// The model often re-types the name into the description box.
		if name := c.nameValue(); name != "" && normalize(proposed.Text) == normalize(name) {
			text := strings.TrimSpace(g.Value)
			if text == "" {
				text = c.autoDescription()
			}
			return TypeText(field.Index, text, descriptionReason), true
		}
		return Action{}, false
	}
	text := proposed.Text
	if text == "" {
		text = strings.TrimSpace(g.Value)
	}
	if text == "" {
		text = c.autoDescription()
	}
	return TypeText(field.Index, text, descriptionReason), true
}

func guideName(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	field, ok := findProjectNameField(c.vocab, c.elements, c.modal)
	if !ok {
		return Action{}, false
	}
	if proposed.Kind == ActionType && proposed.Targets(field.Index) {
		return Action{}, false
	}
	text := strings.TrimSpace(g.Value)
	if text == "" {
		text = proposed.Text
	}
	if text == "" {
		text = "New project"
	}
	return TypeText(field.Index, text, fmt.Sprintf("Type the project name '%s'.", text)), true
}

func guideSubmit(c *stepContext, proposed Action, _ SubGoal) (Action, bool) {
	button, ok := findSubmitControl(c.vocab, c.elements, c.modal)
	if !ok || proposed.Targets(button.Index) {
		return Action{}, false
	}
	return Click(button.Index, "All required fields complete. Submit to finish."), true
}

// preemptOpenProjects runs before the generic rules: nothing else matters
// until the Projects view is open.
func preemptOpenProjects(c *stepContext, proposed Action, _ SubGoal) (Action, bool) {
	nav, ok := findProjectsNav(c.elements)
	if ok {
		if proposed.Kind == ActionClick && proposed.ElementID == nav.Index {
			return Action{}, false
		}
		return Click(nav.Index, "Open the Projects view before applying filters"), true
	}
	if proposed.Kind != ActionClick {
		return Wait("Waiting for Projects navigation element"), true
	}
	return Action{}, false
}

// preemptFilter applies while the filter panel (a modal) is open.
func preemptFilter(c *stepContext, proposed Action, g SubGoal) (Action, bool) {
	if !c.state.HasModal() {
		return Action{}, false
	}
	target := normalize(g.Value)
	if option, ok := findFilterOption(c.elements, target); ok {
		if proposed.Kind == ActionClick && proposed.ElementID == option.Index {
			return Action{}, false
		}
		return Click(option.Index, fmt.Sprintf("Select the filter option matching '%s'", target)), true
	}
	if proposed.Kind == ActionClick {
		if text := c.elementText(proposed.ElementID); text != "" {
			if containsAny(text, c.vocab.FilterPassKeywords) || (target != "" && strings.Contains(text, target)) {
				return proposed, true
			}
		}
	}
	if proposed.Kind == ActionType {
		return proposed, true
	}
	return Wait("Waiting for filter options to appear"), true
}

// elementText returns the combined text of the element an action targets.
func (c *stepContext) elementText(id int) string {
	e, ok := elementByIndex(c.elements, id)
	if !ok {
		return ""
	}
	return e.Combined()
}

func (c *stepContext) nameValue() string {
	for _, g := range c.goals {
		if g.Kind == GoalProjectName || g.Kind == GoalIssueName {
			return g.Value
		}
	}
	return ""
}

func (c *stepContext) autoDescription() string {
	name := firstParam(c.task.Parameters, []string{"project_name", "name"})
	if name == "" {
		name = "this project"
	}
	return fmt.Sprintf("Automated description for %s.", name)
}
