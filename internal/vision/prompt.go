package vision

import (
	"fmt"
	"sort"
	"strings"

	"browsernerd-agent/internal/supervisor"
)

// Limits bound how much page context goes into one prompt.
type Limits struct {
	MaxElements    int
	MaxText        int
	MaxAria        int
	MaxHref        int
	MaxObservation int
	MaxHistory     int
}

func DefaultLimits() Limits {
	return Limits{
		MaxElements:    40,
		MaxText:        50,
		MaxAria:        40,
		MaxHref:        60,
		MaxObservation: 60,
		MaxHistory:     5,
	}
}

// HistoryEntry is one executed step as the model sees it.
type HistoryEntry struct {
	Step        int    `json:"step"`
	Action      string `json:"action"`
	Observation string `json:"observation"`
}

// Request carries everything the model needs to pick the next action.
type Request struct {
	Goal       string
	URL        string
	Screenshot []byte // annotated PNG
	Elements   []supervisor.Element
	History    []HistoryEntry
	Parameters map[string]any
	Hint       *supervisor.Hint
}

const promptTemplate = `You are a web automation agent. Your goal: %s

Current URL: %s

The screenshot shows RED NUMBERED BOXES at the top-left corner of each interactive element.

Interactive elements:
%s

Previous actions:
%s%s%s
RULES:
1. Do not repeat yourself. If history shows a value was typed, or a field already shows text, move on.
2. Never click Cancel unless the task asks for it.
3. In a modal, fill the required fields and then click Create/Submit/Save. Icons and colours are optional.
4. Once a modal is open, stay inside it until it is submitted. Do not reopen it.
5. When the modal closes after submission and the list updates, finish with a short summary.

ACTIONS:
1. click [number]
2. type [number]; [text]   (use the exact parameter values)
3. scroll down / scroll up
4. wait
5. finish; [summary]

DECIDING:
1. Check RECENT ACTIONS for what you just did.
2. Check the screenshot for what changed.
3. Required fields filled and a submit button visible: click it.
4. A required field is empty: fill it once.
5. Goal met: finish; <summary>.
6. Otherwise choose the best next step without repeating work.

Reply with a single line:
ACTION: <action>

Examples:
- ACTION: click [56]
- ACTION: type [12]; second task
- ACTION: finish; Created project and updated status`

type guidance struct {
	param string
	text  string
}

var parameterGuidance = []guidance{
	{"project_name", `Type the project name field with exactly "%s" before saving.`},
	{"status", `Inside the modal, click the status chip (it usually reads "Backlog") to open the options, then choose the requested value.`},
	{"priority", `Click the priority chip (e.g. "No priority") to open its menu, then select the requested priority.`},
	{"target_date", `Click the date/target control in the modal and set the specified date with the picker.`},
	{"assignee", `Assign the item to the specified person if an assignee field is available.`},
}

const stayInModal = "After the creation modal is open, stay inside it (look for 'New project') and avoid clicking the main 'Add project' button again."

// BuildPrompt renders the full text prompt for one step.
func BuildPrompt(req Request, lim Limits) string {
	return fmt.Sprintf(promptTemplate,
		req.Goal,
		req.URL,
		formatElements(req.Elements, lim),
		formatHistory(req.History, lim),
		formatParameters(req.Parameters),
		formatHint(req.Hint),
	)
}

func formatElements(elements []supervisor.Element, lim Limits) string {
	if len(elements) == 0 {
		return "No interactive elements detected."
	}
	if len(elements) > lim.MaxElements {
		elements = elements[:lim.MaxElements]
	}
	lines := make([]string, 0, len(elements))
	for _, el := range elements {
		line := fmt.Sprintf("[%d] %s: %q", el.Index, el.Type, cut(strings.TrimSpace(el.Text), lim.MaxText))
		if aria := strings.TrimSpace(el.AriaLabel); aria != "" {
			line += fmt.Sprintf(" (aria: %s)", cut(aria, lim.MaxAria))
		}
		if el.Role != "" {
			line += fmt.Sprintf(" (role: %s)", el.Role)
		}
		if el.Href != "" {
			line += fmt.Sprintf(" (href: %s)", cut(el.Href, lim.MaxHref))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func formatHistory(history []HistoryEntry, lim Limits) string {
	if len(history) == 0 {
		return "RECENT ACTIONS: None (first step)\n"
	}
	if len(history) > lim.MaxHistory {
		history = history[len(history)-lim.MaxHistory:]
	}
	var b strings.Builder
	b.WriteString("RECENT ACTIONS (what you just did):\n")
	for _, h := range history {
		detail := ""
		switch {
		case strings.Contains(h.Observation, "Typed"):
			parts := strings.Split(h.Observation, "'")
			typed := ""
			if len(parts) > 1 {
				typed = parts[1]
			}
			detail = fmt.Sprintf("typed %q", typed)
		case strings.Contains(h.Observation, "Clicked"):
			clicked := h.Observation
			if _, after, ok := strings.Cut(h.Observation, ": "); ok {
				clicked = after
			}
			detail = fmt.Sprintf("clicked %q", cut(clicked, lim.MaxText))
		case h.Observation != "":
			detail = cut(h.Observation, lim.MaxObservation)
		}
		if detail != "" {
			fmt.Fprintf(&b, "  Step %d: %s - %s\n", h.Step, h.Action, detail)
		} else {
			fmt.Fprintf(&b, "  Step %d: %s\n", h.Step, h.Action)
		}
	}
	return b.String()
}

func formatParameters(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("\n\nTASK PARAMETERS (use these exact values):\n")
	for _, k := range keys {
		display := displayValue(params[k])
		if display == "" {
			continue
		}
		fmt.Fprintf(&b, "  - %s: %s\n", k, display)
	}

	var lines []string
	for _, g := range parameterGuidance {
		v, ok := params[g.param]
		if !ok {
			continue
		}
		if g.param == "project_name" {
			lines = append(lines, fmt.Sprintf(g.text, displayValue(v)), stayInModal)
			continue
		}
		lines = append(lines, g.text)
	}
	if len(lines) > 0 {
		b.WriteString("\nTASK-SPECIFIC INSTRUCTIONS:\n")
		for _, l := range lines {
			fmt.Fprintf(&b, "  - %s\n", l)
		}
	}
	return b.String()
}

func displayValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []string:
		return strings.Join(t, ", ")
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprint(v)
}

func formatHint(h *supervisor.Hint) string {
	if h == nil || h.Message == "" {
		return ""
	}
	return "\nCONTEXT HINT:\n  - " + h.Message + "\n"
}

func cut(s string, n int) string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
