package supervisor

import (
	"encoding/json"
	"fmt"
)

// ActionKind is the discriminator of an Action.
type ActionKind string

const (
	ActionClick  ActionKind = "click"
	ActionType   ActionKind = "type"
	ActionScroll ActionKind = "scroll"
	ActionWait   ActionKind = "wait"
	ActionFinish ActionKind = "finish"
)

// Valid reports whether k is one of the five canonical action kinds.
func (k ActionKind) Valid() bool {
	switch k {
	case ActionClick, ActionType, ActionScroll, ActionWait, ActionFinish:
		return true
	}
	return false
}

// TargetsElement reports whether actions of this kind carry an element id.
func (k ActionKind) TargetsElement() bool {
	return k == ActionClick || k == ActionType
}

// Action is a proposed or final browser action. Only the fields relevant to
// Kind are meaningful; constructors below build well-formed values.
type Action struct {
	Kind      ActionKind
	ElementID int    // click, type
	Text      string // type
	Direction string // scroll: "up" or "down"
	Summary   string // finish
	Reasoning string

	// Filled by the orchestration loop from the annotated element before
	// arbitration so the recorder can reason about what was clicked.
	ElementText string
	ElementType string
}

// Click targets element id.
func Click(id int, reasoning string) Action {
	return Action{Kind: ActionClick, ElementID: id, Reasoning: reasoning}
}

// TypeText types text into element id.
func TypeText(id int, text, reasoning string) Action {
	return Action{Kind: ActionType, ElementID: id, Text: text, Reasoning: reasoning}
}

// Scroll moves the viewport; anything other than "down" scrolls up.
func Scroll(direction, reasoning string) Action {
	if direction != "down" {
		direction = "up"
	}
	return Action{Kind: ActionScroll, ElementID: -1, Direction: direction, Reasoning: reasoning}
}

// Wait idles for one step.
func Wait(reasoning string) Action {
	return Action{Kind: ActionWait, ElementID: -1, Reasoning: reasoning}
}

// Finish declares the task complete.
func Finish(summary, reasoning string) Action {
	return Action{Kind: ActionFinish, ElementID: -1, Summary: summary, Reasoning: reasoning}
}

// Targets reports whether a is a click or type on element id.
func (a Action) Targets(id int) bool {
	return a.Kind.TargetsElement() && a.ElementID == id
}

func (a Action) String() string {
	switch a.Kind {
	case ActionClick:
		return fmt.Sprintf("click [%d]", a.ElementID)
	case ActionType:
		return fmt.Sprintf("type [%d] %q", a.ElementID, a.Text)
	case ActionScroll:
		return "scroll " + a.Direction
	case ActionFinish:
		return "finish: " + a.Summary
	default:
		return string(a.Kind)
	}
}

type actionWire struct {
	Action      ActionKind `json:"action"`
	ElementID   *int       `json:"element_id,omitempty"`
	Text        string     `json:"text,omitempty"`
	Direction   string     `json:"direction,omitempty"`
	Summary     string     `json:"summary,omitempty"`
	Reasoning   string     `json:"reasoning,omitempty"`
	ElementText string     `json:"element_text,omitempty"`
	ElementType string     `json:"element_type,omitempty"`
}

// MarshalJSON emits the `{action, element_id?, text?, ...}` wire shape.
func (a Action) MarshalJSON() ([]byte, error) {
	w := actionWire{
		Action:      a.Kind,
		Reasoning:   a.Reasoning,
		ElementText: a.ElementText,
		ElementType: a.ElementType,
	}
	switch a.Kind {
	case ActionClick:
		id := a.ElementID
		w.ElementID = &id
	case ActionType:
		id := a.ElementID
		w.ElementID = &id
		w.Text = a.Text
	case ActionScroll:
		w.Direction = a.Direction
	case ActionFinish:
		w.Summary = a.Summary
	}
	return json.Marshal(w)
}

// UnmarshalJSON accepts the wire shape and rejects unknown action kinds.
func (a *Action) UnmarshalJSON(data []byte) error {
	var w actionWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	if !w.Action.Valid() {
		return fmt.Errorf("unknown action %q", w.Action)
	}
	*a = Action{
		Kind:        w.Action,
		ElementID:   -1,
		Text:        w.Text,
		Direction:   w.Direction,
		Summary:     w.Summary,
		Reasoning:   w.Reasoning,
		ElementText: w.ElementText,
		ElementType: w.ElementType,
	}
	if w.Action.TargetsElement() {
		if w.ElementID == nil {
			return fmt.Errorf("%s action requires element_id", w.Action)
		}
		a.ElementID = *w.ElementID
	}
	return nil
}

// GoalKind names one entry of the fixed sub-goal catalogue.
type GoalKind string

const (
	GoalOpenProjects GoalKind = "open_projects"
	GoalProjectName  GoalKind = "project_name"
	GoalIssueName    GoalKind = "issue_name"
	GoalStatus       GoalKind = "status"
	GoalPriority     GoalKind = "priority"
	GoalTargetDate   GoalKind = "target_date"
	GoalFilter       GoalKind = "filter"
	GoalDescription  GoalKind = "description"
	GoalSubmit       GoalKind = "submit"
)

// SubGoal is one verifiable precondition for finishing a task.
type SubGoal struct {
	Kind      GoalKind `json:"key"`
	Value     string   `json:"value,omitempty"`
	Completed bool     `json:"completed"`
}

// BBox is a page-space rectangle.
type BBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point lies inside the box, edges included.
func (b BBox) Contains(x, y float64) bool {
	return x >= b.X && x <= b.X+b.Width && y >= b.Y && y <= b.Y+b.Height
}

// Modal is an open dialog or overlay.
type Modal struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
	Title    string `json:"title,omitempty"`
	BBox     *BBox  `json:"bbox,omitempty"`
}

// FormField is a visible input, textarea or select.
type FormField struct {
	Type        string `json:"type"` // tag name
	InputType   string `json:"input_type,omitempty"`
	Name        string `json:"name,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	ID          string `json:"id,omitempty"`
	AriaLabel   string `json:"aria_label,omitempty"`
	Value       string `json:"value"`
	Filled      bool   `json:"filled"`
	Label       string `json:"label,omitempty"`
}

// Dropdown is an expanded menu, listbox or combobox.
type Dropdown struct {
	Type     string `json:"type"`
	Selector string `json:"selector,omitempty"`
	Text     string `json:"text,omitempty"`
	BBox     *BBox  `json:"bbox,omitempty"`
}

// Loading reports visible loading indicators.
type Loading struct {
	IsLoading  bool     `json:"is_loading"`
	Indicators []string `json:"indicators,omitempty"`
}

// UIState is a structured snapshot of the live page.
type UIState struct {
	URL       string      `json:"url"`
	Title     string      `json:"title,omitempty"`
	Modals    []Modal     `json:"modals"`
	Forms     []FormField `json:"forms"`
	Dropdowns []Dropdown  `json:"dropdowns"`
	Loading   Loading     `json:"loading"`
	PageHash  string      `json:"page_hash,omitempty"`
}

// HasModal reports whether any modal is open.
func (s UIState) HasModal() bool { return len(s.Modals) > 0 }

// DropdownOpen is true only when a dropdown is expanded inside an open modal.
func (s UIState) DropdownOpen() bool { return len(s.Modals) > 0 && len(s.Dropdowns) > 0 }

// ModalBBox returns the first modal rectangle large enough to scope a search.
func (s UIState) ModalBBox() *BBox {
	for _, m := range s.Modals {
		if m.BBox != nil && m.BBox.Width >= 50 && m.BBox.Height >= 50 {
			b := *m.BBox
			return &b
		}
	}
	return nil
}

// Element is one interactive control from an annotation snapshot. Index is
// the handle actions reference and is only valid within that snapshot.
type Element struct {
	Index       int     `json:"index"`
	Type        string  `json:"type"`
	Text        string  `json:"text"`
	AriaLabel   string  `json:"ariaLabel"`
	Role        string  `json:"role,omitempty"`
	Placeholder string  `json:"placeholder,omitempty"`
	Href        string  `json:"href,omitempty"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	Width       float64 `json:"width"`
	Height      float64 `json:"height"`
	CenterX     float64 `json:"centerX"`
	CenterY     float64 `json:"centerY"`
}

// Combined returns text and aria label joined, trimmed and lowercased.
func (e Element) Combined() string {
	return normalize(joinNonEmpty(e.Text, e.AriaLabel))
}

// TaskConfig is the caller-owned description of one task.
type TaskConfig struct {
	Goal       string         `json:"goal"`
	Object     string         `json:"object,omitempty"`
	App        string         `json:"app,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// SubmitHint points at the likely primary button of a filled modal form.
type SubmitHint struct {
	Message   string `json:"message"`
	ElementID int    `json:"element_id"`
}

// Hint is the guidance line handed to the decision client.
type Hint struct {
	Message   string `json:"message"`
	ElementID *int   `json:"element_id,omitempty"`
}
