package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testModal = &BBox{X: 100, Y: 100, Width: 400, Height: 300}

func TestWithinModal(t *testing.T) {
	assert.True(t, withinModal(Element{X: 100, Y: 100}, testModal), "edges are inside")
	assert.True(t, withinModal(Element{X: 500, Y: 400}, testModal))
	assert.False(t, withinModal(Element{X: 501, Y: 200}, testModal))
	assert.False(t, withinModal(Element{X: 200, Y: 200}, nil))
}

func TestModalBBoxSkipsTinyModals(t *testing.T) {
	state := UIState{Modals: []Modal{
		{Type: "overlay", BBox: &BBox{Width: 40, Height: 400}},
		{Type: "dialog"},
		{Type: "dialog", BBox: &BBox{X: 10, Y: 20, Width: 50, Height: 50}},
	}}
	got := state.ModalBBox()
	require.NotNil(t, got)
	assert.Equal(t, BBox{X: 10, Y: 20, Width: 50, Height: 50}, *got)

	assert.Nil(t, UIState{}.ModalBBox())
}

func TestFindStatusControl(t *testing.T) {
	v := DefaultVocabulary()
	tests := []struct {
		name     string
		elements []Element
		want     int
		found    bool
	}{
		{
			name: "explicit aria wins immediately",
			elements: []Element{
				{Index: 0, Text: "Backlog"},
				{Index: 1, AriaLabel: "Change project status", Text: "Planned"},
			},
			want: 1, found: true,
		},
		{
			name: "sort controls are skipped",
			elements: []Element{
				{Index: 0, AriaLabel: "Order by status", Text: "Backlog"},
				{Index: 1, AriaLabel: "Sort", Text: "Status"},
			},
			found: false,
		},
		{
			name: "exact status text outranks aria mention",
			elements: []Element{
				{Index: 0, AriaLabel: "Status menu", Text: "Open"},
				{Index: 1, Text: "In Progress"},
			},
			want: 1, found: true,
		},
		{
			name: "aria mention outranks loose text",
			elements: []Element{
				{Index: 0, Text: "Status"},
				{Index: 1, AriaLabel: "Status", Text: "Open"},
			},
			want: 1, found: true,
		},
		{
			name: "ties go to the first element",
			elements: []Element{
				{Index: 4, Text: "Done"},
				{Index: 7, Text: "Canceled"},
			},
			want: 4, found: true,
		},
		{
			name:     "long text is ignored",
			elements: []Element{{Index: 0, Text: "a long paragraph that mentions status somewhere in the middle of it"}},
			found:    false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := findStatusControl(v, tt.elements)
			require.Equal(t, tt.found, ok)
			if ok {
				assert.Equal(t, tt.want, got.Index)
			}
		})
	}
}

func TestFindPriorityControl(t *testing.T) {
	v := DefaultVocabulary()

	got, ok := findPriorityControl(v, []Element{
		{Index: 0, Text: "Priority"},
		{Index: 1, Text: "High priority"},
	})
	require.True(t, ok)
	assert.Equal(t, 1, got.Index, "text containing a priority value scores highest")

	got, ok = findPriorityControl(v, []Element{
		{Index: 0, Text: "Urgent"},
		{Index: 1, AriaLabel: "Change priority"},
	})
	require.True(t, ok)
	assert.Equal(t, 1, got.Index)

	_, ok = findPriorityControl(v, []Element{{Index: 0, AriaLabel: "Order by priority", Text: "Low"}})
	assert.False(t, ok)
}

func TestFindSubmitControl(t *testing.T) {
	v := DefaultVocabulary()
	elements := []Element{
		{Index: 0, Type: "button", Text: "Create new issue", X: 10, Y: 10},
		{Index: 1, Type: "a", Text: "Create", X: 150, Y: 150},
		{Index: 2, Type: "button", Text: "Save", X: 10, Y: 10},
		{Index: 3, Role: "button", Text: "Create project", X: 200, Y: 300},
	}

	got, ok := findSubmitControl(v, elements, nil)
	require.True(t, ok)
	assert.Equal(t, 2, got.Index, "exclusions and non-buttons are skipped")

	got, ok = findSubmitControl(v, elements, testModal)
	require.True(t, ok)
	assert.Equal(t, 3, got.Index, "modal scoping ignores background buttons")

	_, ok = findSubmitControl(v, []Element{{Index: 0, Type: "button", Text: "New view"}}, nil)
	assert.False(t, ok)
}

func TestFindProjectNameField(t *testing.T) {
	v := DefaultVocabulary()
	elements := []Element{
		{Index: 0, Type: "input", AriaLabel: "Search", X: 10, Y: 10},
		{Index: 1, Type: "div", Text: "Untitled", X: 10, Y: 10},
		{Index: 2, Type: "div", Text: "Untitled", X: 200, Y: 150},
		{Index: 3, Role: "textbox", AriaLabel: "Project name", X: 200, Y: 200},
	}

	got, ok := findProjectNameField(v, elements, nil)
	require.True(t, ok)
	assert.Equal(t, 1, got.Index)

	got, ok = findProjectNameField(v, elements, testModal)
	require.True(t, ok)
	assert.Equal(t, 2, got.Index)

	_, ok = findProjectNameField(v, []Element{{Index: 0, Type: "button", Text: "Untitled"}}, nil)
	assert.False(t, ok, "buttons are not name fields")
}

func TestFindDescriptionField(t *testing.T) {
	v := DefaultVocabulary()
	elements := []Element{
		{Index: 0, Type: "textarea", X: 10, Y: 10},
		{Index: 1, Type: "div", AriaLabel: "Add details", X: 200, Y: 200},
	}

	got, ok := findDescriptionField(v, elements, nil)
	require.True(t, ok)
	assert.Equal(t, 0, got.Index)

	got, ok = findDescriptionField(v, elements, testModal)
	require.True(t, ok)
	assert.Equal(t, 1, got.Index)

	_, ok = findDescriptionField(v, []Element{{Index: 0, Type: "input", AriaLabel: "Name"}}, nil)
	assert.False(t, ok)
}

func TestFindOptionAndSearchField(t *testing.T) {
	elements := []Element{
		{Index: 0, Type: "input", Placeholder: "Change status..."},
		{Index: 1, Text: "  "},
		{Index: 2, Text: "In Progress"},
	}
	got, ok := findOption(elements, "in progress")
	require.True(t, ok)
	assert.Equal(t, 2, got.Index)

	_, ok = findOption(elements, "")
	assert.False(t, ok)

	got, ok = findSearchField(elements, "status")
	require.True(t, ok)
	assert.Equal(t, 0, got.Index)

	_, ok = findSearchField(elements, "priority")
	assert.False(t, ok)
}
