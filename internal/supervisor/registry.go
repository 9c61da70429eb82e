package supervisor

import "strings"

// Behavior is everything the supervisor knows about one goal kind. Adding a
// kind is one registry entry.
type Behavior struct {
	// Check reports state-based completion. index is the goal's position.
	Check func(c *stepContext, g SubGoal, index int) bool
	// Preempt runs before the cancel and typing blocks.
	Preempt guideFunc
	// Guide runs after them.
	Guide guideFunc
	// RecordClick and RecordType infer completion from an executed action.
	RecordClick func(v Vocabulary, g SubGoal, clicked string) bool
	RecordType  func(v Vocabulary, g SubGoal, typed string) bool
	// Typeable goals are filled by typing, so type proposals are allowed.
	Typeable bool
	// AllowsDecoration exempts the goal from the decoration-click block.
	AllowsDecoration bool
}

// Registry maps goal kinds to behaviour.
type Registry map[GoalKind]Behavior

// DefaultRegistry returns the behaviour table for the built-in goal kinds.
func DefaultRegistry() Registry {
	return Registry{
		GoalOpenProjects: {
			Check:       checkOpenProjects,
			Preempt:     preemptOpenProjects,
			RecordClick: recordProjectsClick,
		},
		GoalProjectName: {
			Check:      checkNameInForms,
			Guide:      guideName,
			RecordType: recordExactType,
			Typeable:   true,
		},
		GoalIssueName: {
			Check:      checkNameInForms,
			Guide:      guideName,
			RecordType: recordExactType,
			Typeable:   true,
		},
		GoalStatus: {
			Check:       checkStatus,
			Guide:       guideStatus,
			RecordClick: recordOptionClick,
		},
		GoalPriority: {
			Check:            checkPriority,
			Guide:            guidePriority,
			RecordClick:      recordOptionClick,
			RecordType:       recordSubstringType,
			AllowsDecoration: true,
		},
		GoalTargetDate: {
			Check:            checkTargetDate,
			AllowsDecoration: true,
		},
		GoalFilter: {
			Check:       checkFilter,
			Preempt:     preemptFilter,
			RecordClick: recordFilterClick,
			Typeable:    true,
		},
		GoalDescription: {
			Check:      checkDescription,
			Guide:      guideDescription,
			RecordType: recordDescriptionType,
			Typeable:   true,
		},
		GoalSubmit: {
			Check:       checkSubmit,
			Guide:       guideSubmit,
			RecordClick: recordSubmitClick,
		},
	}
}

func recordProjectsClick(_ Vocabulary, _ SubGoal, clicked string) bool {
	return strings.Contains(clicked, "project")
}

func recordFilterClick(v Vocabulary, g SubGoal, clicked string) bool {
	target := strings.TrimRight(strings.ToLower(g.Value), "s")
	return target != "" && strings.Contains(clicked, target) && containsAny(clicked, v.FilterClickKeywords)
}

// recordOptionClick guards against sort menus that share status and
// priority vocabulary.
func recordOptionClick(_ Vocabulary, g SubGoal, clicked string) bool {
	target := normalize(g.Value)
	return target != "" && strings.Contains(clicked, target) && !strings.Contains(clicked, "order")
}

func recordSubmitClick(v Vocabulary, _ SubGoal, clicked string) bool {
	return containsAny(clicked, v.RecordSubmitKeywords)
}

func recordExactType(_ Vocabulary, g SubGoal, typed string) bool {
	target := normalize(g.Value)
	return target != "" && target == typed
}

func recordSubstringType(_ Vocabulary, g SubGoal, typed string) bool {
	target := normalize(g.Value)
	return target != "" && strings.Contains(typed, target)
}

func recordDescriptionType(_ Vocabulary, g SubGoal, typed string) bool {
	target := normalize(g.Value)
	if target == "" {
		return typed != ""
	}
	return strings.Contains(typed, target)
}
