package supervisor

import (
	"fmt"
	"strings"
)

var (
	nameParams        = []string{"project_name", "issue_name", "issue_title", "name", "title"}
	statusParams      = []string{"status", "backlog_status", "backlog_progress", "progress", "workflow_state"}
	priorityParams    = []string{"priority", "importance", "urgency"}
	targetDateParams  = []string{"target_date", "due_date", "deadline"}
	filterParams      = []string{"filter", "filter_status"}
	descriptionParams = []string{"description", "project_description", "issue_description", "notes"}
)

// Extract decomposes a task into its ordered sub-goals: navigation first,
// field fills next, submit last. An empty result means the task needs no
// supervision.
func Extract(task TaskConfig, vocab Vocabulary) []SubGoal {
	vocab = vocab.withDefaults()
	goal := strings.ToLower(task.Goal)
	object := strings.ToLower(task.Object)

	isProject := strings.Contains(goal, "project") || strings.Contains(object, "project")
	isIssue := strings.Contains(goal, "issue") || strings.Contains(object, "issue")
	isCreateModify := containsAny(goal, vocab.CreateModifyWords)

	name := firstParam(task.Parameters, nameParams)
	status := firstParam(task.Parameters, statusParams)
	priority := firstParam(task.Parameters, priorityParams)
	targetDate := firstParam(task.Parameters, targetDateParams)
	filter := firstParam(task.Parameters, filterParams)
	description := firstParam(task.Parameters, descriptionParams)

	if description == "" && (isProject || isIssue) && containsAny(goal, vocab.AutoDescriptionPhrases) {
		subject := name
		if subject == "" {
			subject = "issue"
			if isProject {
				subject = "project"
			}
		}
		description = fmt.Sprintf("Automated description for %s.", subject)
	}

	if !isCreateModify {
		if filter == "" {
			filter = status
		}
		if filter == "" {
			for _, word := range vocab.StatusFilterWords {
				if strings.Contains(goal, word) {
					filter = word
					break
				}
			}
		}
	}

	var goals []SubGoal
	add := func(kind GoalKind, value string) {
		goals = append(goals, SubGoal{Kind: kind, Value: value})
	}

	if isProject {
		add(GoalOpenProjects, "")
	}
	if name != "" {
		if isIssue {
			add(GoalIssueName, name)
		} else {
			add(GoalProjectName, name)
		}
	}
	if status != "" && isCreateModify {
		add(GoalStatus, status)
	}
	if priority != "" {
		add(GoalPriority, priority)
	}
	if targetDate != "" {
		add(GoalTargetDate, targetDate)
	}
	if filter != "" {
		add(GoalFilter, filter)
	}
	if description != "" {
		add(GoalDescription, description)
	}
	if len(goals) > 0 {
		add(GoalSubmit, "")
	}
	return goals
}

// firstParam returns the first non-blank string parameter among keys.
// Non-string values are ignored.
func firstParam(params map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := params[k].(string); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s
			}
		}
	}
	return ""
}

func goalHint(g SubGoal) string {
	switch g.Kind {
	case GoalOpenProjects:
		return "Navigate to the Projects view from the sidebar."
	case GoalProjectName:
		return fmt.Sprintf("Next required step: type the project name '%s'.", g.Value)
	case GoalIssueName:
		return fmt.Sprintf("Next required step: type the issue title '%s'.", g.Value)
	case GoalStatus:
		return fmt.Sprintf("Next required step: set the status/backlog to '%s'.", g.Value)
	case GoalPriority:
		return fmt.Sprintf("Next required step: set the priority to '%s'.", g.Value)
	case GoalTargetDate:
		return fmt.Sprintf("Next required step: set the target/due date to '%s'.", g.Value)
	case GoalFilter:
		return fmt.Sprintf("Next required step: open the filter panel and apply '%s'.", g.Value)
	case GoalDescription:
		if g.Value != "" {
			return fmt.Sprintf("Next required step: type the project description '%s'.", g.Value)
		}
		return "Next required step: add a project description."
	case GoalSubmit:
		return "All required fields are satisfied. Click the primary submit/create button to finish."
	}
	return ""
}
