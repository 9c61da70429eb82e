package tasks

import (
	"strings"

	"browsernerd-agent/internal/supervisor"
)

type completionRule struct {
	urlPatterns   []string
	titlePatterns []string
	minSegments   int
	failure       string
}

var completionRules = map[string]completionRule{
	"linear_filter_issues": {
		urlPatterns:   []string{"filter"},
		titlePatterns: []string{"in progress"},
		failure:       "Goal: Filter issues to 'In Progress'\nCurrent state: No evidence of filtering applied\nApply an actual filter instead of viewing existing content",
	},
	"linear_create_project": {
		urlPatterns: []string{"project"},
		failure:     "Goal: Create new project\nCurrent state: Not on a project page",
	},
	"linear_create_issue": {
		urlPatterns: []string{"issue"},
		failure:     "Goal: Create new issue\nCurrent state: Not on an issue page",
	},
	"notion_create_page": {
		minSegments: 4,
		failure:     "Goal: Create new page\nCurrent state: Not on a specific page",
	},
	"notion_create_database": {
		minSegments: 4,
		failure:     "Goal: Create new database\nCurrent state: Not on a specific database page",
	},
}

// ValidateCompletion decides whether a finish proposal is backed by the page.
// Non-finish actions and tasks without a rule always pass. On failure the
// returned string explains what is missing.
func ValidateCompletion(task Task, action supervisor.Action, url, title string) (bool, string) {
	if action.Kind != supervisor.ActionFinish {
		return true, ""
	}
	rule, ok := completionRules[task.ID]
	if !ok {
		return true, ""
	}
	urlLower := strings.ToLower(url)
	titleLower := strings.ToLower(title)

	// URL patterns alone are advisory; a miss fails only together with a
	// segment floor.
	if !containsAnyOf(urlLower, rule.urlPatterns) && rule.minSegments > 0 &&
		len(strings.Split(url, "/")) < rule.minSegments {
		return false, rule.failure
	}
	if len(rule.titlePatterns) > 0 && !containsAnyOf(titleLower, rule.titlePatterns) &&
		containsString(rule.urlPatterns, "filter") {
		return false, rule.failure
	}
	return true, ""
}

// containsAnyOf reports whether s holds any pattern. An empty list never matches.
func containsAnyOf(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
