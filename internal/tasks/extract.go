package tasks

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type appInfo struct {
	name     string
	url      string
	keywords []string
}

var apps = []appInfo{
	{name: "linear", url: "https://linear.app", keywords: []string{"linear", "linear.app"}},
	{name: "notion", url: "https://www.notion.so", keywords: []string{"notion", "notion.so"}},
	{name: "asana", url: "https://app.asana.com", keywords: []string{"asana", "asana.com"}},
}

type keywordGroup struct {
	name     string
	keywords []string
}

// Order matters: the first group with a matching keyword wins.
var actionGroups = []keywordGroup{
	{"create", []string{"create", "add", "new", "make"}},
	{"edit", []string{"edit", "modify", "change", "update"}},
	{"delete", []string{"delete", "remove", "trash"}},
	{"filter", []string{"filter", "search", "find", "query"}},
	{"navigate", []string{"navigate", "go", "open", "view", "show"}},
}

var objectGroups = []keywordGroup{
	{"project", []string{"project", "workspace"}},
	{"issue", []string{"issue", "ticket", "bug"}},
	{"page", []string{"page", "document", "note"}},
	{"database", []string{"database", "table", "collection"}},
	{"task", []string{"task", "todo", "item"}},
}

var statusLabels = map[string]string{
	"inprogress":  "In Progress",
	"in progress": "In Progress",
	"progress":    "In Progress",
	"in-progress": "In Progress",
	"inprogrss":   "In Progress",
	"backlog":     "Backlog",
	"todo":        "Todo",
	"done":        "Done",
	"completed":   "Completed",
	"canceled":    "Canceled",
	"cancelled":   "Cancelled",
}

var instructionKeywords = []string{
	"change", "set", "update", "switch", "make", "turn", "modify",
	"add", "include", "write", "provide", "generate", "create",
}

const (
	defaultMaxSteps      = 20
	defaultExpectedSteps = 10
	stepsPerObject       = 8
)

var quantityPatterns = []string{
	`(?i)(\d+)\s+%ss?`,
	`(?i)create\s+(\d+)`,
	`(?i)add\s+(\d+)`,
	`(?i)make\s+(\d+)`,
}

var (
	namePatterns = compileAll(
		`(?i)named?\s+(?:as\s+)?["']?([^"']+)["']?`,
		`(?i)called\s+["']?([^"']+)["']?`,
		`(?i)titled?\s+["']?([^"']+)["']?`,
		`(?i)with\s+titles?\s+([^"']+)`,
		`(?i)labels?\s+["']?([^"']+)["']?`,
	)
	statusPatterns = compileAll(
		`(?i)(?:status|backlog|workflow)[^a-zA-Z0-9]+(?:modal\s+)?(?:to|as|set to)\s+([a-zA-Z ]+?)(?:,| and|$)`,
		`(?i)(?:change|move|set)\s+(?:the\s+)?(?:status|backlog|workflow)[^a-zA-Z0-9]+to\s+([a-zA-Z ]+?)(?:,| and|$)`,
		`(?i)backlog(?:\s+progress)?(?:\s+modal)?\s+(?:to|as|set to)\s+([a-zA-Z ]+?)(?:,| and|$)`,
	)
	targetDatePatterns = compileAll(
		`(?i)target date\s+(?:to\s+)?([a-zA-Z0-9 ,]+?)(?:,| and|$)`,
		`(?i)target\s+(?:to\s+)?([a-zA-Z0-9 ,]+?)(?:,| and|$)`,
		`(?i)(?:due date|deadline)\s+(?:to\s+)?([a-zA-Z0-9 ,]+?)(?:,| and|$)`,
	)
	priorityPatterns = compileAll(
		`(?i)(?:set|change)\s+(?:the\s+)?priority\s+(?:to\s+)?([a-zA-Z ]+?)(?:,| and|$)`,
	)
	descriptionPatterns = compileAll(
		`(?i)(?:add|include|write|set|provide|generate)\s+(?:a\s+)?description(?:\s+for\s+(?:the\s+)?(?:project|it))?\s*(?:called|named|as|to|of)?\s*["']([^"']+)["']`,
		`(?i)description\s+(?:is|should be|to|as)\s+["']([^"']+)["']`,
		`(?i)description:\s*([^,\n]+)`,
	)

	conjunction = regexp.MustCompile(`(?i)\b(?:and|also|then|so|but)\b`)
	andSplit    = regexp.MustCompile(`(?i)\s+and\s+`)
	spaces      = regexp.MustCompile(`\s+`)
	nonIdent    = regexp.MustCompile(`[^a-z0-9]`)
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

func identifyApp(query string) (appInfo, bool) {
	lower := strings.ToLower(query)
	for _, app := range apps {
		for _, kw := range app.keywords {
			if strings.Contains(lower, kw) {
				return app, true
			}
		}
	}
	return appInfo{}, false
}

func classify(lower string, groups []keywordGroup, fallback string) string {
	for _, g := range groups {
		for _, kw := range g.keywords {
			if strings.Contains(lower, kw) {
				return g.name
			}
		}
	}
	return fallback
}

// NormalizeStatus maps status spellings onto the labels the apps display.
func NormalizeStatus(value string) string {
	clean := strings.TrimSpace(value)
	clean = strings.NewReplacer("-", " ", "_", " ").Replace(clean)
	clean = spaces.ReplaceAllString(clean, " ")
	if label, ok := statusLabels[strings.ToLower(clean)]; ok {
		return label
	}
	return titleCase(clean)
}

// cleanPhrase keeps the text before the first conjunction.
func cleanPhrase(text string) string {
	text = strings.TrimSpace(text)
	if loc := conjunction.FindStringIndex(text); loc != nil {
		text = text[:loc[0]]
	}
	return strings.TrimSpace(text)
}

// titleCase upper-cases the first letter of every word and lower-cases the rest.
func titleCase(s string) string {
	var b strings.Builder
	prevLetter := false
	for _, r := range s {
		if prevLetter {
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(unicode.ToUpper(r))
		}
		prevLetter = unicode.IsLetter(r)
	}
	return b.String()
}

func firstMatch(patterns []*regexp.Regexp, query string) (string, bool) {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(query); m != nil {
			return m[1], true
		}
	}
	return "", false
}

// extractFields pulls status, target date, priority and description values.
func extractFields(query string) map[string]any {
	params := map[string]any{}
	if raw, ok := firstMatch(statusPatterns, query); ok {
		if v := NormalizeStatus(cleanPhrase(raw)); v != "" {
			params["status"] = v
		}
	}
	if raw, ok := firstMatch(targetDatePatterns, query); ok {
		if v := titleCase(strings.TrimRight(cleanPhrase(raw), ".")); v != "" {
			params["target_date"] = v
		}
	}
	if raw, ok := firstMatch(priorityPatterns, query); ok {
		if v := titleCase(cleanPhrase(raw)); v != "" {
			params["priority"] = v
		}
	}
	if raw, ok := firstMatch(descriptionPatterns, query); ok {
		if v := strings.TrimRight(cleanPhrase(raw), "."); v != "" {
			params["description"] = v
		}
	}
	return params
}

// extractQuantityAndNames detects "3 projects" style counts and
// "named A, B, C" style name lists.
func extractQuantityAndNames(query, object string) (count int, names []string, multi bool) {
	count = 1
	for _, tmpl := range quantityPatterns {
		re := regexp.MustCompile(fmt.Sprintf(tmpl, regexp.QuoteMeta(object)))
		if m := re.FindStringSubmatch(query); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				count = n
				multi = n > 1
			}
			break
		}
	}

	raw, ok := firstMatch(namePatterns, query)
	if !ok {
		return count, nil, multi
	}
	candidate := splitInstructions(strings.TrimSpace(raw))

	var parts []string
	if strings.Contains(candidate, ",") {
		for _, p := range strings.Split(candidate, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
	} else {
		parts = []string{candidate}
	}
	parts = dropInstructions(parts)

	switch {
	case len(parts) > 1:
		return len(parts), parts, true
	case len(parts) == 1:
		if name := strings.Trim(parts[0], " '\""); name != "" {
			return count, []string{name}, multi
		}
	}
	return count, nil, multi
}

// splitInstructions cuts the name text at the first " and " and at any
// instruction keyword embedded in what remains.
func splitInstructions(text string) string {
	if strings.Contains(strings.ToLower(text), " and ") {
		text = andSplit.Split(text, 2)[0]
	}
	lower := strings.ToLower(text)
	for _, kw := range instructionKeywords {
		if idx := strings.Index(lower, kw+" "); idx != -1 {
			return strings.TrimSpace(text[:idx])
		}
	}
	return strings.TrimSpace(text)
}

func dropInstructions(parts []string) []string {
	var out []string
	for _, p := range parts {
		if hasInstructionPrefix(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func hasInstructionPrefix(s string) bool {
	lower := strings.ToLower(strings.TrimSpace(s))
	for _, kw := range instructionKeywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	return false
}

// nameKey is the parameter that carries a single name for an object type.
func nameKey(object string) string {
	switch object {
	case "project":
		return "project_name"
	case "page":
		return "page_name"
	case "database":
		return "database_name"
	case "issue":
		return "issue_title"
	}
	return "name"
}

// Parameter values arrive as Go types from the heuristic path and as JSON
// types from the model, so readers accept both.

func intParam(params map[string]any, key string) int {
	switch v := params[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(v))
		return n
	}
	return 0
}

func stringParam(params map[string]any, key string) string {
	s, _ := params[key].(string)
	return strings.TrimSpace(s)
}

func namesParam(params map[string]any) []string {
	switch v := params["names"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	}
	return nil
}
