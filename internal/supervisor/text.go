package supervisor

import (
	"regexp"
	"strings"
)

var (
	nonAlnum       = regexp.MustCompile(`[^a-z0-9]`)
	dateDelimiters = regexp.MustCompile(`[\s,/-]+`)
)

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// searchKey lowercases and strips everything except ASCII letters and digits.
func searchKey(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(s, w) {
			return true
		}
	}
	return false
}

func equalsAny(s string, words []string) bool {
	for _, w := range words {
		if s == w {
			return true
		}
	}
	return false
}

func joinNonEmpty(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// elementByIndex looks an element up by its annotation handle rather than
// slice position, since annotators may skip indices.
func elementByIndex(elements []Element, id int) (Element, bool) {
	for _, e := range elements {
		if e.Index == id {
			return e, true
		}
	}
	return Element{}, false
}

// visibleTexts collects "text aria" for every element carrying either.
func visibleTexts(elements []Element) []string {
	out := make([]string, 0, len(elements))
	for _, e := range elements {
		if t := joinNonEmpty(e.Text, e.AriaLabel); t != "" {
			out = append(out, t)
		}
	}
	return out
}
