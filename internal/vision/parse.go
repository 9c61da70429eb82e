package vision

import (
	"regexp"
	"strconv"
	"strings"

	"browsernerd-agent/internal/supervisor"
)

var (
	bracketID = regexp.MustCompile(`\[(\d+)\]`)
	bareID    = regexp.MustCompile(`(\d+)`)
)

// ParseResponse turns a model reply into an action. Text before the last
// "ACTION:" marker becomes the reasoning; anything unreadable becomes wait.
func ParseResponse(text string) supervisor.Action {
	reasoning := ""
	line := strings.TrimSpace(text)
	if i := strings.LastIndex(text, "ACTION:"); i >= 0 {
		reasoning = strings.TrimSpace(text[:strings.Index(text, "ACTION:")])
		line = strings.TrimSpace(text[i+len("ACTION:"):])
	}
	line = strings.TrimSpace(strings.ReplaceAll(line, "`", ""))

	main, rest, hasRest := strings.Cut(line, ";")
	main = strings.TrimSpace(main)
	rest = strings.TrimSpace(rest)

	words := strings.Fields(main)
	if len(words) == 0 {
		if reasoning == "" {
			reasoning = "Could not parse action"
		}
		return supervisor.Wait(reasoning)
	}

	verb := strings.ToLower(words[0])
	switch verb {
	case "click", "type", "scroll", "finish", "wait":
		return build(verb, main, rest, hasRest, reasoning)
	}

	// Shorthand like "answer_finish" or "final_answer: click".
	if strings.Contains(verb, "answer") {
		for _, kind := range []string{"finish", "wait", "click", "type"} {
			if strings.Contains(verb, kind) {
				return build(kind, main, rest, hasRest, reasoning)
			}
		}
		return supervisor.Wait(reasoning)
	}
	return supervisor.Wait("Unrecognized action payload, defaulting to wait")
}

func build(kind, main, rest string, hasRest bool, reasoning string) supervisor.Action {
	switch kind {
	case "click":
		return supervisor.Click(elementID(main), reasoning)
	case "type":
		return supervisor.TypeText(elementID(main), rest, reasoning)
	case "scroll":
		direction := "up"
		if strings.Contains(strings.ToLower(main+";"+rest), "down") {
			direction = "down"
		}
		return supervisor.Scroll(direction, reasoning)
	case "finish":
		summary := "Task completed"
		if hasRest {
			summary = rest
		}
		return supervisor.Finish(summary, reasoning)
	}
	return supervisor.Wait(reasoning)
}

// elementID prefers a bracketed number, then any number, then 0.
func elementID(s string) int {
	m := bracketID.FindStringSubmatch(s)
	if m == nil {
		m = bareID.FindStringSubmatch(s)
	}
	if m == nil {
		return 0
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return id
}
