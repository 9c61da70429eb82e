package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Generator produces text for a prompt. The vision Gemini client satisfies it;
// intent parsing sends no image.
type Generator interface {
	Generate(ctx context.Context, prompt string, image []byte) (string, error)
}

// LLMParser asks a language model to read the query.
type LLMParser struct {
	gen Generator
}

func NewLLMParser(gen Generator) *LLMParser {
	return &LLMParser{gen: gen}
}

const intentPrompt = `Read this request for browser automation and describe it as JSON.

Request: %q
App: %s

Fields: action, object, goal, task_name, description, expected_steps,
success_criteria (list), parameters (object), is_multi_task.
A quantity or a list of names means is_multi_task is true.
Put a single name in parameters.project_name; put several in parameters.names
together with parameters.count.

Single example:
{"action": "create", "object": "project", "goal": "Create project 'X' in %[2]s", "task_name": "Create Project", "description": "Open the app and create the project", "expected_steps": 7, "success_criteria": ["Project appears"], "parameters": {"project_name": "X"}, "is_multi_task": false}

Multi example:
{"action": "create", "object": "project", "goal": "Create 2 projects in %[2]s", "task_name": "Create Projects", "description": "Open the app and create each project", "expected_steps": 14, "success_criteria": ["All projects appear"], "parameters": {"count": 2, "names": ["X", "Y"]}, "is_multi_task": true}

Answer with the JSON object only.`

// Intent implements IntentSource.
func (p *LLMParser) Intent(ctx context.Context, query, app string) (Intent, error) {
	text, err := p.gen.Generate(ctx, fmt.Sprintf(intentPrompt, query, app), nil)
	if err != nil {
		return Intent{}, fmt.Errorf("generate intent: %w", err)
	}
	return decodeIntent(text)
}

func decodeIntent(text string) (Intent, error) {
	payload := strings.TrimSpace(text)
	if _, after, ok := strings.Cut(payload, "```json"); ok {
		payload, _, _ = strings.Cut(after, "```")
	} else if _, after, ok := strings.Cut(payload, "```"); ok {
		payload, _, _ = strings.Cut(after, "```")
	}

	var in Intent
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(payload)))
	if err := dec.Decode(&in); err != nil {
		return Intent{}, fmt.Errorf("decode intent: %w", err)
	}
	if in.Parameters == nil {
		in.Parameters = map[string]any{}
	}
	return in, nil
}

// Steps accepts a number or a numeric string. Models sometimes answer with
// expressions such as "N*7"; those decode as zero and take the default.
type Steps int

func (s *Steps) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*s = Steps(n)
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("expected_steps: %w", err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(str))
	if err != nil {
		*s = 0
		return nil
	}
	*s = Steps(v)
	return nil
}
