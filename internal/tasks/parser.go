package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrUnknownApp is returned when a query names none of the supported apps.
var ErrUnknownApp = errors.New("could not identify app from query (supported: linear, notion, asana)")

// Intent is the structured reading of a query before it becomes a Task.
type Intent struct {
	Action          string         `json:"action"`
	Object          string         `json:"object"`
	Goal            string         `json:"goal"`
	TaskName        string         `json:"task_name"`
	Description     string         `json:"description"`
	ExpectedSteps   Steps          `json:"expected_steps"`
	SuccessCriteria []string       `json:"success_criteria"`
	Parameters      map[string]any `json:"parameters"`
	MultiTask       bool           `json:"is_multi_task"`
}

// IntentSource proposes an intent for a query. Implementations may fail;
// the parser then falls back to keyword heuristics.
type IntentSource interface {
	Intent(ctx context.Context, query, app string) (Intent, error)
}

// Parser turns natural-language requests into tasks.
type Parser struct {
	source IntentSource
	now    func() time.Time
	logger *zap.Logger
}

// ParserOption configures a Parser.
type ParserOption func(*Parser)

// WithIntentSource adds a model-backed intent source in front of the heuristics.
func WithIntentSource(src IntentSource) ParserOption {
	return func(p *Parser) { p.source = src }
}

// WithClock overrides the time used for generated task ids.
func WithClock(now func() time.Time) ParserOption {
	return func(p *Parser) { p.now = now }
}

// WithParserLogger sets the logger.
func WithParserLogger(l *zap.Logger) ParserOption {
	return func(p *Parser) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{now: time.Now, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.Named("tasks")
	return p
}

// Parse builds a task from a query using keyword heuristics only.
func Parse(query string) (Task, error) {
	return NewParser().Parse(context.Background(), query)
}

// Parse builds a task from a query. When an intent source is configured its
// proposal is merged with the heuristic reading; any source error falls back
// to the heuristics alone.
func (p *Parser) Parse(ctx context.Context, query string) (Task, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Task{}, errors.New("empty query")
	}
	app, ok := identifyApp(query)
	if !ok {
		return Task{}, ErrUnknownApp
	}

	heuristic := fallbackIntent(query, app.name)
	intent := heuristic
	if p.source != nil {
		proposed, err := p.source.Intent(ctx, query, app.name)
		switch {
		case err != nil:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Task{}, ctxErr
			}
			p.logger.Warn("intent parsing failed, using heuristics", zap.Error(err))
		default:
			intent = proposed.withDefaults(heuristic)
		}
	}

	intent = augment(intent, heuristic, query)
	intent = enforceProject(intent, query, app.name)

	task := p.build(intent, app, query)
	p.logger.Debug("parsed query",
		zap.String("task_id", task.ID),
		zap.String("action", task.Action),
		zap.String("object", task.Object),
		zap.Bool("multi", task.MultiTask))
	return task, nil
}

func (p *Parser) build(in Intent, app appInfo, query string) Task {
	expected := int(in.ExpectedSteps)
	if expected <= 0 {
		expected = defaultExpectedSteps
	}
	return Task{
		ID:              taskID(app.name, in.Action, in.Object, p.now()),
		Name:            in.TaskName,
		App:             app.name,
		Goal:            in.Goal,
		Description:     in.Description,
		StartURL:        app.url,
		ExpectedSteps:   expected,
		MaxSteps:        defaultMaxSteps,
		SuccessCriteria: in.SuccessCriteria,
		Parameters:      in.Parameters,
		Action:          in.Action,
		Object:          in.Object,
		MultiTask:       in.MultiTask,
		Query:           query,
	}
}

func taskID(app, action, object string, at time.Time) string {
	clean := func(s string) string { return nonIdent.ReplaceAllString(strings.ToLower(s), "_") }
	return fmt.Sprintf("%s_%s_%s_%d", app, clean(action), clean(object), at.Unix())
}

// withDefaults fills fields a model left blank from the heuristic intent.
func (in Intent) withDefaults(h Intent) Intent {
	if in.Action == "" {
		in.Action = h.Action
	}
	if in.Object == "" {
		in.Object = h.Object
	}
	if in.Goal == "" {
		in.Goal = h.Goal
	}
	if in.TaskName == "" {
		in.TaskName = h.TaskName
	}
	if in.Description == "" {
		in.Description = h.Description
	}
	if in.ExpectedSteps <= 0 {
		in.ExpectedSteps = h.ExpectedSteps
	}
	if len(in.SuccessCriteria) == 0 {
		in.SuccessCriteria = h.SuccessCriteria
	}
	if in.Parameters == nil {
		in.Parameters = map[string]any{}
	}
	return in
}

// fallbackIntent reads a query with keyword tables and regular expressions.
func fallbackIntent(query, app string) Intent {
	lower := strings.ToLower(query)
	action := classify(lower, actionGroups, "navigate")
	object := classify(lower, objectGroups, "item")

	count, names, multi := extractQuantityAndNames(query, object)
	params := map[string]any{}
	if multi && count > 1 {
		params["count"] = count
	}
	switch {
	case len(names) > 1:
		multi = true
		params["names"] = names
		params["count"] = len(names)
	case len(names) == 1:
		params[nameKey(object)] = names[0]
	}
	if multi && len(names) == 0 && count > 1 && (strings.Contains(query, "through") || strings.Contains(query, "to")) {
		pattern := titleCase(object) + " {i}"
		series := make([]string, count)
		for i := range series {
			series[i] = strings.ReplaceAll(pattern, "{i}", fmt.Sprint(i+1))
		}
		params["names"] = series
		params["name_pattern"] = pattern
	}
	for k, v := range extractFields(query) {
		params[k] = v
	}

	in := Intent{
		Action:          action,
		Object:          object,
		TaskName:        fmt.Sprintf("%s %s in %s", titleCase(action), titleCase(object), titleCase(app)),
		SuccessCriteria: []string{fmt.Sprintf("%s %s completed successfully", titleCase(object), action)},
		Parameters:      params,
		MultiTask:       multi,
	}
	if multi {
		in.Goal = fmt.Sprintf("%s %d %ss in %s", titleCase(action), count, object, app)
		in.Description = fmt.Sprintf("Navigate to %s and %s %d %ss", app, action, count, object)
		in.ExpectedSteps = Steps(stepsPerObject * count)
	} else {
		in.Goal = fmt.Sprintf("%s %s in %s", titleCase(action), object, app)
		in.Description = fmt.Sprintf("Navigate to %s and %s a %s", app, action, object)
		in.ExpectedSteps = stepsPerObject
	}
	return in
}

// augment merges heuristic parameters into an intent, settles the
// multi-task flag and normalizes synonymous fields.
func augment(in Intent, heuristic Intent, query string) Intent {
	params := mergeParams(in.Parameters, heuristic.Parameters)
	in.MultiTask = multiTaskFlag(params, heuristic.MultiTask)
	for k, v := range extractFields(query) {
		if _, ok := params[k]; !ok {
			params[k] = v
		}
	}
	in.Parameters = normalizeSynonyms(params)
	return in
}

func mergeParams(proposed, heuristic map[string]any) map[string]any {
	params := make(map[string]any, len(proposed)+len(heuristic))
	for k, v := range proposed {
		params[k] = v
	}
	for _, key := range []string{"project_name", "page_name", "database_name", "issue_title", "name", "name_pattern"} {
		if _, ok := params[key]; ok {
			continue
		}
		if v := stringParam(heuristic, key); v != "" {
			params[key] = v
		}
	}

	names := namesParam(params)
	for _, n := range namesParam(heuristic) {
		if !containsString(names, n) {
			names = append(names, n)
		}
	}
	var kept []string
	for _, n := range names {
		if !hasInstructionPrefix(n) {
			kept = append(kept, n)
		}
	}
	if len(kept) > 0 {
		params["names"] = kept
	} else if _, had := params["names"]; had {
		delete(params, "names")
		delete(params, "count")
	}

	if intParam(params, "count") == 0 {
		if c := intParam(heuristic, "count"); c > 0 {
			params["count"] = c
		}
	}
	if len(kept) > 0 && intParam(params, "count") == 0 {
		params["count"] = len(kept)
	}
	return params
}

func multiTaskFlag(params map[string]any, heuristicMulti bool) bool {
	multi := false
	if names := namesParam(params); len(names) > 0 {
		multi = len(names) > 1
		if !multi {
			delete(params, "names")
		}
	}
	count := intParam(params, "count")
	if count > 1 {
		multi = true
	}
	if heuristicMulti {
		multi = true
	}
	if len(namesParam(params)) == 0 && count <= 1 {
		delete(params, "count")
	}
	return multi
}

func normalizeSynonyms(params map[string]any) map[string]any {
	if _, ok := params["status"]; !ok {
		if v, ok := params["progress"]; ok {
			delete(params, "progress")
			params["status"] = v
		}
	}
	for _, key := range []string{"backlog_progress", "backlog_modal"} {
		if v, ok := params[key].(string); ok {
			delete(params, key)
			params["status"] = v
		}
	}
	if s, ok := params["status"].(string); ok {
		params["status"] = NormalizeStatus(s)
	}
	if s, ok := params["target_date"].(string); ok {
		params["target_date"] = strings.TrimRight(strings.TrimSpace(s), ".")
	}
	return params
}

// enforceProject keeps queries that mention projects in the project workflow.
func enforceProject(in Intent, query, app string) Intent {
	lower := strings.ToLower(query)
	if !strings.Contains(lower, "project") {
		return in
	}
	create := false
	for _, kw := range actionGroups[0].keywords {
		if strings.Contains(lower, kw) {
			create = true
			break
		}
	}
	in.Object = "project"
	if in.Parameters == nil {
		in.Parameters = map[string]any{}
	}
	params := in.Parameters
	name := firstNonEmpty(stringParam(params, "project_name"), stringParam(params, "name"), stringParam(params, "title"))

	if create {
		in.Action = "create"
		if name == "" {
			if n := stringParam(fallbackIntent(query, app).Parameters, "project_name"); n != "" {
				name = n
				params["project_name"] = n
			}
		}
		pretty := name
		if pretty == "" {
			pretty = "new project"
		}
		in.Goal = fmt.Sprintf("Create a new project named '%s' in %s", pretty, app)
		in.TaskName = fmt.Sprintf("Create Project in %s", titleCase(app))
		in.Description = fmt.Sprintf("Navigate to %s and create a new project named '%s'.", app, pretty)
		in.SuccessCriteria = []string{
			fmt.Sprintf("Project named '%s' appears in the project list", pretty),
			"Creation modal is submitted successfully",
		}
	} else {
		if in.Goal == "" {
			in.Goal = fmt.Sprintf("Manage project in %s", app)
		}
		if in.TaskName == "" {
			in.TaskName = fmt.Sprintf("Project workflow in %s", titleCase(app))
		}
	}

	if _, ok := params["description"]; !ok && strings.Contains(lower, "description") {
		label := name
		if label == "" {
			label = "the project"
		}
		params["description"] = fmt.Sprintf("Automated description for %s.", label)
	}
	return in
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
