package tasks

import (
	"fmt"
	"strings"
)

// Expand splits a multi-task into one task per object. Tasks that are not
// multi-tasks, or whose count is below two, come back unchanged.
func Expand(task Task) []Task {
	if !task.MultiTask {
		return []Task{task}
	}
	count := intParam(task.Parameters, "count")
	if count <= 1 {
		return []Task{task}
	}
	names := namesParam(task.Parameters)
	pattern := stringParam(task.Parameters, "name_pattern")
	object := task.Object
	if object == "" {
		object = "item"
	}

	out := make([]Task, 0, count)
	for i := 0; i < count; i++ {
		var name string
		switch {
		case i < len(names):
			name = names[i]
		case pattern != "":
			name = strings.ReplaceAll(pattern, "{i}", fmt.Sprint(i+1))
		default:
			name = fmt.Sprintf("%s %d", titleCase(object), i+1)
		}

		part := task.clone()
		part.MultiTask = false
		part.ID = fmt.Sprintf("%s_part_%d", task.ID, i+1)
		part.Parameters = map[string]any{nameKey(object): name}
		part.Goal = fmt.Sprintf("Create %s named '%s' in %s", object, name, task.App)
		part.Description = fmt.Sprintf("Navigate to %s and create %s named '%s'", task.App, object, name)
		part.Name = fmt.Sprintf("Create %s: %s", titleCase(object), name)
		part.ExpectedSteps = task.ExpectedSteps / count
		part.SuccessCriteria = []string{
			fmt.Sprintf("%s appears in list", titleCase(object)),
			fmt.Sprintf("%s name is '%s'", titleCase(object), name),
		}
		out = append(out, part)
	}
	return out
}
