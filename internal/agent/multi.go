package agent

import (
	"context"
	"fmt"

	"browsernerd-agent/internal/tasks"

	"go.uber.org/zap"
)

// Summary aggregates the results of a task sequence.
type Summary struct {
	Success         bool     `json:"success"`
	OriginalQuery   string   `json:"original_query,omitempty"`
	MultiTask       bool     `json:"is_multi_task"`
	TotalTasks      int      `json:"total_tasks"`
	SuccessfulTasks int      `json:"successful_tasks"`
	FailedTasks     int      `json:"failed_tasks"`
	Results         []Result `json:"individual_results"`
	Summary         string   `json:"summary"`
}

// RunAll runs list in order and stops at the first failed task. Tasks that
// never ran count as failed.
func (r *Runner) RunAll(ctx context.Context, list []tasks.Task) Summary {
	total := len(list)
	s := Summary{MultiTask: total > 1, TotalTasks: total, Results: make([]Result, 0, total)}
	if total > 0 {
		s.OriginalQuery = list[0].Query
	}

	for i, task := range list {
		r.logger.Info("running task", zap.Int("task_number", i+1), zap.Int("total_tasks", total), zap.String("task_id", task.ID))
		res, err := r.Run(ctx, task)
		res.TaskNumber = i + 1
		res.TotalTasks = total
		res.OriginalQuery = s.OriginalQuery
		s.Results = append(s.Results, res)

		if err != nil || !res.Success {
			r.logger.Warn("task failed, stopping sequence", zap.Int("task_number", i+1), zap.Error(err))
			break
		}
		if i < total-1 {
			r.sleep(ctx, r.opts.TaskPause)
			if ctx.Err() != nil {
				break
			}
		}
	}

	for _, res := range s.Results {
		if res.Success {
			s.SuccessfulTasks++
		}
	}
	s.FailedTasks = total - s.SuccessfulTasks
	s.Success = total > 0 && s.SuccessfulTasks == total
	s.Summary = fmt.Sprintf("Completed %d/%d tasks", s.SuccessfulTasks, total)
	return s
}
