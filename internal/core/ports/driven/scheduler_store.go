package driven

import (
	"context"

	"github.com/custodia-labs/claimminer/internal/core/domain"
)

// SchedulerStore persists the maintenance tasks so a restarted worker
// picks up where the last one stopped.
type SchedulerStore interface {
	// GetTask returns nil and no error if the task does not exist.
	GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error)

	// ListTasks returns all tasks, the next one due first.
	ListTasks(ctx context.Context) ([]domain.ScheduledTask, error)

	// SaveTask creates or updates a task.
	SaveTask(ctx context.Context, task *domain.ScheduledTask) error

	// FinishRun atomically saves the task state after a run, records the
	// run result and keeps only the newest keep results of the task.
	// keep <= 0 keeps everything.
	FinishRun(ctx context.Context, task *domain.ScheduledTask, result domain.TaskResult, keep int) error
}
