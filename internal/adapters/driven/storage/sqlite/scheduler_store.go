package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/claimminer/internal/core/domain"
	"github.com/custodia-labs/claimminer/internal/core/ports/driven"
)

// schedulerStore keeps the state of the periodic maintenance tasks
// (batch embedding, message pruning) and a bounded run history.
type schedulerStore struct {
	store *Store
}

var _ driven.SchedulerStore = (*schedulerStore)(nil)

const taskColumns = `id, name, interval_seconds, last_run, next_run, last_error, last_success, enabled`

// GetTask returns nil and no error for an unknown task.
func (s *schedulerStore) GetTask(ctx context.Context, taskID string) (*domain.ScheduledTask, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks WHERE id = ?`, taskID)
	task, err := scanTask(row)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return task, err
}

// ListTasks returns every task ordered by the time it is next due.
func (s *schedulerStore) ListTasks(ctx context.Context) ([]domain.ScheduledTask, error) {
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM scheduled_tasks ORDER BY next_run IS NOT NULL, next_run, id`)
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}
	return tasks, nil
}

// SaveTask creates or replaces a task.
func (s *schedulerStore) SaveTask(ctx context.Context, task *domain.ScheduledTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without id", domain.ErrInvalidInput)
	}
	return saveTask(ctx, s.store.db, task)
}

// FinishRun stores the task state after a run together with the run's
// result, and trims the history of the task to the newest keep entries.
func (s *schedulerStore) FinishRun(
	ctx context.Context, task *domain.ScheduledTask, result domain.TaskResult, keep int,
) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("%w: task without id", domain.ErrInvalidInput)
	}
	if result.TaskID != task.ID {
		return fmt.Errorf("%w: result of %q recorded on task %q", domain.ErrInvalidInput, result.TaskID, task.ID)
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if err := saveTask(ctx, tx, task); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO task_results (task_id, started_at, ended_at, success, error, items_processed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, result.TaskID, formatNullableTime(result.StartedAt), formatNullableTime(result.EndedAt),
			boolToInt(result.Success), nullString(result.Error), result.ItemsProcessed); err != nil {
			return fmt.Errorf("recording run of %s: %w", task.ID, err)
		}

		if keep <= 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM task_results
			WHERE task_id = ? AND id NOT IN (
				SELECT id FROM task_results WHERE task_id = ?
				ORDER BY id DESC LIMIT ?
			)
		`, task.ID, task.ID, keep); err != nil {
			return fmt.Errorf("trimming history of %s: %w", task.ID, err)
		}
		return nil
	})
}

func saveTask(ctx context.Context, q querier, task *domain.ScheduledTask) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO scheduled_tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			interval_seconds = excluded.interval_seconds,
			last_run = excluded.last_run,
			next_run = excluded.next_run,
			last_error = excluded.last_error,
			last_success = excluded.last_success,
			enabled = excluded.enabled
	`, task.ID, task.Name, int64(task.Interval/time.Second),
		formatNullableTime(task.LastRun), formatNullableTime(task.NextRun),
		nullString(task.LastError), formatNullableTime(task.LastSuccess),
		boolToInt(task.Enabled))
	if err != nil {
		return fmt.Errorf("saving task %s: %w", task.ID, err)
	}
	return nil
}

func scanTask(row rowScanner) (*domain.ScheduledTask, error) {
	var (
		task                                domain.ScheduledTask
		seconds                             int64
		lastRun, nextRun, lastError, lastOK sql.NullString
		enabled                             int
	)
	err := row.Scan(&task.ID, &task.Name, &seconds, &lastRun, &nextRun, &lastError, &lastOK, &enabled)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Interval = time.Duration(seconds) * time.Second
	task.LastRun = parseNullableTime(lastRun)
	task.NextRun = parseNullableTime(nextRun)
	task.LastError = lastError.String
	task.LastSuccess = parseNullableTime(lastOK)
	task.Enabled = enabled == 1
	return &task, nil
}
