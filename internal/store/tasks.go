package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oriys/weft/internal/domain"
)

// ScheduleTask persists a task to execute verb on entityID at executeAtMS.
func (s *Store) ScheduleTask(ctx context.Context, entityID domain.EntityID, verb string, args []any, executeAtMS int64) (int64, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return 0, fmt.Errorf("store: schedule task: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO scheduled_tasks (entity_id, verb, args, execute_at) VALUES (?, ?, ?, ?)",
		entityID, verb, string(data), executeAtMS)
	if err != nil {
		return 0, fmt.Errorf("store: schedule task: %w", err)
	}
	return res.LastInsertId()
}

// GetDueTasks returns every task with execute_at <= nowMS, ascending by
// due time, so the earliest-due task is processed first.
func (s *Store) GetDueTasks(ctx context.Context, nowMS int64) ([]domain.ScheduledTask, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, entity_id, verb, args, execute_at FROM scheduled_tasks WHERE execute_at <= ? ORDER BY execute_at ASC",
		nowMS)
	if err != nil {
		return nil, fmt.Errorf("store: get due tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.ScheduledTask
	for rows.Next() {
		var (
			t       domain.ScheduledTask
			argsStr string
		)
		if err := rows.Scan(&t.ID, &t.EntityID, &t.Verb, &argsStr, &t.ExecuteAtMS); err != nil {
			return nil, fmt.Errorf("store: get due tasks scan: %w", err)
		}
		if err := json.Unmarshal([]byte(argsStr), &t.Args); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// DeleteTask removes a scheduled task by id.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM scheduled_tasks WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete task: %w", err)
	}
	return nil
}
