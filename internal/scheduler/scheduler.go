// Package scheduler implements the persisted delay queue that backs the
// schedule host-op: entities call schedule(verb, args, delayMs) to have a
// verb invoked on themselves at a future time, surviving process restarts
// because due tasks live in the store rather than in memory.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/logging"
	"github.com/oriys/weft/internal/metrics"
	"github.com/oriys/weft/internal/store"
	"golang.org/x/sync/errgroup"
)

// ExecFunc invokes a due task's verb. The scheduler deletes a task before
// calling ExecFunc so a crash mid-invocation never replays it.
type ExecFunc func(ctx context.Context, task domain.ScheduledTask) error

// Scheduler is a thin wrapper around the store's scheduled_tasks table.
type Scheduler struct {
	store *store.Store
}

// New creates a Scheduler backed by s.
func New(s *store.Store) *Scheduler {
	return &Scheduler{store: s}
}

func currentTimeMS() int64 {
	return time.Now().UnixMilli()
}

// Schedule persists a task to invoke verb on entityID after delayMS
// milliseconds and returns its id.
func (s *Scheduler) Schedule(ctx context.Context, entityID domain.EntityID, verb string, args []any, delayMS int64) (int64, error) {
	executeAt := currentTimeMS() + delayMS
	id, err := s.store.ScheduleTask(ctx, entityID, verb, args, executeAt)
	if err != nil {
		return 0, fmt.Errorf("scheduler: schedule: %w", err)
	}
	metrics.Default().RecordScheduled()
	return id, nil
}

// Process runs every task currently due, deleting each before invoking it
// so a panicking or crashing execFn can never cause a task to replay.
func (s *Scheduler) Process(ctx context.Context, execFn ExecFunc) error {
	due, err := s.store.GetDueTasks(ctx, currentTimeMS())
	if err != nil {
		return fmt.Errorf("scheduler: get due tasks: %w", err)
	}

	for _, task := range due {
		if err := s.store.DeleteTask(ctx, task.ID); err != nil {
			logging.Op().Warn("scheduler: failed to delete task before execution", "task", task.ID, "error", err)
			continue
		}
		if err := execFn(ctx, task); err != nil {
			metrics.Default().RecordScheduledTask(false)
			logging.Op().Error("scheduled invocation failed", "task", task.ID, "entity", task.EntityID, "verb", task.Verb, "error", err)
			continue
		}
		metrics.Default().RecordScheduledTask(true)
	}
	return nil
}

// Run ticks every interval, calling Process, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, execFn ExecFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				if err := s.Process(ctx, execFn); err != nil {
					logging.Op().Error("scheduler tick failed", "error", err)
				}
			}
		}
	})
	if err := g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
