package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/store"
)

func newTestScheduler(t *testing.T) (*Scheduler, domain.EntityID) {
	t.Helper()
	s, err := store.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	entityID, err := s.CreateEntity(context.Background(), json.RawMessage(`{}`), nil)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	return New(s), entityID
}

func TestScheduleThenProcessInvokesDueTask(t *testing.T) {
	ctx := context.Background()
	sched, entityID := newTestScheduler(t)

	if _, err := sched.Schedule(ctx, entityID, "ping", []any{"a"}, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	var invoked []domain.ScheduledTask
	err := sched.Process(ctx, func(ctx context.Context, task domain.ScheduledTask) error {
		invoked = append(invoked, task)
		return nil
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(invoked) != 1 || invoked[0].Verb != "ping" {
		t.Fatalf("expected ping to be invoked, got %+v", invoked)
	}
}

func TestProcessSkipsFutureTasks(t *testing.T) {
	ctx := context.Background()
	sched, entityID := newTestScheduler(t)

	if _, err := sched.Schedule(ctx, entityID, "far_future", nil, 60*60*1000); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	invoked := 0
	if err := sched.Process(ctx, func(ctx context.Context, task domain.ScheduledTask) error {
		invoked++
		return nil
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if invoked != 0 {
		t.Fatalf("expected no tasks due yet, invoked=%d", invoked)
	}
}

func TestProcessDeletesTaskBeforeInvoking(t *testing.T) {
	ctx := context.Background()
	sched, entityID := newTestScheduler(t)

	if _, err := sched.Schedule(ctx, entityID, "explode", nil, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	calls := 0
	if err := sched.Process(ctx, func(ctx context.Context, task domain.ScheduledTask) error {
		calls++
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected task to be invoked once, calls=%d", calls)
	}

	// A second Process call must find nothing to do: the failing task was
	// deleted before execFn ran, so it never replays.
	again := 0
	if err := sched.Process(ctx, func(ctx context.Context, task domain.ScheduledTask) error {
		again++
		return nil
	}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if again != 0 {
		t.Fatalf("expected failed task not to replay, again=%d", again)
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sched, _ := newTestScheduler(t)

	done := make(chan error, 1)
	go func() {
		done <- sched.Run(ctx, 5*time.Millisecond, func(ctx context.Context, task domain.ScheduledTask) error {
			return nil
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after context cancellation")
	}
}
