package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/oriys/weft/internal/ir"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateAndGetEntity(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	id, err := s.CreateEntity(ctx, json.RawMessage(`{"name":"Root"}`), nil)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	e, err := s.GetEntity(ctx, id)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	var props map[string]any
	if err := json.Unmarshal(e.Props, &props); err != nil {
		t.Fatalf("unmarshal props: %v", err)
	}
	if props["name"] != "Root" {
		t.Errorf("name = %v, want Root", props["name"])
	}
}

func TestPrototypePropertyInheritance(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	rootID, err := s.CreateEntity(ctx, json.RawMessage(`{"color":"red","size":1}`), nil)
	if err != nil {
		t.Fatalf("create root: %v", err)
	}
	childID, err := s.CreateEntity(ctx, json.RawMessage(`{"size":2}`), &rootID)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}

	e, err := s.GetEntity(ctx, childID)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	var props map[string]any
	json.Unmarshal(e.Props, &props)

	if props["color"] != "red" {
		t.Errorf("expected inherited color=red, got %v", props["color"])
	}
	if props["size"].(float64) != 2 {
		t.Errorf("expected own size=2 to win over prototype, got %v", props["size"])
	}
}

func TestVerbResolutionPicksNearestOverride(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	rootID, _ := s.CreateEntity(ctx, json.RawMessage(`{}`), nil)
	childID, _ := s.CreateEntity(ctx, json.RawMessage(`{}`), &rootID)

	if _, err := s.AddVerb(ctx, rootID, "greet", ir.String("root greeting"), nil); err != nil {
		t.Fatalf("add root verb: %v", err)
	}
	if _, err := s.AddVerb(ctx, childID, "greet", ir.String("child greeting"), nil); err != nil {
		t.Fatalf("add child verb: %v", err)
	}

	v, err := s.GetVerb(ctx, childID, "greet")
	if err != nil {
		t.Fatalf("get verb: %v", err)
	}
	if v.Code.Str != "child greeting" {
		t.Errorf("expected nearest (child) verb to win, got %q", v.Code.Str)
	}

	// A verb that only exists on the prototype is still visible on the child.
	if _, err := s.AddVerb(ctx, rootID, "only_on_root", ir.Number(1), nil); err != nil {
		t.Fatalf("add verb: %v", err)
	}
	inherited, err := s.GetVerb(ctx, childID, "only_on_root")
	if err != nil {
		t.Fatalf("get inherited verb: %v", err)
	}
	if inherited.Code.Number != 1 {
		t.Errorf("expected inherited verb value 1, got %v", inherited.Code.Number)
	}
}

func TestScheduledTasksOnlyDueAreReturned(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	entityID, _ := s.CreateEntity(ctx, json.RawMessage(`{}`), nil)

	if _, err := s.ScheduleTask(ctx, entityID, "now_task", []any{}, 0); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if _, err := s.ScheduleTask(ctx, entityID, "future_task", []any{}, 999999999999); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	due, err := s.GetDueTasks(ctx, 100)
	if err != nil {
		t.Fatalf("get due tasks: %v", err)
	}
	if len(due) != 1 || due[0].Verb != "now_task" {
		t.Fatalf("expected only now_task due, got %+v", due)
	}

	if err := s.DeleteTask(ctx, due[0].ID); err != nil {
		t.Fatalf("delete task: %v", err)
	}
	due, err = s.GetDueTasks(ctx, 100)
	if err != nil {
		t.Fatalf("get due tasks: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected task to be deleted, got %+v", due)
	}
}

func TestNestedSavepointRollbackPreservesOuterWrites(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	outerTx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	id, err := s.CreateEntity(ctx, json.RawMessage(`{"from":"outer"}`), nil)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}

	innerTx, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("begin nested: %v", err)
	}
	if _, err := s.CreateEntity(ctx, json.RawMessage(`{"from":"inner"}`), nil); err != nil {
		t.Fatalf("create nested entity: %v", err)
	}
	if err := innerTx.Rollback(ctx); err != nil {
		t.Fatalf("rollback nested: %v", err)
	}

	if err := outerTx.Commit(ctx); err != nil {
		t.Fatalf("commit outer: %v", err)
	}

	e, err := s.GetEntityRaw(ctx, id)
	if err != nil {
		t.Fatalf("outer entity should survive: %v", err)
	}
	if e.ID != id {
		t.Fatalf("got wrong entity back")
	}
}

func TestDeleteEntityCascadesVerbsAndCapabilities(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	id, _ := s.CreateEntity(ctx, json.RawMessage(`{}`), nil)
	if _, err := s.AddVerb(ctx, id, "v", ir.Null(), nil); err != nil {
		t.Fatalf("add verb: %v", err)
	}
	if _, err := s.CreateCapability(ctx, id, "sys.mint", map[string]any{"namespace": "*"}); err != nil {
		t.Fatalf("create capability: %v", err)
	}

	if err := s.DeleteEntity(ctx, id); err != nil {
		t.Fatalf("delete entity: %v", err)
	}

	if _, err := s.GetVerb(ctx, id, "v"); err != ErrNotFound {
		t.Errorf("expected verb to be gone, got err=%v", err)
	}
	caps, err := s.GetCapabilities(ctx, id)
	if err != nil {
		t.Fatalf("get capabilities: %v", err)
	}
	if len(caps) != 0 {
		t.Errorf("expected capabilities to be cascaded away, got %d", len(caps))
	}
}
