package exec

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/oriys/weft/internal/authz"
	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/ir"
	"github.com/oriys/weft/internal/plugin"
	"github.com/oriys/weft/internal/scheduler"
	"github.com/oriys/weft/internal/store"
)

func newTestContext(t *testing.T) (*Context, *store.Store) {
	t.Helper()
	s, err := store.Open(context.Background(), "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	caps := capability.New(s)
	sched := scheduler.New(s)
	az := authz.New(s)
	reg := plugin.NewRegistry()
	return New(s, caps, sched, az, reg), s
}

func mustCreateEntity(t *testing.T, s *store.Store, props string, proto *domain.EntityID) domain.EntityID {
	t.Helper()
	id, err := s.CreateEntity(context.Background(), json.RawMessage(props), proto)
	if err != nil {
		t.Fatalf("create entity: %v", err)
	}
	return id
}

// TestExecuteVerb_OverrideWins: a child entity overrides a verb its
// prototype also defines, and dispatch must resolve to the nearer (child)
// definition.
func TestExecuteVerb_OverrideWins(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	protoID := mustCreateEntity(t, s, `{"name":"Prototype"}`, nil)
	if _, err := s.AddVerb(ctx, protoID, "greet", ir.Call("str.concat", ir.String("Hello from prototype, "), ir.Call("std.arg", ir.Number(0))), nil); err != nil {
		t.Fatalf("add proto verb: %v", err)
	}

	childID := mustCreateEntity(t, s, `{"name":"Child"}`, &protoID)
	if _, err := s.AddVerb(ctx, childID, "greet", ir.Call("str.concat", ir.String("Hi from child, "), ir.Call("std.arg", ir.Number(0))), nil); err != nil {
		t.Fatalf("add child verb: %v", err)
	}

	result, err := c.ExecuteVerb(ctx, childID, "greet", []any{"Ada"}, nil)
	if err != nil {
		t.Fatalf("execute greet on child: %v", err)
	}
	if result != "Hi from child, Ada" {
		t.Errorf("child greet = %q, want override to win", result)
	}

	result, err = c.ExecuteVerb(ctx, protoID, "greet", []any{"Ada"}, nil)
	if err != nil {
		t.Fatalf("execute greet on prototype: %v", err)
	}
	if result != "Hello from prototype, Ada" {
		t.Errorf("prototype greet = %q, want prototype's own body", result)
	}
}

// TestExecuteVerb_CounterPersists covers the change-detection diff: a verb
// that mutates `this` via obj.set must have that mutation persisted to the
// store once the invocation's transaction commits.
func TestExecuteVerb_CounterPersists(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	id := mustCreateEntity(t, s, `{"counter":0}`, nil)
	body := ir.Call("std.seq",
		ir.Call("obj.set", ir.Call("std.this"), ir.String("counter"),
			ir.Call("+", ir.Call("obj.get", ir.Call("std.this"), ir.String("counter")), ir.Number(1))),
		ir.Call("std.return", ir.Call("obj.get", ir.Call("std.this"), ir.String("counter"))),
	)
	if _, err := s.AddVerb(ctx, id, "increment", body, nil); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	for i, want := range []float64{1, 2, 3} {
		result, err := c.ExecuteVerb(ctx, id, "increment", nil, nil)
		if err != nil {
			t.Fatalf("invocation %d: %v", i, err)
		}
		if result != want {
			t.Errorf("invocation %d = %v, want %v", i, result, want)
		}
	}

	e, err := s.GetEntityRaw(ctx, id)
	if err != nil {
		t.Fatalf("get entity raw: %v", err)
	}
	var props map[string]any
	if err := json.Unmarshal(e.Props, &props); err != nil {
		t.Fatalf("unmarshal props: %v", err)
	}
	if props["counter"] != float64(3) {
		t.Errorf("persisted counter = %v, want 3", props["counter"])
	}
}

// TestExecuteVerb_SumToN covers std.while-driven iteration entirely inside
// the VM, with no per-iteration host round trip.
func TestExecuteVerb_SumToN(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	id := mustCreateEntity(t, s, `{}`, nil)
	body := ir.Call("std.seq",
		ir.Call("std.let", ir.String("total"), ir.Number(0)),
		ir.Call("std.let", ir.String("i"), ir.Number(1)),
		ir.Call("std.while",
			ir.Call("<=", ir.Call("std.var", ir.String("i")), ir.Call("std.arg", ir.Number(0))),
			ir.Call("std.seq",
				ir.Call("std.set", ir.String("total"), ir.Call("+", ir.Call("std.var", ir.String("total")), ir.Call("std.var", ir.String("i")))),
				ir.Call("std.set", ir.String("i"), ir.Call("+", ir.Call("std.var", ir.String("i")), ir.Number(1))),
			),
		),
		ir.Call("std.return", ir.Call("std.var", ir.String("total"))),
	)
	if _, err := s.AddVerb(ctx, id, "sum_to_n", body, nil); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	result, err := c.ExecuteVerb(ctx, id, "sum_to_n", []any{float64(10)}, nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result != float64(55) {
		t.Errorf("sum_to_n(10) = %v, want 55", result)
	}
}

// TestExecuteVerb_BoundaryValues covers the null-semantics corners: an
// if without an else arm, try with and without a catch, and an empty
// list surviving as an array (not an object) across the host boundary.
func TestExecuteVerb_BoundaryValues(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)
	id := mustCreateEntity(t, s, `{}`, nil)

	cases := []struct {
		name string
		body ir.SExpr
		want any
	}{
		{"if_no_else_false_cond", ir.Call("std.if", ir.Bool(false), ir.Number(1)), nil},
		{"try_without_catch_swallows", ir.Call("std.try", ir.Call("std.throw", ir.String("boom"))), nil},
		{"try_with_catch_gets_value",
			ir.Call("std.try",
				ir.Call("std.throw", ir.String("kaboom")),
				ir.Call("std.lambda", ir.List([]ir.SExpr{ir.String("e")}), ir.String("caught"))),
			"caught"},
		{"empty_list_is_array", ir.Call("list.new"), []any{}},
		{"empty_obj_is_object", ir.Call("obj.new"), map[string]any{}},
	}
	for i, tc := range cases {
		if _, err := s.AddVerb(ctx, id, tc.name, tc.body, nil); err != nil {
			t.Fatalf("%s: add verb: %v", tc.name, err)
		}
		result, err := c.ExecuteVerb(ctx, id, tc.name, nil, nil)
		if err != nil {
			t.Fatalf("%s: execute: %v", tc.name, err)
		}
		switch want := tc.want.(type) {
		case []any:
			arr, ok := result.([]any)
			if !ok || len(arr) != len(want) {
				t.Errorf("%s: result = %#v, want empty array", tc.name, result)
			}
		case map[string]any:
			obj, ok := result.(map[string]any)
			if !ok || len(obj) != len(want) {
				t.Errorf("%s: result = %#v, want empty object", tc.name, result)
			}
		default:
			if result != tc.want {
				t.Errorf("%s (case %d): result = %#v, want %#v", tc.name, i, result, tc.want)
			}
		}
	}
}

// TestExecuteVerb_RollbackOnError covers transactional atomicity: a verb
// that mutates the world through update and then throws must leave no
// trace of the mutation.
func TestExecuteVerb_RollbackOnError(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	id := mustCreateEntity(t, s, `{"value":"before"}`, nil)
	body := ir.Call("std.seq",
		ir.Call("update", ir.Number(float64(id)), ir.Object(map[string]ir.SExpr{"value": ir.String("after")})),
		ir.Call("std.throw", ir.String("deliberate failure")),
	)
	if _, err := s.AddVerb(ctx, id, "mutate_then_fail", body, nil); err != nil {
		t.Fatalf("add verb: %v", err)
	}

	if _, err := c.ExecuteVerb(ctx, id, "mutate_then_fail", nil, nil); err == nil {
		t.Fatal("expected the thrown error to surface")
	}

	e, err := s.GetEntityRaw(ctx, id)
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	var props map[string]any
	if err := json.Unmarshal(e.Props, &props); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if props["value"] != "before" {
		t.Errorf("value = %v, want the pre-verb value after rollback", props["value"])
	}
}

// TestExecuteVerb_CallDispatchesAndChecksCapability covers the `call` host
// op: it must enforce the target verb's required_capability against the
// calling entity before recursing, not against the original top-level
// caller several frames up.
func TestExecuteVerb_CallDispatchesAndChecksCapability(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	guardedKind := "admin.reset"
	targetID := mustCreateEntity(t, s, `{"value":0}`, nil)
	if _, err := s.AddVerb(ctx, targetID, "reset", ir.Call("std.seq",
		ir.Call("obj.set", ir.Call("std.this"), ir.String("value"), ir.Number(0)),
		ir.Call("std.return", ir.Bool(true)),
	), &guardedKind); err != nil {
		t.Fatalf("add target verb: %v", err)
	}

	callerID := mustCreateEntity(t, s, `{}`, nil)
	callerBody := ir.Call("call", ir.Number(float64(targetID)), ir.String("reset"), ir.Call("list.new"))
	if _, err := s.AddVerb(ctx, callerID, "do_reset", callerBody, nil); err != nil {
		t.Fatalf("add caller verb: %v", err)
	}

	if _, err := c.ExecuteVerb(ctx, callerID, "do_reset", nil, nil); err == nil {
		t.Fatal("expected capability denial, got nil error")
	} else if !strings.Contains(err.Error(), "denied") {
		t.Errorf("error = %v, want a capability-denied error", err)
	}

	if _, err := s.CreateCapability(ctx, callerID, guardedKind, map[string]any{}); err != nil {
		t.Fatalf("grant capability: %v", err)
	}

	if _, err := c.ExecuteVerb(ctx, callerID, "do_reset", nil, nil); err != nil {
		t.Fatalf("execute after grant: %v", err)
	}

	target, err := s.GetEntityRaw(ctx, targetID)
	if err != nil {
		t.Fatalf("get target: %v", err)
	}
	var props map[string]any
	if err := json.Unmarshal(target.Props, &props); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if props["value"] != float64(0) {
		t.Errorf("target value = %v, want 0", props["value"])
	}
}

// TestExecuteVerb_MintAndDelegate covers the mint/delegate host ops: a
// capability minted under a "*" namespace authority, then delegated with
// an added path restriction.
func TestExecuteVerb_MintAndDelegate(t *testing.T) {
	ctx := context.Background()
	c, s := newTestContext(t)

	rootID := mustCreateEntity(t, s, `{}`, nil)
	authorityID, err := s.CreateCapability(ctx, rootID, "sys.mint", map[string]any{"namespace": "*"})
	if err != nil {
		t.Fatalf("seed authority: %v", err)
	}

	mintBody := ir.Call("mint", ir.String(authorityID), ir.String("custom.widget"), ir.Call("obj.new"))
	if _, err := s.AddVerb(ctx, rootID, "mint_widget", mintBody, nil); err != nil {
		t.Fatalf("add mint verb: %v", err)
	}

	mintedID, err := c.ExecuteVerb(ctx, rootID, "mint_widget", nil, nil)
	if err != nil {
		t.Fatalf("mint_widget: %v", err)
	}
	mintedIDStr, _ := mintedID.(string)
	if mintedIDStr == "" {
		t.Fatalf("minted capability id = %v, want non-empty string", mintedID)
	}

	params := ir.Object(map[string]ir.SExpr{"path": ir.String("/docs")})
	delegateBody := ir.Call("delegate", ir.String(mintedIDStr), params)
	if _, err := s.AddVerb(ctx, rootID, "delegate_widget", delegateBody, nil); err != nil {
		t.Fatalf("add delegate verb: %v", err)
	}
	if _, err := c.ExecuteVerb(ctx, rootID, "delegate_widget", nil, nil); err != nil {
		t.Fatalf("delegate_widget: %v", err)
	}
}
