package seed

import (
	"context"
	"testing"

	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/store"
)

func TestBootstrap_CreatesBaseWorld(t *testing.T) {
	ctx := context.Background()
	s, err := store.Open(ctx, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	has, err := HasWorld(ctx, s)
	if err != nil {
		t.Fatalf("has world: %v", err)
	}
	if has {
		t.Fatal("fresh store reported as already seeded")
	}

	result, err := Bootstrap(ctx, s)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	void, err := s.GetEntity(ctx, result.VoidID)
	if err != nil {
		t.Fatalf("get void: %v", err)
	}
	flat, err := void.Flatten()
	if err != nil {
		t.Fatalf("flatten void: %v", err)
	}
	if flat["name"] != "The Void" {
		t.Errorf("void name = %v, want %q", flat["name"], "The Void")
	}

	voidRaw, err := s.GetEntityRaw(ctx, result.VoidID)
	if err != nil {
		t.Fatalf("get void raw: %v", err)
	}
	if voidRaw.PrototypeID == nil || *voidRaw.PrototypeID != result.EntityBaseID {
		t.Errorf("void prototype = %v, want %v", voidRaw.PrototypeID, result.EntityBaseID)
	}

	caps := capability.New(s)
	owned, err := caps.GetAll(ctx, result.SystemID)
	if err != nil {
		t.Fatalf("get system capabilities: %v", err)
	}
	kinds := map[string]bool{}
	for _, c := range owned {
		kinds[c.Kind] = true
	}
	for _, want := range []string{"sys.mint", "sys.create", "sys.sudo", "entity.control"} {
		if !kinds[want] {
			t.Errorf("system entity missing capability %q", want)
		}
	}

	has, err = HasWorld(ctx, s)
	if err != nil {
		t.Fatalf("has world after bootstrap: %v", err)
	}
	if !has {
		t.Fatal("seeded store should report HasWorld true")
	}
}
