package capability

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/oriys/weft/internal/domain"
)

type memStore struct {
	caps map[string]domain.Capability
}

func newMemStore() *memStore { return &memStore{caps: map[string]domain.Capability{}} }

func (m *memStore) CreateCapability(ctx context.Context, ownerID domain.EntityID, kind string, params map[string]any) (string, error) {
	id := uuid.New().String()
	m.caps[id] = domain.Capability{ID: id, OwnerID: ownerID, Kind: kind, Params: params}
	return id, nil
}

func (m *memStore) GetCapability(ctx context.Context, id string) (*domain.Capability, error) {
	c, ok := m.caps[id]
	if !ok {
		return nil, errNotFound
	}
	return &c, nil
}

func (m *memStore) GetCapabilities(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error) {
	var out []domain.Capability
	for _, c := range m.caps {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	return out, nil
}

type notFoundErr struct{}

func (notFoundErr) Error() string { return "not found" }

var errNotFound = notFoundErr{}

func TestMint_WithinNamespaceSucceeds(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	authorityID, err := s.CreateCapability(ctx, 1, "sys.mint", map[string]any{"namespace": "user"})
	if err != nil {
		t.Fatal(err)
	}
	id, err := eng.Mint(ctx, 1, authorityID, "user.doc", map[string]any{})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	got, _ := eng.Get(ctx, id)
	if got.Kind != "user.doc" || got.OwnerID != 1 {
		t.Errorf("minted capability = %+v", got)
	}
}

func TestMint_OutsideNamespaceFails(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	authorityID, _ := s.CreateCapability(ctx, 1, "sys.mint", map[string]any{"namespace": "user"})
	if _, err := eng.Mint(ctx, 1, authorityID, "admin.x", map[string]any{}); err == nil {
		t.Error("mint outside namespace should fail")
	}
}

func TestMint_WildcardNamespace(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	authorityID, _ := s.CreateCapability(ctx, 1, "sys.mint", map[string]any{"namespace": "*"})
	if _, err := eng.Mint(ctx, 1, authorityID, "anything.x", map[string]any{}); err != nil {
		t.Errorf("wildcard namespace should allow any kind: %v", err)
	}
}

func TestMint_NotOwnerFails(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	authorityID, _ := s.CreateCapability(ctx, 1, "sys.mint", map[string]any{"namespace": "*"})
	if _, err := eng.Mint(ctx, 2, authorityID, "x.y", map[string]any{}); err == nil {
		t.Error("minting with another entity's authority should fail")
	}
}

func TestDelegate_NarrowingPathSucceeds(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	parentID, _ := s.CreateCapability(ctx, 1, "fs.write", map[string]any{
		"path":    "/home/user",
		"methods": []any{"GET", "POST", "PUT", "DELETE"},
	})
	id, err := eng.Delegate(ctx, 1, parentID, map[string]any{
		"path":    "/home/user/docs",
		"methods": []any{"GET", "POST"},
	})
	if err != nil {
		t.Fatalf("delegate: %v", err)
	}
	got, _ := eng.Get(ctx, id)
	if got.Params["path"] != "/home/user/docs" {
		t.Errorf("path = %v", got.Params["path"])
	}
	if got.OwnerID != 1 {
		t.Errorf("delegated capability owner = %d, want 1", got.OwnerID)
	}
}

func TestDelegate_BroadeningPathFails(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	parentID, _ := s.CreateCapability(ctx, 1, "fs.write", map[string]any{"path": "/home/user"})
	if _, err := eng.Delegate(ctx, 1, parentID, map[string]any{"path": "/home"}); err == nil {
		t.Error("broadening path restriction should fail")
	}
}

func TestDelegate_NotOwnerFails(t *testing.T) {
	ctx := context.Background()
	s := newMemStore()
	eng := New(s)

	parentID, _ := s.CreateCapability(ctx, 1, "fs.write", map[string]any{"path": "/home/user"})
	if _, err := eng.Delegate(ctx, 2, parentID, map[string]any{}); err == nil {
		t.Error("delegating another entity's capability should fail")
	}
}
