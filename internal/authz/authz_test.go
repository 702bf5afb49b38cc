package authz

import (
	"context"
	"testing"

	"github.com/oriys/weft/internal/domain"
)

type fakeLister struct {
	byOwner map[domain.EntityID][]domain.Capability
}

func (f *fakeLister) GetCapabilities(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error) {
	return f.byOwner[ownerID], nil
}

func TestCheck_EmptyRequirementAlwaysPasses(t *testing.T) {
	az := New(&fakeLister{})
	if err := az.Check(context.Background(), 1, ""); err != nil {
		t.Errorf("unguarded verb should never deny: %v", err)
	}
}

func TestCheck_ExactKindMatch(t *testing.T) {
	az := New(&fakeLister{byOwner: map[domain.EntityID][]domain.Capability{
		1: {{ID: "c1", OwnerID: 1, Kind: "fs.write"}},
	}})
	if err := az.Check(context.Background(), 1, "fs.write"); err != nil {
		t.Errorf("exact kind match should pass: %v", err)
	}
}

func TestCheck_WildcardNamespaceMatch(t *testing.T) {
	az := New(&fakeLister{byOwner: map[domain.EntityID][]domain.Capability{
		1: {{ID: "c1", OwnerID: 1, Kind: "fs.*"}},
	}})
	if err := az.Check(context.Background(), 1, "fs.write"); err != nil {
		t.Errorf("wildcard namespace should satisfy fs.write: %v", err)
	}
	if err := az.Check(context.Background(), 1, "fsx.write"); err == nil {
		t.Error("fs.* must not satisfy an unrelated namespace prefix")
	}
}

func TestCheck_NoMatchingCapabilityDenied(t *testing.T) {
	az := New(&fakeLister{byOwner: map[domain.EntityID][]domain.Capability{
		1: {{ID: "c1", OwnerID: 1, Kind: "net.get"}},
	}})
	if err := az.Check(context.Background(), 1, "fs.write"); err == nil {
		t.Error("missing capability should be denied")
	}
}
