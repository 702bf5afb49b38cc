package capability

import (
	"context"
	"fmt"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/metrics"
)

// Sentinel errors for the capability operations below.
var (
	ErrNotOwned         = fmt.Errorf("capability: not owned by caller")
	ErrAuthorityScope   = fmt.Errorf("capability: authority does not cover requested namespace")
	ErrRestrictionInvalid = fmt.Errorf("capability: invalid restriction")
)

// Store is the subset of store.Store the capability engine needs.
type Store interface {
	CreateCapability(ctx context.Context, ownerID domain.EntityID, kind string, params map[string]any) (string, error)
	GetCapability(ctx context.Context, id string) (*domain.Capability, error)
	GetCapabilities(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error)
}

// Engine implements capability creation, minting and delegation against a
// Store.
type Engine struct {
	store Store
}

// New creates an Engine backed by store.
func New(store Store) *Engine {
	return &Engine{store: store}
}

// Create mints a brand-new capability with arbitrary kind/params. This is
// reachable only from the bootstrap seed loader — ordinary verb execution
// must go through Mint or Delegate.
func (e *Engine) Create(ctx context.Context, ownerID domain.EntityID, kind string, params map[string]any) (string, error) {
	return e.store.CreateCapability(ctx, ownerID, kind, params)
}

// Get returns a capability by id.
func (e *Engine) Get(ctx context.Context, id string) (*domain.Capability, error) {
	return e.store.GetCapability(ctx, id)
}

// GetAll returns every capability ownerID owns.
func (e *Engine) GetAll(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error) {
	return e.store.GetCapabilities(ctx, ownerID)
}

// Mint creates newKind using authorityCapID as a sys.mint authority: the
// authority must be owned by callerID, have kind "sys.mint", and its
// params.namespace must be "*" or a dotted-prefix of newKind. The minted
// capability is freshly owned by callerID.
func (e *Engine) Mint(ctx context.Context, callerID domain.EntityID, authorityCapID, newKind string, newParams map[string]any) (string, error) {
	authority, err := e.store.GetCapability(ctx, authorityCapID)
	if err != nil {
		return "", err
	}
	if authority.OwnerID != callerID {
		return "", fmt.Errorf("%w: authority %s owned by %d, not %d", ErrNotOwned, authorityCapID, authority.OwnerID, callerID)
	}
	if authority.Kind != "sys.mint" {
		return "", fmt.Errorf("%w: capability %s has kind %q, want sys.mint", ErrAuthorityScope, authorityCapID, authority.Kind)
	}

	namespace, _ := authority.Params["namespace"].(string)
	if namespace != "*" && !namespacePrefixes(namespace, newKind) {
		return "", fmt.Errorf("%w: namespace %q does not cover %q", ErrAuthorityScope, namespace, newKind)
	}

	id, err := e.store.CreateCapability(ctx, callerID, newKind, newParams)
	if err != nil {
		return "", err
	}
	metrics.Default().RecordMint()
	return id, nil
}

// namespacePrefixes reports whether ns is a dotted prefix of kind (e.g.
// "user" prefixes "user.doc" but not "userx.doc").
func namespacePrefixes(ns, kind string) bool {
	if ns == "" {
		return false
	}
	if ns == kind {
		return true
	}
	return len(kind) > len(ns) && kind[:len(ns)] == ns && kind[len(ns)] == '.'
}

// Delegate derives a new capability from parentCapID, owned by the same
// entity as the original, whose kind matches the parent and whose params
// are the parent's merged with restrictions — each restriction validated
// by the lattice in restriction.go so the child can never be broader than
// its parent.
func (e *Engine) Delegate(ctx context.Context, callerID domain.EntityID, parentCapID string, restrictions map[string]any) (string, error) {
	parent, err := e.store.GetCapability(ctx, parentCapID)
	if err != nil {
		return "", err
	}
	if parent.OwnerID != callerID {
		return "", fmt.Errorf("%w: capability %s owned by %d, not %d", ErrNotOwned, parentCapID, parent.OwnerID, callerID)
	}

	if err := ValidateDelegation(parent.Params, restrictions); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRestrictionInvalid, err)
	}

	merged := MergeDelegatedParams(parent.Params, restrictions)
	id, err := e.store.CreateCapability(ctx, callerID, parent.Kind, merged)
	if err != nil {
		return "", err
	}
	metrics.Default().RecordDelegate()
	return id, nil
}
