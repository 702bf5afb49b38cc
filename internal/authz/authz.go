// Package authz implements the capability-requirement check the `call`
// host op performs when the target verb declares required_capability: the
// caller entity must own a capability whose kind equals the requirement,
// or whose kind is a ".*"-suffixed namespace that prefixes it.
package authz

import (
	"context"
	"fmt"
	"strings"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/logging"
	"github.com/oriys/weft/internal/metrics"
)

// ErrDenied is returned when the caller does not own a capability
// satisfying the required kind.
var ErrDenied = fmt.Errorf("authz: capability denied")

// CapabilityLister is the subset of store.Store the Authorizer needs; kept
// as an interface so internal/exec can pass its own store handle without
// authz importing store (which would create a dependency cycle once store
// grows capability-aware helpers).
type CapabilityLister interface {
	GetCapabilities(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error)
}

// Authorizer checks whether a calling entity owns a capability that
// satisfies a verb's required_capability string.
type Authorizer struct {
	store CapabilityLister
}

// New creates an Authorizer consulting store for the caller's capabilities.
func New(store CapabilityLister) *Authorizer {
	return &Authorizer{store: store}
}

// Check verifies that callerID owns a capability whose kind satisfies
// required. An empty required string means the verb is unguarded and
// always passes. Satisfaction is: exact kind equality, or the owned
// capability's kind is "<namespace>.*" and required starts with
// "<namespace>.".
func (a *Authorizer) Check(ctx context.Context, callerID domain.EntityID, required string) error {
	if required == "" {
		return nil
	}

	caps, err := a.store.GetCapabilities(ctx, callerID)
	if err != nil {
		return fmt.Errorf("authz: list capabilities for %d: %w", callerID, err)
	}

	for _, c := range caps {
		if c.Kind == required {
			return nil
		}
		if ns, ok := strings.CutSuffix(c.Kind, ".*"); ok && strings.HasPrefix(required, ns+".") {
			return nil
		}
	}

	metrics.Default().RecordCapabilityDenial()
	logging.Op().Warn("capability check denied", "caller", callerID, "required", required)
	return fmt.Errorf("%w: entity %d lacks %q", ErrDenied, callerID, required)
}
