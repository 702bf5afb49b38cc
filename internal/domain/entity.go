// Package domain holds the core value types of the weft runtime: entities,
// verbs, capabilities and scheduled tasks, plus their JSON wire shapes.
package domain

import (
	"encoding/json"

	"github.com/oriys/weft/internal/ir"
)

// EntityID identifies an Entity. Server-assigned, monotonic.
type EntityID = int64

// Entity is a tuple (id, prototype_id?, props). props is a semi-structured
// JSON document; prototype_id references another entity or none and is
// never cyclic by construction (the resolver bounds lookup depth instead of
// detecting cycles eagerly).
type Entity struct {
	ID          EntityID        `json:"id"`
	PrototypeID *EntityID       `json:"prototype_id,omitempty"`
	Props       json.RawMessage `json:"props"`
}

// Flatten returns {id, prototype_id, ...props} the way the host bridge
// presents "this" to script code.
func (e Entity) Flatten() (map[string]any, error) {
	out := map[string]any{
		"id":           e.ID,
		"prototype_id": nil,
	}
	if e.PrototypeID != nil {
		out["prototype_id"] = *e.PrototypeID
	}
	if len(e.Props) > 0 {
		var props map[string]any
		if err := json.Unmarshal(e.Props, &props); err != nil {
			return nil, err
		}
		for k, v := range props {
			out[k] = v
		}
	}
	return out, nil
}

// Verb is a tuple (id, entity_id, name, code, required_capability?).
// Uniqueness is (entity_id, name); deletion of the owning entity cascades.
type Verb struct {
	ID                 int64          `json:"id"`
	EntityID           EntityID       `json:"entity_id"`
	Name               string         `json:"name"`
	Code               ir.SExpr       `json:"code"`
	RequiredCapability *string        `json:"required_capability,omitempty"`
}

// Capability is a tuple (id, owner_id, kind, params). kind is a dotted
// namespace string ("sys.mint", "fs.read", "net.get", "custom.x"); params
// encodes kind-specific restrictions interpreted by the restriction lattice.
type Capability struct {
	ID      string         `json:"id"`
	OwnerID EntityID       `json:"owner_id"`
	Kind    string         `json:"kind"`
	Params  map[string]any `json:"params"`
}

// ScheduledTask is a tuple (id, entity_id, verb, args, execute_at_ms).
type ScheduledTask struct {
	ID         int64    `json:"id"`
	EntityID   EntityID `json:"entity_id"`
	Verb       string   `json:"verb"`
	Args       []any    `json:"args"`
	ExecuteAtMS int64   `json:"execute_at_ms"`
}
