// Package resolver implements the prototype-chain algorithms: merging an
// entity's properties with its ancestors' (leaf wins) and picking the
// nearest definition of a verb name along the same chain. Both are pure
// functions over an already-fetched lineage slice so the merge/override
// algorithm — including its associativity — is testable independent of
// how the lineage was queried; internal/store's recursive CTEs are one
// such source, but any root-to-leaf ordered slice works.
package resolver

import (
	"encoding/json"
	"fmt"

	"github.com/oriys/weft/internal/domain"
)

// ErrInvalidDocument is returned when a lineage link's props fail to parse
// as a JSON object.
var ErrInvalidDocument = fmt.Errorf("resolver: invalid document")

// Link is one entity in a prototype chain, as consumed by MergeProps.
type Link struct {
	ID          domain.EntityID
	PrototypeID *domain.EntityID
	Props       json.RawMessage
}

// MergeProps folds a prototype chain's properties into one map, root
// (furthest ancestor) first, leaf (the entity itself) last — so a leaf's
// own property always overrides anything inherited. Folding is associative:
// MergeProps([A,B,C]) equals merging A with B first then merging that
// result with C, since both are "overwrite left with right" folds over the
// same ordered sequence.
func MergeProps(chain []Link) (map[string]any, error) {
	merged := map[string]any{}
	for _, link := range chain {
		if len(link.Props) == 0 {
			continue
		}
		var props map[string]any
		if err := json.Unmarshal(link.Props, &props); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		for k, v := range props {
			merged[k] = v
		}
	}
	return merged, nil
}

// ResolveEntity merges chain (root-first, the entity itself last) into a
// domain.Entity carrying the leaf's own id/prototype_id but the merged
// props — the "merged entity view" verb execution injects as this.
func ResolveEntity(chain []Link) (*domain.Entity, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("resolver: empty chain")
	}
	merged, err := MergeProps(chain)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("resolver: marshal merged props: %w", err)
	}
	leaf := chain[len(chain)-1]
	return &domain.Entity{ID: leaf.ID, PrototypeID: leaf.PrototypeID, Props: data}, nil
}

// VerbLink is one entity's verb definitions at a given chain depth, as
// consumed by ResolveVerbs.
type VerbLink struct {
	Depth int // 0 = the entity itself, increasing with ancestor distance
	Verbs map[string]domain.Verb
}

// ResolveVerbs folds verb definitions across a prototype chain, keeping —
// for each name — the definition at the smallest depth (closest to the
// queried entity). Links may be
// supplied in any depth order; ResolveVerbs sorts by depth descending
// internally so nearer (smaller-depth) entries are applied last and win.
func ResolveVerbs(links []VerbLink) map[string]domain.Verb {
	ordered := make([]VerbLink, len(links))
	copy(ordered, links)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j-1].Depth < ordered[j].Depth; j-- {
			ordered[j-1], ordered[j] = ordered[j], ordered[j-1]
		}
	}

	byName := map[string]domain.Verb{}
	for _, link := range ordered {
		for name, verb := range link.Verbs {
			byName[name] = verb
		}
	}
	return byName
}
