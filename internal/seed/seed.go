// Package seed bootstraps a freshly-created store with the foundational
// entities and capabilities every weft world needs before any client can
// usefully connect: a root zone, a base prototype every ordinary entity
// descends from, and a system entity holding the authority capabilities
// that let the world grow at all (minting new capability kinds, creating
// entities, and an escape-hatch "sudo" authority for operator tooling).
//
// The base world is "The Void" (root zone), "EntityBase" (the prototype
// every ordinary entity descends from) and a "System" entity granted
// sys.mint, sys.create, sys.sudo and entity.control, constructed directly
// via store and capability calls. Larger worlds are authored as YAML spec
// files (spec.go) and applied with weftd load.
package seed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oriys/weft/internal/capability"
	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/ir/build"
	"github.com/oriys/weft/internal/store"
)

// Result reports the entity ids Bootstrap created, for callers (cmd/weftd's
// migrate/serve paths) that want to log or reuse them.
type Result struct {
	VoidID       domain.EntityID
	EntityBaseID domain.EntityID
	SystemID     domain.EntityID
}

// Bootstrap seeds an empty store with the base world. It only ever runs
// against a store with zero entities — callers must check that themselves
// (see HasWorld) before invoking it.
func Bootstrap(ctx context.Context, s *store.Store) (*Result, error) {
	caps := capability.New(s)
	var result Result

	err := s.WithTx(ctx, func(ctx context.Context) error {
		voidProps, err := json.Marshal(map[string]any{
			"name": "The Void",
			"kind": "zone",
		})
		if err != nil {
			return fmt.Errorf("seed: marshal void props: %w", err)
		}
		voidID, err := s.CreateEntity(ctx, voidProps, nil)
		if err != nil {
			return fmt.Errorf("seed: create void: %w", err)
		}

		baseProps, err := json.Marshal(map[string]any{
			"name": "EntityBase",
			"kind": "prototype",
		})
		if err != nil {
			return fmt.Errorf("seed: marshal entity base props: %w", err)
		}
		baseID, err := s.CreateEntity(ctx, baseProps, nil)
		if err != nil {
			return fmt.Errorf("seed: create entity base: %w", err)
		}

		// Every entity inherits a describe verb from the base prototype,
		// so a fresh world is inspectable before anyone authors a verb.
		describe := build.Return(build.Concat(
			build.GetOr(build.This(), build.S("name"), build.S("something nameless")),
			build.S(" (entity "),
			build.Get(build.This(), build.S("id")),
			build.S(")"),
		))
		if _, err := s.AddVerb(ctx, baseID, "describe", describe.Erase(), nil); err != nil {
			return fmt.Errorf("seed: add describe verb: %w", err)
		}

		// The Void descends from EntityBase, per seed_basic_world: every
		// ordinary entity — including the root zone itself — inherits the
		// base prototype's properties and verbs.
		if err := s.SetPrototype(ctx, voidID, &baseID); err != nil {
			return fmt.Errorf("seed: set void prototype: %w", err)
		}

		sysProps, err := json.Marshal(map[string]any{
			"name": "System",
			"kind": "system",
		})
		if err != nil {
			return fmt.Errorf("seed: marshal system props: %w", err)
		}
		sysID, err := s.CreateEntity(ctx, sysProps, &voidID)
		if err != nil {
			return fmt.Errorf("seed: create system entity: %w", err)
		}

		// sys.mint with namespace "*" is the root authority every other
		// mint derives from — without it, no new capability kind can ever
		// be minted in this world.
		if _, err := caps.Create(ctx, sysID, "sys.mint", map[string]any{"namespace": "*"}); err != nil {
			return fmt.Errorf("seed: grant sys.mint: %w", err)
		}
		if _, err := caps.Create(ctx, sysID, "sys.create", map[string]any{}); err != nil {
			return fmt.Errorf("seed: grant sys.create: %w", err)
		}
		if _, err := caps.Create(ctx, sysID, "sys.sudo", map[string]any{}); err != nil {
			return fmt.Errorf("seed: grant sys.sudo: %w", err)
		}
		if _, err := caps.Create(ctx, sysID, "entity.control", map[string]any{"*": true}); err != nil {
			return fmt.Errorf("seed: grant entity.control: %w", err)
		}

		result = Result{VoidID: voidID, EntityBaseID: baseID, SystemID: sysID}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// HasWorld reports whether s already holds at least one entity, so callers
// can decide whether Bootstrap needs to run.
func HasWorld(ctx context.Context, s *store.Store) (bool, error) {
	_, err := s.GetEntityRaw(ctx, 1)
	if err == nil {
		return true, nil
	}
	if err == store.ErrNotFound {
		return false, nil
	}
	return false, err
}
