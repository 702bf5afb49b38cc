package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/resolver"
)

// CreateEntity inserts a new entity and returns its assigned id.
func (s *Store) CreateEntity(ctx context.Context, props json.RawMessage, prototypeID *domain.EntityID) (domain.EntityID, error) {
	if len(props) == 0 {
		props = json.RawMessage("{}")
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO entities (prototype_id, props) VALUES (?, ?)",
		nullableID(prototypeID), string(props))
	if err != nil {
		return 0, fmt.Errorf("store: create entity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: create entity: %w", err)
	}
	return id, nil
}

// GetEntityRaw returns an entity's own row, without prototype-chain merge.
func (s *Store) GetEntityRaw(ctx context.Context, id domain.EntityID) (*domain.Entity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, prototype_id, props FROM entities WHERE id = ?", id)
	return scanEntity(row)
}

// LineageRow is one link in an entity's prototype chain as returned by the
// recursive lineage query, ordered root-to-leaf (furthest ancestor first).
type LineageRow struct {
	ID          domain.EntityID
	PrototypeID *domain.EntityID
	Props       json.RawMessage
	Depth       int
}

const lineageCTE = `
WITH RECURSIVE lineage AS (
	SELECT id, prototype_id, props, 0 AS depth FROM entities WHERE id = ?
	UNION ALL
	SELECT e.id, e.prototype_id, e.props, l.depth + 1
	FROM entities e
	JOIN lineage l ON e.id = l.prototype_id
)
SELECT id, prototype_id, props FROM lineage ORDER BY depth DESC
`

// Lineage returns id's prototype chain, root (oldest ancestor) first and
// id itself last. Used by both GetEntity (prop merge) and verb resolution.
func (s *Store) Lineage(ctx context.Context, id domain.EntityID) ([]LineageRow, error) {
	rows, err := s.db.QueryContext(ctx, lineageCTE, id)
	if err != nil {
		return nil, fmt.Errorf("store: lineage: %w", err)
	}
	defer rows.Close()

	var chain []LineageRow
	for rows.Next() {
		var r LineageRow
		var propsStr string
		var protoID sql.NullInt64
		if err := rows.Scan(&r.ID, &protoID, &propsStr); err != nil {
			return nil, fmt.Errorf("store: lineage scan: %w", err)
		}
		if protoID.Valid {
			v := protoID.Int64
			r.PrototypeID = &v
		}
		r.Props = json.RawMessage(propsStr)
		chain = append(chain, r)
	}
	return chain, rows.Err()
}

// GetEntity returns id with its prototype chain's properties merged root to
// leaf (leaf wins on key collisions). The merge itself is delegated to the
// resolver package so the algorithm stays independently testable (and
// reusable) from its SQLite lineage source.
func (s *Store) GetEntity(ctx context.Context, id domain.EntityID) (*domain.Entity, error) {
	chain, err := s.Lineage(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(chain) == 0 {
		return nil, ErrNotFound
	}

	links := make([]resolver.Link, len(chain))
	for i, link := range chain {
		links[i] = resolver.Link{ID: link.ID, PrototypeID: link.PrototypeID, Props: link.Props}
	}
	entity, err := resolver.ResolveEntity(links)
	if err != nil {
		if errors.Is(err, resolver.ErrInvalidDocument) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		return nil, fmt.Errorf("store: get entity: %w", err)
	}
	return entity, nil
}

// UpdateEntity merges updates into the entity's own (unresolved) props.
func (s *Store) UpdateEntity(ctx context.Context, id domain.EntityID, updates map[string]any) error {
	current, err := s.GetEntityRaw(ctx, id)
	if err != nil {
		return err
	}

	merged := map[string]any{}
	if len(current.Props) > 0 {
		if err := json.Unmarshal(current.Props, &merged); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
	}
	for k, v := range updates {
		merged[k] = v
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("store: update entity: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE entities SET props = ? WHERE id = ?", string(data), id); err != nil {
		return fmt.Errorf("store: update entity: %w", err)
	}
	return nil
}

// FindEntityByName returns the lowest-id entity whose own props carry
// name == name. Used by the seed spec loader to resolve prototype
// references against already-present entities.
func (s *Store) FindEntityByName(ctx context.Context, name string) (domain.EntityID, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id FROM entities WHERE json_extract(props, '$.name') = ? ORDER BY id LIMIT 1", name)
	var id domain.EntityID
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("store: find entity by name: %w", err)
	}
	return id, nil
}

// SetPrototype changes id's prototype pointer.
func (s *Store) SetPrototype(ctx context.Context, id domain.EntityID, prototypeID *domain.EntityID) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE entities SET prototype_id = ? WHERE id = ?", nullableID(prototypeID), id); err != nil {
		return fmt.Errorf("store: set prototype: %w", err)
	}
	return nil
}

// DeleteEntity removes id and cascades to its verbs and owned capabilities.
func (s *Store) DeleteEntity(ctx context.Context, id domain.EntityID) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM verbs WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("store: delete entity cascade verbs: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM capabilities WHERE owner_id = ?", id); err != nil {
		return fmt.Errorf("store: delete entity cascade capabilities: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete entity: %w", err)
	}
	return nil
}

func scanEntity(row *sql.Row) (*domain.Entity, error) {
	var e domain.Entity
	var protoID sql.NullInt64
	var propsStr string
	if err := row.Scan(&e.ID, &protoID, &propsStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan entity: %w", err)
	}
	if protoID.Valid {
		v := protoID.Int64
		e.PrototypeID = &v
	}
	e.Props = json.RawMessage(propsStr)
	return &e, nil
}

func nullableID(id *domain.EntityID) any {
	if id == nil {
		return nil
	}
	return *id
}
