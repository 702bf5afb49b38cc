package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/oriys/weft/internal/domain"
	"github.com/oriys/weft/internal/ir"
	"github.com/oriys/weft/internal/resolver"
)

// AddVerb attaches a verb to entityID. requiredCapability may be nil.
func (s *Store) AddVerb(ctx context.Context, entityID domain.EntityID, name string, code ir.SExpr, requiredCapability *string) (int64, error) {
	codeJSON, err := json.Marshal(code)
	if err != nil {
		return 0, fmt.Errorf("store: add verb: %w", err)
	}
	var reqCap any
	if requiredCapability != nil {
		reqCap = *requiredCapability
	}
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO verbs (entity_id, name, code, required_capability) VALUES (?, ?, ?, ?)",
		entityID, name, string(codeJSON), reqCap)
	if err != nil {
		return 0, fmt.Errorf("store: add verb: %w", err)
	}
	return res.LastInsertId()
}

const verbLineageCTE = `
WITH RECURSIVE lineage AS (
	SELECT id, prototype_id, 0 AS depth FROM entities WHERE id = ?
	UNION ALL
	SELECT e.id, e.prototype_id, l.depth + 1
	FROM entities e
	JOIN lineage l ON e.id = l.prototype_id
)
`

// GetVerb resolves name on entityID through the prototype chain, returning
// the nearest (shallowest-depth) definition, so a child's override wins
// over anything inherited.
func (s *Store) GetVerb(ctx context.Context, entityID domain.EntityID, name string) (*domain.Verb, error) {
	row := s.db.QueryRowContext(ctx, verbLineageCTE+`
		SELECT v.id, v.entity_id, v.name, v.code, v.required_capability
		FROM verbs v
		JOIN lineage l ON v.entity_id = l.id
		WHERE v.name = ?
		ORDER BY l.depth ASC
		LIMIT 1
	`, entityID, name)

	v, err := scanVerb(row)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// GetVerbs returns every verb name visible on entityID (own + inherited),
// with nearer definitions overriding farther ones per name. The fold itself
// is delegated to resolver.ResolveVerbs; GetVerb applies the same
// nearest-wins rule through its own ORDER BY depth query.
func (s *Store) GetVerbs(ctx context.Context, entityID domain.EntityID) ([]domain.Verb, error) {
	rows, err := s.db.QueryContext(ctx, verbLineageCTE+`
		SELECT v.id, v.entity_id, v.name, v.code, v.required_capability, l.depth
		FROM verbs v
		JOIN lineage l ON v.entity_id = l.id
		ORDER BY l.depth DESC
	`, entityID)
	if err != nil {
		return nil, fmt.Errorf("store: get verbs: %w", err)
	}
	defer rows.Close()

	byDepth := map[int]map[string]domain.Verb{}
	for rows.Next() {
		var (
			id      int64
			eID     domain.EntityID
			name    string
			codeStr string
			reqCap  sql.NullString
			depth   int
		)
		if err := rows.Scan(&id, &eID, &name, &codeStr, &reqCap, &depth); err != nil {
			return nil, fmt.Errorf("store: get verbs scan: %w", err)
		}
		var code ir.SExpr
		if err := json.Unmarshal([]byte(codeStr), &code); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		v := domain.Verb{ID: id, EntityID: eID, Name: name, Code: code}
		if reqCap.Valid {
			v.RequiredCapability = &reqCap.String
		}
		if byDepth[depth] == nil {
			byDepth[depth] = map[string]domain.Verb{}
		}
		byDepth[depth][name] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	links := make([]resolver.VerbLink, 0, len(byDepth))
	for depth, verbs := range byDepth {
		links = append(links, resolver.VerbLink{Depth: depth, Verbs: verbs})
	}
	byName := resolver.ResolveVerbs(links)

	out := make([]domain.Verb, 0, len(byName))
	for _, v := range byName {
		out = append(out, v)
	}
	return out, nil
}

// UpdateVerb replaces a verb's code by id.
func (s *Store) UpdateVerb(ctx context.Context, id int64, code ir.SExpr) error {
	data, err := json.Marshal(code)
	if err != nil {
		return fmt.Errorf("store: update verb: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE verbs SET code = ? WHERE id = ?", string(data), id); err != nil {
		return fmt.Errorf("store: update verb: %w", err)
	}
	return nil
}

// DeleteVerb removes a verb by id.
func (s *Store) DeleteVerb(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM verbs WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete verb: %w", err)
	}
	return nil
}

func scanVerb(row *sql.Row) (*domain.Verb, error) {
	var (
		id      int64
		eID     domain.EntityID
		name    string
		codeStr string
		reqCap  sql.NullString
	)
	if err := row.Scan(&id, &eID, &name, &codeStr, &reqCap); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan verb: %w", err)
	}
	var code ir.SExpr
	if err := json.Unmarshal([]byte(codeStr), &code); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	v := &domain.Verb{ID: id, EntityID: eID, Name: name, Code: code}
	if reqCap.Valid {
		v.RequiredCapability = &reqCap.String
	}
	return v, nil
}
