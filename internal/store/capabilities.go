package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/oriys/weft/internal/domain"
)

// CreateCapability inserts a new capability owned by ownerID and returns
// its generated id. Capabilities are the only store record keyed by a
// UUID string rather than an autoincrement integer.
func (s *Store) CreateCapability(ctx context.Context, ownerID domain.EntityID, kind string, params map[string]any) (string, error) {
	if params == nil {
		params = map[string]any{}
	}
	id := uuid.New().String()
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("store: create capability: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO capabilities (id, owner_id, kind, params) VALUES (?, ?, ?, ?)",
		id, ownerID, kind, string(data)); err != nil {
		return "", fmt.Errorf("store: create capability: %w", err)
	}
	return id, nil
}

// GetCapability returns a capability by id.
func (s *Store) GetCapability(ctx context.Context, id string) (*domain.Capability, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, owner_id, kind, params FROM capabilities WHERE id = ?", id)
	return scanCapability(row)
}

// GetCapabilities returns every capability owned by ownerID.
func (s *Store) GetCapabilities(ctx context.Context, ownerID domain.EntityID) ([]domain.Capability, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, owner_id, kind, params FROM capabilities WHERE owner_id = ?", ownerID)
	if err != nil {
		return nil, fmt.Errorf("store: get capabilities: %w", err)
	}
	defer rows.Close()

	var caps []domain.Capability
	for rows.Next() {
		var (
			id, kind, paramsStr string
			owner               domain.EntityID
		)
		if err := rows.Scan(&id, &owner, &kind, &paramsStr); err != nil {
			return nil, fmt.Errorf("store: get capabilities scan: %w", err)
		}
		var params map[string]any
		if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
		}
		caps = append(caps, domain.Capability{ID: id, OwnerID: owner, Kind: kind, Params: params})
	}
	return caps, rows.Err()
}

// UpdateCapabilityOwner reassigns a capability to a new owner.
func (s *Store) UpdateCapabilityOwner(ctx context.Context, id string, newOwnerID domain.EntityID) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE capabilities SET owner_id = ? WHERE id = ?", newOwnerID, id); err != nil {
		return fmt.Errorf("store: update capability owner: %w", err)
	}
	return nil
}

// DeleteCapability removes a capability by id.
func (s *Store) DeleteCapability(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM capabilities WHERE id = ?", id); err != nil {
		return fmt.Errorf("store: delete capability: %w", err)
	}
	return nil
}

func scanCapability(row *sql.Row) (*domain.Capability, error) {
	var id, kind, paramsStr string
	var ownerID domain.EntityID
	if err := row.Scan(&id, &ownerID, &kind, &paramsStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: scan capability: %w", err)
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(paramsStr), &params); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &domain.Capability{ID: id, OwnerID: ownerID, Kind: kind, Params: params}, nil
}
