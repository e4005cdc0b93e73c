package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/model"
)

func createMemoryObject(ctx context.Context, exec pgxExecer, m model.MemoryObject) (model.MemoryObject, error) {
	if m.ID == "" {
		m.ID = idgen.Memory()
	}

	payload, err := json.Marshal(m)
	if err != nil {
		return model.MemoryObject{}, fmt.Errorf("storage: marshal memory object: %w", err)
	}

	_, err = exec.Exec(ctx,
		`INSERT INTO memories_v2 (id, tenant_id, app_id, type, truth_mode, state,
		 scope_type, scope_id, created_at, updated_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb)`,
		m.ID, m.TenantID, m.AppID, m.Type, m.TruthMode, m.State,
		m.Scope.ScopeType, m.Scope.ScopeID, m.CreatedAt, m.UpdatedAt, payload,
	)
	if err != nil {
		return model.MemoryObject{}, fmt.Errorf("storage: create memory object: %w", err)
	}
	return m, nil
}

// CreateMemoryObject inserts a new v2 memory using the connection pool. The
// full object is stored as a JSONB payload; scope, type, and state are
// projected into indexed columns so the policy engine and retrieval path can
// filter without decoding JSON. Use CreateMemoryObjectTx when the insert must
// be atomic with a derived impact/link/audit row.
func (db *DB) CreateMemoryObject(ctx context.Context, m model.MemoryObject) (model.MemoryObject, error) {
	return createMemoryObject(ctx, db.pool, m)
}

// CreateMemoryObjectTx inserts a new v2 memory within an existing transaction.
func CreateMemoryObjectTx(ctx context.Context, tx pgx.Tx, m model.MemoryObject) (model.MemoryObject, error) {
	return createMemoryObject(ctx, tx, m)
}

func scanMemoryObjectPayload(row pgx.Row) (model.MemoryObject, error) {
	var payload []byte
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.MemoryObject{}, fmt.Errorf("storage: memory object: %w", ErrNotFound)
		}
		return model.MemoryObject{}, fmt.Errorf("storage: scan memory object: %w", err)
	}
	var m model.MemoryObject
	if err := json.Unmarshal(payload, &m); err != nil {
		return model.MemoryObject{}, fmt.Errorf("storage: unmarshal memory object: %w", err)
	}
	return m, nil
}

// GetMemoryObject retrieves a v2 memory by ID, scoped to its tenant.
func (db *DB) GetMemoryObject(ctx context.Context, tenantID, id string) (model.MemoryObject, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT payload FROM memories_v2 WHERE id = $1 AND tenant_id = $2`, id, tenantID,
	)
	return scanMemoryObjectPayload(row)
}

// MemoryObjectFilter narrows a v2 memory listing. Zero-valued fields mean "any".
type MemoryObjectFilter struct {
	ScopeType model.ScopeType
	ScopeID   string
	Types     []model.MemoryType
	States    []model.MemoryState
	Limit     int
}

// ListMemoryObjects returns memories matching filter within a tenant, most
// recently created first.
func (db *DB) ListMemoryObjects(ctx context.Context, tenantID string, filter MemoryObjectFilter) ([]model.MemoryObject, error) {
	query := `SELECT payload FROM memories_v2 WHERE tenant_id = $1`
	args := []any{tenantID}

	if filter.ScopeType != "" {
		args = append(args, filter.ScopeType)
		query += fmt.Sprintf(" AND scope_type = $%d", len(args))
	}
	if filter.ScopeID != "" {
		args = append(args, filter.ScopeID)
		query += fmt.Sprintf(" AND scope_id = $%d", len(args))
	}
	if len(filter.Types) > 0 {
		args = append(args, filter.Types)
		query += fmt.Sprintf(" AND type = ANY($%d)", len(args))
	}
	if len(filter.States) > 0 {
		args = append(args, filter.States)
		query += fmt.Sprintf(" AND state = ANY($%d)", len(args))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list memory objects: %w", err)
	}
	defer rows.Close()

	var out []model.MemoryObject
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("storage: scan memory object: %w", err)
		}
		var m model.MemoryObject
		if err := json.Unmarshal(payload, &m); err != nil {
			return nil, fmt.Errorf("storage: unmarshal memory object: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func updateMemoryObject(ctx context.Context, exec pgxExecer, m model.MemoryObject) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("storage: marshal memory object: %w", err)
	}

	tag, err := exec.Exec(ctx,
		`UPDATE memories_v2 SET type = $1, truth_mode = $2, state = $3,
		 scope_type = $4, scope_id = $5, updated_at = $6, payload = $7::jsonb
		 WHERE id = $8 AND tenant_id = $9`,
		m.Type, m.TruthMode, m.State, m.Scope.ScopeType, m.Scope.ScopeID, m.UpdatedAt,
		payload, m.ID, m.TenantID,
	)
	if err != nil {
		return fmt.Errorf("storage: update memory object: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: memory object %s: %w", m.ID, ErrNotFound)
	}
	return nil
}

// UpdateMemoryObject overwrites a v2 memory's full payload and projected
// columns using the connection pool. Used by seal/reinforce/recall/dispute/
// attest, and by revoke, which updates the parent and each child with a
// separate call rather than in one transaction.
func (db *DB) UpdateMemoryObject(ctx context.Context, m model.MemoryObject) error {
	return updateMemoryObject(ctx, db.pool, m)
}

// UpdateMemoryObjectTx overwrites a v2 memory within an existing transaction.
func UpdateMemoryObjectTx(ctx context.Context, tx pgx.Tx, m model.MemoryObject) error {
	return updateMemoryObject(ctx, tx, m)
}
