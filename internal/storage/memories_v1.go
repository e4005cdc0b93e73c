package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// CreateMemory inserts a new v1 memory row.
func (db *DB) CreateMemory(ctx context.Context, m model.Memory) (model.Memory, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO memories (id, user_id, scope, domain, value, value_shape, source,
		 ttl_days, created_at, expires_at, app_id)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.UserID, m.Scope, m.Domain, []byte(m.ValueJSON), m.ValueShape, m.Source,
		m.TTLDays, m.CreatedAt, m.ExpiresAt, m.AppID,
	)
	if err != nil {
		return model.Memory{}, fmt.Errorf("storage: create memory: %w", err)
	}
	return m, nil
}

// GetMemory retrieves a v1 memory by ID, scoped to its owning user.
func (db *DB) GetMemory(ctx context.Context, userID string, id uuid.UUID) (model.Memory, error) {
	var m model.Memory
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, scope, domain, value, value_shape, source, ttl_days,
		        created_at, expires_at, app_id
		 FROM memories WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(
		&m.ID, &m.UserID, &m.Scope, &m.Domain, &m.ValueJSON, &m.ValueShape, &m.Source,
		&m.TTLDays, &m.CreatedAt, &m.ExpiresAt, &m.AppID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Memory{}, fmt.Errorf("storage: memory %s: %w", id, ErrNotFound)
		}
		return model.Memory{}, fmt.Errorf("storage: get memory: %w", err)
	}
	return m, nil
}

// ListActiveMemories returns non-expired memories for a user, optionally
// narrowed to a scope and domain. Either filter may be the zero value to
// mean "any".
func (db *DB) ListActiveMemories(ctx context.Context, userID string, scope model.Scope, domain string) ([]model.Memory, error) {
	query := `SELECT id, user_id, scope, domain, value, value_shape, source, ttl_days,
	                  created_at, expires_at, app_id
	           FROM memories
	           WHERE user_id = $1 AND (expires_at IS NULL OR expires_at > now())`
	args := []any{userID}

	if scope != "" {
		args = append(args, scope)
		query += fmt.Sprintf(" AND scope = $%d", len(args))
	}
	if domain != "" {
		args = append(args, domain)
		query += fmt.Sprintf(" AND domain = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list memories: %w", err)
	}
	defer rows.Close()

	var memories []model.Memory
	for rows.Next() {
		var m model.Memory
		if err := rows.Scan(
			&m.ID, &m.UserID, &m.Scope, &m.Domain, &m.ValueJSON, &m.ValueShape, &m.Source,
			&m.TTLDays, &m.CreatedAt, &m.ExpiresAt, &m.AppID,
		); err != nil {
			return nil, fmt.Errorf("storage: scan memory: %w", err)
		}
		memories = append(memories, m)
	}
	return memories, rows.Err()
}

// DeleteMemory permanently removes a v1 memory. v1 revoke does not call it;
// revoke only ends the read grant.
func (db *DB) DeleteMemory(ctx context.Context, userID string, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx,
		`DELETE FROM memories WHERE id = $1 AND user_id = $2`, id, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: delete memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: memory %s: %w", id, ErrNotFound)
	}
	return nil
}

// ReplaceMemory updates an existing memory's value in place. The v1 merge
// path computes merged values on read and does not write them back here.
func (db *DB) ReplaceMemory(ctx context.Context, m model.Memory) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE memories SET value = $1::jsonb, value_shape = $2, source = $3,
		 ttl_days = $4, expires_at = $5
		 WHERE id = $6 AND user_id = $7`,
		[]byte(m.ValueJSON), m.ValueShape, m.Source, m.TTLDays, m.ExpiresAt, m.ID, m.UserID,
	)
	if err != nil {
		return fmt.Errorf("storage: replace memory: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: memory %s: %w", m.ID, ErrNotFound)
	}
	return nil
}
