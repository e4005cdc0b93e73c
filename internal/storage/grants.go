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

// CreateGrant inserts a new v1 read grant. The caller must have already
// hashed the bearer token into grant.TokenHash; the clear token is never
// persisted.
func (db *DB) CreateGrant(ctx context.Context, grant model.ReadGrant) (model.ReadGrant, error) {
	if grant.ID == uuid.Nil {
		grant.ID = uuid.New()
	}
	if grant.CreatedAt.IsZero() {
		grant.CreatedAt = time.Now().UTC()
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO read_grants (id, token_hash, user_id, app_id, scope, domain,
		 purpose, purpose_class, max_age_days, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		grant.ID, grant.TokenHash, grant.UserID, grant.AppID, grant.Scope, grant.Domain,
		grant.Purpose, grant.PurposeClass, grant.MaxAgeDays, grant.CreatedAt, grant.ExpiresAt,
	)
	if err != nil {
		return model.ReadGrant{}, fmt.Errorf("storage: create grant: %w", err)
	}
	return grant, nil
}

// GetGrantByTokenHash retrieves a grant by its token hash. Returns ErrNotFound
// if no grant matches — callers must not distinguish "wrong token" from
// "revoked grant" in their response to avoid leaking grant existence.
func (db *DB) GetGrantByTokenHash(ctx context.Context, tokenHash string) (model.ReadGrant, error) {
	var g model.ReadGrant
	err := db.pool.QueryRow(ctx,
		`SELECT id, token_hash, user_id, app_id, scope, domain, purpose, purpose_class,
		        max_age_days, created_at, expires_at, revoked_at, revoke_reason
		 FROM read_grants WHERE token_hash = $1`, tokenHash,
	).Scan(
		&g.ID, &g.TokenHash, &g.UserID, &g.AppID, &g.Scope, &g.Domain, &g.Purpose, &g.PurposeClass,
		&g.MaxAgeDays, &g.CreatedAt, &g.ExpiresAt, &g.RevokedAt, &g.RevokeReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ReadGrant{}, fmt.Errorf("storage: grant: %w", ErrNotFound)
		}
		return model.ReadGrant{}, fmt.Errorf("storage: get grant: %w", err)
	}
	return g, nil
}

// GetGrant retrieves a grant by ID, scoped to the owning user for tenant isolation.
func (db *DB) GetGrant(ctx context.Context, userID string, id uuid.UUID) (model.ReadGrant, error) {
	var g model.ReadGrant
	err := db.pool.QueryRow(ctx,
		`SELECT id, token_hash, user_id, app_id, scope, domain, purpose, purpose_class,
		        max_age_days, created_at, expires_at, revoked_at, revoke_reason
		 FROM read_grants WHERE id = $1 AND user_id = $2`, id, userID,
	).Scan(
		&g.ID, &g.TokenHash, &g.UserID, &g.AppID, &g.Scope, &g.Domain, &g.Purpose, &g.PurposeClass,
		&g.MaxAgeDays, &g.CreatedAt, &g.ExpiresAt, &g.RevokedAt, &g.RevokeReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ReadGrant{}, fmt.Errorf("storage: grant %s: %w", id, ErrNotFound)
		}
		return model.ReadGrant{}, fmt.Errorf("storage: get grant: %w", err)
	}
	return g, nil
}

// RevokeGrant marks a grant revoked with a single-row update: the grant
// itself stops authorizing reads, but any memory already continued under it
// is not retroactively clawed back.
func (db *DB) RevokeGrant(ctx context.Context, userID string, id uuid.UUID, reason string) error {
	now := time.Now().UTC()
	tag, err := db.pool.Exec(ctx,
		`UPDATE read_grants SET revoked_at = $1, revoke_reason = $2
		 WHERE id = $3 AND user_id = $4 AND revoked_at IS NULL`,
		now, reason, id, userID,
	)
	if err != nil {
		return fmt.Errorf("storage: revoke grant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("storage: grant %s: %w", id, ErrNotFound)
	}
	return nil
}

// ListActiveGrants returns all non-expired, non-revoked grants for a user.
func (db *DB) ListActiveGrants(ctx context.Context, userID string) ([]model.ReadGrant, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, token_hash, user_id, app_id, scope, domain, purpose, purpose_class,
		        max_age_days, created_at, expires_at, revoked_at, revoke_reason
		 FROM read_grants
		 WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > now()
		 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list grants: %w", err)
	}
	defer rows.Close()

	var grants []model.ReadGrant
	for rows.Next() {
		var g model.ReadGrant
		if err := rows.Scan(
			&g.ID, &g.TokenHash, &g.UserID, &g.AppID, &g.Scope, &g.Domain, &g.Purpose, &g.PurposeClass,
			&g.MaxAgeDays, &g.CreatedAt, &g.ExpiresAt, &g.RevokedAt, &g.RevokeReason,
		); err != nil {
			return nil, fmt.Errorf("storage: scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}
