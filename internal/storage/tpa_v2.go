package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/model"
)

// CreateArtifact inserts a new ThoughtPatternArtifact. TPAs are never
// computed automatically from ingest; this is only ever called by a
// manual or test-exercised detection path per the spiral sub-policy.
func (db *DB) CreateArtifact(ctx context.Context, a model.ThoughtPatternArtifact) (model.ThoughtPatternArtifact, error) {
	if a.ID == "" {
		a.ID = idgen.Artifact()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	scopeJSON, err := json.Marshal(a.Scope)
	if err != nil {
		return model.ThoughtPatternArtifact{}, fmt.Errorf("storage: marshal artifact scope: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO spiral_artifacts_v2 (id, tenant_id, scope, pattern_type, confidence,
		 window_start, window_end, created_at, expires_at)
		 VALUES ($1, $2, $3::jsonb, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.TenantID, scopeJSON, a.PatternType, a.Confidence,
		a.WindowStart, a.WindowEnd, a.CreatedAt, a.ExpiresAt,
	)
	if err != nil {
		return model.ThoughtPatternArtifact{}, fmt.Errorf("storage: create artifact: %w", err)
	}
	return a, nil
}

// ListActiveArtifacts returns non-expired TPAs for a tenant scope, consulted
// only by the policy engine's spiral sub-policy.
func (db *DB) ListActiveArtifacts(ctx context.Context, tenantID string, scopeType model.ScopeType, scopeID string) ([]model.ThoughtPatternArtifact, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, tenant_id, scope, pattern_type, confidence, window_start, window_end,
		        created_at, expires_at
		 FROM spiral_artifacts_v2
		 WHERE tenant_id = $1 AND scope->>'scope_type' = $2 AND scope->>'scope_id' = $3
		 AND expires_at > now()`,
		tenantID, scopeType, scopeID,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []model.ThoughtPatternArtifact
	for rows.Next() {
		var a model.ThoughtPatternArtifact
		var scopeJSON []byte
		if err := rows.Scan(&a.ID, &a.TenantID, &scopeJSON, &a.PatternType, &a.Confidence,
			&a.WindowStart, &a.WindowEnd, &a.CreatedAt, &a.ExpiresAt); err != nil {
			return nil, fmt.Errorf("storage: scan artifact: %w", err)
		}
		if err := json.Unmarshal(scopeJSON, &a.Scope); err != nil {
			return nil, fmt.Errorf("storage: unmarshal artifact scope: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// SweepExpiredArtifacts deletes TPAs past their TTL. Run periodically by
// the background sweep loop.
func (db *DB) SweepExpiredArtifacts(ctx context.Context) (int64, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM spiral_artifacts_v2 WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("storage: sweep expired artifacts: %w", err)
	}
	return tag.RowsAffected(), nil
}
