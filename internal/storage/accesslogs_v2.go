package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/integrity"
	"github.com/mnemex-labs/mnemex/internal/model"
)

func insertAccessLog(ctx context.Context, exec pgxExecer, l model.AccessLog) error {
	if l.LogID == "" {
		l.LogID = idgen.AccessLog()
	}
	if l.Time.IsZero() {
		l.Time = time.Now().UTC()
	}

	callerJSON, err := json.Marshal(l.Caller)
	if err != nil {
		return fmt.Errorf("storage: marshal access log caller: %w", err)
	}
	scopeJSON, err := json.Marshal(l.Scope)
	if err != nil {
		return fmt.Errorf("storage: marshal access log scope: %w", err)
	}
	queryJSON, err := json.Marshal(l.Query)
	if err != nil {
		return fmt.Errorf("storage: marshal access log query: %w", err)
	}
	decisionJSON, err := json.Marshal(l.Decision)
	if err != nil {
		return fmt.Errorf("storage: marshal access log decision: %w", err)
	}
	contentHash := integrity.ComputeAccessLogHash(l)

	_, err = exec.Exec(ctx,
		`INSERT INTO access_logs_v2 (log_id, time, tenant_id, caller, scope, purpose, query, decision, content_hash)
		 VALUES ($1, $2, $3, $4::jsonb, $5::jsonb, $6, $7::jsonb, $8::jsonb, $9)`,
		l.LogID, l.Time, l.TenantID, callerJSON, scopeJSON, l.Purpose, queryJSON, decisionJSON, contentHash,
	)
	if err != nil {
		return fmt.Errorf("storage: insert access log: %w", err)
	}
	return nil
}

// InsertAccessLog appends an immutable v2 access record using the connection
// pool: every ingest, query, reconstruct, tool_gate, reinforce, recall, and
// revoke is logged here regardless of outcome. Use InsertAccessLogTx to keep
// it atomic with the mutation it records.
func (db *DB) InsertAccessLog(ctx context.Context, l model.AccessLog) error {
	return insertAccessLog(ctx, db.pool, l)
}

// InsertAccessLogTx appends an access log row within an existing transaction.
func InsertAccessLogTx(ctx context.Context, tx pgx.Tx, l model.AccessLog) error {
	return insertAccessLog(ctx, tx, l)
}

// GetAccessLog retrieves one access log row by its log_id, scoped to tenant.
// Used by /explain and /replay to resolve the call being inspected. Returns
// ErrTampered if the row's stored content hash no longer matches its
// recomputed hash.
func (db *DB) GetAccessLog(ctx context.Context, tenantID, logID string) (model.AccessLog, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT log_id, time, tenant_id, caller, scope, purpose, query, decision, content_hash
		 FROM access_logs_v2 WHERE log_id = $1 AND tenant_id = $2`, logID, tenantID,
	)

	var l model.AccessLog
	var callerJSON, scopeJSON, queryJSON, decisionJSON []byte
	var contentHash string
	if err := row.Scan(&l.LogID, &l.Time, &l.TenantID, &callerJSON, &scopeJSON, &l.Purpose,
		&queryJSON, &decisionJSON, &contentHash); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.AccessLog{}, fmt.Errorf("storage: access log %s: %w", logID, ErrNotFound)
		}
		return model.AccessLog{}, fmt.Errorf("storage: scan access log: %w", err)
	}
	if err := json.Unmarshal(callerJSON, &l.Caller); err != nil {
		return model.AccessLog{}, fmt.Errorf("storage: unmarshal access log caller: %w", err)
	}
	if err := json.Unmarshal(scopeJSON, &l.Scope); err != nil {
		return model.AccessLog{}, fmt.Errorf("storage: unmarshal access log scope: %w", err)
	}
	if err := json.Unmarshal(queryJSON, &l.Query); err != nil {
		return model.AccessLog{}, fmt.Errorf("storage: unmarshal access log query: %w", err)
	}
	if err := json.Unmarshal(decisionJSON, &l.Decision); err != nil {
		return model.AccessLog{}, fmt.Errorf("storage: unmarshal access log decision: %w", err)
	}
	if !integrity.VerifyAccessLogHash(contentHash, l) {
		return model.AccessLog{}, fmt.Errorf("storage: access log %s: %w", logID, ErrTampered)
	}
	return l, nil
}

// ListAccessLogs returns access log rows for a tenant, most recent first.
// /replay does not use it; it fetches one row with GetAccessLog.
func (db *DB) ListAccessLogs(ctx context.Context, tenantID string, limit, offset int) ([]model.AccessLog, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT log_id, time, tenant_id, caller, scope, purpose, query, decision
		 FROM access_logs_v2
		 WHERE tenant_id = $1
		 ORDER BY time DESC
		 LIMIT $2 OFFSET $3`, tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list access logs: %w", err)
	}
	defer rows.Close()

	var logs []model.AccessLog
	for rows.Next() {
		var l model.AccessLog
		var callerJSON, scopeJSON, queryJSON, decisionJSON []byte
		if err := rows.Scan(&l.LogID, &l.Time, &l.TenantID, &callerJSON, &scopeJSON, &l.Purpose,
			&queryJSON, &decisionJSON); err != nil {
			return nil, fmt.Errorf("storage: scan access log: %w", err)
		}
		if err := json.Unmarshal(callerJSON, &l.Caller); err != nil {
			return nil, fmt.Errorf("storage: unmarshal access log caller: %w", err)
		}
		if err := json.Unmarshal(scopeJSON, &l.Scope); err != nil {
			return nil, fmt.Errorf("storage: unmarshal access log scope: %w", err)
		}
		if err := json.Unmarshal(queryJSON, &l.Query); err != nil {
			return nil, fmt.Errorf("storage: unmarshal access log query: %w", err)
		}
		if err := json.Unmarshal(decisionJSON, &l.Decision); err != nil {
			return nil, fmt.Errorf("storage: unmarshal access log decision: %w", err)
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}
