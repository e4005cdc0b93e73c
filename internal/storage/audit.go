package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// pgxExecer is the subset of pgx.Tx / pgxpool.Pool used for INSERT execution.
// Both *pgxpool.Pool and pgx.Tx satisfy this interface.
type pgxExecer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func insertAuditEvent(ctx context.Context, exec pgxExecer, e model.AuditEvent) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Meta == nil {
		e.Meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(e.Meta)
	if err != nil {
		return fmt.Errorf("storage: marshal audit event meta: %w", err)
	}

	_, err = exec.Exec(ctx,
		`INSERT INTO audit_events (
		     id, timestamp, event_type, user_id, app_id, scope, domain,
		     purpose, purpose_class, memory_ids, revocation_grant_id, reason_code, meta
		 )
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13::jsonb)`,
		e.ID, e.Timestamp, e.EventType, e.UserID, e.AppID, e.Scope, e.Domain,
		e.Purpose, e.PurposeClass, e.MemoryIDs, e.RevocationGrantID, e.ReasonCode, metaJSON,
	)
	if err != nil {
		return fmt.Errorf("storage: insert audit event: %w", err)
	}
	return nil
}

// InsertAuditEvent appends a v1 audit event using the connection pool.
// Use InsertAuditEventTx when the event must be atomic with a mutation.
func (db *DB) InsertAuditEvent(ctx context.Context, e model.AuditEvent) error {
	return insertAuditEvent(ctx, db.pool, e)
}

// InsertAuditEventTx appends a v1 audit event within an existing transaction.
// If the transaction rolls back, the audit entry is also rolled back —
// mutations never persist without their audit record.
func InsertAuditEventTx(ctx context.Context, tx pgx.Tx, e model.AuditEvent) error {
	return insertAuditEvent(ctx, tx, e)
}

// ListAuditEvents returns audit events for a user's memories, most recent first.
func (db *DB) ListAuditEvents(ctx context.Context, userID string, limit, offset int) ([]model.AuditEvent, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, timestamp, event_type, user_id, app_id, scope, domain,
		        purpose, purpose_class, memory_ids, revocation_grant_id, reason_code, meta
		 FROM audit_events
		 WHERE user_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2 OFFSET $3`, userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list audit events: %w", err)
	}
	defer rows.Close()

	var events []model.AuditEvent
	for rows.Next() {
		var e model.AuditEvent
		var metaJSON []byte
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.EventType, &e.UserID, &e.AppID, &e.Scope, &e.Domain,
			&e.Purpose, &e.PurposeClass, &e.MemoryIDs, &e.RevocationGrantID, &e.ReasonCode, &metaJSON,
		); err != nil {
			return nil, fmt.Errorf("storage: scan audit event: %w", err)
		}
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Meta); err != nil {
				return nil, fmt.Errorf("storage: unmarshal audit event meta: %w", err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
