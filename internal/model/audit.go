package model

import (
	"time"

	"github.com/google/uuid"
)

// AuditEventType classifies a v1 AuditEvent.
type AuditEventType string

const (
	AuditMemoryWrite  AuditEventType = "MEMORY_WRITE"
	AuditMemoryRead   AuditEventType = "MEMORY_READ"
	AuditMemoryRevoke AuditEventType = "MEMORY_REVOKE"
	AuditContinue     AuditEventType = "CONTINUE"
	AuditPolicyDenied AuditEventType = "POLICY_DENIED"
)

// AuditEvent is an append-only record of every v1 ingest, read, continue,
// revoke, and policy denial. Never mutated, never deleted.
type AuditEvent struct {
	ID                uuid.UUID      `json:"id"`
	Timestamp         time.Time      `json:"timestamp"`
	EventType         AuditEventType `json:"event_type"`
	UserID            string         `json:"user_id"`
	AppID             uuid.UUID      `json:"app_id"`
	Scope             Scope          `json:"scope"`
	Domain            string         `json:"domain,omitempty"`
	Purpose           string         `json:"purpose,omitempty"`
	PurposeClass      PurposeClass   `json:"purpose_class,omitempty"`
	MemoryIDs         []uuid.UUID    `json:"memory_ids,omitempty"`
	RevocationGrantID *uuid.UUID     `json:"revocation_grant_id,omitempty"`
	ReasonCode        string         `json:"reason_code,omitempty"`
	Meta              map[string]any `json:"meta,omitempty"`
}
