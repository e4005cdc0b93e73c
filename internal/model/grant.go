package model

import (
	"time"

	"github.com/google/uuid"
)

// PurposeClass is the normalized intent of a v1 read, derived from a
// free-text purpose string by keyword mapping (see internal/policy.NormalizePurpose).
type PurposeClass string

const (
	PurposeContentGeneration  PurposeClass = "content_generation"
	PurposeRecommendation     PurposeClass = "recommendation"
	PurposeScheduling         PurposeClass = "scheduling"
	PurposeUIRendering        PurposeClass = "ui_rendering"
	PurposeNotificationDelivery PurposeClass = "notification_delivery"
	PurposeTaskExecution      PurposeClass = "task_execution"
)

// ReadGrant is a 24-hour bearer-token record authorizing repeated v1 reads
// under fixed parameters. The clear token is returned exactly once, at
// creation; the store holds only TokenHash.
type ReadGrant struct {
	ID           uuid.UUID    `json:"id"`
	TokenHash    string       `json:"-"` // SHA-256 hex of the bearer token; never serialized.
	UserID       string       `json:"user_id"`
	AppID        uuid.UUID    `json:"app_id"`
	Scope        Scope        `json:"scope"`
	Domain       string       `json:"domain,omitempty"`
	Purpose      string       `json:"purpose"`
	PurposeClass PurposeClass `json:"purpose_class"`
	MaxAgeDays   *int         `json:"max_age_days,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	RevokedAt    *time.Time   `json:"revoked_at,omitempty"`
	RevokeReason string       `json:"revoke_reason,omitempty"`
}

// Revoked reports whether the grant has been explicitly revoked.
func (g ReadGrant) Revoked() bool { return g.RevokedAt != nil }

// Expired reports whether the grant's TTL has elapsed as of now.
func (g ReadGrant) Expired(now time.Time) bool { return !g.ExpiresAt.After(now) }
