package model

import (
	"encoding/json"
	"time"
)

// WriteMemoryRequest is the request body for POST /memory.
type WriteMemoryRequest struct {
	UserID  string          `json:"user_id"`
	Scope   Scope           `json:"scope"`
	Domain  string          `json:"domain,omitempty"`
	Source  Source          `json:"source"`
	TTLDays int             `json:"ttl_days"`
	Value   json.RawMessage `json:"value_json"`
}

// WriteMemoryResponse is the response for POST /memory.
type WriteMemoryResponse struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Scope     Scope     `json:"scope"`
	Domain    string    `json:"domain,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ReadMemoryRequest is the request body for POST /memory/read.
type ReadMemoryRequest struct {
	UserID     string `json:"user_id"`
	Scope      Scope  `json:"scope"`
	Domain     string `json:"domain,omitempty"`
	Purpose    string `json:"purpose"`
	MaxAgeDays *int   `json:"max_age_days,omitempty"`
}

// ReadMemoryResponse is the response for POST /memory/read and
// POST /memory/read/continue (spec §6.1 — same shape, same token returned).
type ReadMemoryResponse struct {
	SummaryText     string          `json:"summary_text"`
	SummaryStruct   json.RawMessage `json:"summary_struct"`
	Confidence      float64         `json:"confidence"`
	RevocationToken string          `json:"revocation_token"`
	ExpiresAt       time.Time       `json:"expires_at"`
}

// ContinueMemoryRequest is the request body for POST /memory/read/continue.
type ContinueMemoryRequest struct {
	RevocationToken string `json:"revocation_token"`
	MaxAgeDays      *int   `json:"max_age_days,omitempty"`
}

// RevokeMemoryRequest is the request body for POST /memory/revoke.
type RevokeMemoryRequest struct {
	RevocationToken string `json:"revocation_token"`
}

// RevokeMemoryResponse is the response for POST /memory/revoke.
type RevokeMemoryResponse struct {
	Revoked   bool      `json:"revoked"`
	RevokedAt time.Time `json:"revoked_at"`
}
