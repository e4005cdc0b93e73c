package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Scope is one of the six fixed v1 memory categories.
type Scope string

const (
	ScopePreferences  Scope = "preferences"
	ScopeConstraints  Scope = "constraints"
	ScopeCommunication Scope = "communication"
	ScopeAccessibility Scope = "accessibility"
	ScopeSchedule     Scope = "schedule"
	ScopeAttention    Scope = "attention"
)

// AllScopes lists the six legal v1 scopes, in the canonical order used
// throughout error messages and the policy matrix.
var AllScopes = []Scope{
	ScopePreferences, ScopeConstraints, ScopeCommunication,
	ScopeAccessibility, ScopeSchedule, ScopeAttention,
}

// ValidScope reports whether s is one of the six fixed scopes.
func ValidScope(s Scope) bool {
	for _, v := range AllScopes {
		if v == s {
			return true
		}
	}
	return false
}

// ValueShape is the detected structural shape of a memory's value payload.
// A tagged sum in spirit (REDESIGN FLAGS §9): the detector returns exactly
// one of these or a typed error, never a duck-typed guess.
type ValueShape string

const (
	ShapeKVMap            ValueShape = "kv_map"
	ShapeLikesDislikes    ValueShape = "likes_dislikes"
	ShapeRulesList        ValueShape = "rules_list"
	ShapeScheduleWindows  ValueShape = "schedule_windows"
	ShapeBooleanFlags     ValueShape = "boolean_flags"
	ShapeAttentionSettings ValueShape = "attention_settings"
)

// Source is the provenance of a v1 memory write.
type Source string

const (
	SourceExplicitUserInput Source = "explicit_user_input"
	SourceUserSetting       Source = "user_setting"
)

// Memory is a v1 memory row: a single typed fact about a user within one of
// the six fixed scopes. Never updated after creation; filtered out once
// ExpiresAt has passed. No explicit deletion in the core.
type Memory struct {
	ID        uuid.UUID       `json:"id"`
	UserID    string          `json:"user_id"`
	Scope     Scope           `json:"scope"`
	Domain    string          `json:"domain,omitempty"`
	ValueJSON json.RawMessage `json:"value_json"`
	ValueShape ValueShape     `json:"value_shape"`
	Source    Source          `json:"source"`
	TTLDays   int             `json:"ttl_days"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	AppID     uuid.UUID       `json:"app_id"`
}

// Active reports whether the memory has not yet expired as of now.
func (m Memory) Active(now time.Time) bool {
	return m.ExpiresAt.After(now)
}
