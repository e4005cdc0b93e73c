package mnemex

import "time"

// Scope mirrors model.ScopeRef for use in extension interfaces.
// No internal package imports — safe to use from outside the module.
type Scope struct {
	Type  string
	ID    string
	Flags map[string]any
}

// Memory is the public representation of a v2 MemoryObject. It is a
// curated view of internal/model.MemoryObject: sealed memories never
// populate Text, regardless of caller.
type Memory struct {
	ID        string
	TenantID  string
	Scope     Scope
	Type      string // event | impact | seed
	TruthMode string
	State     string // active | restricted | sealed | dormant | revoked | tombstoned
	Strength  float64
	Text      string // always empty when State == "sealed"
	AppID     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccessRecord is the public view of an AccessLog row, for hooks that want
// to observe every retrieval decision without importing internal/model.
type AccessRecord struct {
	LogID       string
	TenantID    string
	Purpose     string
	Allowed     bool
	ReturnedIDs []string
	DeniedIDs   []string
	Time        time.Time
}
