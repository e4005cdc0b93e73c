package model

import "time"

// CreateMemoryRequest is the request body for POST /memories: a full
// MemoryObject draft (spec §6.1). TenantID, Scope, and Type are required;
// everything else defaults the way Service.Create documents.
type CreateMemoryRequest struct {
	TenantID              string                `json:"tenant_id"`
	Scope                 ScopeRef              `json:"scope"`
	Type                  MemoryType            `json:"type"`
	TruthMode             TruthMode             `json:"truth_mode"`
	Sensitivity           Sensitivity           `json:"sensitivity,omitempty"`
	Ownership             Ownership             `json:"ownership,omitempty"`
	Temporal              Temporal              `json:"temporal,omitempty"`
	Content               Content               `json:"content"`
	Affect                Affect                `json:"affect,omitempty"`
	Strength              Strength              `json:"strength,omitempty"`
	ReconsolidationPolicy ReconsolidationPolicy `json:"reconsolidation_policy,omitempty"`
	ImpactPayload         *ImpactPayload        `json:"impact_payload,omitempty"`
	SeedPayload           *SeedPayload          `json:"seed_payload,omitempty"`
	Source                SourceKind            `json:"source"`
}

// CreateMemoryResponse is the response for POST /memories.
type CreateMemoryResponse struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	State       MemoryState `json:"state"`
	CreatedAt   time.Time   `json:"created_at"`
	PolicyTrace PolicyTrace `json:"policy_trace"`
}

// QueryMemoriesRequest is the request body for POST /memories/query.
type QueryMemoriesRequest struct {
	TenantID  string         `json:"tenant_id"`
	Scope     ScopeRef       `json:"scope"`
	Purpose   Purpose        `json:"purpose"`
	QueryText string         `json:"query_text,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
	Limit     int            `json:"limit,omitempty"`
}

// QueryMemoriesResponse is the response for POST /memories/query.
type QueryMemoriesResponse struct {
	MemoryIDs   []string     `json:"memory_ids"`
	Impacts     []Constraint `json:"impacts"`
	Seeds       []string     `json:"seeds"`
	Events      []string     `json:"events"`
	DeniedIDs   []string     `json:"denied_ids,omitempty"`
	PolicyTrace PolicyTrace  `json:"policy_trace"`
	AccessLogID string       `json:"access_log_id"`
}

// ReconstructRequest is the request body for POST /reconstruct.
type ReconstructRequest struct {
	TenantID      string   `json:"tenant_id"`
	Scope         ScopeRef `json:"scope"`
	Purpose       Purpose  `json:"purpose"`
	QueryText     string   `json:"query_text,omitempty"`
	IncludeEvents bool     `json:"include_events"`
}

// ReconstructResponseBody is the response for POST /reconstruct.
type ReconstructResponseBody struct {
	ReconstructedContext string          `json:"reconstructed_context"`
	Confidence           float64         `json:"confidence"`
	Sources              ReconstructSources `json:"sources"`
	PolicyTrace          PolicyTrace     `json:"policy_trace"`
	AccessLogID          string          `json:"access_log_id"`
}

// ReconstructSources mirrors internal/reconstruct.Sources for the wire response.
type ReconstructSources struct {
	Impacts []string `json:"impacts"`
	Seeds   []string `json:"seeds"`
	Events  []string `json:"events,omitempty"`
}

// ReinforceRequest is the request body for POST /memories/{id}/reinforce.
type ReinforceRequest struct {
	TenantID string  `json:"tenant_id"`
	Delta    float64 `json:"delta,omitempty"`
}

// RecallRequest is the request body for POST /memories/{id}/recall.
type RecallRequest struct {
	TenantID              string              `json:"tenant_id"`
	AppendAffectHistory   *AffectHistoryEntry `json:"append_affect_history,omitempty"`
	RelabelAffect         *Affect             `json:"relabel_affect,omitempty"`
	UpdateClaimConfidence *float64            `json:"update_claim_confidence,omitempty"`
}

// MemoryTransitionResponse is the response shared by seal/revoke/reinforce/
// recall/dispute/attest: the updated memory's relevant fields and a timestamp.
type MemoryTransitionResponse struct {
	ID           string      `json:"id"`
	State        MemoryState `json:"state"`
	DisputeState DisputeState `json:"dispute_state,omitempty"`
	Strength     *Strength   `json:"strength,omitempty"`
	PropagatedTo []string    `json:"propagated_to,omitempty"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ExplainRequest is the request body for POST /explain.
type ExplainRequest struct {
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id"`
}

// ExplainResponseBody is the response for POST /explain.
type ExplainResponseBody struct {
	Log         AccessLog      `json:"log"`
	Memories    []MemoryObject `json:"memories"`
	Constraints []Constraint   `json:"constraints"`
}

// ReplayRequest is the request body for POST /replay.
type ReplayRequest struct {
	TenantID string `json:"tenant_id"`
	LogID    string `json:"log_id"`
	Limit    *int   `json:"limit,omitempty"`
}

// ReplayResponseBody is the response for POST /replay.
type ReplayResponseBody struct {
	OriginalLog AccessLog              `json:"original_log"`
	Recomputed  QueryMemoriesResponse  `json:"recomputed"`
}
