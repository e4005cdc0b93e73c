package model

import "time"

// Purpose is the v2 purpose a caller declares for a retrieval or reconstruction.
type Purpose string

const (
	PurposeChatResponse           Purpose = "chat_response"
	PurposeTaskExecutionV2        Purpose = "task_execution"
	PurposeSafetyFiltering        Purpose = "safety_filtering"
	PurposeReflectionRequestedByUser Purpose = "reflection_requested_by_user"
	PurposeSupportAgentReview     Purpose = "support_agent_review"
	PurposeComplianceAudit        Purpose = "compliance_audit"
	PurposeDebuggingReplay        Purpose = "debugging_replay"
)

// Operation is the kind of call an AccessLog row records.
type Operation string

const (
	OpIngest      Operation = "ingest"
	OpQuery       Operation = "query"
	OpReconstruct Operation = "reconstruct"
	OpToolGate    Operation = "tool_gate"
	OpReinforce   Operation = "reinforce"
	OpRecall      Operation = "recall"
	OpRevoke      Operation = "revoke"
)

// Caller identifies who made a v2 call, for the AccessLog record.
type Caller struct {
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id,omitempty"`
	IP       string `json:"ip,omitempty"`
}

// AccessQuery captures the query text and operation kind for an AccessLog row.
type AccessQuery struct {
	Text string    `json:"text,omitempty"`
	Op   Operation `json:"op"`
}

// AccessDecision captures the outcome of a v2 access for the AccessLog row.
type AccessDecision struct {
	Allowed      bool     `json:"allowed"`
	ReturnedIDs  []string `json:"returned_ids,omitempty"`
	DeniedIDs    []string `json:"denied_ids,omitempty"`
	MatchedRules []string `json:"matched_rules,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
}

// AccessLog is the immutable v2 record of every policy-gated access:
// ingest, query, reconstruct, tool_gate, reinforce, recall, revoke.
type AccessLog struct {
	ID       int64     `json:"-"`
	LogID    string    `json:"log_id"`
	Time     time.Time `json:"time"`
	TenantID string    `json:"tenant_id"`
	Caller   Caller    `json:"caller"`
	Scope    ScopeRef  `json:"scope"`
	Purpose  Purpose   `json:"purpose"`
	Query    AccessQuery    `json:"query"`
	Decision AccessDecision `json:"decision"`
}
