package model

// PolicyTrace is the full decision trace produced by every policy
// evaluation: the matched rule IDs in declared order, the policy version
// that produced them, and the reasons behind any denial.
type PolicyTrace struct {
	PolicyVersion  string   `json:"policy_version"`
	MatchedRules   []string `json:"matched_rules"`
	FinalDecision  string   `json:"final_decision"`
	DeniedReasons  []string `json:"denied_reasons,omitempty"`
}

// IngestDecision is the outcome of evaluating a candidate memory at ingest time.
type IngestDecision struct {
	Allowed       bool
	State         MemoryState
	DeriveImpacts bool
	DeriveSeeds   bool
	Trace         PolicyTrace
}

// QueryDecision is the outcome of evaluating one memory row during a query.
type QueryDecision struct {
	Allowed         bool
	IncludeInPrompt bool
	MatchedRules    []string
	DeniedReasons   []string
}
