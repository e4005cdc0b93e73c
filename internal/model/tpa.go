package model

import "time"

// PatternType classifies the cognitive pattern a ThoughtPatternArtifact marks.
type PatternType string

const (
	PatternCatastrophicProjection PatternType = "catastrophic_projection"
	PatternRunawayCounterfactual  PatternType = "runaway_counterfactual"
	PatternCertaintyInflation     PatternType = "certainty_inflation"
	PatternFutureCollapse         PatternType = "future_collapse"
	PatternNegativeFeedbackLoop   PatternType = "negative_feedback_loop"
)

// ThoughtPatternArtifact (TPA) is an ephemeral, scope-local, TTL-bound marker
// of a detected cognitive pattern. Never exported in any response; consulted
// only by the policy engine's spiral sub-policy to tighten thresholds.
type ThoughtPatternArtifact struct {
	ID          string      `json:"id"`
	TenantID    string      `json:"tenant_id"`
	Scope       ScopeRef    `json:"scope"`
	PatternType PatternType `json:"pattern_type"`
	Confidence  float64     `json:"confidence"`
	WindowStart time.Time   `json:"window_start"`
	WindowEnd   time.Time   `json:"window_end"`
	CreatedAt   time.Time   `json:"created_at"`
	ExpiresAt   time.Time   `json:"expires_at"`
}

// Active reports whether the artifact's TTL has not yet elapsed.
func (t ThoughtPatternArtifact) Active(now time.Time) bool { return t.ExpiresAt.After(now) }
