package model

import "time"

// MemoryType classifies a v2 MemoryObject. Immutable after create.
type MemoryType string

const (
	MemoryEvent  MemoryType = "event"
	MemoryImpact MemoryType = "impact"
	MemorySeed   MemoryType = "seed"
)

// TruthMode is the epistemic status of a memory. Immutable after create;
// gates tool-execution eligibility regardless of policy defaults.
type TruthMode string

const (
	TruthFactualClaim        TruthMode = "factual_claim"
	TruthSubjectiveExperience TruthMode = "subjective_experience"
	TruthCounterfactual      TruthMode = "counterfactual"
	TruthImagined            TruthMode = "imagined"
	TruthSociallySourced     TruthMode = "socially_sourced"
	TruthProcedural          TruthMode = "procedural"
	TruthSomatic             TruthMode = "somatic"
	TruthIdentityRoleBound   TruthMode = "identity_role_bound"
)

// NonfactualTruthModes are never eligible evidence for a task_execution
// purpose, regardless of policy defaults (spec §3 invariant 3).
var NonfactualTruthModes = map[TruthMode]bool{
	TruthCounterfactual:  true,
	TruthImagined:        true,
	TruthSociallySourced: true,
}

// MemoryState is the mutable lifecycle position of a v2 memory.
type MemoryState string

const (
	StateActive     MemoryState = "active"
	StateRestricted MemoryState = "restricted"
	StateSealed     MemoryState = "sealed"
	StateDormant    MemoryState = "dormant"
	StateRevoked    MemoryState = "revoked"
	StateTombstoned MemoryState = "tombstoned"
)

// ReconsolidationPolicy governs what may change about a memory post-creation.
type ReconsolidationPolicy string

const (
	ReconNeverEditSource           ReconsolidationPolicy = "never_edit_source"
	ReconAppendOnly                ReconsolidationPolicy = "append_only"
	ReconAllowRelabelAffectOnly    ReconsolidationPolicy = "allow_relabel_affect_only"
	ReconAllowUpdateClaimConfidence ReconsolidationPolicy = "allow_update_claim_confidence"
)

// ScopeType enumerates the seven v2 scope kinds.
type ScopeType string

const (
	ScopeTypeUser    ScopeType = "user"
	ScopeTypeOrg     ScopeType = "org"
	ScopeTypeApp     ScopeType = "app"
	ScopeTypeSession ScopeType = "session"
	ScopeTypeProject ScopeType = "project"
	ScopeTypeCase    ScopeType = "case"
	ScopeTypeRole    ScopeType = "role"
)

// ScopeRef identifies the (scope_type, scope_id) pair a v2 memory belongs to,
// plus free-form flags consulted by policy (e.g. spiral thresholds).
type ScopeRef struct {
	ScopeType ScopeType      `json:"scope_type"`
	ScopeID   string         `json:"scope_id"`
	Flags     map[string]any `json:"flags,omitempty"`
}

// SensitivityLevel classifies how sensitive a memory's content is.
type SensitivityLevel string

const (
	SensitivityLow      SensitivityLevel = "low"
	SensitivityMedium   SensitivityLevel = "medium"
	SensitivityHigh     SensitivityLevel = "high"
	SensitivityCritical SensitivityLevel = "critical"
)

// SensitivityHandling is the default handling directive for a sensitivity level.
type SensitivityHandling string

const (
	HandlingNormal       SensitivityHandling = "normal"
	HandlingNoPrompt      SensitivityHandling = "no_prompt"
	HandlingNoSearch      SensitivityHandling = "no_search"
	HandlingSealedDefault SensitivityHandling = "sealed_default"
)

// Sensitivity carries the level, free-form categories (e.g. "trauma",
// "shame", "moral_injury"), and handling directive for a memory.
type Sensitivity struct {
	Level      SensitivityLevel    `json:"level"`
	Categories []string            `json:"categories,omitempty"`
	Handling   SensitivityHandling `json:"handling"`
}

// HasCategory reports whether cat is present in s.Categories.
func (s Sensitivity) HasCategory(cat string) bool {
	for _, c := range s.Categories {
		if c == cat {
			return true
		}
	}
	return false
}

// DisputeState is the current dispute status of a memory's ownership claim.
type DisputeState string

const (
	DisputeUndisputed DisputeState = "undisputed"
	DisputeUnverified  DisputeState = "unverified"
	DisputeDisputed    DisputeState = "disputed"
	DisputeContested   DisputeState = "contested"
)

// Ownership records who a memory is about, who claims it, and its dispute state.
type Ownership struct {
	OwnerType    string       `json:"owner_type"`
	Owners       []string     `json:"owners,omitempty"`
	Claimant     string       `json:"claimant,omitempty"`
	Subjects     []string     `json:"subjects,omitempty"`
	DisputeState DisputeState `json:"dispute_state"`
	Visibility   string       `json:"visibility,omitempty"`
}

// Temporal records when a memory's underlying event occurred, as observed
// and as claimed, with precision/confidence and optional range.
type Temporal struct {
	OccurredAtObserved time.Time  `json:"occurred_at_observed"`
	OccurredAtClaimed  *time.Time `json:"occurred_at_claimed,omitempty"`
	Precision          string     `json:"precision,omitempty"`
	Confidence         float64    `json:"confidence,omitempty"`
	RangeStart         *time.Time `json:"range_start,omitempty"`
	RangeEnd           *time.Time `json:"range_end,omitempty"`
	OrderingUncertainty bool      `json:"ordering_uncertainty,omitempty"`
}

// ContentFormat is the encoding of a memory's content payload.
type ContentFormat string

const (
	ContentText ContentFormat = "text"
	ContentJSON ContentFormat = "json"
)

// Content is a memory's substantive payload. Sealed memories' Text must
// never be surfaced outside the core.
type Content struct {
	Format   ContentFormat  `json:"format"`
	Language string         `json:"language,omitempty"`
	Text     string         `json:"text,omitempty"`
	JSON     map[string]any `json:"json,omitempty"`
}

// AffectHistoryEntry is one past affect reading, kept when reconsolidation
// policy allows affect relabeling.
type AffectHistoryEntry struct {
	Valence   float64   `json:"valence"`
	Arousal   float64   `json:"arousal"`
	Labels    []string  `json:"labels,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Affect is the emotional reading attached to a memory.
type Affect struct {
	Valence    float64               `json:"valence"` // [-1, 1]
	Arousal    float64               `json:"arousal"` // [0, 1]
	Labels     []string              `json:"labels,omitempty"`
	Confidence float64               `json:"confidence,omitempty"`
	History    []AffectHistoryEntry  `json:"history,omitempty"`
}

// Strength is a memory's current salience, decaying over time per DecayModel.
type Strength struct {
	Initial          float64    `json:"initial"`
	Current          float64    `json:"current"` // [0, 1]
	DecayModel       string     `json:"decay_model,omitempty"`
	HalfLifeDays     float64    `json:"half_life_days,omitempty"`
	LastReinforcedAt *time.Time `json:"last_reinforced_at,omitempty"`
}

// TransformStep is one entry in a memory's derivation transform chain.
type TransformStep struct {
	TransformID string `json:"transform_id"`
	Version     string `json:"version"`
	RunID       string `json:"run_id"`
}

// Provenance records where a memory came from and the policy version that
// governed its creation.
type Provenance struct {
	Source        SourceKind      `json:"source"`
	Surface       string          `json:"surface,omitempty"`
	TransformChain []TransformStep `json:"transform_chain,omitempty"`
	PolicyVersion string          `json:"policy_version"`
	Confidence    float64         `json:"confidence"`
	DerivedFrom   []string        `json:"derived_from,omitempty"`
}

// SourceKind is who/what produced a memory.
type SourceKind string

const (
	SourceKindUser   SourceKind = "user"
	SourceKindSystem SourceKind = "system"
	SourceKindAgent  SourceKind = "agent"
)

// ActivationConfig gates when a seed's cues fire.
type ActivationConfig struct {
	MinConfidence  float64 `json:"min_confidence"`
	CooldownSeconds int    `json:"cooldown_seconds"`
}

// SeedPayload carries retrieval cues for a seed memory.
type SeedPayload struct {
	Cues       []string         `json:"cues"`
	Activation ActivationConfig `json:"activation"`
}

// ImpactPayload carries the constraints derived into an impact memory.
type ImpactPayload struct {
	Constraints []Constraint `json:"constraints"`
}

// MemoryObject is a v2 memory: an event, impact, or seed with a typed
// lifecycle, governed by the policy engine and the reconsolidation policy.
type MemoryObject struct {
	ID                    string                `json:"id"`
	TenantID              string                `json:"tenant_id"`
	Scope                 ScopeRef              `json:"scope"`
	Type                  MemoryType            `json:"type"`
	TruthMode             TruthMode             `json:"truth_mode"`
	State                 MemoryState           `json:"state"`
	Sensitivity           Sensitivity           `json:"sensitivity"`
	Ownership             Ownership             `json:"ownership"`
	Temporal              Temporal              `json:"temporal"`
	Content               Content               `json:"content"`
	Affect                Affect                `json:"affect"`
	Strength              Strength              `json:"strength"`
	Provenance            Provenance            `json:"provenance"`
	ReconsolidationPolicy ReconsolidationPolicy `json:"reconsolidation_policy"`

	ImpactPayload    *ImpactPayload `json:"impact_payload,omitempty"`
	SeedPayload      *SeedPayload   `json:"seed_payload,omitempty"`
	ProceduralPayload map[string]any `json:"procedural_payload,omitempty"`
	SomaticPayload    map[string]any `json:"somatic_payload,omitempty"`

	AppID     string    `json:"app_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Sealed reports whether the memory's narrative must never be surfaced.
func (m MemoryObject) Sealed() bool { return m.State == StateSealed }

// ValidMemoryType reports whether t is one of event/impact/seed.
func ValidMemoryType(t MemoryType) bool {
	switch t {
	case MemoryEvent, MemoryImpact, MemorySeed:
		return true
	}
	return false
}

// ValidDisputeState reports whether d is one of the four fixed dispute states.
func ValidDisputeState(d DisputeState) bool {
	switch d {
	case DisputeUndisputed, DisputeUnverified, DisputeDisputed, DisputeContested:
		return true
	}
	return false
}

// ValidReconsolidationPolicy reports whether p is one of the four fixed policies.
func ValidReconsolidationPolicy(p ReconsolidationPolicy) bool {
	switch p {
	case ReconNeverEditSource, ReconAppendOnly, ReconAllowRelabelAffectOnly, ReconAllowUpdateClaimConfidence:
		return true
	}
	return false
}

// RelationshipKind classifies a DerivedObjectLink edge.
type RelationshipKind string

const (
	RelationDerivedImpact RelationshipKind = "derived_impact"
	RelationDerivedSeed   RelationshipKind = "derived_seed"
	RelationSummaryOf     RelationshipKind = "summary_of"
	RelationSupersedes    RelationshipKind = "supersedes"
)

// DerivedObjectLink is a directed edge from a parent memory to a memory
// derived from it, tagged with the rule that produced it.
type DerivedObjectLink struct {
	ID              string           `json:"id"`
	ParentID        string           `json:"parent_id"`
	ChildID         string           `json:"child_id"`
	Relationship    RelationshipKind `json:"relationship"`
	Rule            string           `json:"rule"`
	StrengthTransfer float64         `json:"strength_transfer"`
	CreatedAt       time.Time        `json:"created_at"`
}
