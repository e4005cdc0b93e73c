package model

import "time"

// ConstraintKind classifies the directive a Constraint carries.
type ConstraintKind string

const (
	ConstraintAvoid        ConstraintKind = "avoid"
	ConstraintPrefer       ConstraintKind = "prefer"
	ConstraintRequire      ConstraintKind = "require"
	ConstraintTone         ConstraintKind = "tone"
	ConstraintStyle        ConstraintKind = "style"
	ConstraintBoundary     ConstraintKind = "boundary"
	ConstraintSafety       ConstraintKind = "safety"
	ConstraintClarifyFirst ConstraintKind = "clarify_first"
	ConstraintAskPermission ConstraintKind = "ask_permission"
)

// ConstraintTarget is what a Constraint governs.
type ConstraintTarget string

const (
	TargetResponse      ConstraintTarget = "response"
	TargetPromptContext ConstraintTarget = "prompt_context"
	TargetToolExecution ConstraintTarget = "tool_execution"
	TargetMemoryOps     ConstraintTarget = "memory_ops"
)

// MergeStrategy governs how two constraints occupying the same slot combine.
type MergeStrategy string

const (
	MergeLatestWins   MergeStrategy = "latest_wins"
	MergeMaxWeight    MergeStrategy = "max_weight"
	MergeMinWeight    MergeStrategy = "min_weight"
	MergeUnion        MergeStrategy = "union"
	MergeIntersection MergeStrategy = "intersection"
	MergeAppendOnly   MergeStrategy = "append_only"
)

// ConstraintMerge describes how a Constraint participates in slot-based merging.
type ConstraintMerge struct {
	Slot        string        `json:"slot"`
	Strategy    MergeStrategy `json:"strategy"`
	TieBreakers []string      `json:"tie_breakers,omitempty"`
}

// Constraint is an atomic, narrative-free directive carried inside an impact
// memory's impact_payload. Never contains raw narrative text.
type Constraint struct {
	ConstraintID string           `json:"constraint_id"`
	Kind         ConstraintKind   `json:"kind"`
	Topic        string           `json:"topic"`
	Target       ConstraintTarget `json:"target"`
	Rule         string           `json:"rule"`
	Params       map[string]any   `json:"params"`
	Weight       float64          `json:"weight"`
	Priority     int              `json:"priority"`
	Confidence   float64          `json:"confidence"`
	CreatedAt    time.Time        `json:"created_at"`
	ExpiresAt    *time.Time       `json:"expires_at,omitempty"`
	SourceRefs   []string         `json:"source_refs"`
	Provenance   ConstraintProvenance `json:"provenance"`
	Merge        ConstraintMerge  `json:"merge"`
}

// ConstraintProvenance records which transform produced a Constraint and
// under which policy version, for replay and audit.
type ConstraintProvenance struct {
	TransformID   string `json:"transform_id"`
	PolicyVersion string `json:"policy_version"`
}
