// Package policy implements the deterministic, fail-closed policy engine
// that governs every memory write, read, tool-execution, and derivation
// decision (spec §4.2). Evaluation is top-to-bottom over a versioned rule
// list; for read/include decisions, the most restrictive matched verdict
// wins.
package policy

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mnemex-labs/mnemex/internal/model"
)

// Decision is one of the two legal rule outcomes.
type Decision string

const (
	DecisionAllow Decision = "allow"
	DecisionDeny  Decision = "deny"
)

// Defaults are the fallback verdicts applied when no rule matches a given
// dimension.
type Defaults struct {
	Write           Decision `yaml:"write"`
	Read            Decision `yaml:"read"`
	IncludeInPrompt Decision `yaml:"include_in_prompt"`
	ToolExecution   Decision `yaml:"tool_execution"`
	Reinforcement   Decision `yaml:"reinforcement"`
	DeriveImpacts   Decision `yaml:"derive_impacts"`
	DeriveSeeds     Decision `yaml:"derive_seeds"`
}

// SpiralConfig governs the spiral (rumination-loop) safety valve.
type SpiralConfig struct {
	EnabledDefault               bool    `yaml:"enabled_default"`
	TTLMinutes                   int     `yaml:"ttl_minutes"`
	BlockToolExecution           bool    `yaml:"block_tool_execution"`
	BlockReinforcement           bool    `yaml:"block_reinforcement"`
	BlockNewImpacts              bool    `yaml:"block_new_impacts"`
	RaiseSeedActivationThresholdBy float64 `yaml:"raise_seed_activation_threshold_by"`
}

// Globals are policy-wide tunables outside the rule list.
type Globals struct {
	ClaimedTimeTrustThreshold float64      `yaml:"claimed_time_trust_threshold"`
	Spiral                    SpiralConfig `yaml:"spiral"`
}

// Then is the set of verdicts a matched rule may assert. A field is applied
// only when present (modeled via pointers so "false" and "unset" differ).
type Then struct {
	SetState        *string `yaml:"set_state,omitempty"`
	AllowRead       *bool   `yaml:"allow_read,omitempty"`
	IncludeInPrompt *bool   `yaml:"include_in_prompt,omitempty"`
	DeriveImpacts   *bool   `yaml:"derive_impacts,omitempty"`
	DeriveSeeds     *bool   `yaml:"derive_seeds,omitempty"`
}

// Rule is one when/then policy clause. Conditions are ANDed; each condition
// value may be a scalar (equality) or a list (membership).
type Rule struct {
	ID   string         `yaml:"id"`
	When map[string]any `yaml:"when"`
	Then Then           `yaml:"then"`
}

// Document is the on-disk shape of a policy file.
type Document struct {
	PolicyVersion string   `yaml:"policy_version"`
	Defaults      Defaults `yaml:"defaults"`
	Globals       Globals  `yaml:"globals"`
	Rules         []Rule   `yaml:"rules"`
}

// Engine evaluates a compiled policy document against memory and request
// context. An Engine is immutable after construction and safe for
// concurrent use.
type Engine struct {
	doc Document
}

// New validates doc and returns a ready Engine.
func New(doc Document) (*Engine, error) {
	if err := validate(doc); err != nil {
		return nil, err
	}
	return &Engine{doc: doc}, nil
}

// NewFromYAML parses raw as a policy document and constructs an Engine.
func NewFromYAML(raw []byte) (*Engine, error) {
	var doc Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("policy: parse yaml: %w", err)
	}
	return New(doc)
}

func validate(doc Document) error {
	if doc.PolicyVersion == "" {
		return fmt.Errorf("policy: missing policy_version")
	}
	for _, d := range []Decision{doc.Defaults.Write, doc.Defaults.Read, doc.Defaults.IncludeInPrompt,
		doc.Defaults.ToolExecution, doc.Defaults.Reinforcement, doc.Defaults.DeriveImpacts, doc.Defaults.DeriveSeeds} {
		if d != DecisionAllow && d != DecisionDeny && d != "" {
			return fmt.Errorf("policy: default value must be allow or deny, got %q", d)
		}
	}
	for _, r := range doc.Rules {
		if r.ID == "" {
			return fmt.Errorf("policy: rule missing id")
		}
	}
	return nil
}

// Version reports the loaded policy's version string.
func (e *Engine) Version() string { return e.doc.PolicyVersion }

// Spiral reports the loaded policy's spiral configuration.
func (e *Engine) Spiral() SpiralConfig { return e.doc.Globals.Spiral }

// memoryContext builds the dot-path-addressable context map for a memory,
// mirroring the fields the Python reference evaluates against.
func memoryContext(m model.MemoryObject) map[string]any {
	return map[string]any{
		"type":       string(m.Type),
		"truth_mode": string(m.TruthMode),
		"state":      string(m.State),
		"sensitivity": map[string]any{
			"level":      string(m.Sensitivity.Level),
			"categories": toAnySlice(m.Sensitivity.Categories),
			"handling":   string(m.Sensitivity.Handling),
		},
		"ownership": map[string]any{
			"dispute_state": string(m.Ownership.DisputeState),
		},
	}
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// matchRule reports whether every condition in r.When holds against ctx.
func matchRule(r Rule, ctx map[string]any) bool {
	for path, want := range r.When {
		got, ok := lookup(ctx, path)
		if !ok {
			return false
		}
		if !matchValue(want, got) {
			return false
		}
	}
	return true
}

// lookup resolves a dot-separated path ("memory.sensitivity.level") against
// a nested map, as produced by memoryContext/requestContext merged under
// "memory"/"request" keys.
func lookup(ctx map[string]any, path string) (any, bool) {
	var cur any = ctx
	for _, part := range splitPath(path) {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[part]
		if !ok || v == nil {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			parts = append(parts, path[start:i])
			start = i + 1
		}
	}
	parts = append(parts, path[start:])
	return parts
}

// matchValue reports whether got satisfies want: list membership (checking
// both scalar-in-list and list-intersects-list, since sensitivity categories
// is itself a list) or scalar equality.
func matchValue(want, got any) bool {
	switch w := want.(type) {
	case []any:
		gotList, isList := got.([]any)
		for _, candidate := range w {
			if isList {
				for _, g := range gotList {
					if candidate == g {
						return true
					}
				}
			} else if candidate == got {
				return true
			}
		}
		return false
	default:
		if gotList, isList := got.([]any); isList {
			for _, g := range gotList {
				if g == want {
					return true
				}
			}
			return false
		}
		return want == got
	}
}

// EvaluateIngest decides whether a candidate memory may be written, its
// resulting lifecycle state, and whether impact/seed derivation should run.
func (e *Engine) EvaluateIngest(m model.MemoryObject) model.IngestDecision {
	ctx := map[string]any{"memory": memoryContext(m)}

	decision := model.IngestDecision{
		Allowed:       e.doc.Defaults.Write == DecisionAllow,
		State:         m.State,
		DeriveImpacts: e.doc.Defaults.DeriveImpacts == DecisionAllow,
		DeriveSeeds:   e.doc.Defaults.DeriveSeeds == DecisionAllow,
	}

	var matched []string
	for _, r := range e.doc.Rules {
		if !matchRule(r, ctx) {
			continue
		}
		matched = append(matched, r.ID)
		then := r.Then
		if then.SetState != nil {
			decision.State = model.MemoryState(*then.SetState)
		}
		if then.DeriveImpacts != nil {
			decision.DeriveImpacts = *then.DeriveImpacts
		}
		if then.DeriveSeeds != nil {
			decision.DeriveSeeds = *then.DeriveSeeds
		}
	}

	decision.Trace = model.PolicyTrace{
		PolicyVersion: e.doc.PolicyVersion,
		MatchedRules:  matched,
		FinalDecision: string(finalVerdict(decision.Allowed)),
	}
	return decision
}

// EvaluateQuery decides whether a memory may be returned for purpose, and
// whether it may be folded into a prompt. Most restrictive matched verdict
// wins per dimension: a single "deny" among matches overrides any "allow".
func (e *Engine) EvaluateQuery(m model.MemoryObject, purpose model.Purpose) model.QueryDecision {
	ctx := map[string]any{
		"memory":  memoryContext(m),
		"request": map[string]any{"purpose": string(purpose)},
	}

	decision := model.QueryDecision{
		Allowed:         e.doc.Defaults.Read == DecisionAllow,
		IncludeInPrompt: e.doc.Defaults.IncludeInPrompt == DecisionAllow,
	}

	var matched []string
	var allowVotes, includeVotes []bool
	for _, r := range e.doc.Rules {
		if !matchRule(r, ctx) {
			continue
		}
		matched = append(matched, r.ID)
		if r.Then.AllowRead != nil {
			allowVotes = append(allowVotes, *r.Then.AllowRead)
		}
		if r.Then.IncludeInPrompt != nil {
			includeVotes = append(includeVotes, *r.Then.IncludeInPrompt)
		}
	}

	if len(allowVotes) > 0 {
		decision.Allowed = allTrue(allowVotes)
		if !decision.Allowed {
			decision.DeniedReasons = append(decision.DeniedReasons, "a matched rule denied read access")
		}
	}
	if len(includeVotes) > 0 {
		decision.IncludeInPrompt = allTrue(includeVotes)
	}
	decision.MatchedRules = matched
	return decision
}

func allTrue(bs []bool) bool {
	for _, b := range bs {
		if !b {
			return false
		}
	}
	return true
}

func finalVerdict(allowed bool) Decision {
	if allowed {
		return DecisionAllow
	}
	return DecisionDeny
}

// ToolExecutionResult partitions a candidate memory set into what may and
// may not back a tool-execution call.
type ToolExecutionResult struct {
	Allowed          bool
	AllowedMemoryIDs []string
	DeniedMemoryIDs  []string
	DeniedReasons    []string
}

// EvaluateToolExecution enforces the invariant that nonfactual truth modes
// are never eligible evidence for task_execution, regardless of policy
// defaults (spec §3 invariant 3). Only this truth-mode check is applied; the
// document's rules are not consulted.
func (e *Engine) EvaluateToolExecution(memories []model.MemoryObject, purpose model.Purpose) ToolExecutionResult {
	var result ToolExecutionResult
	for _, m := range memories {
		allowed := true
		if purpose == model.PurposeTaskExecutionV2 && model.NonfactualTruthModes[m.TruthMode] {
			allowed = false
			result.DeniedReasons = append(result.DeniedReasons,
				fmt.Sprintf("memory %s: nonfactual truth_mode cannot back task execution", m.ID))
		}
		if allowed {
			result.AllowedMemoryIDs = append(result.AllowedMemoryIDs, m.ID)
		} else {
			result.DeniedMemoryIDs = append(result.DeniedMemoryIDs, m.ID)
		}
	}
	result.Allowed = len(result.AllowedMemoryIDs) > 0
	return result
}

// SpiralWindow is an active spiral detection on one scope, with the
// restrictions it imposes until it expires.
type SpiralWindow struct {
	ScopeType model.ScopeType
	ScopeID   string
	StartedAt time.Time
	ExpiresAt time.Time
}

// Active reports whether the spiral window still applies at t.
func (w SpiralWindow) Active(t time.Time) bool { return t.Before(w.ExpiresAt) }
