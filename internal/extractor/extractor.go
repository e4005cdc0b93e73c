// Package extractor implements deterministic, narrative-free impact
// extraction from event memories (spec §4.4). The same event always
// produces the same constraints; extraction never reads from a sealed
// event's content, and the transform version is pinned into provenance for
// replay.
package extractor

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/model"
)

// TransformVersion is the pinned version tag recorded on every constraint
// and impact this extractor produces.
const TransformVersion = "tx_impact_extract_v2.1.0"

// Extractor derives impact memories from events. Stateless beyond the
// transform version it stamps.
type Extractor struct {
	transformVersion string
	now              func() time.Time
}

// New returns an Extractor pinned to TransformVersion.
func New() *Extractor {
	return &Extractor{transformVersion: TransformVersion}
}

// Extract derives an impact memory from event, or returns (zero, false) if
// policy forbids derivation, the event is sealed, or no constraint applies.
func (x *Extractor) Extract(event model.MemoryObject, policyAllows bool, now func() time.Time) (model.MemoryObject, bool) {
	if !policyAllows {
		return model.MemoryObject{}, false
	}
	// Never extract from a sealed event's narrative (spec §4.4 invariant).
	if event.State == model.StateSealed {
		return model.MemoryObject{}, false
	}

	var constraints []model.Constraint
	constraints = append(constraints, x.safetyConstraints(event, now)...)

	if event.Type == model.MemoryEvent {
		text := strings.ToLower(event.Content.Text)
		if tone, ok := detectTonePreference(text); ok {
			constraints = append(constraints, x.toneConstraint(event, tone, now))
		}
		if style, ok := detectStylePreference(event.Content.Text); ok {
			constraints = append(constraints, x.styleConstraint(event, style, now))
		}
	}

	if len(constraints) == 0 {
		return model.MemoryObject{}, false
	}

	impact := model.MemoryObject{
		ID:          idgen.Memory(),
		TenantID:    event.TenantID,
		Scope:       event.Scope,
		Type:        model.MemoryImpact,
		TruthMode:   model.TruthProcedural,
		State:       model.StateActive,
		Sensitivity: event.Sensitivity,
		Ownership:   event.Ownership,
		Temporal:    event.Temporal,
		Content:     event.Content,
		Affect:      event.Affect,
		Strength:    event.Strength,
		ImpactPayload: &model.ImpactPayload{
			Constraints: constraints,
		},
		Provenance: model.Provenance{
			Source:      model.SourceKindSystem,
			DerivedFrom: []string{event.ID},
			TransformChain: []model.TransformStep{{
				TransformID: x.transformVersion,
				Version:     versionSuffix(x.transformVersion),
				RunID:       fmt.Sprintf("run_%d", now().UnixNano()),
			}},
			PolicyVersion: event.Provenance.PolicyVersion,
			Confidence:    0.7,
		},
		ReconsolidationPolicy: model.ReconAppendOnly,
		AppID:                 event.AppID,
		CreatedAt:             now(),
		UpdatedAt:             now(),
	}
	return impact, true
}

func versionSuffix(transformID string) string {
	if idx := strings.LastIndex(transformID, "_v"); idx >= 0 {
		return transformID[idx+2:]
	}
	return transformID
}

func (x *Extractor) safetyConstraints(event model.MemoryObject, now func() time.Time) []model.Constraint {
	var out []model.Constraint
	if event.Sensitivity.Level != model.SensitivityHigh && event.Sensitivity.Level != model.SensitivityCritical {
		return out
	}
	if event.Sensitivity.HasCategory("trauma") {
		// Weight 1.0 is the ceiling of the scale, so max_weight merging
		// behaves as most-restrictive-wins for this slot without needing a
		// strategy outside spec §3's enum.
		out = append(out, x.newConstraint(event, model.ConstraintSafety, "safety", "safety_extraction_v2",
			map[string]any{"mode": "supportive_reframe_only", "consent_required": true},
			1.0, 10, 0.8, "safety", model.MergeMaxWeight, now))
	}
	if event.Sensitivity.HasCategory("shame") || event.Sensitivity.HasCategory("moral_injury") {
		out = append(out, x.newConstraint(event, model.ConstraintAvoid, "content", "avoid_extraction_v2",
			map[string]any{"content_class": "judgment_language"},
			0.9, 8, 0.75, "avoid", model.MergeIntersection, now))
		out = append(out, x.toneConstraintWith(event, "non_judgmental", now))
	}
	return out
}

func (x *Extractor) toneConstraint(event model.MemoryObject, tone string, now func() time.Time) model.Constraint {
	return x.toneConstraintWith(event, tone, now)
}

func (x *Extractor) toneConstraintWith(event model.MemoryObject, tone string, now func() time.Time) model.Constraint {
	return x.newConstraint(event, model.ConstraintTone, "tone", "tone_extraction_v2",
		map[string]any{"tone_profile": tone}, 0.7, 5, 0.7, "tone", model.MergeLatestWins, now)
}

func (x *Extractor) styleConstraint(event model.MemoryObject, style string, now func() time.Time) model.Constraint {
	return x.newConstraint(event, model.ConstraintStyle, "style", "style_extraction_v2",
		map[string]any{"format": style}, 0.6, 4, 0.65, "style", model.MergeUnion, now)
}

func (x *Extractor) newConstraint(
	event model.MemoryObject,
	kind model.ConstraintKind,
	topic, rule string,
	params map[string]any,
	weight float64,
	priority int,
	confidence float64,
	slot string,
	strategy model.MergeStrategy,
	now func() time.Time,
) model.Constraint {
	return model.Constraint{
		ConstraintID: idgen.Constraint(),
		Kind:         kind,
		Topic:        topic,
		Target:       model.TargetResponse,
		Rule:         rule,
		Params:       params,
		Weight:       weight,
		Priority:     priority,
		Confidence:   confidence,
		CreatedAt:    now(),
		SourceRefs:   []string{event.ID},
		Provenance: model.ConstraintProvenance{
			TransformID:   x.transformVersion,
			PolicyVersion: event.Provenance.PolicyVersion,
		},
		Merge: model.ConstraintMerge{
			Slot:        slot,
			Strategy:    strategy,
			TieBreakers: []string{"priority", "created_at"},
		},
	}
}

var (
	bulletPattern   = regexp.MustCompile(`[•\-\*]\s`)
	numberedPattern = regexp.MustCompile(`\d+\.\s`)
)

// detectTonePreference is deterministic keyword matching, never ML/NLP
// inference, so the same text always yields the same tone.
func detectTonePreference(textLower string) (string, bool) {
	switch {
	case containsAny(textLower, "gentle", "soft", "kind", "caring"):
		return "reassuring", true
	case containsAny(textLower, "direct", "straightforward", "clear"):
		return "matter_of_fact", true
	case containsAny(textLower, "supportive", "helpful", "encouraging"):
		return "supportive", true
	case containsAny(textLower, "firm", "strict", "serious"):
		return "firm", true
	}
	return "", false
}

func detectStylePreference(text string) (string, bool) {
	textLower := strings.ToLower(text)
	switch {
	case bulletPattern.MatchString(text) || strings.Contains(textLower, "bullet"):
		return "bullets", true
	case numberedPattern.MatchString(text) || strings.Contains(textLower, "numbered"):
		return "numbered_steps", true
	case len(strings.Split(text, "\n\n")) > 3 || strings.Contains(textLower, "paragraph"):
		return "short_paragraphs", true
	}
	return "", false
}

func containsAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
