package extractor_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/extractor"
	"github.com/mnemex-labs/mnemex/internal/model"
)

func fixedNow() time.Time { return time.Date(2026, 1, 6, 12, 0, 0, 0, time.UTC) }

func TestExtractDeniedByPolicy(t *testing.T) {
	x := extractor.New()
	_, ok := x.Extract(model.MemoryObject{}, false, fixedNow)
	assert.False(t, ok)
}

func TestExtractNeverFromSealedEvent(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		State:       model.StateSealed,
		Sensitivity: model.Sensitivity{Level: model.SensitivityHigh, Categories: []string{"trauma"}},
	}
	_, ok := x.Extract(event, true, fixedNow)
	assert.False(t, ok)
}

func TestExtractTraumaYieldsSafetyConstraint(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:          "mem_event1",
		Type:        model.MemoryEvent,
		State:       model.StateActive,
		Sensitivity: model.Sensitivity{Level: model.SensitivityHigh, Categories: []string{"trauma"}},
	}
	impact, ok := x.Extract(event, true, fixedNow)
	require.True(t, ok)
	assert.Equal(t, model.MemoryImpact, impact.Type)
	assert.Equal(t, model.TruthProcedural, impact.TruthMode)
	assert.Equal(t, model.ReconAppendOnly, impact.ReconsolidationPolicy)
	require.NotNil(t, impact.ImpactPayload)
	require.Len(t, impact.ImpactPayload.Constraints, 1)
	c := impact.ImpactPayload.Constraints[0]
	assert.Equal(t, model.ConstraintSafety, c.Kind)
	assert.Equal(t, []string{event.ID}, c.SourceRefs)
	assert.Equal(t, extractor.TransformVersion, c.Provenance.TransformID)
}

func TestExtractShameYieldsAvoidAndToneConstraints(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:          "mem_event2",
		Type:        model.MemoryEvent,
		State:       model.StateActive,
		Sensitivity: model.Sensitivity{Level: model.SensitivityCritical, Categories: []string{"shame"}},
	}
	impact, ok := x.Extract(event, true, fixedNow)
	require.True(t, ok)
	require.Len(t, impact.ImpactPayload.Constraints, 2)
	assert.Equal(t, model.ConstraintAvoid, impact.ImpactPayload.Constraints[0].Kind)
	assert.Equal(t, model.ConstraintTone, impact.ImpactPayload.Constraints[1].Kind)
}

func TestExtractDetectsTonePreferenceFromText(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:      "mem_event3",
		Type:    model.MemoryEvent,
		State:   model.StateActive,
		Content: model.Content{Format: model.ContentText, Text: "please be gentle and caring with me"},
	}
	impact, ok := x.Extract(event, true, fixedNow)
	require.True(t, ok)
	require.Len(t, impact.ImpactPayload.Constraints, 1)
	assert.Equal(t, "reassuring", impact.ImpactPayload.Constraints[0].Params["tone_profile"])
}

func TestExtractDetectsStylePreferenceFromText(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:      "mem_event4",
		Type:    model.MemoryEvent,
		State:   model.StateActive,
		Content: model.Content{Format: model.ContentText, Text: "- item one\n- item two"},
	}
	impact, ok := x.Extract(event, true, fixedNow)
	require.True(t, ok)
	require.Len(t, impact.ImpactPayload.Constraints, 1)
	assert.Equal(t, "bullets", impact.ImpactPayload.Constraints[0].Params["format"])
}

func TestExtractNoConstraintsYieldsNoImpact(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:    "mem_event5",
		Type:  model.MemoryEvent,
		State: model.StateActive,
		Content: model.Content{Format: model.ContentText, Text: "just an ordinary note"},
	}
	_, ok := x.Extract(event, true, fixedNow)
	assert.False(t, ok)
}

func TestExtractIsDeterministic(t *testing.T) {
	x := extractor.New()
	event := model.MemoryObject{
		ID:          "mem_event6",
		Type:        model.MemoryEvent,
		State:       model.StateActive,
		Sensitivity: model.Sensitivity{Level: model.SensitivityHigh, Categories: []string{"trauma"}},
	}
	a, okA := x.Extract(event, true, fixedNow)
	b, okB := x.Extract(event, true, fixedNow)
	require.True(t, okA)
	require.True(t, okB)
	assert.Equal(t, a.ImpactPayload.Constraints[0].Kind, b.ImpactPayload.Constraints[0].Kind)
	assert.Equal(t, a.ImpactPayload.Constraints[0].Params, b.ImpactPayload.Constraints[0].Params)
}
