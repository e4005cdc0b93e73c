package reconstruct_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
	"github.com/mnemex-labs/mnemex/internal/reconstruct"
	"github.com/mnemex-labs/mnemex/internal/retrieval"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

type fakeStore struct {
	memories []model.MemoryObject
}

func (f *fakeStore) ListMemoryObjects(_ context.Context, _ string, _ storage.MemoryObjectFilter) ([]model.MemoryObject, error) {
	return f.memories, nil
}

func (f *fakeStore) GetMemoryObject(_ context.Context, _, id string) (model.MemoryObject, error) {
	return model.MemoryObject{}, storage.ErrNotFound
}

// mustPolicy returns a permissive policy so these tests isolate
// reconstruction's summarization logic from the allow/deny rule matrix,
// which is covered by the policy package's own tests.
func mustPolicy(t *testing.T) *policy.Engine {
	t.Helper()
	eng, err := policy.New(policy.Document{
		PolicyVersion: "test",
		Defaults: policy.Defaults{
			Write: policy.DecisionAllow, Read: policy.DecisionAllow, IncludeInPrompt: policy.DecisionAllow,
			ToolExecution: policy.DecisionAllow, Reinforcement: policy.DecisionAllow,
			DeriveImpacts: policy.DecisionAllow, DeriveSeeds: policy.DecisionAllow,
		},
	})
	require.NoError(t, err)
	return eng
}

func TestReconstructNoSourcesYieldsNoContextFound(t *testing.T) {
	store := &fakeStore{}
	eng := reconstruct.New(retrieval.New(store, mustPolicy(t)))
	// includeEvents is true: with it false the "Events: excluded" line is
	// always present, so the text is never empty.
	ctx, err := eng.Reconstruct(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, true)
	require.NoError(t, err)
	assert.Contains(t, ctx.ReconstructedContext, "No relevant context found")
	assert.Equal(t, 0.0, ctx.Confidence)
}

func TestReconstructWithImpactsBuildsLabeledSections(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "imp1", Type: model.MemoryImpact, State: model.StateActive,
			Sensitivity: model.Sensitivity{Level: model.SensitivityLow},
			ImpactPayload: &model.ImpactPayload{Constraints: []model.Constraint{
				{Kind: model.ConstraintTone, Params: map[string]any{"tone_profile": "reassuring"}, SourceRefs: []string{"ev1"}},
				{Kind: model.ConstraintAvoid, Params: map[string]any{"content_class": "judgment_language"}, SourceRefs: []string{"ev1"}},
			}}},
	}}
	eng := reconstruct.New(retrieval.New(store, mustPolicy(t)))
	ctx, err := eng.Reconstruct(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, false)
	require.NoError(t, err)
	assert.Contains(t, ctx.ReconstructedContext, "Tone: reassuring")
	assert.Contains(t, ctx.ReconstructedContext, "Avoid: judgment_language")
	assert.Contains(t, ctx.ReconstructedContext, "Events: excluded")
	assert.Equal(t, []string{"ev1"}, ctx.Sources.Impacts)
	assert.GreaterOrEqual(t, ctx.Confidence, 0.5)
}

func TestReconstructNeverIncludesEventsWithoutExplicitFlag(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "ev1", Type: model.MemoryEvent, State: model.StateActive},
	}}
	eng := reconstruct.New(retrieval.New(store, mustPolicy(t)))
	ctx, err := eng.Reconstruct(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, false)
	require.NoError(t, err)
	assert.Empty(t, ctx.Sources.Events)
	assert.Contains(t, ctx.ReconstructedContext, "Events: excluded")
}

func TestReconstructSeedCuesCappedAtTen(t *testing.T) {
	cues := make([]string, 15)
	for i := range cues {
		cues[i] = "seedcue"
	}
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "seed1", Type: model.MemorySeed, State: model.StateActive,
			Sensitivity: model.Sensitivity{Level: model.SensitivityLow},
			SeedPayload: &model.SeedPayload{Cues: cues}},
	}}
	eng := reconstruct.New(retrieval.New(store, mustPolicy(t)))
	ctx, err := eng.Reconstruct(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, false)
	require.NoError(t, err)
	assert.Equal(t, 10, countOccurrences(ctx.ReconstructedContext, "seedcue"))
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
