package retrieval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
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
	for _, m := range f.memories {
		if m.ID == id {
			return m, nil
		}
	}
	return model.MemoryObject{}, storage.ErrNotFound
}

// mustPolicy returns a permissive policy for engine-plumbing tests: the
// allow/deny rule matrix itself is covered by the policy package's own
// tests, so these defaults read "allow" to isolate retrieval's behavior.
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

func TestRetrieveForPurposeFiltersSealedEventsFromEvents(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "ev1", Type: model.MemoryEvent, State: model.StateSealed,
			Sensitivity: model.Sensitivity{Categories: []string{"trauma"}}},
		{ID: "ev2", Type: model.MemoryEvent, State: model.StateActive},
	}}
	eng := retrieval.New(store, mustPolicy(t))
	result, err := eng.RetrieveForPurpose(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, 10)
	require.NoError(t, err)
	assert.NotContains(t, result.Events, "ev1")
}

func TestRetrieveForPurposeCollectsImpactsAndSeeds(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "imp1", Type: model.MemoryImpact, State: model.StateActive,
			Sensitivity: model.Sensitivity{Level: model.SensitivityLow},
			ImpactPayload: &model.ImpactPayload{Constraints: []model.Constraint{{ConstraintID: "con_1"}}}},
		{ID: "seed1", Type: model.MemorySeed, State: model.StateActive,
			Sensitivity: model.Sensitivity{Level: model.SensitivityLow},
			SeedPayload: &model.SeedPayload{Cues: []string{"cue1"}}},
	}}
	eng := retrieval.New(store, mustPolicy(t))
	result, err := eng.RetrieveForPurpose(context.Background(), "t1", model.ScopeRef{}, model.PurposeChatResponse, 10)
	require.NoError(t, err)
	require.Len(t, result.Impacts, 1)
	assert.Equal(t, "con_1", result.Impacts[0].ConstraintID)
	require.Len(t, result.Seeds, 1)
	assert.Equal(t, []string{"cue1"}, result.Seeds[0].Cues)
}

func TestRetrieveForPurposeDeniesNonfactualForTaskExecution(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{
		{ID: "m1", Type: model.MemoryImpact, TruthMode: model.TruthImagined, State: model.StateActive},
	}}
	eng := retrieval.New(store, mustPolicy(t))
	result, err := eng.RetrieveForPurpose(context.Background(), "t1", model.ScopeRef{}, model.PurposeTaskExecutionV2, 10)
	require.NoError(t, err)
	assert.NotContains(t, result.MemoryIDs, "m1")
	assert.Contains(t, result.DeniedIDs, "m1")
}

func TestGetByID(t *testing.T) {
	store := &fakeStore{memories: []model.MemoryObject{{ID: "m1"}}}
	eng := retrieval.New(store, mustPolicy(t))
	m, err := eng.GetByID(context.Background(), "t1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "m1", m.ID)
}
