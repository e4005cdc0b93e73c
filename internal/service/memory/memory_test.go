package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/extractor"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
	"github.com/mnemex-labs/mnemex/internal/reconstruct"
	"github.com/mnemex-labs/mnemex/internal/retrieval"
	svc "github.com/mnemex-labs/mnemex/internal/service/memory"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

type fakeStore struct {
	memories  map[string]model.MemoryObject
	links     []model.DerivedObjectLink
	logs      map[string]model.AccessLog
	artifacts []model.ThoughtPatternArtifact
}

func newFakeStore() *fakeStore {
	return &fakeStore{memories: map[string]model.MemoryObject{}, logs: map[string]model.AccessLog{}}
}

func (f *fakeStore) IngestMemoryObject(_ context.Context, w storage.IngestWrite) (model.MemoryObject, *model.MemoryObject, error) {
	f.memories[w.Memory.ID] = w.Memory
	var impact *model.MemoryObject
	if w.Impact != nil {
		f.memories[w.Impact.ID] = *w.Impact
		impact = w.Impact
		if w.Link != nil {
			link := *w.Link
			link.ParentID = w.Memory.ID
			link.ChildID = w.Impact.ID
			f.links = append(f.links, link)
		}
	}
	if w.AccessLog.LogID == "" {
		w.AccessLog.LogID = "log_" + w.Memory.ID
	}
	f.logs[w.AccessLog.LogID] = w.AccessLog
	return w.Memory, impact, nil
}

func (f *fakeStore) GetMemoryObject(_ context.Context, _, id string) (model.MemoryObject, error) {
	m, ok := f.memories[id]
	if !ok {
		return model.MemoryObject{}, storage.ErrNotFound
	}
	return m, nil
}

func (f *fakeStore) ListMemoryObjects(_ context.Context, _ string, _ storage.MemoryObjectFilter) ([]model.MemoryObject, error) {
	var out []model.MemoryObject
	for _, m := range f.memories {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeStore) UpdateMemoryObject(_ context.Context, m model.MemoryObject) error {
	if _, ok := f.memories[m.ID]; !ok {
		return storage.ErrNotFound
	}
	f.memories[m.ID] = m
	return nil
}

func (f *fakeStore) ListChildLinks(_ context.Context, parentID string) ([]model.DerivedObjectLink, error) {
	var out []model.DerivedObjectLink
	for _, l := range f.links {
		if l.ParentID == parentID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeStore) InsertAccessLog(_ context.Context, l model.AccessLog) error {
	if l.LogID == "" {
		l.LogID = "log_auto"
	}
	f.logs[l.LogID] = l
	return nil
}

func (f *fakeStore) GetAccessLog(_ context.Context, _, logID string) (model.AccessLog, error) {
	l, ok := f.logs[logID]
	if !ok {
		return model.AccessLog{}, storage.ErrNotFound
	}
	return l, nil
}

func (f *fakeStore) ListActiveArtifacts(_ context.Context, _ string, scopeType model.ScopeType, scopeID string) ([]model.ThoughtPatternArtifact, error) {
	var out []model.ThoughtPatternArtifact
	for _, a := range f.artifacts {
		if a.Scope.ScopeType == scopeType && a.Scope.ScopeID == scopeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func mustPolicy(t *testing.T, blockReinforcement bool) *policy.Engine {
	t.Helper()
	eng, err := policy.New(policy.Document{
		PolicyVersion: "test",
		Defaults: policy.Defaults{
			Write: policy.DecisionAllow, Read: policy.DecisionAllow, IncludeInPrompt: policy.DecisionAllow,
			ToolExecution: policy.DecisionAllow, Reinforcement: policy.DecisionAllow,
			DeriveImpacts: policy.DecisionAllow, DeriveSeeds: policy.DecisionAllow,
		},
		Globals: policy.Globals{Spiral: policy.SpiralConfig{BlockReinforcement: blockReinforcement}},
	})
	require.NoError(t, err)
	return eng
}

func newService(t *testing.T, blockReinforcement bool) (*svc.Service, *fakeStore) {
	t.Helper()
	store := newFakeStore()
	eng := mustPolicy(t, blockReinforcement)
	ret := retrieval.New(store, eng)
	return svc.New(store, eng, extractor.New(), ret, reconstruct.New(ret)), store
}

func TestCreateRejectsInvalidType(t *testing.T) {
	s, _ := newService(t, false)
	_, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{Type: "bogus"})
	assert.ErrorIs(t, err, svc.ErrInvalidType)
}

func TestCreateEventDerivesAndLinksImpact(t *testing.T) {
	s, store := newService(t, false)
	now := time.Now()

	event, impact, _, err := s.Create(context.Background(), now, svc.CreateParams{
		TenantID: "t1",
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type:     model.MemoryEvent,
		Content:  model.Content{Format: model.ContentText, Text: "please be gentle with me today"},
	})
	require.NoError(t, err)
	require.NotNil(t, impact)
	assert.Equal(t, model.MemoryImpact, impact.Type)
	assert.Len(t, store.links, 1)
	assert.Equal(t, event.ID, store.links[0].ParentID)
	assert.Equal(t, impact.ID, store.links[0].ChildID)
	assert.Len(t, store.logs, 1)
}

func TestCreateEventWithoutTriggerSkipsDerivation(t *testing.T) {
	s, _ := newService(t, false)
	_, impact, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1",
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type:     model.MemoryEvent,
		Content:  model.Content{Format: model.ContentText, Text: "nothing notable happened"},
	})
	require.NoError(t, err)
	assert.Nil(t, impact)
}

func TestSealPreventsNarrativeStateChangeOnly(t *testing.T) {
	s, store := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1",
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type:     model.MemorySeed,
		Content:  model.Content{Format: model.ContentText},
	})
	require.NoError(t, err)

	sealed, err := s.Seal(context.Background(), "t1", created.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, sealed.Sealed())
	assert.True(t, store.memories[created.ID].Sealed())
}

func TestRevokePropagatesOneHopToChildren(t *testing.T) {
	s, store := newService(t, false)
	now := time.Now()

	event, impact, _, err := s.Create(context.Background(), now, svc.CreateParams{
		TenantID: "t1",
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type:     model.MemoryEvent,
		Content:  model.Content{Format: model.ContentText, Text: "please be gentle with me today"},
	})
	require.NoError(t, err)
	require.NotNil(t, impact)

	revoked, propagated, err := s.Revoke(context.Background(), "t1", event.ID, now)
	require.NoError(t, err)
	assert.Equal(t, model.StateRevoked, revoked.State)
	assert.Contains(t, propagated, impact.ID)
	assert.Equal(t, model.StateRevoked, store.memories[impact.ID].State)
}

func TestReinforceIncrementsAndCapsStrength(t *testing.T) {
	s, _ := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1",
		Scope:    model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type:     model.MemorySeed,
		Strength: model.Strength{Current: 0.95},
	})
	require.NoError(t, err)

	m, err := s.Reinforce(context.Background(), "t1", created.ID, 0.5, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1.0, m.Strength.Current)
	assert.NotNil(t, m.Strength.LastReinforcedAt)
}

func TestReinforceBlockedByActiveSpiral(t *testing.T) {
	s, store := newService(t, true)
	scope := model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"}
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: scope, Type: model.MemorySeed,
	})
	require.NoError(t, err)

	store.artifacts = append(store.artifacts, model.ThoughtPatternArtifact{
		TenantID: "t1", Scope: scope, PatternType: model.PatternCatastrophicProjection,
		ExpiresAt: time.Now().Add(time.Hour),
	})

	_, err = s.Reinforce(context.Background(), "t1", created.ID, 0, time.Now())
	assert.ErrorIs(t, err, svc.ErrSpiralBlocked)
}

func TestRecallNeverEditSourceForbidsAnyMutation(t *testing.T) {
	s, _ := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type: model.MemoryEvent, ReconsolidationPolicy: model.ReconNeverEditSource,
	})
	require.NoError(t, err)

	confidence := 0.9
	_, err = s.Recall(context.Background(), "t1", created.ID, svc.RecallParams{UpdateClaimConfidence: &confidence}, time.Now())
	assert.ErrorIs(t, err, svc.ErrReconsolidationForbidden)
}

func TestRecallAppendOnlyAllowsAffectHistory(t *testing.T) {
	s, _ := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type: model.MemoryEvent, ReconsolidationPolicy: model.ReconAppendOnly,
	})
	require.NoError(t, err)

	entry := &model.AffectHistoryEntry{Valence: 0.2, RecordedAt: time.Now()}
	m, err := s.Recall(context.Background(), "t1", created.ID, svc.RecallParams{AppendAffectHistory: entry}, time.Now())
	require.NoError(t, err)
	assert.Len(t, m.Affect.History, 1)
}

func TestRecallAppendOnlyForbidsRelabel(t *testing.T) {
	s, _ := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"},
		Type: model.MemoryEvent, ReconsolidationPolicy: model.ReconAppendOnly,
	})
	require.NoError(t, err)

	_, err = s.Recall(context.Background(), "t1", created.ID, svc.RecallParams{RelabelAffect: &model.Affect{Valence: 0.5}}, time.Now())
	assert.ErrorIs(t, err, svc.ErrReconsolidationForbidden)
}

func TestDisputeThenAttestRoundTrips(t *testing.T) {
	s, _ := newService(t, false)
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"}, Type: model.MemoryEvent,
	})
	require.NoError(t, err)

	disputed, err := s.Dispute(context.Background(), "t1", created.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.DisputeDisputed, disputed.Ownership.DisputeState)

	attested, err := s.Attest(context.Background(), "t1", created.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.DisputeUndisputed, attested.Ownership.DisputeState)
}

func TestQueryLogsAccess(t *testing.T) {
	s, store := newService(t, false)
	scope := model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"}
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: scope, Type: model.MemorySeed,
		SeedPayload: &model.SeedPayload{Cues: []string{"cue1"}},
	})
	require.NoError(t, err)

	before := len(store.logs)
	result, _, err := s.Query(context.Background(), "t1", scope, model.PurposeChatResponse, 10, time.Now())
	require.NoError(t, err)
	assert.Contains(t, result.MemoryIDs, created.ID)
	assert.Greater(t, len(store.logs), before)
}

func TestExplainResolvesLoggedMemories(t *testing.T) {
	s, store := newService(t, false)
	scope := model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"}
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: scope, Type: model.MemorySeed,
	})
	require.NoError(t, err)

	_, _, err = s.Query(context.Background(), "t1", scope, model.PurposeChatResponse, 10, time.Now())
	require.NoError(t, err)

	logID := findLogReturning(store, created.ID)
	require.NotEmpty(t, logID)

	explained, err := s.Explain(context.Background(), "t1", logID)
	require.NoError(t, err)
	require.Len(t, explained.Memories, 1)
	assert.Equal(t, created.ID, explained.Memories[0].ID)
}

func TestReplayRecomputesRetrieval(t *testing.T) {
	s, store := newService(t, false)
	scope := model.ScopeRef{ScopeType: model.ScopeTypeUser, ScopeID: "u1"}
	created, _, _, err := s.Create(context.Background(), time.Now(), svc.CreateParams{
		TenantID: "t1", Scope: scope, Type: model.MemorySeed,
	})
	require.NoError(t, err)

	_, _, err = s.Query(context.Background(), "t1", scope, model.PurposeChatResponse, 10, time.Now())
	require.NoError(t, err)

	logID := findLogReturning(store, created.ID)
	require.NotEmpty(t, logID)

	replay, err := s.Replay(context.Background(), "t1", logID, nil)
	require.NoError(t, err)
	assert.Contains(t, replay.Recomputed.MemoryIDs, created.ID)
}

func findLogReturning(store *fakeStore, memoryID string) string {
	for id, l := range store.logs {
		if contains(l.Decision.ReturnedIDs, memoryID) {
			return id
		}
	}
	return ""
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
