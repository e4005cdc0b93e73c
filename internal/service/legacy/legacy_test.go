package legacy_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/grant"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/service/legacy"
)

type fakeMemStore struct {
	memories []model.Memory
	audits   []model.AuditEvent
}

func (f *fakeMemStore) CreateMemory(_ context.Context, m model.Memory) (model.Memory, error) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	f.memories = append(f.memories, m)
	return m, nil
}

func (f *fakeMemStore) ListActiveMemories(_ context.Context, userID string, scope model.Scope, domain string) ([]model.Memory, error) {
	var out []model.Memory
	for _, m := range f.memories {
		if m.UserID == userID && m.Scope == scope && (domain == "" || m.Domain == domain) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemStore) InsertAuditEvent(_ context.Context, e model.AuditEvent) error {
	f.audits = append(f.audits, e)
	return nil
}

type fakeGrantStore struct {
	byHash map[string]model.ReadGrant
	byID   map[uuid.UUID]model.ReadGrant
}

func newFakeGrantStore() *fakeGrantStore {
	return &fakeGrantStore{byHash: map[string]model.ReadGrant{}, byID: map[uuid.UUID]model.ReadGrant{}}
}

func (f *fakeGrantStore) CreateGrant(_ context.Context, g model.ReadGrant) (model.ReadGrant, error) {
	f.byHash[g.TokenHash] = g
	f.byID[g.ID] = g
	return g, nil
}

func (f *fakeGrantStore) GetGrantByTokenHash(_ context.Context, hash string) (model.ReadGrant, error) {
	g, ok := f.byHash[hash]
	if !ok {
		return model.ReadGrant{}, assertNotFoundErr
	}
	return g, nil
}

func (f *fakeGrantStore) GetGrant(_ context.Context, userID string, id uuid.UUID) (model.ReadGrant, error) {
	g, ok := f.byID[id]
	if !ok || g.UserID != userID {
		return model.ReadGrant{}, assertNotFoundErr
	}
	return g, nil
}

func (f *fakeGrantStore) RevokeGrant(_ context.Context, userID string, id uuid.UUID, reason string) error {
	g, ok := f.byID[id]
	if !ok || g.UserID != userID {
		return assertNotFoundErr
	}
	now := time.Now().UTC()
	g.RevokedAt = &now
	g.RevokeReason = reason
	f.byID[id] = g
	f.byHash[g.TokenHash] = g
	return nil
}

func (f *fakeGrantStore) ListActiveGrants(_ context.Context, userID string) ([]model.ReadGrant, error) {
	var out []model.ReadGrant
	for _, g := range f.byID {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

var assertNotFoundErr = assertErr("not found")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func newService() (*legacy.Service, *fakeMemStore) {
	memStore := &fakeMemStore{}
	grantStore := newFakeGrantStore()
	issuer := grant.New(grantStore, time.Hour)
	return legacy.New(memStore, issuer), memStore
}

func TestWriteRejectsInvalidScope(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Write(context.Background(), time.Now(), legacy.WriteParams{
		UserID: "u1", Scope: model.Scope("bogus"), Source: model.SourceUserSetting,
		TTLDays: 30, Value: []byte(`{}`),
	})
	assert.ErrorIs(t, err, legacy.ErrInvalidScope)
}

func TestWriteRejectsInvalidTTL(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Write(context.Background(), time.Now(), legacy.WriteParams{
		UserID: "u1", Scope: model.ScopePreferences, Source: model.SourceUserSetting,
		TTLDays: 0, Value: []byte(`{}`),
	})
	assert.ErrorIs(t, err, legacy.ErrInvalidTTL)
}

func TestWriteRejectsInvalidShape(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Write(context.Background(), time.Now(), legacy.WriteParams{
		UserID: "u1", Scope: model.ScopePreferences, Source: model.SourceUserSetting,
		TTLDays: 30, Value: []byte(`[1,2,3]`),
	})
	assert.ErrorIs(t, err, legacy.ErrInvalidShape)
}

// TestWriteShapeIsIndependentOfScope mirrors the documented constraints
// example (a kv_map payload with no rules array) landing in the
// constraints scope — shape is a property of the payload, not the scope
// it's filed under.
func TestWriteShapeIsIndependentOfScope(t *testing.T) {
	svc, _ := newService()
	m, err := svc.Write(context.Background(), time.Now(), legacy.WriteParams{
		UserID: "u1", Scope: model.ScopeConstraints, Source: model.SourceExplicitUserInput,
		TTLDays: 90, Value: []byte(`{"max_budget":1000,"preferred_vendors":["vendor1","vendor2"]}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ShapeKVMap, m.ValueShape)
}

func TestWritePersistsNormalizedMemory(t *testing.T) {
	svc, store := newService()
	m, err := svc.Write(context.Background(), time.Now(), legacy.WriteParams{
		UserID: "u1", Scope: model.ScopePreferences, Source: model.SourceExplicitUserInput,
		TTLDays: 90, Value: []byte(`{"likes": ["tea"], "dislikes": []}`),
	})
	require.NoError(t, err)
	assert.Equal(t, model.ShapeLikesDislikes, m.ValueShape)
	assert.Len(t, store.memories, 1)
	assert.Len(t, store.audits, 1)
	assert.Equal(t, model.AuditMemoryWrite, store.audits[0].EventType)
}

func TestReadDeniesUnrelatedPurpose(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Read(context.Background(), time.Now(), legacy.ReadParams{
		UserID: "u1", Scope: model.ScopePreferences, Purpose: "execute the task",
	})
	assert.ErrorIs(t, err, legacy.ErrPolicyDenied)
}

func TestReadMergesAndIssuesGrant(t *testing.T) {
	svc, _ := newService()
	now := time.Now()
	_, err := svc.Write(context.Background(), now, legacy.WriteParams{
		UserID: "u1", Scope: model.ScopePreferences, Source: model.SourceUserSetting,
		TTLDays: 90, Value: []byte(`{"likes": ["tea"], "dislikes": []}`),
	})
	require.NoError(t, err)

	result, err := svc.Read(context.Background(), now, legacy.ReadParams{
		UserID: "u1", Scope: model.ScopePreferences, Purpose: "recommend a gift",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.RevocationToken)
	assert.Contains(t, result.SummaryText, "tea")
}

func TestContinueReturnsSameTokenAndFreshData(t *testing.T) {
	svc, _ := newService()
	now := time.Now()
	_, err := svc.Write(context.Background(), now, legacy.WriteParams{
		UserID: "u1", Scope: model.ScopePreferences, Source: model.SourceUserSetting,
		TTLDays: 90, Value: []byte(`{"likes": ["tea"], "dislikes": []}`),
	})
	require.NoError(t, err)

	read, err := svc.Read(context.Background(), now, legacy.ReadParams{
		UserID: "u1", Scope: model.ScopePreferences, Purpose: "recommend a gift",
	})
	require.NoError(t, err)

	cont, err := svc.Continue(context.Background(), now.Add(time.Minute), read.RevocationToken, nil)
	require.NoError(t, err)
	assert.Equal(t, read.RevocationToken, cont.RevocationToken)
}

func TestRevokeThenContinueFails(t *testing.T) {
	svc, _ := newService()
	now := time.Now()
	_, err := svc.Write(context.Background(), now, legacy.WriteParams{
		UserID: "u1", Scope: model.ScopeSchedule, Source: model.SourceUserSetting,
		TTLDays: 30, Value: []byte(`{"windows": []}`),
	})
	require.NoError(t, err)

	read, err := svc.Read(context.Background(), now, legacy.ReadParams{
		UserID: "u1", Scope: model.ScopeSchedule, Purpose: "scheduling reminder",
	})
	require.NoError(t, err)

	_, err = svc.Revoke(context.Background(), now, read.RevocationToken)
	require.NoError(t, err)

	_, err = svc.Continue(context.Background(), now.Add(time.Minute), read.RevocationToken, nil)
	assert.ErrorIs(t, err, grant.ErrRevoked)
}

func TestRevokeUnknownTokenFails(t *testing.T) {
	svc, _ := newService()
	_, err := svc.Revoke(context.Background(), time.Now(), "bogus")
	require.Error(t, err)
}
