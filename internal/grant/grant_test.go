package grant_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemex-labs/mnemex/internal/grant"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

type fakeStore struct {
	byHash map[string]model.ReadGrant
	byID   map[uuid.UUID]model.ReadGrant
}

func newFakeStore() *fakeStore {
	return &fakeStore{byHash: map[string]model.ReadGrant{}, byID: map[uuid.UUID]model.ReadGrant{}}
}

func (f *fakeStore) CreateGrant(_ context.Context, g model.ReadGrant) (model.ReadGrant, error) {
	f.byHash[g.TokenHash] = g
	f.byID[g.ID] = g
	return g, nil
}

func (f *fakeStore) GetGrantByTokenHash(_ context.Context, hash string) (model.ReadGrant, error) {
	g, ok := f.byHash[hash]
	if !ok {
		return model.ReadGrant{}, storage.ErrNotFound
	}
	return g, nil
}

func (f *fakeStore) GetGrant(_ context.Context, userID string, id uuid.UUID) (model.ReadGrant, error) {
	g, ok := f.byID[id]
	if !ok || g.UserID != userID {
		return model.ReadGrant{}, storage.ErrNotFound
	}
	return g, nil
}

func (f *fakeStore) RevokeGrant(_ context.Context, userID string, id uuid.UUID, reason string) error {
	g, ok := f.byID[id]
	if !ok || g.UserID != userID {
		return storage.ErrNotFound
	}
	now := time.Now().UTC()
	g.RevokedAt = &now
	g.RevokeReason = reason
	f.byID[id] = g
	f.byHash[g.TokenHash] = g
	return nil
}

func (f *fakeStore) ListActiveGrants(_ context.Context, userID string) ([]model.ReadGrant, error) {
	var out []model.ReadGrant
	now := time.Now().UTC()
	for _, g := range f.byID {
		if g.UserID == userID && !g.Revoked() && !g.Expired(now) {
			out = append(out, g)
		}
	}
	return out, nil
}

func TestIssueRejectsDisallowedScopePurpose(t *testing.T) {
	issuer := grant.New(newFakeStore(), time.Hour)
	_, _, err := issuer.Issue(context.Background(), time.Now(), grant.IssueParams{
		UserID: "u1", Scope: model.ScopePreferences, Purpose: "execute the task",
	})
	assert.ErrorIs(t, err, grant.ErrScopeNotAllowed)
}

func TestIssueAndValidateRoundTrip(t *testing.T) {
	store := newFakeStore()
	issuer := grant.New(store, time.Hour)
	now := time.Now()

	token, g, err := issuer.Issue(context.Background(), now, grant.IssueParams{
		UserID: "u1", Scope: model.ScopePreferences, Purpose: "recommend a gift",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, model.PurposeRecommendation, g.PurposeClass)
	assert.Equal(t, now.Add(time.Hour), g.ExpiresAt)

	validated, err := issuer.Validate(context.Background(), token, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, g.ID, validated.ID)
}

func TestValidateUnknownTokenReturnsNotFound(t *testing.T) {
	issuer := grant.New(newFakeStore(), time.Hour)
	_, err := issuer.Validate(context.Background(), "bogus-token", time.Now())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestValidateExpiredGrant(t *testing.T) {
	store := newFakeStore()
	issuer := grant.New(store, time.Minute)
	now := time.Now()

	token, _, err := issuer.Issue(context.Background(), now, grant.IssueParams{
		UserID: "u1", Scope: model.ScopeSchedule, Purpose: "scheduling reminder",
	})
	require.NoError(t, err)

	_, err = issuer.Validate(context.Background(), token, now.Add(time.Hour))
	assert.ErrorIs(t, err, grant.ErrExpired)
}

func TestRevokeThenValidateFails(t *testing.T) {
	store := newFakeStore()
	issuer := grant.New(store, time.Hour)
	now := time.Now()

	token, g, err := issuer.Issue(context.Background(), now, grant.IssueParams{
		UserID: "u1", Scope: model.ScopeConstraints, Purpose: "task execution check",
	})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(context.Background(), "u1", g.ID, "user requested"))

	_, err = issuer.Validate(context.Background(), token, now.Add(time.Minute))
	assert.ErrorIs(t, err, grant.ErrRevoked)
}

func TestHashTokenDeterministic(t *testing.T) {
	assert.Equal(t, grant.HashToken("abc"), grant.HashToken("abc"))
	assert.NotEqual(t, grant.HashToken("abc"), grant.HashToken("abd"))
}

func TestListActiveExcludesRevoked(t *testing.T) {
	store := newFakeStore()
	issuer := grant.New(store, time.Hour)
	now := time.Now()

	_, g1, err := issuer.Issue(context.Background(), now, grant.IssueParams{
		UserID: "u1", Scope: model.ScopeAttention, Purpose: "notify about update",
	})
	require.NoError(t, err)
	require.NoError(t, issuer.Revoke(context.Background(), "u1", g1.ID, "done"))

	_, _, err = issuer.Issue(context.Background(), now, grant.IssueParams{
		UserID: "u1", Scope: model.ScopeAttention, Purpose: "notify about update",
	})
	require.NoError(t, err)

	active, err := issuer.ListActive(context.Background(), "u1")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}
