// Package grant implements the v1 bearer-token read-grant protocol: mint a
// 128-bit token, store only its SHA-256 hash, and authorize repeated reads
// under fixed parameters until the grant expires or is revoked (spec §4.6).
package grant

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
)

// DefaultTTL is the grant lifetime applied when the caller does not
// override it (spec §4.6).
const DefaultTTL = 24 * time.Hour

// tokenBytes is the raw entropy length of a minted bearer token (128 bits).
const tokenBytes = 16

// ErrScopeNotAllowed is returned when the requested purpose is not permitted
// to read the given scope under the fixed v1 policy matrix.
var ErrScopeNotAllowed = errors.New("grant: purpose not allowed to read scope")

// ErrRevoked is returned by Validate for a grant that has been explicitly revoked.
var ErrRevoked = errors.New("grant: revoked")

// ErrExpired is returned by Validate for a grant past its TTL.
var ErrExpired = errors.New("grant: expired")

// Store is the storage surface the grant package needs.
type Store interface {
	CreateGrant(ctx context.Context, grant model.ReadGrant) (model.ReadGrant, error)
	GetGrantByTokenHash(ctx context.Context, tokenHash string) (model.ReadGrant, error)
	GetGrant(ctx context.Context, userID string, id uuid.UUID) (model.ReadGrant, error)
	RevokeGrant(ctx context.Context, userID string, id uuid.UUID, reason string) error
	ListActiveGrants(ctx context.Context, userID string) ([]model.ReadGrant, error)
}

// Issuer mints and validates read grants.
type Issuer struct {
	store Store
	ttl   time.Duration
}

// New returns an Issuer backed by store, using ttl as the grant lifetime
// (DefaultTTL if zero).
func New(store Store, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{store: store, ttl: ttl}
}

// mintToken returns a fresh bearer token and its SHA-256 hex digest.
func mintToken() (token, hash string, err error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("grant: generate token: %w", err)
	}
	token = hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken returns the SHA-256 hex digest of a bearer token, the only form
// ever persisted.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// IssueParams describes a grant to mint.
type IssueParams struct {
	UserID     string
	AppID      uuid.UUID
	Scope      model.Scope
	Domain     string
	Purpose    string
	MaxAgeDays *int
}

// Issue normalizes purpose, checks it against the v1 policy matrix for
// scope, mints a token, and persists the grant. The clear token is returned
// exactly once; only its hash is stored.
func (i *Issuer) Issue(ctx context.Context, now time.Time, p IssueParams) (token string, g model.ReadGrant, err error) {
	purposeClass := policy.NormalizePurpose(p.Purpose)
	if !policy.CheckScopePurpose(p.Scope, purposeClass) {
		return "", model.ReadGrant{}, fmt.Errorf("%w: scope=%s purpose_class=%s", ErrScopeNotAllowed, p.Scope, purposeClass)
	}

	token, hash, err := mintToken()
	if err != nil {
		return "", model.ReadGrant{}, err
	}

	grant := model.ReadGrant{
		ID:           uuid.New(),
		TokenHash:    hash,
		UserID:       p.UserID,
		AppID:        p.AppID,
		Scope:        p.Scope,
		Domain:       p.Domain,
		Purpose:      p.Purpose,
		PurposeClass: purposeClass,
		MaxAgeDays:   p.MaxAgeDays,
		CreatedAt:    now,
		ExpiresAt:    now.Add(i.ttl),
	}

	created, err := i.store.CreateGrant(ctx, grant)
	if err != nil {
		return "", model.ReadGrant{}, err
	}
	return token, created, nil
}

// Validate resolves a bearer token to its grant and reports whether it may
// still authorize reads. The same ErrNotFound is returned for an unknown
// token and a deliberately-not-yet-distinguished lookup failure; ErrRevoked
// and ErrExpired are only returned once a real grant is found, so a caller
// cannot use response shape to probe for valid-but-revoked tokens versus
// tokens that never existed.
func (i *Issuer) Validate(ctx context.Context, token string, now time.Time) (model.ReadGrant, error) {
	g, err := i.store.GetGrantByTokenHash(ctx, HashToken(token))
	if err != nil {
		return model.ReadGrant{}, err
	}
	if g.Revoked() {
		return model.ReadGrant{}, ErrRevoked
	}
	if g.Expired(now) {
		return model.ReadGrant{}, ErrExpired
	}
	return g, nil
}

// Lookup resolves a bearer token to its grant by hash alone, without
// checking expiry or revocation. Used by Revoke, which must still be able
// to act on an expired-but-not-yet-revoked grant.
func (i *Issuer) Lookup(ctx context.Context, token string) (model.ReadGrant, error) {
	return i.store.GetGrantByTokenHash(ctx, HashToken(token))
}

// Continue re-validates an existing grant for a repeat read under the same
// parameters it was issued with. It is the same check as Validate; the
// distinct name matches the protocol's continue/revoke vocabulary (spec §4.6).
func (i *Issuer) Continue(ctx context.Context, token string, now time.Time) (model.ReadGrant, error) {
	return i.Validate(ctx, token, now)
}

// Revoke ends a grant early. It marks this one grant revoked, so it stops
// authorizing further reads; nothing already returned under it is clawed
// back.
func (i *Issuer) Revoke(ctx context.Context, userID string, id uuid.UUID, reason string) error {
	return i.store.RevokeGrant(ctx, userID, id, reason)
}

// ListActive returns every grant still capable of authorizing a read for user.
func (i *Issuer) ListActive(ctx context.Context, userID string) ([]model.ReadGrant, error) {
	return i.store.ListActiveGrants(ctx, userID)
}
