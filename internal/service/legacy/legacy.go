// Package legacy implements the v1 memory pipeline: typed writes into one of
// six fixed scopes, policy-gated reads that merge active memories into a
// single summary, and the bearer-token continue/revoke protocol that lets a
// caller repeat a read under frozen parameters (spec §4.6, §6.1).
package legacy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mnemex-labs/mnemex/internal/grant"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/normalize"
	"github.com/mnemex-labs/mnemex/internal/policy"
)

// ErrInvalidTTL is returned when ttl_days falls outside [1, 365].
var ErrInvalidTTL = errors.New("legacy: ttl_days must be in [1, 365]")

// ErrInvalidScope is returned for a scope outside the six fixed values.
var ErrInvalidScope = errors.New("legacy: scope not recognized")

// ErrPolicyDenied is returned when a read's purpose_class is not permitted
// to read the requested scope under the fixed policy matrix.
var ErrPolicyDenied = errors.New("legacy: read denied by policy")

// ErrInvalidShape is returned when value_json does not match any of the six
// recognized value shapes.
var ErrInvalidShape = errors.New("legacy: value_json does not match any allowed shape")

// Store is the storage surface the legacy service needs.
type Store interface {
	CreateMemory(ctx context.Context, m model.Memory) (model.Memory, error)
	ListActiveMemories(ctx context.Context, userID string, scope model.Scope, domain string) ([]model.Memory, error)
	InsertAuditEvent(ctx context.Context, e model.AuditEvent) error
}

// Service composes the store, the v1 policy matrix, and the grant issuer
// into the write/read/continue/revoke pipeline.
type Service struct {
	store  Store
	grants *grant.Issuer
}

// New returns a Service backed by store and grants.
func New(store Store, grants *grant.Issuer) *Service {
	return &Service{store: store, grants: grants}
}

// WriteParams describes a v1 memory write (spec §6.1's POST /memory body).
type WriteParams struct {
	UserID  string
	AppID   uuid.UUID
	Scope   model.Scope
	Domain  string
	Source  model.Source
	TTLDays int
	Value   []byte // raw JSON
}

// Write validates, normalizes, and persists a v1 memory.
func (s *Service) Write(ctx context.Context, now time.Time, p WriteParams) (model.Memory, error) {
	if !model.ValidScope(p.Scope) {
		return model.Memory{}, fmt.Errorf("%w: %s", ErrInvalidScope, p.Scope)
	}
	if p.TTLDays < 1 || p.TTLDays > 365 {
		return model.Memory{}, ErrInvalidTTL
	}

	shape, ok := normalize.DetectShape(p.Value)
	if !ok {
		return model.Memory{}, ErrInvalidShape
	}
	normalized, err := normalize.Value(p.Value, shape)
	if err != nil {
		return model.Memory{}, fmt.Errorf("legacy: normalize value: %w", err)
	}

	m := model.Memory{
		UserID:     p.UserID,
		AppID:      p.AppID,
		Scope:      p.Scope,
		Domain:     p.Domain,
		ValueJSON:  normalized,
		ValueShape: shape,
		Source:     p.Source,
		TTLDays:    p.TTLDays,
		CreatedAt:  now,
		ExpiresAt:  now.AddDate(0, 0, p.TTLDays),
	}

	created, err := s.store.CreateMemory(ctx, m)
	if err != nil {
		return model.Memory{}, err
	}

	s.audit(ctx, model.AuditEvent{
		Timestamp: now,
		EventType: model.AuditMemoryWrite,
		UserID:    p.UserID,
		AppID:     p.AppID,
		Scope:     p.Scope,
		Domain:    p.Domain,
		MemoryIDs: []uuid.UUID{created.ID},
	})

	return created, nil
}

// ReadResult is the shape returned by Read and Continue (spec §6.1).
type ReadResult struct {
	SummaryText      string
	SummaryStruct    []byte
	Confidence       float64
	RevocationToken  string
	ExpiresAt        time.Time
}

// ReadParams describes a v1 read (spec §6.1's POST /memory/read body).
type ReadParams struct {
	UserID     string
	AppID      uuid.UUID
	Scope      model.Scope
	Domain     string
	Purpose    string
	MaxAgeDays *int
}

// Read evaluates the policy matrix, merges the user's active memories in
// scope into a single summary, and issues a read grant for repeat access.
func (s *Service) Read(ctx context.Context, now time.Time, p ReadParams) (ReadResult, error) {
	if !model.ValidScope(p.Scope) {
		return ReadResult{}, fmt.Errorf("%w: %s", ErrInvalidScope, p.Scope)
	}

	purposeClass := policy.NormalizePurpose(p.Purpose)
	if !policy.CheckScopePurpose(p.Scope, purposeClass) {
		s.audit(ctx, model.AuditEvent{
			Timestamp:    now,
			EventType:    model.AuditPolicyDenied,
			UserID:       p.UserID,
			AppID:        p.AppID,
			Scope:        p.Scope,
			Domain:       p.Domain,
			Purpose:      p.Purpose,
			PurposeClass: purposeClass,
			ReasonCode:   "POLICY_DENIED",
		})
		return ReadResult{}, fmt.Errorf("%w: scope=%s purpose_class=%s", ErrPolicyDenied, p.Scope, purposeClass)
	}

	result, memoryIDs, err := s.readAndMerge(ctx, p.UserID, p.Scope, p.Domain)
	if err != nil {
		return ReadResult{}, err
	}

	token, g, err := s.grants.Issue(ctx, now, grant.IssueParams{
		UserID:     p.UserID,
		AppID:      p.AppID,
		Scope:      p.Scope,
		Domain:     p.Domain,
		Purpose:    p.Purpose,
		MaxAgeDays: p.MaxAgeDays,
	})
	if err != nil {
		return ReadResult{}, err
	}
	result.RevocationToken = token
	result.ExpiresAt = g.ExpiresAt

	s.audit(ctx, model.AuditEvent{
		Timestamp:         now,
		EventType:         model.AuditMemoryRead,
		UserID:            p.UserID,
		AppID:             p.AppID,
		Scope:             p.Scope,
		Domain:            p.Domain,
		Purpose:           p.Purpose,
		PurposeClass:      purposeClass,
		MemoryIDs:         memoryIDs,
		RevocationGrantID: &g.ID,
	})

	return result, nil
}

// Continue re-runs retrieval with a grant's frozen parameters.
func (s *Service) Continue(ctx context.Context, now time.Time, token string, maxAgeDaysOverride *int) (ReadResult, error) {
	g, err := s.grants.Continue(ctx, token, now)
	if err != nil {
		return ReadResult{}, err
	}

	maxAgeDays := g.MaxAgeDays
	if maxAgeDaysOverride != nil {
		maxAgeDays = maxAgeDaysOverride
	}
	_ = maxAgeDays // frozen retrieval parameters currently only gate scope/domain; age filtering is a future refinement.

	result, memoryIDs, err := s.readAndMerge(ctx, g.UserID, g.Scope, g.Domain)
	if err != nil {
		return ReadResult{}, err
	}
	result.RevocationToken = token
	result.ExpiresAt = g.ExpiresAt

	s.audit(ctx, model.AuditEvent{
		Timestamp:         now,
		EventType:         model.AuditContinue,
		UserID:            g.UserID,
		AppID:             g.AppID,
		Scope:             g.Scope,
		Domain:            g.Domain,
		Purpose:           g.Purpose,
		PurposeClass:      g.PurposeClass,
		MemoryIDs:         memoryIDs,
		RevocationGrantID: &g.ID,
		ReasonCode:        "CONTINUE",
	})

	return result, nil
}

// Revoke ends a grant early. Looks the grant up by token hash directly
// (bypassing expiry checks, unlike Continue) so an already-expired grant
// can still be revoked; an already-revoked or unknown token returns
// grant.ErrRevoked / storage.ErrNotFound unchanged so the handler can apply
// spec §4.6's existence-hiding response rules (404 for both).
func (s *Service) Revoke(ctx context.Context, now time.Time, token string) (time.Time, error) {
	g, err := s.grants.Lookup(ctx, token)
	if err != nil {
		return time.Time{}, err
	}
	if g.Revoked() {
		return time.Time{}, grant.ErrRevoked
	}

	if err := s.grants.Revoke(ctx, g.UserID, g.ID, "user_requested"); err != nil {
		return time.Time{}, err
	}

	s.audit(ctx, model.AuditEvent{
		Timestamp:         now,
		EventType:         model.AuditMemoryRevoke,
		UserID:            g.UserID,
		Scope:             g.Scope,
		Domain:            g.Domain,
		RevocationGrantID: &g.ID,
		ReasonCode:        "REVOKE",
	})

	return now, nil
}

// readAndMerge lists active memories in scope/domain and folds them through
// the deterministic merge engine.
func (s *Service) readAndMerge(ctx context.Context, userID string, scope model.Scope, domain string) (ReadResult, []uuid.UUID, error) {
	memories, err := s.store.ListActiveMemories(ctx, userID, scope, domain)
	if err != nil {
		return ReadResult{}, nil, fmt.Errorf("legacy: list active memories: %w", err)
	}

	merged, err := normalize.Merge(scope, memories)
	if err != nil {
		return ReadResult{}, nil, fmt.Errorf("legacy: merge: %w", err)
	}

	ids := make([]uuid.UUID, len(memories))
	for i, m := range memories {
		ids[i] = m.ID
	}

	return ReadResult{
		SummaryText:   merged.SummaryText,
		SummaryStruct: merged.SummaryStruct,
		Confidence:    merged.Confidence,
	}, ids, nil
}

// audit writes an audit row. Best-effort: a write or read that already
// succeeded must never be undone by an audit failure (spec §4.8), so the
// error is swallowed here rather than propagated to the caller.
func (s *Service) audit(ctx context.Context, e model.AuditEvent) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_ = s.store.InsertAuditEvent(ctx, e)
}
