// Package memory implements the v2 memory lifecycle: typed event/impact/seed
// objects moving through create/seal/revoke/reinforce/recall/dispute/attest,
// policy-gated query and reconstruction, and the explain/replay debugging
// pair (spec §4.7). It composes the policy engine, the deterministic
// extractor, and the retrieval/reconstruction engines rather than
// reimplementing any of their decisions.
package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemex-labs/mnemex/internal/extractor"
	"github.com/mnemex-labs/mnemex/internal/idgen"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
	"github.com/mnemex-labs/mnemex/internal/reconstruct"
	"github.com/mnemex-labs/mnemex/internal/retrieval"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

// DefaultReinforceDelta is the strength increment applied when a caller
// does not specify one (spec §4.7).
const DefaultReinforceDelta = 0.1

// ErrInvalidType is returned for a memory type outside event/impact/seed.
var ErrInvalidType = errors.New("memory: type not recognized")

// ErrInvalidReconsolidationPolicy is returned for an unrecognized reconsolidation_policy.
var ErrInvalidReconsolidationPolicy = errors.New("memory: reconsolidation_policy not recognized")

// ErrInvalidDisputeState is returned for a dispute_state outside the four fixed values.
var ErrInvalidDisputeState = errors.New("memory: dispute_state not recognized")

// ErrPolicyDenied is returned when ingest policy evaluation refuses the write.
var ErrPolicyDenied = errors.New("memory: ingest denied by policy")

// ErrReconsolidationForbidden is returned when a recall/reconsolidate request
// asks for a mutation its reconsolidation_policy does not permit.
var ErrReconsolidationForbidden = errors.New("memory: reconsolidation_policy forbids this mutation")

// ErrSpiralBlocked is returned when an active spiral TPA blocks reinforcement.
var ErrSpiralBlocked = errors.New("memory: reinforcement blocked by active spiral window")

// Store is the storage surface the v2 lifecycle needs, beyond the
// retrieval/reconstruction engines' own narrower surfaces.
type Store interface {
	IngestMemoryObject(ctx context.Context, w storage.IngestWrite) (model.MemoryObject, *model.MemoryObject, error)
	GetMemoryObject(ctx context.Context, tenantID, id string) (model.MemoryObject, error)
	UpdateMemoryObject(ctx context.Context, m model.MemoryObject) error
	ListChildLinks(ctx context.Context, parentID string) ([]model.DerivedObjectLink, error)
	InsertAccessLog(ctx context.Context, l model.AccessLog) error
	GetAccessLog(ctx context.Context, tenantID, logID string) (model.AccessLog, error)
	ListActiveArtifacts(ctx context.Context, tenantID string, scopeType model.ScopeType, scopeID string) ([]model.ThoughtPatternArtifact, error)
}

// Service composes the store, policy engine, extractor, and
// retrieval/reconstruction engines into the v2 operation set.
type Service struct {
	store       Store
	policy      *policy.Engine
	extractor   *extractor.Extractor
	retrieval   *retrieval.Engine
	reconstruct *reconstruct.Engine
}

// New returns a Service backed by the given collaborators.
func New(store Store, eng *policy.Engine, ex *extractor.Extractor, ret *retrieval.Engine, recon *reconstruct.Engine) *Service {
	return &Service{store: store, policy: eng, extractor: ex, retrieval: ret, reconstruct: recon}
}

// PolicyVersion returns the governing policy document's version, so callers
// building a response-level PolicyTrace (the HTTP API's query/reconstruct
// handlers) can stamp it without reaching into the policy engine directly.
func (s *Service) PolicyVersion() string {
	return s.policy.Version()
}

// CreateParams describes a v2 ingest call (spec §6.1's POST /memories body).
type CreateParams struct {
	TenantID              string
	AppID                 string
	Scope                 model.ScopeRef
	Type                  model.MemoryType
	TruthMode             model.TruthMode
	Sensitivity           model.Sensitivity
	Ownership             model.Ownership
	Temporal              model.Temporal
	Content               model.Content
	Affect                model.Affect
	Strength              model.Strength
	ReconsolidationPolicy model.ReconsolidationPolicy
	ImpactPayload         *model.ImpactPayload
	SeedPayload           *model.SeedPayload
	Source                model.SourceKind
}

// Create validates, evaluates ingest policy, persists, and (for an event
// whose policy allows derivation) extracts and links a derived impact, all
// within a single transaction (spec §4.8). The returned PolicyTrace is the
// ingest decision's trace, for callers (the HTTP API) that must echo it back.
func (s *Service) Create(ctx context.Context, now time.Time, p CreateParams) (model.MemoryObject, *model.MemoryObject, model.PolicyTrace, error) {
	if !model.ValidMemoryType(p.Type) {
		return model.MemoryObject{}, nil, model.PolicyTrace{}, fmt.Errorf("%w: %s", ErrInvalidType, p.Type)
	}
	reconPolicy := p.ReconsolidationPolicy
	if reconPolicy == "" {
		reconPolicy = model.ReconAppendOnly
	}
	if !model.ValidReconsolidationPolicy(reconPolicy) {
		return model.MemoryObject{}, nil, model.PolicyTrace{}, fmt.Errorf("%w: %s", ErrInvalidReconsolidationPolicy, reconPolicy)
	}

	candidate := model.MemoryObject{
		ID:          idgen.Memory(),
		TenantID:    p.TenantID,
		AppID:       p.AppID,
		Scope:       p.Scope,
		Type:        p.Type,
		TruthMode:   p.TruthMode,
		State:       model.StateActive,
		Sensitivity: p.Sensitivity,
		Ownership:   p.Ownership,
		Temporal:    p.Temporal,
		Content:     p.Content,
		Affect:      p.Affect,
		Strength:    p.Strength,
		Provenance: model.Provenance{
			Source:        p.Source,
			PolicyVersion: s.policy.Version(),
			Confidence:    1.0,
		},
		ReconsolidationPolicy: reconPolicy,
		ImpactPayload:         p.ImpactPayload,
		SeedPayload:           p.SeedPayload,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	decision := s.policy.EvaluateIngest(candidate)
	if !decision.Allowed {
		s.logAccess(ctx, p.TenantID, p.Scope, model.OpIngest, "",
			model.AccessDecision{Allowed: false, MatchedRules: decision.Trace.MatchedRules, Explanation: "ingest denied by policy"}, now)
		return model.MemoryObject{}, nil, decision.Trace, fmt.Errorf("%w: matched=%s", ErrPolicyDenied, strings.Join(decision.Trace.MatchedRules, ","))
	}
	candidate.State = decision.State

	write := storage.IngestWrite{Memory: candidate}

	if candidate.Type == model.MemoryEvent && decision.DeriveImpacts {
		if impact, ok := s.extractor.Extract(candidate, true, func() time.Time { return now }); ok {
			write.Impact = &impact
			write.Link = &model.DerivedObjectLink{
				Relationship:     model.RelationDerivedImpact,
				Rule:             "impact_extraction_v2",
				StrengthTransfer: 0.4,
				CreatedAt:        now,
			}
		}
	}

	write.AccessLog = model.AccessLog{
		Time:     now,
		TenantID: p.TenantID,
		Scope:    p.Scope,
		Query:    model.AccessQuery{Op: model.OpIngest},
		Decision: model.AccessDecision{Allowed: true, MatchedRules: decision.Trace.MatchedRules, ReturnedIDs: []string{candidate.ID}},
	}

	created, impact, err := s.store.IngestMemoryObject(ctx, write)
	if err != nil {
		return model.MemoryObject{}, nil, decision.Trace, fmt.Errorf("memory: ingest: %w", err)
	}
	return created, impact, decision.Trace, nil
}

// Seal sets state=sealed. No cascade; subsequent retrieval must never
// surface the narrative again (spec §4.7).
func (s *Service) Seal(ctx context.Context, tenantID, id string, now time.Time) (model.MemoryObject, error) {
	m, err := s.store.GetMemoryObject(ctx, tenantID, id)
	if err != nil {
		return model.MemoryObject{}, err
	}
	m.State = model.StateSealed
	m.UpdatedAt = now
	if err := s.store.UpdateMemoryObject(ctx, m); err != nil {
		return model.MemoryObject{}, err
	}
	return m, nil
}

// Revoke sets state=revoked and propagates one hop to directly derived
// children (Open Question §9 decision: one hop only, not transitive). A
// child that fails to update is skipped rather than failing the whole
// revoke, since the parent's own revocation has already committed.
func (s *Service) Revoke(ctx context.Context, tenantID, id string, now time.Time) (model.MemoryObject, []string, error) {
	m, err := s.store.GetMemoryObject(ctx, tenantID, id)
	if err != nil {
		return model.MemoryObject{}, nil, err
	}
	m.State = model.StateRevoked
	m.UpdatedAt = now
	if err := s.store.UpdateMemoryObject(ctx, m); err != nil {
		return model.MemoryObject{}, nil, err
	}

	links, err := s.store.ListChildLinks(ctx, id)
	if err != nil {
		return model.MemoryObject{}, nil, fmt.Errorf("memory: list child links: %w", err)
	}

	var propagated []string
	for _, link := range links {
		child, err := s.store.GetMemoryObject(ctx, tenantID, link.ChildID)
		if err != nil || child.State == model.StateRevoked {
			continue
		}
		child.State = model.StateRevoked
		child.UpdatedAt = now
		if err := s.store.UpdateMemoryObject(ctx, child); err != nil {
			continue
		}
		propagated = append(propagated, child.ID)
	}

	s.logAccess(ctx, tenantID, m.Scope, model.OpRevoke, "",
		model.AccessDecision{Allowed: true, ReturnedIDs: append([]string{m.ID}, propagated...)}, now)

	return m, propagated, nil
}

// Reinforce increments strength.current by delta (DefaultReinforceDelta if
// zero), capped at 1.0, and updates last_reinforced_at. Blocked outright
// when an active spiral TPA applies to the memory's scope (spec §4.7).
func (s *Service) Reinforce(ctx context.Context, tenantID, id string, delta float64, now time.Time) (model.MemoryObject, error) {
	if delta == 0 {
		delta = DefaultReinforceDelta
	}

	m, err := s.store.GetMemoryObject(ctx, tenantID, id)
	if err != nil {
		return model.MemoryObject{}, err
	}

	artifacts, err := s.store.ListActiveArtifacts(ctx, tenantID, m.Scope.ScopeType, m.Scope.ScopeID)
	if err != nil {
		return model.MemoryObject{}, fmt.Errorf("memory: list active artifacts: %w", err)
	}
	spiral := s.policy.Spiral()
	if spiral.BlockReinforcement {
		for _, a := range artifacts {
			if a.Active(now) {
				return model.MemoryObject{}, ErrSpiralBlocked
			}
		}
	}

	m.Strength.Current += delta
	if m.Strength.Current > 1.0 {
		m.Strength.Current = 1.0
	}
	reinforcedAt := now
	m.Strength.LastReinforcedAt = &reinforcedAt
	m.UpdatedAt = now

	if err := s.store.UpdateMemoryObject(ctx, m); err != nil {
		return model.MemoryObject{}, err
	}

	s.logAccess(ctx, tenantID, m.Scope, model.OpReinforce, "",
		model.AccessDecision{Allowed: true, ReturnedIDs: []string{m.ID}}, now)

	return m, nil
}

// RecallParams describes a recall/reconsolidate request. Which fields may be
// set is gated by the target memory's own reconsolidation_policy.
type RecallParams struct {
	AppendAffectHistory   *model.AffectHistoryEntry
	RelabelAffect         *model.Affect
	UpdateClaimConfidence *float64
}

// Recall applies a reconsolidation request under the memory's own
// reconsolidation_policy: never_edit_source forbids any of these mutations,
// append_only permits only affect history entries, allow_relabel_affect_only
// additionally permits replacing the current affect reading, and
// allow_update_claim_confidence additionally permits updating the claimed
// temporal confidence instead of affect (spec §4.7).
func (s *Service) Recall(ctx context.Context, tenantID, id string, p RecallParams, now time.Time) (model.MemoryObject, error) {
	m, err := s.store.GetMemoryObject(ctx, tenantID, id)
	if err != nil {
		return model.MemoryObject{}, err
	}

	switch m.ReconsolidationPolicy {
	case model.ReconNeverEditSource:
		if p.AppendAffectHistory != nil || p.RelabelAffect != nil || p.UpdateClaimConfidence != nil {
			return model.MemoryObject{}, ErrReconsolidationForbidden
		}
	case model.ReconAppendOnly:
		if p.RelabelAffect != nil || p.UpdateClaimConfidence != nil {
			return model.MemoryObject{}, ErrReconsolidationForbidden
		}
		appendAffectHistory(&m, p.AppendAffectHistory)
	case model.ReconAllowRelabelAffectOnly:
		if p.UpdateClaimConfidence != nil {
			return model.MemoryObject{}, ErrReconsolidationForbidden
		}
		appendAffectHistory(&m, p.AppendAffectHistory)
		if p.RelabelAffect != nil {
			m.Affect.Valence = p.RelabelAffect.Valence
			m.Affect.Arousal = p.RelabelAffect.Arousal
			m.Affect.Labels = p.RelabelAffect.Labels
			m.Affect.Confidence = p.RelabelAffect.Confidence
		}
	case model.ReconAllowUpdateClaimConfidence:
		if p.RelabelAffect != nil {
			return model.MemoryObject{}, ErrReconsolidationForbidden
		}
		appendAffectHistory(&m, p.AppendAffectHistory)
		if p.UpdateClaimConfidence != nil {
			m.Temporal.Confidence = *p.UpdateClaimConfidence
		}
	default:
		return model.MemoryObject{}, fmt.Errorf("%w: %s", ErrInvalidReconsolidationPolicy, m.ReconsolidationPolicy)
	}

	m.UpdatedAt = now
	if err := s.store.UpdateMemoryObject(ctx, m); err != nil {
		return model.MemoryObject{}, err
	}

	s.logAccess(ctx, tenantID, m.Scope, model.OpRecall, "",
		model.AccessDecision{Allowed: true, ReturnedIDs: []string{m.ID}}, now)

	return m, nil
}

func appendAffectHistory(m *model.MemoryObject, entry *model.AffectHistoryEntry) {
	if entry == nil {
		return
	}
	m.Affect.History = append(m.Affect.History, *entry)
}

// SetDisputeState transitions ownership.dispute_state. Any caller
// authenticated as the memory's tenant may call this; there is no
// claimant/owner check beyond tenant isolation (Open Question §9 decision).
// Dispute and Attest are exposed as named wrappers for the two HTTP verbs
// that drive this same transition from opposite directions.
func (s *Service) SetDisputeState(ctx context.Context, tenantID, id string, state model.DisputeState, now time.Time) (model.MemoryObject, error) {
	if !model.ValidDisputeState(state) {
		return model.MemoryObject{}, fmt.Errorf("%w: %s", ErrInvalidDisputeState, state)
	}
	m, err := s.store.GetMemoryObject(ctx, tenantID, id)
	if err != nil {
		return model.MemoryObject{}, err
	}
	m.Ownership.DisputeState = state
	m.UpdatedAt = now
	if err := s.store.UpdateMemoryObject(ctx, m); err != nil {
		return model.MemoryObject{}, err
	}
	return m, nil
}

// Dispute marks a memory's ownership claim disputed.
func (s *Service) Dispute(ctx context.Context, tenantID, id string, now time.Time) (model.MemoryObject, error) {
	return s.SetDisputeState(ctx, tenantID, id, model.DisputeDisputed, now)
}

// Attest marks a memory's ownership claim undisputed.
func (s *Service) Attest(ctx context.Context, tenantID, id string, now time.Time) (model.MemoryObject, error) {
	return s.SetDisputeState(ctx, tenantID, id, model.DisputeUndisputed, now)
}

// Query retrieves memories for purpose under the policy-filtered retrieval
// engine and logs the access. The returned log ID identifies the row for
// later /explain or /replay calls.
func (s *Service) Query(ctx context.Context, tenantID string, scope model.ScopeRef, purpose model.Purpose, limit int, now time.Time) (retrieval.Result, string, error) {
	result, err := s.retrieval.RetrieveForPurpose(ctx, tenantID, scope, purpose, limit)
	if err != nil {
		return retrieval.Result{}, "", err
	}
	logID := s.logAccess(ctx, tenantID, scope, model.OpQuery, purpose,
		model.AccessDecision{Allowed: true, ReturnedIDs: result.MemoryIDs, DeniedIDs: result.DeniedIDs}, now)
	return result, logID, nil
}

// Reconstruct builds a textual context from policy-filtered impacts/seeds
// and logs the access. The returned log ID identifies the row for later
// /explain or /replay calls.
func (s *Service) Reconstruct(ctx context.Context, tenantID string, scope model.ScopeRef, purpose model.Purpose, includeEvents bool, now time.Time) (reconstruct.Context, string, error) {
	result, err := s.reconstruct.Reconstruct(ctx, tenantID, scope, purpose, includeEvents)
	if err != nil {
		return reconstruct.Context{}, "", err
	}
	returned := append(append([]string{}, result.Sources.Impacts...), result.Sources.Seeds...)
	logID := s.logAccess(ctx, tenantID, scope, model.OpReconstruct, purpose,
		model.AccessDecision{Allowed: true, ReturnedIDs: returned}, now)
	return result, logID, nil
}

// ToolGate evaluates whether the named memories may back a tool-execution
// call for purpose, enforcing the nonfactual-truth-mode exclusion regardless
// of policy defaults.
func (s *Service) ToolGate(ctx context.Context, tenantID string, memoryIDs []string, purpose model.Purpose, now time.Time) (policy.ToolExecutionResult, error) {
	var memories []model.MemoryObject
	var scope model.ScopeRef
	for _, id := range memoryIDs {
		m, err := s.store.GetMemoryObject(ctx, tenantID, id)
		if err != nil {
			continue
		}
		memories = append(memories, m)
		scope = m.Scope
	}

	result := s.policy.EvaluateToolExecution(memories, purpose)
	s.logAccess(ctx, tenantID, scope, model.OpToolGate, purpose,
		model.AccessDecision{
			Allowed:     result.Allowed,
			ReturnedIDs: result.AllowedMemoryIDs,
			DeniedIDs:   result.DeniedMemoryIDs,
			Explanation: strings.Join(result.DeniedReasons, "; "),
		}, now)

	return result, nil
}

// ExplainResult is the debugging projection of one access-log row: the
// memories it named and the constraints carried by any impacts among them.
type ExplainResult struct {
	Log         model.AccessLog
	Memories    []model.MemoryObject
	Constraints []model.Constraint
}

// Explain resolves an access log row to the memories it returned/denied and
// their extracted constraints.
func (s *Service) Explain(ctx context.Context, tenantID, logID string) (ExplainResult, error) {
	log, err := s.store.GetAccessLog(ctx, tenantID, logID)
	if err != nil {
		return ExplainResult{}, err
	}

	ids := append(append([]string{}, log.Decision.ReturnedIDs...), log.Decision.DeniedIDs...)
	var memories []model.MemoryObject
	var constraints []model.Constraint
	for _, id := range ids {
		m, err := s.store.GetMemoryObject(ctx, tenantID, id)
		if err != nil {
			continue // best-effort: a named memory may since be gone
		}
		memories = append(memories, m)
		if m.Type == model.MemoryImpact && m.ImpactPayload != nil {
			constraints = append(constraints, m.ImpactPayload.Constraints...)
		}
	}

	return ExplainResult{Log: log, Memories: memories, Constraints: constraints}, nil
}

// ReplayResult pairs the original access-log row with what re-running its
// retrieval produces now.
type ReplayResult struct {
	OriginalLog model.AccessLog
	Recomputed  retrieval.Result
}

// Replay re-executes the retrieval an access log row recorded, optionally
// under a different limit.
func (s *Service) Replay(ctx context.Context, tenantID, logID string, limitOverride *int) (ReplayResult, error) {
	log, err := s.store.GetAccessLog(ctx, tenantID, logID)
	if err != nil {
		return ReplayResult{}, err
	}

	limit := 100
	if limitOverride != nil {
		limit = *limitOverride
	}

	result, err := s.retrieval.RetrieveForPurpose(ctx, tenantID, log.Scope, log.Purpose, limit)
	if err != nil {
		return ReplayResult{}, err
	}

	return ReplayResult{OriginalLog: log, Recomputed: result}, nil
}

// logAccess writes an access log row and returns its ID. Best-effort: an
// operation that already succeeded must never be undone by a logging
// failure (spec §4.8), so the error is swallowed here rather than
// propagated to the caller.
func (s *Service) logAccess(ctx context.Context, tenantID string, scope model.ScopeRef, op model.Operation, purpose model.Purpose, decision model.AccessDecision, now time.Time) string {
	logID := idgen.AccessLog()
	_ = s.store.InsertAccessLog(ctx, model.AccessLog{
		LogID:    logID,
		Time:     now,
		TenantID: tenantID,
		Scope:    scope,
		Purpose:  purpose,
		Query:    model.AccessQuery{Op: op},
		Decision: decision,
	})
	return logID
}
