// Package retrieval implements policy-aware memory retrieval: sealed
// memory filtering, truth-mode enforcement for tool execution, and
// disputed-fact suppression (spec §4.3).
package retrieval

import (
	"context"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/policy"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

// Store is the narrow memory-query surface the retrieval engine needs. The
// concrete *storage.DB satisfies it; tests supply a fake.
type Store interface {
	ListMemoryObjects(ctx context.Context, tenantID string, filter storage.MemoryObjectFilter) ([]model.MemoryObject, error)
	GetMemoryObject(ctx context.Context, tenantID, id string) (model.MemoryObject, error)
}

// Engine retrieves memories for a declared purpose, filtering everything
// policy denies before the caller ever sees an ID.
type Engine struct {
	store  Store
	policy *policy.Engine
}

// New returns a retrieval Engine backed by store and governed by eng.
func New(store Store, eng *policy.Engine) *Engine {
	return &Engine{store: store, policy: eng}
}

// Seed is the minimal projection of a seed memory's retrieval cues.
type Seed struct {
	ID   string   `json:"id"`
	Cues []string `json:"cues"`
}

// Result is the policy-filtered outcome of a retrieval pass.
type Result struct {
	MemoryIDs []string
	Impacts   []model.Constraint
	Seeds     []Seed
	Events    []string
	DeniedIDs []string
}

// RetrieveForPurpose queries every memory in scope and keeps only what
// purpose and the policy engine jointly allow. Sealed events are always
// excluded from the Events slice; nonfactual truth modes are always
// excluded for task_execution, matching EvaluateToolExecution's invariant.
func (e *Engine) RetrieveForPurpose(ctx context.Context, tenantID string, scope model.ScopeRef, purpose model.Purpose, limit int) (Result, error) {
	candidates, err := e.store.ListMemoryObjects(ctx, tenantID, storage.MemoryObjectFilter{
		ScopeType: scope.ScopeType,
		ScopeID:   scope.ScopeID,
		Limit:     limit * 2,
	})
	if err != nil {
		return Result{}, err
	}

	var result Result
	var allowed []model.MemoryObject

	for _, m := range candidates {
		decision := e.policy.EvaluateQuery(m, purpose)
		if !decision.Allowed {
			result.DeniedIDs = append(result.DeniedIDs, m.ID)
			continue
		}
		if purpose == model.PurposeTaskExecutionV2 && model.NonfactualTruthModes[m.TruthMode] {
			result.DeniedIDs = append(result.DeniedIDs, m.ID)
			continue
		}
		allowed = append(allowed, m)

		switch m.Type {
		case model.MemoryImpact:
			if m.ImpactPayload != nil {
				result.Impacts = append(result.Impacts, m.ImpactPayload.Constraints...)
			}
		case model.MemorySeed:
			seed := Seed{ID: m.ID}
			if m.SeedPayload != nil {
				seed.Cues = m.SeedPayload.Cues
			}
			result.Seeds = append(result.Seeds, seed)
		case model.MemoryEvent:
			if m.State != model.StateSealed {
				result.Events = append(result.Events, m.ID)
			}
		}
	}

	if len(allowed) > limit {
		allowed = allowed[:limit]
	}
	for _, m := range allowed {
		result.MemoryIDs = append(result.MemoryIDs, m.ID)
	}

	return result, nil
}

// GetByID fetches one memory directly, bypassing purpose filtering (used by
// /explain and debugging_replay where the caller already holds an
// authorizing grant or admin scope).
func (e *Engine) GetByID(ctx context.Context, tenantID, memoryID string) (model.MemoryObject, error) {
	return e.store.GetMemoryObject(ctx, tenantID, memoryID)
}
