package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/service/memory"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

// HandleCreateMemory handles POST /memories (v2): ingests a full
// MemoryObject draft under the governing policy document.
func (h *Handlers) HandleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req model.CreateMemoryRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	claims := ClaimsFromContext(r.Context())
	appID, err := appIDFromClaims(claims)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid token subject")
		return
	}

	created, _, trace, err := h.memory.Create(r.Context(), time.Now().UTC(), memory.CreateParams{
		TenantID:              req.TenantID,
		AppID:                 appID.String(),
		Scope:                 req.Scope,
		Type:                  req.Type,
		TruthMode:             req.TruthMode,
		Sensitivity:           req.Sensitivity,
		Ownership:             req.Ownership,
		Temporal:              req.Temporal,
		Content:               req.Content,
		Affect:                req.Affect,
		Strength:              req.Strength,
		ReconsolidationPolicy: req.ReconsolidationPolicy,
		ImpactPayload:         req.ImpactPayload,
		SeedPayload:           req.SeedPayload,
		Source:                req.Source,
	})
	if err != nil {
		if errors.Is(err, memory.ErrInvalidType) || errors.Is(err, memory.ErrInvalidReconsolidationPolicy) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
			return
		}
		if errors.Is(err, memory.ErrPolicyDenied) {
			writeJSON(w, r, http.StatusForbidden, model.CreateMemoryResponse{PolicyTrace: trace})
			return
		}
		h.writeInternalError(w, r, "failed to create memory", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.CreateMemoryResponse{
		ID:          created.ID,
		TenantID:    created.TenantID,
		State:       created.State,
		CreatedAt:   created.CreatedAt,
		PolicyTrace: trace,
	})
}

// HandleQueryMemories handles POST /memories/query (v2).
func (h *Handlers) HandleQueryMemories(w http.ResponseWriter, r *http.Request) {
	var req model.QueryMemoriesRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	result, logID, err := h.memory.Query(r.Context(), req.TenantID, req.Scope, req.Purpose, limit, time.Now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to query memories", err)
		return
	}

	seedIDs := make([]string, 0, len(result.Seeds))
	for _, seed := range result.Seeds {
		seedIDs = append(seedIDs, seed.ID)
	}

	writeJSON(w, r, http.StatusOK, model.QueryMemoriesResponse{
		MemoryIDs:   result.MemoryIDs,
		Impacts:     result.Impacts,
		Seeds:       seedIDs,
		Events:      result.Events,
		DeniedIDs:   result.DeniedIDs,
		PolicyTrace: policyTraceFor(h.memory, result.DeniedIDs),
		AccessLogID: logID,
	})
}

// HandleReconstruct handles POST /reconstruct (v2).
func (h *Handlers) HandleReconstruct(w http.ResponseWriter, r *http.Request) {
	var req model.ReconstructRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	out, logID, err := h.memory.Reconstruct(r.Context(), req.TenantID, req.Scope, req.Purpose, req.IncludeEvents, time.Now().UTC())
	if err != nil {
		h.writeInternalError(w, r, "failed to reconstruct context", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.ReconstructResponseBody{
		ReconstructedContext: out.ReconstructedContext,
		Confidence:           out.Confidence,
		Sources: model.ReconstructSources{
			Impacts: out.Sources.Impacts,
			Seeds:   out.Sources.Seeds,
			Events:  out.Sources.Events,
		},
		PolicyTrace: policyTraceFor(h.memory, nil),
		AccessLogID: logID,
	})
}

// policyTraceFor builds a response-level PolicyTrace for the query/
// reconstruct endpoints from the governing policy document's version and
// the per-memory denials retrieval already applied. Neither retrieval.Result
// nor reconstruct.Context carries an aggregate trace of its own — each
// candidate memory gets its own allow/deny decision instead — so this is
// assembled at the response boundary rather than invented inside the
// service.
func policyTraceFor(svc *memory.Service, deniedIDs []string) model.PolicyTrace {
	trace := model.PolicyTrace{
		PolicyVersion: svc.PolicyVersion(),
		FinalDecision: "allowed",
	}
	if len(deniedIDs) > 0 {
		trace.DeniedReasons = []string{"one or more candidates denied by query policy"}
	}
	return trace
}

func pathID(r *http.Request) string {
	return r.PathValue("id")
}

// HandleSeal handles POST /memories/{id}/seal.
func (h *Handlers) HandleSeal(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")

	m, err := h.memory.Seal(r.Context(), tenantID, pathID(r), time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:        m.ID,
		State:     m.State,
		UpdatedAt: m.UpdatedAt,
	})
}

// HandleRevokeMemoryObject handles POST /memories/{id}/revoke (v2).
func (h *Handlers) HandleRevokeMemoryObject(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")

	m, propagated, err := h.memory.Revoke(r.Context(), tenantID, pathID(r), time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:           m.ID,
		State:        m.State,
		PropagatedTo: propagated,
		UpdatedAt:    m.UpdatedAt,
	})
}

// HandleReinforce handles POST /memories/{id}/reinforce.
func (h *Handlers) HandleReinforce(w http.ResponseWriter, r *http.Request) {
	var req model.ReinforceRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	m, err := h.memory.Reinforce(r.Context(), req.TenantID, pathID(r), req.Delta, time.Now().UTC())
	if err != nil {
		if errors.Is(err, memory.ErrSpiralBlocked) {
			writeError(w, r, http.StatusConflict, model.ErrCodeValidation, err.Error())
			return
		}
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:        m.ID,
		State:     m.State,
		Strength:  &m.Strength,
		UpdatedAt: m.UpdatedAt,
	})
}

// HandleRecall handles POST /memories/{id}/recall: applies a
// reconsolidation request under the memory's own reconsolidation_policy.
func (h *Handlers) HandleRecall(w http.ResponseWriter, r *http.Request) {
	var req model.RecallRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	m, err := h.memory.Recall(r.Context(), req.TenantID, pathID(r), memory.RecallParams{
		AppendAffectHistory:   req.AppendAffectHistory,
		RelabelAffect:         req.RelabelAffect,
		UpdateClaimConfidence: req.UpdateClaimConfidence,
	}, time.Now().UTC())
	if err != nil {
		if errors.Is(err, memory.ErrReconsolidationForbidden) {
			writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, err.Error())
			return
		}
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:        m.ID,
		State:     m.State,
		UpdatedAt: m.UpdatedAt,
	})
}

// HandleDispute handles POST /memories/{id}/dispute.
func (h *Handlers) HandleDispute(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")

	m, err := h.memory.Dispute(r.Context(), tenantID, pathID(r), time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:           m.ID,
		State:        m.State,
		DisputeState: m.Ownership.DisputeState,
		UpdatedAt:    m.UpdatedAt,
	})
}

// HandleAttest handles POST /memories/{id}/attest.
func (h *Handlers) HandleAttest(w http.ResponseWriter, r *http.Request) {
	tenantID := r.URL.Query().Get("tenant_id")

	m, err := h.memory.Attest(r.Context(), tenantID, pathID(r), time.Now().UTC())
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "memory not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.MemoryTransitionResponse{
		ID:           m.ID,
		State:        m.State,
		DisputeState: m.Ownership.DisputeState,
		UpdatedAt:    m.UpdatedAt,
	})
}

// HandleExplain handles POST /explain: resolves an access log row to the
// memories and constraints it returned or denied, for debugging/audit.
func (h *Handlers) HandleExplain(w http.ResponseWriter, r *http.Request) {
	var req model.ExplainRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	result, err := h.memory.Explain(r.Context(), req.TenantID, req.LogID)
	if err != nil {
		if errors.Is(err, storage.ErrTampered) {
			h.writeInternalError(w, r, "access log content hash mismatch", err)
			return
		}
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "access log not found")
		return
	}

	writeJSON(w, r, http.StatusOK, model.ExplainResponseBody{
		Log:         result.Log,
		Memories:    result.Memories,
		Constraints: result.Constraints,
	})
}

// HandleReplay handles POST /replay: re-executes the retrieval an access
// log row recorded, optionally under a different limit.
func (h *Handlers) HandleReplay(w http.ResponseWriter, r *http.Request) {
	var req model.ReplayRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	result, err := h.memory.Replay(r.Context(), req.TenantID, req.LogID, req.Limit)
	if err != nil {
		if errors.Is(err, storage.ErrTampered) {
			h.writeInternalError(w, r, "access log content hash mismatch", err)
			return
		}
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "access log not found")
		return
	}

	seedIDs := make([]string, 0, len(result.Recomputed.Seeds))
	for _, seed := range result.Recomputed.Seeds {
		seedIDs = append(seedIDs, seed.ID)
	}

	writeJSON(w, r, http.StatusOK, model.ReplayResponseBody{
		OriginalLog: result.OriginalLog,
		Recomputed: model.QueryMemoriesResponse{
			MemoryIDs: result.Recomputed.MemoryIDs,
			Impacts:   result.Recomputed.Impacts,
			Seeds:     seedIDs,
			Events:    result.Recomputed.Events,
			DeniedIDs: result.Recomputed.DeniedIDs,
		},
	})
}

// HandleScopeBridge handles POST /scopes/{id}/bridge. Cross-agent
// federation between scopes is out of scope for this release (Open
// Question #2); the route exists so callers get a typed response instead
// of a routing 404.
func (h *Handlers) HandleScopeBridge(w http.ResponseWriter, r *http.Request) {
	writeError(w, r, http.StatusNotImplemented, model.ErrCodeNotImplemented, "scope bridging is not implemented")
}
