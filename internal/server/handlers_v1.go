package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/mnemex-labs/mnemex/internal/grant"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/service/legacy"
)

// HandleWriteMemory handles POST /memory (v1).
func (h *Handlers) HandleWriteMemory(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.WriteMemoryRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	appID, err := appIDFromClaims(claims)
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid token subject")
		return
	}

	mem, err := h.legacy.Write(r.Context(), time.Now().UTC(), legacy.WriteParams{
		UserID:  req.UserID,
		AppID:   appID,
		Scope:   req.Scope,
		Domain:  req.Domain,
		Source:  req.Source,
		TTLDays: req.TTLDays,
		Value:   req.Value,
	})
	if err != nil {
		if errors.Is(err, legacy.ErrInvalidScope) || errors.Is(err, legacy.ErrInvalidTTL) || errors.Is(err, legacy.ErrInvalidShape) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
			return
		}
		h.writeInternalError(w, r, "failed to write memory", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.WriteMemoryResponse{
		ID:        mem.ID.String(),
		UserID:    mem.UserID,
		Scope:     mem.Scope,
		Domain:    mem.Domain,
		CreatedAt: mem.CreatedAt,
		ExpiresAt: mem.ExpiresAt,
	})
}

// HandleReadMemory handles POST /memory/read (v1).
func (h *Handlers) HandleReadMemory(w http.ResponseWriter, r *http.Request) {
	var req model.ReadMemoryRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	appID, err := appIDFromClaims(ClaimsFromContext(r.Context()))
	if err != nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid token subject")
		return
	}

	result, err := h.legacy.Read(r.Context(), time.Now().UTC(), legacy.ReadParams{
		UserID:     req.UserID,
		AppID:      appID,
		Scope:      req.Scope,
		Domain:     req.Domain,
		Purpose:    req.Purpose,
		MaxAgeDays: req.MaxAgeDays,
	})
	if err != nil {
		if errors.Is(err, legacy.ErrPolicyDenied) {
			writeError(w, r, http.StatusForbidden, model.ErrCodeAuthorization, err.Error())
			return
		}
		if errors.Is(err, legacy.ErrInvalidScope) {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, err.Error())
			return
		}
		h.writeInternalError(w, r, "failed to read memory", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.ReadMemoryResponse{
		SummaryText:     result.SummaryText,
		SummaryStruct:   result.SummaryStruct,
		Confidence:      result.Confidence,
		RevocationToken: result.RevocationToken,
		ExpiresAt:       result.ExpiresAt,
	})
}

// HandleContinueRead handles POST /memory/read/continue (v1): repeats a
// prior read under its original frozen parameters, identified by the
// revocation token issued from that read.
func (h *Handlers) HandleContinueRead(w http.ResponseWriter, r *http.Request) {
	var req model.ContinueMemoryRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	result, err := h.legacy.Continue(r.Context(), time.Now().UTC(), req.RevocationToken, req.MaxAgeDays)
	if err != nil {
		if errors.Is(err, grant.ErrRevoked) || errors.Is(err, grant.ErrExpired) {
			writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid or expired revocation token")
			return
		}
		h.writeInternalError(w, r, "failed to continue read", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.ReadMemoryResponse{
		SummaryText:     result.SummaryText,
		SummaryStruct:   result.SummaryStruct,
		Confidence:      result.Confidence,
		RevocationToken: result.RevocationToken,
		ExpiresAt:       result.ExpiresAt,
	})
}

// HandleRevokeMemory handles POST /memory/revoke (v1).
func (h *Handlers) HandleRevokeMemory(w http.ResponseWriter, r *http.Request) {
	var req model.RevokeMemoryRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	revokedAt, err := h.legacy.Revoke(r.Context(), time.Now().UTC(), req.RevocationToken)
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "revocation token not found or already revoked")
		return
	}

	writeJSON(w, r, http.StatusOK, model.RevokeMemoryResponse{
		Revoked:   true,
		RevokedAt: revokedAt,
	})
}
