package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mnemex-labs/mnemex/internal/auth"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/service/legacy"
	"github.com/mnemex-labs/mnemex/internal/service/memory"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

const seedAdminAppName = "admin"

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  *storage.DB
	jwtMgr              *auth.JWTManager
	legacy              *legacy.Service
	memory              *memory.Service
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(cfg ServerConfig) *Handlers {
	return &Handlers{
		db:                  cfg.DB,
		jwtMgr:              cfg.JWTMgr,
		legacy:              cfg.Legacy,
		memory:              cfg.Memory,
		logger:              cfg.Logger,
		startedAt:           cfg.StartedAt,
		version:             cfg.Version,
		maxRequestBodyBytes: cfg.MaxRequestBodyBytes,
	}
}

// HandleAuthToken handles POST /auth/token: an App exchanges its name and
// API key secret for a bearer JWT.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	app, err := h.db.FindAppByName(r.Context(), req.Name)
	if err != nil {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid credentials")
		return
	}

	valid, err := auth.VerifyAPIKey(req.APIKey, app.APIKeyHash)
	if err != nil || !valid {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeAuthentication, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(app)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue token", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}

// HandleScopedToken handles POST /auth/scoped-token (admin-only): mints a
// short-lived token scoped to act as another App, for support_agent_review
// style delegated access without sharing secrets.
func (h *Handlers) HandleScopedToken(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())

	var req model.ScopedTokenRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	targetID, err := uuid.Parse(req.AsAppID)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "as_app_id must be a valid UUID")
		return
	}

	target, err := h.db.GetApp(r.Context(), targetID)
	if err != nil {
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "target app not found")
		return
	}

	ttl := auth.MaxScopedTokenTTL
	if req.ExpiresIn > 0 {
		ttl = time.Duration(req.ExpiresIn) * time.Second
	}

	token, expiresAt, err := h.jwtMgr.IssueScopedToken(claims.Subject, target, ttl)
	if err != nil {
		h.writeInternalError(w, r, "failed to issue scoped token", err)
		return
	}

	writeJSON(w, r, http.StatusOK, model.ScopedTokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		AsAppID:   target.ID.String(),
		ScopedBy:  claims.Subject,
	})
}

// HandleCreateApp handles POST /apps (admin-only): provisions a new App.
// The caller supplies its own bearer secret; mnemex persists only its
// Argon2id hash.
func (h *Handlers) HandleCreateApp(w http.ResponseWriter, r *http.Request) {
	var req model.CreateAppRequest
	if err := decodeJSON(r, &req, h.maxRequestBodyBytes); err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "invalid request body")
		return
	}

	if req.Name == "" || req.UserID == "" || req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeValidation, "name, user_id, and api_key are required")
		return
	}
	if req.Role == "" {
		req.Role = model.AppRoleApp
	}

	hash, err := auth.HashAPIKey(req.APIKey)
	if err != nil {
		h.writeInternalError(w, r, "failed to hash api key", err)
		return
	}

	app, err := h.db.CreateApp(r.Context(), model.App{
		Name:       req.Name,
		UserID:     req.UserID,
		Role:       req.Role,
		APIKeyHash: hash,
	})
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			writeError(w, r, http.StatusConflict, model.ErrCodeValidation, "name already exists")
			return
		}
		h.writeInternalError(w, r, "failed to create app", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.CreateAppResponse{App: app})
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
	}

	writeJSON(w, r, http.StatusOK, model.HealthResponse{
		Status:    "healthy",
		Version:   h.version,
		Postgres:  pgStatus,
		UptimeSec: int64(time.Since(h.startedAt).Seconds()),
	})
}

// appIDFromClaims extracts the calling App's ID from the JWT subject claim.
func appIDFromClaims(claims *auth.Claims) (uuid.UUID, error) {
	return uuid.Parse(claims.Subject)
}

// SeedAdmin idempotently provisions the initial admin App from an operator-
// supplied API key, so a fresh deployment has a way to bootstrap further Apps
// without a database migration. A no-op when adminAPIKey is empty or an App
// named "admin" already exists.
func (h *Handlers) SeedAdmin(ctx context.Context, adminAPIKey string) error {
	if adminAPIKey == "" {
		h.logger.Info("no admin api key configured, skipping admin seed")
		return nil
	}

	_, err := h.db.FindAppByName(ctx, seedAdminAppName)
	if err == nil {
		h.logger.Info("admin app already exists, skipping admin seed")
		return nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("seed admin: %w", err)
	}

	hash, err := auth.HashAPIKey(adminAPIKey)
	if err != nil {
		return fmt.Errorf("seed admin: hash key: %w", err)
	}

	_, err = h.db.CreateApp(ctx, model.App{
		Name:       seedAdminAppName,
		UserID:     seedAdminAppName,
		Role:       model.AppRoleAdmin,
		APIKeyHash: hash,
	})
	if err != nil {
		return fmt.Errorf("seed admin: create app: %w", err)
	}

	h.logger.Info("seeded initial admin app")
	return nil
}
