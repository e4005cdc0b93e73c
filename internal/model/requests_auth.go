package model

import "time"

// AuthTokenRequest is the request body for POST /auth/token: an App
// exchanges its name and API key secret for a bearer JWT.
type AuthTokenRequest struct {
	Name   string `json:"name"`
	APIKey string `json:"api_key"`
}

// AuthTokenResponse is the response for POST /auth/token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ScopedTokenRequest is the request body for POST /auth/scoped-token,
// admin-only: mints a short-lived token scoped to another App, for
// support_agent_review-style delegated access (spec §10.3).
type ScopedTokenRequest struct {
	AsAppID   string `json:"as_app_id"`
	ExpiresIn int    `json:"expires_in_seconds,omitempty"`
}

// ScopedTokenResponse is the response for POST /auth/scoped-token.
type ScopedTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	AsAppID   string    `json:"as_app_id"`
	ScopedBy  string    `json:"scoped_by"`
}

// CreateAppRequest is the request body for the admin-only app-provisioning
// call. The caller supplies its own bearer secret; mnemex never generates
// or stores it in plaintext, only its Argon2id hash (App.APIKeyHash).
type CreateAppRequest struct {
	Name   string  `json:"name"`
	UserID string  `json:"user_id"`
	Role   AppRole `json:"role"`
	APIKey string  `json:"api_key"`
}

// CreateAppResponse returns the provisioned App record. APIKey is never
// echoed back; the caller already holds the secret it supplied.
type CreateAppResponse struct {
	App App `json:"app"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Postgres  string `json:"postgres"`
	UptimeSec int64  `json:"uptime_seconds"`
}
