// Package server implements the HTTP API for mnemex.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/mnemex-labs/mnemex/internal/auth"
	"github.com/mnemex-labs/mnemex/internal/model"
	"github.com/mnemex-labs/mnemex/internal/service/legacy"
	"github.com/mnemex-labs/mnemex/internal/service/memory"
	"github.com/mnemex-labs/mnemex/internal/storage"
)

// Server wraps an http.Server with mnemex's handlers and middleware chain.
type Server struct {
	httpServer *http.Server
	handlers   *Handlers
	logger     *slog.Logger
}

// ServerConfig configures a Server. DB, JWTMgr, Legacy, Memory, and Logger
// are required; MCPServer is optional (nil disables the /mcp endpoint).
type ServerConfig struct {
	DB      *storage.DB
	JWTMgr  *auth.JWTManager
	Legacy  *legacy.Service
	Memory  *memory.Service
	Logger  *slog.Logger

	MCPServer *mcpserver.MCPServer // optional

	Port                int
	ReadTimeout         time.Duration
	WriteTimeout        time.Duration
	Version             string
	MaxRequestBodyBytes int64
	CORSAllowedOrigins  []string
	StartedAt           time.Time
}

// New builds a Server, registering all routes and wrapping them in the
// standard middleware chain.
func New(cfg ServerConfig) (*Server, error) {
	if cfg.DB == nil || cfg.JWTMgr == nil || cfg.Legacy == nil || cfg.Memory == nil || cfg.Logger == nil {
		return nil, fmt.Errorf("server: DB, JWTMgr, Legacy, Memory, and Logger are required")
	}
	if cfg.MaxRequestBodyBytes == 0 {
		cfg.MaxRequestBodyBytes = 1 << 20 // 1 MiB
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now().UTC()
	}

	h := NewHandlers(cfg)

	mux := http.NewServeMux()

	requireAdmin := requireRole(model.AppRoleAdmin)
	requireApp := requireRole(model.AppRoleApp)

	// Auth & bootstrap.
	mux.Handle("POST /auth/token", http.HandlerFunc(h.HandleAuthToken))
	mux.Handle("POST /auth/scoped-token", requireAdmin(http.HandlerFunc(h.HandleScopedToken)))
	mux.Handle("POST /apps", requireAdmin(http.HandlerFunc(h.HandleCreateApp)))
	mux.Handle("GET /health", http.HandlerFunc(h.HandleHealth))

	// v1 (legacy, write-once-read-with-grant) memory lifecycle.
	mux.Handle("POST /memory", requireApp(http.HandlerFunc(h.HandleWriteMemory)))
	mux.Handle("POST /memory/read", requireApp(http.HandlerFunc(h.HandleReadMemory)))
	mux.Handle("POST /memory/read/continue", requireApp(http.HandlerFunc(h.HandleContinueRead)))
	mux.Handle("POST /memory/revoke", requireApp(http.HandlerFunc(h.HandleRevokeMemory)))

	// v2 (policy-governed MemoryObject) lifecycle.
	mux.Handle("POST /memories", requireApp(http.HandlerFunc(h.HandleCreateMemory)))
	mux.Handle("POST /memories/query", requireApp(http.HandlerFunc(h.HandleQueryMemories)))
	mux.Handle("POST /reconstruct", requireApp(http.HandlerFunc(h.HandleReconstruct)))
	mux.Handle("POST /memories/{id}/seal", requireApp(http.HandlerFunc(h.HandleSeal)))
	mux.Handle("POST /memories/{id}/revoke", requireApp(http.HandlerFunc(h.HandleRevokeMemoryObject)))
	mux.Handle("POST /memories/{id}/reinforce", requireApp(http.HandlerFunc(h.HandleReinforce)))
	mux.Handle("POST /memories/{id}/recall", requireApp(http.HandlerFunc(h.HandleRecall)))
	mux.Handle("POST /memories/{id}/dispute", requireApp(http.HandlerFunc(h.HandleDispute)))
	mux.Handle("POST /memories/{id}/attest", requireApp(http.HandlerFunc(h.HandleAttest)))
	mux.Handle("POST /explain", requireApp(http.HandlerFunc(h.HandleExplain)))
	mux.Handle("POST /replay", requireApp(http.HandlerFunc(h.HandleReplay)))

	// Cross-agent federation is out of scope for this release; the route
	// exists so callers get a typed 501 rather than a routing 404.
	mux.Handle("POST /scopes/{id}/bridge", requireApp(http.HandlerFunc(h.HandleScopeBridge)))

	// MCP StreamableHTTP transport (auth required, app-scoped).
	if cfg.MCPServer != nil {
		mcpHTTP := mcpserver.NewStreamableHTTPServer(cfg.MCPServer)
		mux.Handle("/mcp", requireApp(mcpHTTP))
	}

	var handler http.Handler = mux
	handler = authMiddleware(cfg.JWTMgr, cfg.DB, handler)
	handler = recoveryMiddleware(cfg.Logger, handler)
	handler = loggingMiddleware(cfg.Logger, handler)
	handler = tracingMiddleware(handler)
	handler = corsMiddleware(cfg.CORSAllowedOrigins, handler)
	handler = securityHeadersMiddleware(handler)
	handler = requestIDMiddleware(handler)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{httpServer: httpServer, handlers: h, logger: cfg.Logger}, nil
}

// Start begins serving HTTP requests. Blocks until Shutdown is called or an
// unrecoverable error occurs.
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server, waiting for in-flight requests to
// complete or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handlers returns the underlying Handlers, mainly for tests.
func (s *Server) Handlers() *Handlers {
	return s.handlers
}
