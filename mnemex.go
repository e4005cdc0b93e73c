// Package mnemex is the public API for embedding the mnemex memory core.
//
// Enterprise and application consumers import this package to construct and
// run the server without forking it:
//
//	app, err := mnemex.New(
//	    mnemex.WithVersion(version),
//	    mnemex.WithLogger(logger),
//	    mnemex.WithEventHook(myAuditSink{}),
//	)
//	if err != nil { ... }
//	if err := app.Run(ctx); err != nil { ... }
//
// The import graph enforces a strict no-cycle rule: mnemex (root) imports
// internal/*, but internal/* never imports mnemex (root). Public types
// (Memory, AccessRecord, etc.) are standalone structs with no internal
// imports, so extension interfaces defined here never force a consumer to
// import internal/model.
package mnemex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joho/godotenv"

	"github.com/mnemex-labs/mnemex/internal/auth"
	"github.com/mnemex-labs/mnemex/internal/config"
	"github.com/mnemex-labs/mnemex/internal/extractor"
	"github.com/mnemex-labs/mnemex/internal/grant"
	"github.com/mnemex-labs/mnemex/internal/mcp"
	"github.com/mnemex-labs/mnemex/internal/policy"
	"github.com/mnemex-labs/mnemex/internal/reconstruct"
	"github.com/mnemex-labs/mnemex/internal/retrieval"
	"github.com/mnemex-labs/mnemex/internal/server"
	"github.com/mnemex-labs/mnemex/internal/service/legacy"
	"github.com/mnemex-labs/mnemex/internal/service/memory"
	"github.com/mnemex-labs/mnemex/internal/storage"
	"github.com/mnemex-labs/mnemex/internal/telemetry"
	"github.com/mnemex-labs/mnemex/migrations"
)

// App is the mnemex server lifecycle. Construct with New(), run with Run().
// App has no public fields — use New() options to configure it.
type App struct {
	cfg          config.Config
	db           *storage.DB
	srv          *server.Server
	policy       *policy.Engine
	otelShutdown func(context.Context) error
	eventHooks   []EventHook
	logger       *slog.Logger
	version      string
}

// New initializes the mnemex server. It connects to the database, runs
// migrations, wires every subsystem, and returns a ready-to-run App. It does
// NOT start any goroutines or accept HTTP connections — call Run().
func New(opts ...Option) (*App, error) {
	o := resolvedOptions{}
	for _, fn := range opts {
		fn(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = slog.Default()
	}

	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if o.port != 0 {
		cfg.Port = o.port
	}
	if o.databaseURL != "" {
		cfg.DatabaseURL = o.databaseURL
	}
	if o.notifyURL != "" {
		cfg.NotifyURL = o.notifyURL
	}
	if o.policyPath != "" {
		cfg.PolicyPath = o.policyPath
	}
	if o.grantTTL != 0 {
		cfg.GrantTTL = o.grantTTL
	}
	version := o.version
	if version == "" {
		version = "dev"
	}

	logger.Info("mnemex starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := storage.New(context.Background(), cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("storage: %w", err)
	}

	if err := db.RunMigrations(context.Background(), migrations.FS); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("migrations: %w", err)
	}
	for i, extraFS := range o.extraMigrations {
		if err := db.RunMigrations(context.Background(), extraFS); err != nil {
			db.Close(context.Background())
			_ = otelShutdown(context.Background())
			return nil, fmt.Errorf("extra migrations[%d]: %w", i, err)
		}
	}

	// Verify the v2 schema exists after migration. If the pgvector extension
	// failed to create, migrations fail silently partway through and the
	// server would otherwise start against an empty database.
	var schemaOK bool
	if err := db.Pool().QueryRow(context.Background(),
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'memories_v2')`,
	).Scan(&schemaOK); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("schema verification: %w", err)
	}
	if !schemaOK {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("critical table 'memories_v2' does not exist after migration — check that the pgvector extension is created")
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("auth: %w", err)
	}

	policyEngine, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("policy: %w", err)
	}
	logger.Info("policy loaded", "version", policyEngine.Version())

	retrievalEngine := retrieval.New(db, policyEngine)
	reconstructEngine := reconstruct.New(retrievalEngine)
	ex := extractor.New()

	grantIssuer := grant.New(db, cfg.GrantTTL)
	legacySvc := legacy.New(db, grantIssuer)
	memorySvc := memory.New(db, policyEngine, ex, retrievalEngine, reconstructEngine)

	mcpSrv := mcp.New(memorySvc, logger, version)

	srv, err := server.New(server.ServerConfig{
		DB:                  db,
		JWTMgr:              jwtMgr,
		Legacy:              legacySvc,
		Memory:              memorySvc,
		Logger:              logger,
		MCPServer:           mcpSrv.MCPServer(),
		Port:                cfg.Port,
		ReadTimeout:         cfg.ReadTimeout,
		WriteTimeout:        cfg.WriteTimeout,
		Version:             version,
		MaxRequestBodyBytes: cfg.MaxRequestBodyBytes,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		StartedAt:           time.Now().UTC(),
	})
	if err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("server: %w", err)
	}

	if err := srv.Handlers().SeedAdmin(context.Background(), cfg.AdminAPIKey); err != nil {
		db.Close(context.Background())
		_ = otelShutdown(context.Background())
		return nil, fmt.Errorf("admin seed: %w", err)
	}

	if o.scopeBridge != nil {
		logger.Info("scope bridge resolver registered (bridge endpoint still returns 501 in this release)")
	}

	return &App{
		cfg:          cfg,
		db:           db,
		srv:          srv,
		policy:       policyEngine,
		otelShutdown: otelShutdown,
		eventHooks:   o.eventHooks,
		logger:       logger,
		version:      version,
	}, nil
}

// Run starts all background goroutines and the HTTP server, then blocks
// until ctx is cancelled or a fatal server error occurs. On return, Shutdown
// is called automatically — callers should not call Shutdown separately.
func (a *App) Run(ctx context.Context) error {
	go a.tpaSweepLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		if err := a.srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	return a.Shutdown(context.Background())
}

// Shutdown stops accepting HTTP requests, drains in-flight requests, and
// closes the database pool and OTEL provider.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("mnemex shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", "error", err)
	}

	_ = a.otelShutdown(context.Background())
	a.db.Close(context.Background())

	a.logger.Info("mnemex stopped")
	return nil
}

// ── Background loops (moved from cmd/mnemexd/main.go) ──────────────────────

// tpaSweepLoop periodically purges expired ThoughtPatternArtifacts (spiral
// windows). Ticks at cfg.TPASweepInterval until ctx is cancelled.
func (a *App) tpaSweepLoop(ctx context.Context) {
	if a.cfg.TPASweepInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.cfg.TPASweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.db.SweepExpiredArtifacts(ctx)
			if err != nil {
				a.logger.Warn("tpa sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.logger.Info("tpa sweep complete", "expired", n)
			}
		}
	}
}
