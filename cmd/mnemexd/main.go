package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
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

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run0())
}

func run0() int {
	level := parseLogLevel(os.Getenv("MNEMEX_LOG_LEVEL"))
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, logger); err != nil {
		slog.Error("fatal error", "error", err)
		return 1
	}
	return 0
}

func run(ctx context.Context, logger *slog.Logger) error {
	// Load .env file if present (non-fatal; production won't have one).
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("mnemex starting", "version", version, "port", cfg.Port)

	otelShutdown, err := telemetry.Init(ctx, cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() { _ = otelShutdown(context.Background()) }()

	db, err := storage.New(ctx, cfg.DatabaseURL, cfg.NotifyURL, logger)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer db.Close(ctx)

	if err := db.RunMigrations(ctx, migrations.FS); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	// Verify the v2 schema exists after migration. If the pgvector extension
	// failed to create, migrations fail silently partway through and the
	// server would otherwise start against an empty database.
	var schemaOK bool
	if err := db.Pool().QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'memories_v2')`,
	).Scan(&schemaOK); err != nil {
		return fmt.Errorf("schema verification: %w", err)
	}
	if !schemaOK {
		return fmt.Errorf("critical table 'memories_v2' does not exist after migration — check that the pgvector extension is created")
	}

	jwtMgr, err := auth.NewJWTManager(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	policyEngine, err := policy.Load(cfg.PolicyPath)
	if err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	slog.Info("policy loaded", "version", policyEngine.Version())

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
		return fmt.Errorf("server: %w", err)
	}

	if err := srv.Handlers().SeedAdmin(ctx, cfg.AdminAPIKey); err != nil {
		return fmt.Errorf("admin seed: %w", err)
	}

	go tpaSweepLoop(ctx, db, logger, cfg.TPASweepInterval)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	slog.Info("mnemex shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http shutdown error", "error", err)
	}

	slog.Info("mnemex stopped")
	return nil
}

// tpaSweepLoop periodically purges expired ThoughtPatternArtifacts (spiral
// windows). Ticks at cfg.TPASweepInterval until ctx is cancelled.
func tpaSweepLoop(ctx context.Context, db *storage.DB, logger *slog.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := db.SweepExpiredArtifacts(ctx)
			if err != nil {
				logger.Warn("tpa sweep failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("tpa sweep complete", "expired", n)
			}
		}
	}
}

func parseLogLevel(raw string) slog.Level {
	switch raw {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
