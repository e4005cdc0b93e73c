package mnemex

import (
	"io/fs"
	"log/slog"
	"time"
)

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	port            int
	databaseURL     string
	notifyURL       string
	policyPath      string
	grantTTL        time.Duration
	logger          *slog.Logger
	version         string
	eventHooks      []EventHook
	scopeBridge     ScopeBridgeResolver
	extraMigrations []fs.FS
}

// WithPort overrides the TCP port from config (MNEMEX_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithDatabaseURL overrides the database connection string from config
// (MNEMEX_DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY.
// Set this when queries go through a connection pooler (e.g. PgBouncer) —
// LISTEN/NOTIFY requires a direct, non-pooled connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithPolicyPath overrides the YAML policy document path from config. An
// empty path (the default) loads the compiled-in default policy.
func WithPolicyPath(path string) Option {
	return func(o *resolvedOptions) { o.policyPath = path }
}

// WithGrantTTL overrides the v1 ReadGrant lifetime from config.
func WithGrantTTL(ttl time.Duration) Option {
	return func(o *resolvedOptions) { o.grantTTL = ttl }
}

// WithLogger sets the structured logger for the App. If not set, the
// default slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported by the health endpoint and
// written to every log line at startup.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithEventHook registers a hook to receive memory lifecycle and
// access-logging notifications. Multiple hooks may be registered. See
// EventHook's doc comment: no code path in this module invokes a hook.
func WithEventHook(hook EventHook) Option {
	return func(o *resolvedOptions) { o.eventHooks = append(o.eventHooks, hook) }
}

// WithScopeBridgeResolver registers a cross-scope resolver. The resolver is
// stored and logged at startup, but the bridge handler does not call it:
// POST /scopes/{id}/bridge returns 501 whether or not one is registered.
func WithScopeBridgeResolver(r ScopeBridgeResolver) Option {
	return func(o *resolvedOptions) { o.scopeBridge = r }
}

// WithExtraMigrations adds an additional SQL migration filesystem to run
// after the core's own migrations. Multiple filesystems may be registered;
// they apply in registration order.
func WithExtraMigrations(dir fs.FS) Option {
	return func(o *resolvedOptions) { o.extraMigrations = append(o.extraMigrations, dir) }
}
