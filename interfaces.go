package mnemex

import "context"

// EventHook describes notifications for a memory's lifecycle state changes
// (seal, revoke, reinforce, dispute, attest) and for logged retrievals.
// Multiple hooks may be registered via multiple WithEventHook calls.
//
// Registered hooks are stored on the App, but no code path in this module
// invokes them, so they receive no events. The v2 lifecycle methods
// (service/memory.Service) have no hook parameter.
type EventHook interface {
	OnMemoryChanged(ctx context.Context, m Memory) error
	OnAccessLogged(ctx context.Context, r AccessRecord) error
}

// ScopeBridgeResolver resolves a cross-scope bridge request (spec's
// POST /scopes/{id}/bridge) to the target scope's memories the caller is
// permitted to read. Left unimplemented in the OSS core: the endpoint
// returns 501, and a resolver registered via WithScopeBridgeResolver is
// only logged at startup, never called.
type ScopeBridgeResolver interface {
	Resolve(ctx context.Context, fromScope, toScope Scope) ([]Memory, error)
}
