package ctxutil

import "github.com/mnemex-labs/mnemex/internal/model"

// AuditMeta carries the metadata needed to build an AuditEvent or AccessLog
// row from an MCP or HTTP call site. It lives in ctxutil so both server and
// mcp packages can populate it without circular imports.
type AuditMeta struct {
	RequestID  string
	UserID     string
	ActorRole  model.AppRole
	HTTPMethod string
	Endpoint   string
}
