// Package mcp implements a Model Context Protocol adapter for mnemex.
//
// It exposes exactly the read-only, policy-gated surface an agent needs
// to pull context without ever writing a memory through this path:
// memory_query and memory_reconstruct. Every call still goes through the
// same policy engine and access-log emission as the HTTP API.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	memsvc "github.com/mnemex-labs/mnemex/internal/service/memory"
)

const serverInstructions = `You have access to mnemex, a policy-governed memory substrate.

TOOLS:
- memory_query: retrieve memories relevant to a declared purpose
- memory_reconstruct: build a short context summary from policy-filtered
  impacts and seeds for a declared purpose

Both tools are read-only: they never create, seal, revoke, reinforce, or
otherwise mutate a memory. Every call is policy-gated and logged exactly
as it would be over HTTP — a denied memory is left out of the returned
content and listed by ID only in denied_ids, never explained away.`

// Server wraps the MCP server with mnemex's v2 memory service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	memSvc    *memsvc.Service
	logger    *slog.Logger
}

// New creates and configures a new MCP server exposing the read-only tool set.
func New(memSvc *memsvc.Service, logger *slog.Logger, version string) *Server {
	s := &Server{
		memSvc: memSvc,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"mnemex",
		version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithInstructions(serverInstructions),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
