package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/mnemex-labs/mnemex/internal/ctxutil"
	"github.com/mnemex-labs/mnemex/internal/model"
)

func (s *Server) registerTools() {
	// memory_query — retrieve memories relevant to a declared purpose.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_query",
			mcplib.WithDescription(`Retrieve memories relevant to a declared purpose.

WHEN TO USE: before responding or acting, to recall constraints and cues
that should shape the response — a user's stated preferences, prior
impacts, or seed associations for the current scope.

Declaring a purpose is required: it determines which memories policy
allows you to see. A memory denied for this purpose is left out of
memory_ids, impacts and seeds and is listed by ID only in denied_ids —
this tool never explains a denial.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("scope_type",
				mcplib.Description("Scope kind: user, org, app, session, project, case, or role."),
				mcplib.Required(),
			),
			mcplib.WithString("scope_id",
				mcplib.Description("Identifier within scope_type."),
				mcplib.Required(),
			),
			mcplib.WithString("purpose",
				mcplib.Description("Declared purpose: chat_response, task_execution, safety_filtering, reflection_requested_by_user, support_agent_review, compliance_audit, or debugging_replay."),
				mcplib.Required(),
			),
			mcplib.WithNumber("limit",
				mcplib.Description("Maximum memories to return"),
				mcplib.Min(1),
				mcplib.Max(100),
				mcplib.DefaultNumber(20),
			),
		),
		s.handleMemoryQuery,
	)

	// memory_reconstruct — build a textual context summary for a purpose.
	s.mcpServer.AddTool(
		mcplib.NewTool("memory_reconstruct",
			mcplib.WithDescription(`Build a short textual context summary from policy-filtered impacts
and seeds for a declared purpose.

WHEN TO USE: when you want a ready-to-use summary of what should shape a
response (tone, style, boundaries, safety handling) rather than a raw
list of memory IDs — memory_query returns the latter.

Sealed narrative is never surfaced here, regardless of include_events.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("scope_type",
				mcplib.Description("Scope kind: user, org, app, session, project, case, or role."),
				mcplib.Required(),
			),
			mcplib.WithString("scope_id",
				mcplib.Description("Identifier within scope_type."),
				mcplib.Required(),
			),
			mcplib.WithString("purpose",
				mcplib.Description("Declared purpose, same set as memory_query."),
				mcplib.Required(),
			),
			mcplib.WithString("include_events",
				mcplib.Description(`"true" to reference the event IDs the summary drew on: a count in the text and the IDs in sources, never their content. Defaults to "false".`),
			),
		),
		s.handleMemoryReconstruct,
	)
}

func (s *Server) handleMemoryQuery(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID := ctxutil.UserIDFromContext(ctx)
	scope := model.ScopeRef{
		ScopeType: model.ScopeType(request.GetString("scope_type", "")),
		ScopeID:   request.GetString("scope_id", ""),
	}
	purpose := model.Purpose(request.GetString("purpose", ""))
	limit := request.GetInt("limit", 20)

	result, _, err := s.memSvc.Query(ctx, userID, scope, purpose, limit, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	payload := map[string]any{
		"memory_ids": result.MemoryIDs,
		"impacts":    result.Impacts,
		"seeds":      result.Seeds,
		"denied_ids": result.DeniedIDs,
	}
	resultData, _ := json.MarshalIndent(payload, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}

func (s *Server) handleMemoryReconstruct(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	userID := ctxutil.UserIDFromContext(ctx)
	scope := model.ScopeRef{
		ScopeType: model.ScopeType(request.GetString("scope_type", "")),
		ScopeID:   request.GetString("scope_id", ""),
	}
	purpose := model.Purpose(request.GetString("purpose", ""))
	includeEvents, _ := strconv.ParseBool(request.GetString("include_events", "false"))

	out, _, err := s.memSvc.Reconstruct(ctx, userID, scope, purpose, includeEvents, time.Now().UTC())
	if err != nil {
		return errorResult(fmt.Sprintf("reconstruct failed: %v", err)), nil
	}

	resultData, _ := json.MarshalIndent(out, "", "  ")
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: string(resultData)},
		},
	}, nil
}
