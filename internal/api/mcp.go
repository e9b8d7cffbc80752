package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/castmatch/castmatch/internal/capability"
	"github.com/castmatch/castmatch/internal/storage"
)

// NewMCPServer exposes every registered capability as an MCP tool. Tool
// names, descriptions, and input schemas are projected straight from the
// registry so the MCP surface can never drift from the HTTP one.
func NewMCPServer(registry *capability.Registry, store *storage.Store) *server.MCPServer {
	s := server.NewMCPServer(
		"castmatch",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("castmatch — campaign/creator matching, relevancy graph, and goal runs."),
		server.WithRecovery(),
	)

	for _, listing := range registry.List() {
		s.AddTool(
			mcp.NewToolWithRawSchema(listing.Name, listing.Description, listing.InputSchema),
			mcpInvoke(registry, listing.Name),
		)
	}

	s.AddResource(
		mcp.NewResource(
			"castmatch://goal-runs/recent",
			"Recent Goal Runs",
			mcp.WithResourceDescription("Last 10 goal run sessions"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceRecentRuns(store),
	)

	return s
}

func mcpInvoke(registry *capability.Registry, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := registry.Invoke(ctx, name, req.GetArguments())
		if err != nil {
			return mcpError(err.Error()), nil
		}
		b, err := json.Marshal(result)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal result: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpResourceRecentRuns(store *storage.Store) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		sessions, err := store.ListSessions(10)
		if err != nil {
			return nil, fmt.Errorf("failed to list goal runs: %w", err)
		}

		type runSummary struct {
			ID        string `json:"id"`
			Status    string `json:"status"`
			Goal      any    `json:"goal"`
			CreatedAt string `json:"created_at"`
		}
		summaries := make([]runSummary, len(sessions))
		for i, sess := range sessions {
			var goal any
			_ = json.Unmarshal(sess.Goal, &goal)
			summaries[i] = runSummary{
				ID:        sess.ID,
				Status:    sess.Status,
				Goal:      goal,
				CreatedAt: sess.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal goal runs: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
