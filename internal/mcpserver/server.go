// Package mcpserver implements an MCP (Model Context Protocol) server
// that exposes contract routing and request simulation as MCP tools over stdio.
package mcpserver

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/erraggy/oasengine"
)

const serverInstructions = `oasengine MCP server. Compiles OpenAPI 3.x contracts and shows how the engine routes, authenticates and validates requests against them.

Configuration: defaults are configurable via OASENGINE_* environment variables set in your MCP client config.

Key settings:
- OASENGINE_CACHE_FILE_TTL (default: 15m): cache TTL for compiled file contracts
- OASENGINE_CACHE_ENABLED (default: true): disable contract caching entirely
- OASENGINE_LIST_LIMIT (default: 100): default result limit for list_routes
- OASENGINE_MAX_BODY_SIZE (default: 100000): request body limit for simulate_request
- OASENGINE_IGNORE_SERVERS (default: false): route bare paths regardless of declared servers

Simulation: every declared security scheme accepts any credential present in the request. Use roles and scopes to grant them. Handlers echo the decoded parameters and body.`

// Run starts the MCP server over stdio and blocks until the client disconnects
// or the context is cancelled.
func Run(ctx context.Context) error {
	if cfg.CacheEnabled {
		engineCache.startSweeper(ctx, cfg.CacheSweepInterval)
	}

	server := mcp.NewServer(
		&mcp.Implementation{Name: "oasengine", Version: oasengine.Version()},
		&mcp.ServerOptions{
			Instructions: serverInstructions,
		},
	)
	registerAllTools(server)
	return server.Run(ctx, &mcp.StdioTransport{})
}

func registerAllTools(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_routes",
		Description: "Compile an OpenAPI 3.x contract and list its operations: method, path template, operationId, controller, security schemes, roles and parameters. Filter by method or a path glob (* matches one segment). Use offset/limit to paginate.",
	}, handleListRoutes)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "resolve_route",
		Description: "Resolve a method and URL against a contract the way the engine routes requests: server, then path (static paths win over templates, the last matching template wins), then method. Reports the operation, or the 405 and Allow header when only the method is wrong.",
	}, handleResolveRoute)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "simulate_request",
		Description: "Run a request through the engine: routing, security, parameter and body decoding and validation. Returns the status and body the engine would send. Handled requests echo the decoded parameters and body; rejected ones return the error body with every validation issue.",
	}, handleSimulateRequest)
}

// paginate applies offset/limit pagination to a slice, returning the
// requested page. A non-positive limit defaults to cfg.ListLimit.
func paginate[T any](items []T, offset, limit int) []T {
	if limit <= 0 {
		limit = cfg.ListLimit
	}
	if limit > cfg.MaxLimit {
		limit = cfg.MaxLimit
	}
	if offset < 0 || offset >= len(items) {
		return nil
	}
	end := offset + limit
	if end < offset || end > len(items) { // overflow or beyond slice
		end = len(items)
	}
	return items[offset:end]
}

// makeSlice returns nil when n is 0 (preserving omitempty JSON semantics),
// otherwise returns make([]T, 0, n) for pre-allocated appending.
func makeSlice[T any](n int) []T {
	if n == 0 {
		return nil
	}
	return make([]T, 0, n)
}

// sanitizeError strips absolute filesystem paths from error messages
// to prevent leaking internal directory structure to MCP clients.
var pathPattern = regexp.MustCompile(`(?:/(?:home|tmp|var|Users|etc|opt|usr|private|root|mnt|srv|run|snap|nix)[a-zA-Z0-9._/-]*)`)

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return pathPattern.ReplaceAllString(err.Error(), "<path>")
}

// errResult creates an MCP error result from an error.
func errResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{&mcp.TextContent{Text: sanitizeError(err)}},
	}
}

// validateGlobPattern checks whether a glob pattern is syntactically valid.
func validateGlobPattern(pattern string) error {
	if pattern == "" || !strings.ContainsAny(pattern, "*?[") {
		return nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
	}
	return nil
}
