package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"awful/internal/service"
	"awful/internal/tenant"
)

// Installer creates and drops a tenant's block tables.
type Installer interface {
	Install(ctx context.Context, t tenant.ID) error
	Uninstall(ctx context.Context, t tenant.ID) error
	InstalledVersion(ctx context.Context, t tenant.ID) (string, error)
}

// Server is the MCP server for awful.
// It exposes tools, resources, and prompts so AI agents can read and edit
// block trees.
type Server struct {
	mcp       *server.MCPServer
	blocks    *service.BlockService
	installer Installer
	sweeper   *service.Sweeper
	logger    zerolog.Logger
}

// Deps holds the services the MCP server calls into.
type Deps struct {
	Blocks    *service.BlockService
	Installer Installer
	// Sweeper is optional; without it sweep_tenant is not offered.
	Sweeper *service.Sweeper
	Logger  zerolog.Logger
}

// New creates and configures a new MCP server with all tools and resources.
func New(deps Deps) *Server {
	s := &Server{
		blocks:    deps.Blocks,
		installer: deps.Installer,
		sweeper:   deps.Sweeper,
		logger:    deps.Logger.With().Str("component", "mcp").Logger(),
	}

	s.mcp = server.NewMCPServer(
		"awful-mcp",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(true, false),
		server.WithPromptCapabilities(true),
	)

	s.registerBlockTools()
	s.registerTenantTools()
	s.registerResources()
	s.registerPrompts()

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info().Msg("starting stdio server")
	return server.ServeStdio(s.mcp)
}

// textResult creates a simple text tool result.
func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// jsonResult serializes v to JSON and wraps it in a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}
	return textResult(string(data)), nil
}
