package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerTenantTools() {
	// ── install_tenant ─────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("install_tenant",
		mcp.WithDescription("Create or migrate the block tables of a tenant. Safe to repeat."),
		mcp.WithNumber("tenant", mcp.Description("Tenant (site) id"), mcp.Required()),
	), s.handleInstallTenant)

	// ── uninstall_tenant (destructive) ─────────────────
	s.mcp.AddTool(mcp.NewTool("uninstall_tenant",
		mcp.WithDescription("🛑 DESTRUCTIVE: Drop the block tables of a tenant and every block in them."),
		mcp.WithNumber("tenant", mcp.Description("Tenant (site) id"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleUninstallTenant)

	if s.sweeper == nil {
		return
	}
	// ── sweep_tenant ───────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("sweep_tenant",
		mcp.WithDescription("Delete blocks that their owner's root block no longer reaches"),
		mcp.WithNumber("tenant", mcp.Description("Tenant (site) id"), mcp.Required()),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleSweepTenant)
}

func (s *Server) handleInstallTenant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := argTenant(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.installer.Install(ctx, t); err != nil {
		return nil, err
	}
	version, err := s.installer.InstalledVersion(ctx, t)
	if err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Tenant %d installed at schema version %s", t, version)), nil
}

func (s *Server) handleUninstallTenant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := argTenant(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err := s.installer.Uninstall(ctx, t); err != nil {
		return nil, err
	}
	return textResult(fmt.Sprintf("Tenant %d uninstalled", t)), nil
}

func (s *Server) handleSweepTenant(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := argTenant(req.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.sweeper.SweepTenant(ctx, t)
	if err != nil {
		return nil, err
	}
	return jsonResult(res)
}
