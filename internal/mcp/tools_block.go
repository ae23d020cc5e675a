package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"awful/internal/blocks"
)

var ownerKinds = []string{"site", "user", "post", "term", "comment"}

func (s *Server) registerBlockTools() {
	// ── get_blocks ─────────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("get_blocks",
		mcp.WithDescription("Read every block of an owner as {uuid: {type, data}}, the same shape submit_blocks accepts."),
		mcp.WithNumber("tenant", mcp.Description("Tenant (site) id"), mcp.Required()),
		mcp.WithString("kind", mcp.Description("Owner kind"), mcp.Enum(ownerKinds...), mcp.Required()),
		mcp.WithNumber("id", mcp.Description("Owner id (ignored for site)")),
	), s.handleGetBlocks)

	// ── submit_blocks ──────────────────────────────────
	s.mcp.AddTool(mcp.NewTool("submit_blocks",
		mcp.WithDescription("Validate a block tree and, if every block reachable from the root is valid, replace the owner's blocks with it. Blocks the root no longer reaches are deleted. Returns null on success or the validation errors."),
		mcp.WithNumber("tenant", mcp.Description("Tenant (site) id"), mcp.Required()),
		mcp.WithString("kind", mcp.Description("Owner kind"), mcp.Enum(ownerKinds...), mcp.Required()),
		mcp.WithNumber("id", mcp.Description("Owner id (ignored for site)")),
		mcp.WithString("blocks",
			mcp.Description(`JSON object {uuid: {"type": ..., "data": {...}}} with exactly one root block`),
			mcp.Required(),
		),
		mcp.WithString("fields", mcp.Description("Comma-separated root fields that may change (optional, default all)")),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{DestructiveHint: boolPtr(true)}),
	), s.handleSubmitBlocks)

	// ── list_block_types ───────────────────────────────
	s.mcp.AddTool(mcp.NewTool("list_block_types",
		mcp.WithDescription("List the registered block types"),
		mcp.WithToolAnnotation(mcp.ToolAnnotation{ReadOnlyHint: boolPtr(true)}),
	), s.handleListBlockTypes)
}

// ── Handlers ───────────────────────────────────────────────

func (s *Server) handleGetBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	owner, err := s.blocks.ParseOwner(argOwner(req.GetArguments()))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.blocks.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}
	return jsonResult(snap)
}

func (s *Server) handleSubmitBlocks(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := req.GetArguments()
	owner, err := s.blocks.ParseOwner(argOwner(args))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	raw, _ := args["blocks"].(string)
	var incoming map[string]blocks.Incoming
	if err := json.Unmarshal([]byte(raw), &incoming); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("blocks is not a JSON object of blocks: %v", err)), nil
	}

	errs, err := s.blocks.Submit(ctx, owner, incoming, argList(args, "fields"))
	if err != nil {
		return nil, err
	}
	if errs != nil {
		res, err := jsonResult(errs)
		if err != nil {
			return nil, err
		}
		res.IsError = true
		return res, nil
	}
	return textResult("null"), nil
}

func (s *Server) handleListBlockTypes(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.blocks.Types())
}
