package mcpserver

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPrompts() {
	s.mcp.AddPrompt(mcp.NewPrompt("edit_blocks",
		mcp.WithPromptDescription("Walk through changing an owner's block tree safely"),
		mcp.WithArgument("tenant",
			mcp.ArgumentDescription("Tenant (site) id"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("kind",
			mcp.ArgumentDescription("Owner kind: site, user, post, term or comment"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("id",
			mcp.ArgumentDescription("Owner id (use 0 for site)"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("goal",
			mcp.ArgumentDescription("What the change should achieve"),
			mcp.RequiredArgument(),
		),
	), s.handleEditBlocksPrompt)
}

func (s *Server) handleEditBlocksPrompt(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	tenantStr := req.Params.Arguments["tenant"]
	kind := req.Params.Arguments["kind"]
	id := req.Params.Arguments["id"]
	goal := req.Params.Arguments["goal"]
	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Edit the blocks of %s %s on tenant %s", kind, id, tenantStr),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.TextContent{
					Type: "text",
					Text: fmt.Sprintf(`Change the blocks of %s %s on tenant %s so that: %s

1. Call get_blocks to read the current tree. Keep every uuid you do not mean to replace.
2. Call list_block_types if you need a type that is not already in the tree.
3. Send the whole tree you want to keep with submit_blocks. It needs exactly one root block, and every other block must be referenced from the root or one of its descendants; blocks left unreferenced are deleted.
4. If submit_blocks returns errors, they are keyed by block uuid and then by field name ("$errors" for problems with the block or the form as a whole). Fix them and submit again. Nothing is saved until the whole tree is valid.`, kind, id, tenantStr, goal),
				},
			},
		},
	}, nil
}
