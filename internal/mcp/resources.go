package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerResources() {
	// ── awful://block-types ────────────────────────────
	s.mcp.AddResource(mcp.NewResource(
		"awful://block-types",
		"Registered Block Types",
		mcp.WithMIMEType("application/json"),
	), s.handleBlockTypesResource)

	// ── awful://tenants/{tenant}/{kind}/{id}/blocks ────
	s.mcp.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"awful://tenants/{tenant}/{kind}/{id}/blocks",
			"Blocks of an Owner",
		),
		s.handleOwnerBlocksResource,
	)
}

func (s *Server) handleBlockTypesResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, _ := json.MarshalIndent(s.blocks.Types(), "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleOwnerBlocksResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	uri := req.Params.URI
	tenantStr, kind, id, ok := parseOwnerURI(uri)
	if !ok {
		return nil, fmt.Errorf("could not parse owner from URI: %s", uri)
	}
	owner, err := s.blocks.ParseOwner(tenantStr, kind, id)
	if err != nil {
		return nil, err
	}
	snap, err := s.blocks.Snapshot(ctx, owner)
	if err != nil {
		return nil, err
	}

	data, _ := json.MarshalIndent(snap, "", "  ")
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// parseOwnerURI splits "awful://tenants/{tenant}/{kind}/{id}/blocks".
func parseOwnerURI(uri string) (tenantStr, kind, id string, ok bool) {
	const prefix, suffix = "awful://tenants/", "/blocks"
	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return "", "", "", false
	}
	parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix), "/")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
