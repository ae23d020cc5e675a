package app

import (
	mcpserver "awful/internal/mcp"
)

// ServeMCP runs the MCP server on stdin/stdout until the client goes away.
func (a *App) ServeMCP() error {
	srv := mcpserver.New(mcpserver.Deps{
		Blocks:    a.Blocks,
		Installer: a.DB,
		Sweeper:   a.Sweeper,
		Logger:    a.Logger,
	})
	return srv.ServeStdio()
}
