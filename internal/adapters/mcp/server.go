package mcpadapter

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/kirillkom/hybrid-search/internal/core/ports"
)

const (
	serverName    = "hybrid-search"
	serverVersion = "1.0.0"
)

// Server exposes the retrieval operations as MCP tools over stdio, so
// assistant runtimes can call the same provider the HTTP API serves.
type Server struct {
	mcp      *server.MCPServer
	provider ports.SearchProvider
}

func NewServer(provider ports.SearchProvider) *Server {
	s := &Server{
		mcp:      server.NewMCPServer(serverName, serverVersion),
		provider: provider,
	}
	s.registerTools()
	return s
}

func (s *Server) registerTools() {
	s.mcp.AddTool(searchVectorTool(), s.handleVectorSearch)
	s.mcp.AddTool(searchHybridTool(), s.handleHybridSearch)
	s.mcp.AddTool(searchContextTool(), s.handleContextSearch)
	s.mcp.AddTool(searchMultiStepTool(), s.handleMultiStepSearch)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// Serve runs the stdio transport until the client disconnects.
func (s *Server) Serve(_ context.Context) error {
	return server.ServeStdio(s.mcp)
}
