package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/TADebugs/ALGOLEND-AI/internal/traces"
)

// NewMCPServer creates a configured MCP server with all AlgoLend tools registered.
func NewMCPServer(cfg Config) *server.MCPServer {
	s := server.NewMCPServer("algolend", traces.Version)
	h := NewHandlers(NewAlgoLendClient(cfg))

	s.AddTool(ToolAnalyzeAccount, h.HandleAnalyzeAccount)
	s.AddTool(ToolOptimizePortfolio, h.HandleOptimizePortfolio)
	s.AddTool(ToolListPools, h.HandleListPools)
	s.AddTool(ToolGetNetworkStats, h.HandleGetNetworkStats)

	return s
}
