// Package mcp exposes dexter as a Model Context Protocol server.
//
// The server speaks MCP over stdio (github.com/modelcontextprotocol/go-sdk/mcp)
// and offers two tools:
//
//	research    run a query through the orchestrator and return the answer
//	list_tools  describe the tools the orchestrator may call
//
// Each research call is an independent run with its own budgets and quota.
package mcp
