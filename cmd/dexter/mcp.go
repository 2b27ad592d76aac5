package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/dexter/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve dexter as an MCP server on stdio",
	Long: `Speak the Model Context Protocol on stdin/stdout so MCP clients can call
the research tool. Logs go to stderr.

Example client configuration:
  {"command": "dexter", "args": ["mcp"]}`,
	Args: cobra.NoArgs,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	cfg.Logging.Format = "json"

	a, err := newApp(ctx, cfg, appOptions{})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	srv, err := mcp.NewServer(&mcp.Config{
		Name:    "dexter",
		Version: version,
		Logger:  a.logger,
	}, a.orch, a.tools)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
