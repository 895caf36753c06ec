package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ihssane2002/chatbot-entreprise/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes the search_chunks, search_tables, ask and sync tools
and the chatbot://reports resources. By default it communicates over
stdio using JSON-RPC.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  chatbot mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  chatbot mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "chatbot": {
        "command": "/path/to/chatbot",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	s, err := requireServices()
	if err != nil {
		return err
	}
	if s.Retriever == nil {
		return errors.New("search service not configured")
	}

	ports := &mcp.Ports{
		Retriever: s.Retriever,
		Query:     s.Query,
		Sync:      s.Sync,
		Reports:   s.Reports,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
