package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"research/internal/mcp"
	"research/internal/usecase"
)

var mcpPort int

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server exposing the "research" and
"search" tools to AI assistants.

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead. Logs go to stderr.

Examples:
  research mcp
  research mcp --port 8080`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	mcpCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
}

func runMCP(cmd *cobra.Command, args []string) error {
	logger := GetLogger()

	a, err := buildApp(cmd.Context(), GetConfig(), GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(a.research, usecase.PipelineVersion, logger)
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}
	return server.Run(cmd.Context())
}
