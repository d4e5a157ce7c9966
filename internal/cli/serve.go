package cli

import (
	"time"

	"github.com/spf13/cobra"

	"research/internal/api"
	"research/internal/usecase"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Start the HTTP API.

Endpoints:
  GET  /                 status and pipeline version
  POST /research?q=...   answer a query (or JSON body {"query": "..."})
  GET  /search?q=...     raw web search results, for debugging

Examples:
  research serve
  research serve --addr 127.0.0.1:9000`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	a, err := buildApp(cmd.Context(), cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer a.Close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	server := api.NewServer(
		a.research,
		usecase.PipelineVersion,
		time.Duration(cfg.Server.ReadHeaderTimeoutS)*time.Second,
		logger,
	)
	return server.ListenAndServe(cmd.Context(), addr)
}
