// Package mcp exposes the research pipeline as Model Context Protocol tools.
package mcp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"research/internal/domain"
)

// Researcher is the part of the research use case the tools call.
type Researcher interface {
	Run(ctx context.Context, query string) (*domain.ResearchOutput, error)
	SearchWeb(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// Server is the MCP server for research.
type Server struct {
	research Researcher
	server   *mcp.Server
	logger   *zap.Logger
}

// NewServer creates a new MCP server and registers its tools.
func NewServer(research Researcher, version string, logger *zap.Logger) (*Server, error) {
	if research == nil {
		return nil, errors.New("research use case is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	impl := &mcp.Implementation{
		Name:    "research",
		Version: version,
	}

	s := &Server{
		research: research,
		server:   mcp.NewServer(impl, nil),
		logger:   logger,
	}
	s.registerTools()

	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP serves the streamable HTTP transport on addr.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		httpServer.Shutdown(context.Background()) //nolint:errcheck
	}()

	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
