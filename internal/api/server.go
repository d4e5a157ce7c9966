// Package api exposes the research pipeline over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"research/internal/domain"
)

// Researcher is the part of the research use case the API depends on.
type Researcher interface {
	Run(ctx context.Context, query string) (*domain.ResearchOutput, error)
	SearchWeb(ctx context.Context, query string) ([]domain.SearchHit, error)
}

// StatusResponse is returned by GET /.
type StatusResponse struct {
	Status          string `json:"status"`
	PipelineVersion string `json:"pipeline_version"`
}

// ResearchRequest is the optional JSON body of POST /research.
type ResearchRequest struct {
	Query string `json:"query"`
}

// ResearchResponse is returned by POST /research.
type ResearchResponse struct {
	Query  string                 `json:"query"`
	Result *domain.ResearchOutput `json:"result"`
}

// SearchResponse is returned by GET /search.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []domain.SearchHit `json:"results"`
}

// ErrorResponse carries a failure description.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Server serves the research HTTP API.
type Server struct {
	research          Researcher
	version           string
	readHeaderTimeout time.Duration
	logger            *zap.Logger
}

// NewServer creates a new API server.
func NewServer(research Researcher, version string, readHeaderTimeout time.Duration, logger *zap.Logger) *Server {
	if readHeaderTimeout <= 0 {
		readHeaderTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		research:          research,
		version:           version,
		readHeaderTimeout: readHeaderTimeout,
		logger:            logger,
	}
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleStatus)
	mux.HandleFunc("POST /research", s.handleResearch)
	mux.HandleFunc("GET /search", s.handleSearch)
	return s.withRequestLogging(mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("Shutdown failed", zap.Error(err))
		}
	}()

	s.logger.Info("Listening", zap.String("addr", addr))
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "online", PipelineVersion: s.version})
}

func (s *Server) handleResearch(w http.ResponseWriter, r *http.Request) {
	query, err := queryFromRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: "Invalid request payload"})
		return
	}

	out, err := s.research.Run(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResearchResponse{Query: query, Result: out})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	hits, err := s.research.SearchWeb(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Query: query, Results: hits})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, domain.ErrEmptyQuery) {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Detail: err.Error()})
		return
	}

	log := s.logger.With(zap.String("request_id", requestID(r)), zap.Error(err))
	if domain.IsPipelineFailure(err) {
		log.Warn("Research failed")
	} else {
		log.Error("Research failed")
	}
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: err.Error()})
}

// queryFromRequest reads the q parameter, falling back to a JSON body.
func queryFromRequest(r *http.Request) (string, error) {
	if q := r.URL.Query().Get("q"); q != "" {
		return q, nil
	}
	if r.Body == nil {
		return "", nil
	}

	var req ResearchRequest
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req)
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return req.Query, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const requestIDHeader = "X-Request-ID"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		s.logger.Info("Request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func requestID(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}
