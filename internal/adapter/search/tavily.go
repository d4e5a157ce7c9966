// Package search implements web search providers.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"research/internal/domain"
	"research/internal/port"
)

// TavilyClient queries the Tavily search API.
type TavilyClient struct {
	apiKey  string
	baseURL string
	depth   string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

var _ port.Searcher = (*TavilyClient)(nil)

type tavilyRequest struct {
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []tavilyResult `json:"results"`
}

type tavilyResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// Options configures a TavilyClient.
type Options struct {
	BaseURL           string
	Depth             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewTavilyClient reads the API key from apiKeyEnv.
func NewTavilyClient(apiKeyEnv string, opts Options, logger *zap.Logger) (*TavilyClient, error) {
	apiKey := os.Getenv(apiKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return newTavilyClient(apiKey, opts, logger), nil
}

func newTavilyClient(apiKey string, opts Options, logger *zap.Logger) *TavilyClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.tavily.com"
	}
	if opts.Depth == "" {
		opts.Depth = "basic"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TavilyClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		depth:   opts.Depth,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.Named("tavily"),
	}
}

// Search returns at most maxResults hits. Provider failures are logged and
// yield an empty result.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) []domain.SearchHit {
	hits, err := c.search(ctx, query, maxResults)
	if err != nil {
		c.logger.Error("Search failed", zap.String("query", query), zap.Error(err))
		return nil
	}
	return hits
}

func (c *TavilyClient) search(ctx context.Context, query string, maxResults int) ([]domain.SearchHit, error) {
	if maxResults <= 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(tavilyRequest{
		Query:       query,
		SearchDepth: c.depth,
		MaxResults:  maxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var tr tavilyResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(tr.Results))
	for _, r := range tr.Results {
		if r.URL == "" {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
		if len(hits) == maxResults {
			break
		}
	}
	return hits, nil
}
