// Package fetch downloads search hit pages over HTTP.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/time/rate"

	"research/internal/domain"
	"research/internal/port"
)

// Options configures an HTTPFetcher.
type Options struct {
	UserAgent         string
	Timeout           time.Duration
	MaxBodyBytes      int64
	RequestsPerSecond float64
	Burst             int
	Excludes          []string // doublestar globs matched against host+path
}

// HTTPFetcher downloads pages with a shared rate limit.
type HTTPFetcher struct {
	userAgent string
	maxBody   int64
	excludes  []string
	client    *http.Client
	limiter   *rate.Limiter
}

var _ port.Fetcher = (*HTTPFetcher)(nil)

func NewHTTPFetcher(opts Options) (*HTTPFetcher, error) {
	for _, pattern := range opts.Excludes {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %q", pattern)
		}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "research-bot/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 5 << 20
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}

	return &HTTPFetcher{
		userAgent: opts.UserAgent,
		maxBody:   opts.MaxBodyBytes,
		excludes:  opts.Excludes,
		client:    &http.Client{Timeout: opts.Timeout},
		limiter:   rate.NewLimiter(limit, opts.Burst),
	}, nil
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*domain.FetchedPage, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if f.isExcluded(u) {
		return nil, fmt.Errorf("%w: %s", domain.ErrExcludedURL, rawURL)
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return &domain.FetchedPage{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (f *HTTPFetcher) isExcluded(u *url.URL) bool {
	path := strings.ToLower(u.Hostname() + u.EscapedPath())
	for _, pattern := range f.excludes {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}
