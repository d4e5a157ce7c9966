package port

import (
	"context"

	"research/internal/domain"
)

// Searcher queries a web search provider. Provider failures are logged by
// the implementation and reported as an empty result.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) []domain.SearchHit
}

// Fetcher downloads the raw content behind a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*domain.FetchedPage, error)
}

// Extractor turns a fetched page into plain text. It returns
// domain.ErrNoContent when the page has no usable text.
type Extractor interface {
	Extract(page *domain.FetchedPage) (string, error)
}
