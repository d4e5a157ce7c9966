package domain

import "errors"

var (
	// ErrEmptyQuery is returned for empty or whitespace-only queries.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrNoSearchResults means the search provider returned nothing.
	ErrNoSearchResults = errors.New("search returned no results")

	// ErrNoCandidates means vector retrieval found no chunks in the corpus.
	ErrNoCandidates = errors.New("no candidate documents retrieved")

	// ErrRerankFailed means reranking produced no usable ordering.
	ErrRerankFailed = errors.New("reranking failed")

	// ErrNoContent means a fetched page yielded no extractable text.
	ErrNoContent = errors.New("no extractable content")

	// ErrExcludedURL means a URL matched a configured exclusion pattern.
	ErrExcludedURL = errors.New("url excluded")

	// ErrDimensionMismatch means a vector does not match the store dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// IsPipelineFailure reports whether err is one of the terminal stage failures.
func IsPipelineFailure(err error) bool {
	return errors.Is(err, ErrNoSearchResults) ||
		errors.Is(err, ErrNoCandidates) ||
		errors.Is(err, ErrRerankFailed)
}
