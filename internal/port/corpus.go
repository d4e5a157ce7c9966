package port

import (
	"context"

	"research/internal/domain"
)

// CorpusStore holds the chunks of exactly one pipeline run.
type CorpusStore interface {
	// Reset removes every stored chunk.
	Reset(ctx context.Context) error

	// Insert appends chunks. Duplicates are allowed.
	Insert(ctx context.Context, chunks ...domain.DocumentChunk) error

	// Search returns at most topK chunks ordered by descending cosine
	// similarity to the query embedding.
	Search(ctx context.Context, embedding []float32, topK int) ([]domain.RankedCandidate, error)

	// Count returns the number of stored chunks.
	Count(ctx context.Context) (int, error)

	Close() error
}
