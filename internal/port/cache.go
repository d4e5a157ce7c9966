package port

import (
	"context"

	"research/internal/domain"
)

// AnswerCache maps a raw query string to a previously computed answer.
// Entries expire after a TTL fixed when the cache is constructed.
type AnswerCache interface {
	Get(ctx context.Context, query string) (*domain.ResearchOutput, bool, error)
	Set(ctx context.Context, query string, out *domain.ResearchOutput) error
}
