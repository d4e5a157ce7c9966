package usecase

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"research/internal/domain"
	"research/internal/port"
)

// RankUseCase selects and orders candidate passages from the corpus.
type RankUseCase struct {
	store    port.CorpusStore
	embedder port.Embedder
	reranker port.Reranker
	topK     int
	logger   *zap.Logger
}

// NewRankUseCase creates a new rank use case.
func NewRankUseCase(
	store port.CorpusStore,
	embedder port.Embedder,
	reranker port.Reranker,
	topK int,
	logger *zap.Logger,
) *RankUseCase {
	if topK <= 0 {
		topK = 25
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RankUseCase{
		store:    store,
		embedder: embedder,
		reranker: reranker,
		topK:     topK,
		logger:   logger,
	}
}

// Rank retrieves the top-K chunks by vector similarity and reorders them
// with the cross-encoder.
func (u *RankUseCase) Rank(ctx context.Context, query string) ([]domain.RankedCandidate, error) {
	candidates, err := u.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	return u.Rerank(ctx, query, candidates)
}

// Retrieve embeds the query once and returns the closest chunks first.
func (u *RankUseCase) Retrieve(ctx context.Context, query string) ([]domain.RankedCandidate, error) {
	embeddings, err := u.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("failed to embed query: got %d embeddings", len(embeddings))
	}

	candidates, err := u.store.Search(ctx, embeddings[0], u.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search corpus: %w", err)
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoCandidates
	}
	return candidates, nil
}

// Rerank scores every (query, content) pair and sorts by score, highest
// first. Equal scores keep their retrieval order. Candidates the reranker
// did not score keep a nil RerankScore and follow all scored ones. The input
// slice is not modified.
func (u *RankUseCase) Rerank(ctx context.Context, query string, candidates []domain.RankedCandidate) ([]domain.RankedCandidate, error) {
	if len(candidates) == 0 {
		return nil, domain.ErrRerankFailed
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Content
	}

	results, err := u.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrRerankFailed, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: reranker returned no scores", domain.ErrRerankFailed)
	}

	ranked := make([]domain.RankedCandidate, len(candidates))
	copy(ranked, candidates)
	for i := range ranked {
		ranked[i].RerankScore = nil
	}
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(ranked) || ranked[r.Index].RerankScore != nil {
			continue
		}
		score := r.Score
		ranked[r.Index].RerankScore = &score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i].RerankScore, ranked[j].RerankScore
		switch {
		case a != nil && b != nil:
			return *a > *b
		case a != nil:
			return true
		default:
			return false
		}
	})

	u.logger.Debug("Reranked candidates",
		zap.String("model", u.reranker.ModelName()),
		zap.Int("candidates", len(ranked)),
		zap.Int("scored", len(results)),
	)
	return ranked, nil
}

// SelectContext returns the first n candidates as citations.
func SelectContext(ranked []domain.RankedCandidate, n int) []domain.SourceCitation {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	sources := make([]domain.SourceCitation, n)
	for i := 0; i < n; i++ {
		sources[i] = ranked[i].Citation()
	}
	return sources
}
