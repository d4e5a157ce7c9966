package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"research/internal/domain"
	"research/internal/port"
)

// ProgressFunc is called after each search hit has been processed.
type ProgressFunc func(done, total int)

// IngestUseCase builds the per-run corpus from web search results.
type IngestUseCase struct {
	searcher    port.Searcher
	fetcher     port.Fetcher
	extractor   port.Extractor
	chunker     port.Chunker
	embedder    port.Embedder
	store       port.CorpusStore
	maxResults  int
	concurrency int
	logger      *zap.Logger
}

// NewIngestUseCase creates a new ingest use case.
func NewIngestUseCase(
	searcher port.Searcher,
	fetcher port.Fetcher,
	extractor port.Extractor,
	chunker port.Chunker,
	embedder port.Embedder,
	store port.CorpusStore,
	maxResults int,
	concurrency int,
	logger *zap.Logger,
) *IngestUseCase {
	if maxResults <= 0 {
		maxResults = 10
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestUseCase{
		searcher:    searcher,
		fetcher:     fetcher,
		extractor:   extractor,
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		maxResults:  maxResults,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Search queries the provider and drops hits whose URL was already seen.
func (u *IngestUseCase) Search(ctx context.Context, query string) []domain.SearchHit {
	hits := u.searcher.Search(ctx, query, u.maxResults)

	seen := make(map[string]struct{}, len(hits))
	unique := make([]domain.SearchHit, 0, len(hits))
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		if _, dup := seen[h.URL]; dup {
			continue
		}
		seen[h.URL] = struct{}{}
		unique = append(unique, h)
		if len(unique) == u.maxResults {
			break
		}
	}
	return unique
}

// Ingest fetches, extracts, chunks and embeds every hit, then inserts the
// chunks in hit order. A failure confined to one hit skips that hit; a store
// failure aborts the run.
func (u *IngestUseCase) Ingest(ctx context.Context, hits []domain.SearchHit, progress ProgressFunc) (*domain.IngestResult, error) {
	perHit := make([][]domain.DocumentChunk, len(hits))

	var (
		mu   sync.Mutex
		done int
	)
	report := func() {
		if progress == nil {
			return
		}
		mu.Lock()
		done++
		n := done
		mu.Unlock()
		progress(n, len(hits))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.concurrency)

	for i, hit := range hits {
		g.Go(func() error {
			defer report()
			chunks, err := u.processHit(gctx, hit)
			if err != nil {
				u.logger.Warn("Skipping source",
					zap.String("url", hit.URL),
					zap.Error(err),
				)
				return nil
			}
			perHit[i] = chunks
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &domain.IngestResult{Hits: len(hits)}
	for _, chunks := range perHit {
		if len(chunks) == 0 {
			result.Skipped++
			continue
		}
		if err := u.store.Insert(ctx, chunks...); err != nil {
			return nil, fmt.Errorf("failed to store chunks: %w", err)
		}
		result.Fetched++
		result.Chunks += len(chunks)
	}

	return result, nil
}

// processHit turns one hit into embedded chunks.
func (u *IngestUseCase) processHit(ctx context.Context, hit domain.SearchHit) ([]domain.DocumentChunk, error) {
	page, err := u.fetcher.Fetch(ctx, hit.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	text, err := u.extractor.Extract(page)
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	pieces := u.chunker.Split(text)
	if len(pieces) == 0 {
		return nil, domain.ErrNoContent
	}

	embeddings, err := u.embedder.Embed(ctx, pieces)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(embeddings) != len(pieces) {
		return nil, errors.New("embed: embedding count does not match chunk count")
	}

	chunks := make([]domain.DocumentChunk, len(pieces))
	for i, content := range pieces {
		chunks[i] = domain.DocumentChunk{
			URL:       hit.URL,
			Title:     hit.Title,
			Content:   content,
			Embedding: embeddings[i],
		}
	}

	u.logger.Debug("Processed source",
		zap.String("url", hit.URL),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}
