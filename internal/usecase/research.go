package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"research/internal/domain"
	"research/internal/port"
)

// PipelineVersion identifies the answer-producing pipeline.
const PipelineVersion = "1.0.0"

// ResearchUseCase answers queries end to end: cache, corpus build, ranking,
// synthesis. The corpus store is shared, so runs that touch it are
// serialized; identical concurrent queries share one run.
type ResearchUseCase struct {
	cache       port.AnswerCache
	store       port.CorpusStore
	ingest      *IngestUseCase
	rank        *RankUseCase
	synthesize  *SynthesizeUseCase
	contextSize int
	logger      *zap.Logger

	storeMu sync.Mutex
	flights singleflight.Group
}

// NewResearchUseCase creates a new research use case.
func NewResearchUseCase(
	cache port.AnswerCache,
	store port.CorpusStore,
	ingest *IngestUseCase,
	rank *RankUseCase,
	synthesize *SynthesizeUseCase,
	contextSize int,
	logger *zap.Logger,
) *ResearchUseCase {
	if contextSize <= 0 {
		contextSize = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchUseCase{
		cache:       cache,
		store:       store,
		ingest:      ingest,
		rank:        rank,
		synthesize:  synthesize,
		contextSize: contextSize,
		logger:      logger,
	}
}

// Run answers query. See RunWithProgress.
func (u *ResearchUseCase) Run(ctx context.Context, query string) (*domain.ResearchOutput, error) {
	return u.RunWithProgress(ctx, query, nil)
}

// RunWithProgress answers query, reporting ingest progress to progress when
// this call performs the corpus build. A cached answer is returned without
// touching any other collaborator. Synthesis failures still produce an
// answer; every other stage failure is returned as an error and nothing is
// cached.
func (u *ResearchUseCase) RunWithProgress(ctx context.Context, query string, progress ProgressFunc) (*domain.ResearchOutput, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}

	if out, ok := u.lookup(ctx, query); ok {
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The flight outlives any single caller so followers are not failed by
	// the leader's cancellation.
	flightCtx := context.WithoutCancel(ctx)
	ch := u.flights.DoChan(query, func() (any, error) {
		if out, ok := u.lookup(flightCtx, query); ok {
			return out, nil
		}
		return u.run(flightCtx, query, progress)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.ResearchOutput).Clone(), nil
	}
}

// SearchWeb runs only the web search stage and returns the deduplicated hits.
func (u *ResearchUseCase) SearchWeb(ctx context.Context, query string) ([]domain.SearchHit, error) {
	if err := domain.ValidateQuery(query); err != nil {
		return nil, err
	}
	return u.ingest.Search(ctx, query), nil
}

func (u *ResearchUseCase) lookup(ctx context.Context, query string) (*domain.ResearchOutput, bool) {
	out, ok, err := u.cache.Get(ctx, query)
	if err != nil {
		u.logger.Error("Cache read failed", zap.String("query", query), zap.Error(err))
		return nil, false
	}
	if ok {
		u.logger.Info("Cache hit", zap.String("query", query))
	}
	return out, ok
}

func (u *ResearchUseCase) run(ctx context.Context, query string, progress ProgressFunc) (*domain.ResearchOutput, error) {
	log := u.logger.With(
		zap.String("run_id", uuid.NewString()),
		zap.String("query", query),
	)

	sources, err := u.buildContext(ctx, query, progress, log)
	if err != nil {
		log.Warn("Run failed", zap.Error(err))
		return nil, err
	}

	log.Info("Synthesizing", zap.Int("sources", len(sources)))
	out := &domain.ResearchOutput{
		SynthesizedAnswer: u.synthesize.Synthesize(ctx, query, sources),
		Sources:           sources,
	}

	if err := u.cache.Set(ctx, query, out); err != nil {
		log.Error("Cache write failed", zap.Error(err))
	}
	return out, nil
}

// buildContext resets the corpus, ingests fresh search results and selects
// the synthesis context. It holds the store lock for its whole duration.
func (u *ResearchUseCase) buildContext(ctx context.Context, query string, progress ProgressFunc, log *zap.Logger) ([]domain.SourceCitation, error) {
	u.storeMu.Lock()
	defer u.storeMu.Unlock()

	if err := u.store.Reset(ctx); err != nil {
		return nil, fmt.Errorf("failed to reset corpus: %w", err)
	}

	log.Info("Searching")
	hits := u.ingest.Search(ctx, query)
	if len(hits) == 0 {
		return nil, domain.ErrNoSearchResults
	}

	log.Info("Ingesting", zap.Int("hits", len(hits)))
	stats, err := u.ingest.Ingest(ctx, hits, progress)
	if err != nil {
		return nil, err
	}
	log.Info("Ingested",
		zap.Int("fetched", stats.Fetched),
		zap.Int("skipped", stats.Skipped),
		zap.Int("chunks", stats.Chunks),
	)

	log.Info("Retrieving")
	candidates, err := u.rank.Retrieve(ctx, query)
	if err != nil {
		return nil, err
	}

	log.Info("Reranking", zap.Int("candidates", len(candidates)))
	ranked, err := u.rank.Rerank(ctx, query, candidates)
	if err != nil {
		return nil, err
	}

	return SelectContext(ranked, u.contextSize), nil
}
