package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"research/config"
	"research/internal/adapter/cache"
	"research/internal/adapter/chunker"
	"research/internal/adapter/embedding"
	"research/internal/adapter/extract"
	"research/internal/adapter/fetch"
	"research/internal/adapter/llm"
	"research/internal/adapter/memstore"
	"research/internal/adapter/rerank"
	"research/internal/adapter/search"
	"research/internal/adapter/store"
	"research/internal/port"
	"research/internal/usecase"
)

// app holds the wired pipeline and the resources to release on exit.
type app struct {
	research *usecase.ResearchUseCase
	closers  []io.Closer
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildApp constructs every adapter named by cfg and wires the research use
// case. Relative data paths resolve against dir.
func buildApp(ctx context.Context, cfg *config.Config, dir string, logger *zap.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		a.Close() //nolint:errcheck
		return nil, err
	}

	embedder, err := newEmbedder(cfg.Embedding)
	if err != nil {
		return fail(fmt.Errorf("failed to create embedder: %w", err))
	}

	corpus, err := newCorpusStore(cfg.Store, embedder.Dimension(), dir)
	if err != nil {
		return fail(fmt.Errorf("failed to open corpus store: %w", err))
	}
	a.closers = append(a.closers, corpus)

	answers, err := newAnswerCache(cfg.Cache, dir)
	if err != nil {
		return fail(fmt.Errorf("failed to open answer cache: %w", err))
	}
	if c, ok := answers.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}

	searcher, err := newSearcher(cfg.Search, logger)
	if err != nil {
		return fail(fmt.Errorf("failed to create search client: %w", err))
	}

	fetcher, err := newFetcher(cfg.Fetch)
	if err != nil {
		return fail(fmt.Errorf("failed to create fetcher: %w", err))
	}

	reranker, err := newReranker(cfg.Rerank)
	if err != nil {
		return fail(fmt.Errorf("failed to create reranker: %w", err))
	}

	generator, err := newLLM(ctx, cfg.Synthesis)
	if err != nil {
		return fail(fmt.Errorf("failed to create LLM client: %w", err))
	}

	logger.Debug("Pipeline wired",
		zap.String("embedder", embedder.ModelName()),
		zap.Int("dimension", embedder.Dimension()),
		zap.String("store", cfg.Store.Backend),
		zap.String("cache", cfg.Cache.Backend),
		zap.String("reranker", reranker.ModelName()),
		zap.String("llm", generator.ModelName()),
	)

	ingest := usecase.NewIngestUseCase(
		searcher,
		fetcher,
		extract.NewHTMLExtractor(),
		chunker.NewTextSplitter(cfg.Chunk.Size, cfg.Chunk.Overlap),
		embedder,
		corpus,
		cfg.Search.MaxResults,
		cfg.Fetch.Concurrency,
		logger,
	)
	rank := usecase.NewRankUseCase(corpus, embedder, reranker, cfg.Retrieve.TopK, logger)
	synthesize := usecase.NewSynthesizeUseCase(generator, logger)

	a.research = usecase.NewResearchUseCase(answers, corpus, ingest, rank, synthesize, cfg.Retrieve.ContextSize, logger)
	return a, nil
}

func newEmbedder(cfg config.EmbeddingConfig) (port.Embedder, error) {
	var (
		e   *embedding.OpenAIEmbedder
		err error
	)
	switch cfg.Provider {
	case "hash":
		return embedding.NewHashEmbedder(cfg.Dimension), nil
	case "ollama", "":
		e, err = embedding.NewOllamaEmbedder(cfg.Model, cfg.BaseURL)
	case "openai":
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = "https://api.openai.com/v1"
		}
		e, err = embedding.NewOpenAICompatibleEmbedder(cfg.APIKeyEnv, cfg.Model, baseURL)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Dimension > 0 {
		e = e.WithDimension(cfg.Dimension)
	}
	if cfg.BatchSize > 0 {
		e = e.WithBatchSize(cfg.BatchSize)
	}
	return e, nil
}

func newCorpusStore(cfg config.StoreConfig, dimension int, dir string) (port.CorpusStore, error) {
	switch cfg.Backend {
	case "memory":
		return memstore.NewMemoryStore(dimension), nil
	case "bolt", "":
		path, err := dataPath(dir, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store.NewBoltCorpusStore(path, dimension)
	case "sqlite":
		path, err := dataPath(dir, cfg.Path)
		if err != nil {
			return nil, err
		}
		return store.NewSQLiteCorpusStore(path, dimension)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.Backend)
	}
}

func newAnswerCache(cfg config.CacheConfig, dir string) (port.AnswerCache, error) {
	ttl := time.Duration(cfg.TTLSecs) * time.Second
	switch cfg.Backend {
	case "memory", "":
		return cache.NewQueryCache(cfg.MaxEntries, ttl), nil
	case "bolt":
		path, err := dataPath(dir, cfg.Path)
		if err != nil {
			return nil, err
		}
		return cache.NewBoltCache(path, ttl)
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", cfg.Backend)
	}
}

func newSearcher(cfg config.SearchConfig, logger *zap.Logger) (port.Searcher, error) {
	switch cfg.Provider {
	case "tavily", "":
		return search.NewTavilyClient(cfg.APIKeyEnv, search.Options{
			BaseURL:           cfg.BaseURL,
			Depth:             cfg.Depth,
			Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.RequestsPerSecond,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown search provider: %s", cfg.Provider)
	}
}

func newFetcher(cfg config.FetchConfig) (port.Fetcher, error) {
	return fetch.NewHTTPFetcher(fetch.Options{
		UserAgent:         cfg.UserAgent,
		Timeout:           time.Duration(cfg.TimeoutSecs) * time.Second,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Burst:             cfg.Burst,
		Excludes:          cfg.Excludes,
	})
}

func newReranker(cfg config.RerankConfig) (port.Reranker, error) {
	switch cfg.Provider {
	case "lexical", "":
		return rerank.NewLexicalReranker(), nil
	case "cohere":
		return rerank.NewCohereReranker(cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
	default:
		return nil, fmt.Errorf("unknown rerank provider: %s", cfg.Provider)
	}
}

func newLLM(ctx context.Context, cfg config.SynthesisConfig) (port.LLM, error) {
	switch cfg.Provider {
	case "gemini", "":
		return llm.NewGeminiClient(ctx, cfg.APIKeyEnv, cfg.Model, cfg.BaseURL)
	case "ollama":
		return llm.NewOllamaClient(cfg.Model, cfg.BaseURL, time.Duration(cfg.TimeoutSecs)*time.Second), nil
	default:
		return nil, fmt.Errorf("unknown synthesis provider: %s", cfg.Provider)
	}
}

// dataPath resolves path against dir and creates its parent directory.
func dataPath(dir, path string) (string, error) {
	if path == "" {
		return "", errors.New("data path is required")
	}
	path = config.ResolvePath(dir, path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, nil
}
