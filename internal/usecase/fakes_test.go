package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"research/internal/adapter/cache"
	"research/internal/adapter/chunker"
	"research/internal/adapter/embedding"
	"research/internal/adapter/extract"
	"research/internal/adapter/memstore"
	"research/internal/adapter/rerank"
	"research/internal/domain"
	"research/internal/port"
)

const testDim = 64

type fakeSearcher struct {
	mu      sync.Mutex
	byQuery map[string][]domain.SearchHit
	hits    []domain.SearchHit
	calls   atomic.Int32
}

func (s *fakeSearcher) Search(ctx context.Context, query string, maxResults int) []domain.SearchHit {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	hits := s.hits
	if h, ok := s.byQuery[query]; ok {
		hits = h
	}
	if len(hits) > maxResults {
		hits = hits[:maxResults]
	}
	return append([]domain.SearchHit(nil), hits...)
}

type fakeFetcher struct {
	pages map[string]string
	delay func(url string) time.Duration
	calls atomic.Int32
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*domain.FetchedPage, error) {
	f.calls.Add(1)
	if f.delay != nil {
		select {
		case <-time.After(f.delay(url)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	body, ok := f.pages[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", url)
	}
	return &domain.FetchedPage{URL: url, ContentType: "text/plain", Body: []byte(body)}, nil
}

// failingEmbedder fails for any batch containing marker.
type failingEmbedder struct {
	port.Embedder
	marker string
	err    error
}

func (e *failingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	for _, t := range texts {
		if e.marker != "" && strings.Contains(t, e.marker) {
			return nil, errors.New("embedding model unavailable")
		}
	}
	return e.Embedder.Embed(ctx, texts)
}

type fakeReranker struct {
	score func(i int, text string) (float64, bool)
	err   error
	calls atomic.Int32
	seen  atomic.Int32
}

func (r *fakeReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	r.calls.Add(1)
	r.seen.Store(int32(len(texts)))
	if r.err != nil {
		return nil, r.err
	}
	var out []port.RerankedResult
	for i, t := range texts {
		if s, ok := r.score(i, t); ok {
			out = append(out, port.RerankedResult{Index: i, Score: s})
		}
	}
	return out, nil
}

func (r *fakeReranker) ModelName() string { return "fake" }

// countingReranker wraps the lexical reranker and records the candidate count.
type countingReranker struct {
	port.Reranker
	calls atomic.Int32
	seen  atomic.Int32
}

func (r *countingReranker) Rerank(ctx context.Context, query string, texts []string) ([]port.RerankedResult, error) {
	r.calls.Add(1)
	r.seen.Store(int32(len(texts)))
	return r.Reranker.Rerank(ctx, query, texts)
}

type fakeLLM struct {
	mu      sync.Mutex
	answer  string
	err     error
	prompts []string
}

func (l *fakeLLM) Generate(ctx context.Context, prompt string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prompts = append(l.prompts, prompt)
	return l.answer, l.err
}

func (l *fakeLLM) ModelName() string { return "fake-llm" }

func (l *fakeLLM) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.prompts)
}

type countingCache struct {
	port.AnswerCache
	gets   atomic.Int32
	sets   atomic.Int32
	getErr error
	setErr error
}

func (c *countingCache) Get(ctx context.Context, query string) (*domain.ResearchOutput, bool, error) {
	c.gets.Add(1)
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	return c.AnswerCache.Get(ctx, query)
}

func (c *countingCache) Set(ctx context.Context, query string, out *domain.ResearchOutput) error {
	c.sets.Add(1)
	if c.setErr != nil {
		return c.setErr
	}
	return c.AnswerCache.Set(ctx, query, out)
}

// spyStore records which URL prefixes are present whenever Search runs.
type spyStore struct {
	*memstore.MemoryStore
	mu       sync.Mutex
	resets   int
	searches [][]string
	failOn   string
}

func (s *spyStore) Reset(ctx context.Context) error {
	if s.failOn == "reset" {
		return errors.New("disk full")
	}
	s.mu.Lock()
	s.resets++
	s.mu.Unlock()
	return s.MemoryStore.Reset(ctx)
}

func (s *spyStore) Insert(ctx context.Context, chunks ...domain.DocumentChunk) error {
	if s.failOn == "insert" {
		return errors.New("disk full")
	}
	return s.MemoryStore.Insert(ctx, chunks...)
}

func (s *spyStore) Search(ctx context.Context, emb []float32, topK int) ([]domain.RankedCandidate, error) {
	hosts := map[string]struct{}{}
	for _, c := range s.MemoryStore.Chunks() {
		hosts[hostOf(c.URL)] = struct{}{}
	}
	var list []string
	for h := range hosts {
		list = append(list, h)
	}
	s.mu.Lock()
	s.searches = append(s.searches, list)
	s.mu.Unlock()
	return s.MemoryStore.Search(ctx, emb, topK)
}

func hostOf(url string) string {
	rest := strings.TrimPrefix(url, "https://")
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		return rest[:i]
	}
	return rest
}

// quantumPage returns a multi-paragraph page about the topic.
func quantumPage(n int) string {
	var b strings.Builder
	for p := 0; p < 10; p++ {
		fmt.Fprintf(&b, "Source %d paragraph %d. Quantum entanglement is a physical phenomenon in which particles "+
			"share a single quantum state. Measuring one entangled particle instantly constrains the other, "+
			"no matter how far apart they are. Physicists test this with Bell inequalities and photon pairs.\n\n", n, p)
	}
	return b.String()
}

func makeHits(prefix string, n int) []domain.SearchHit {
	hits := make([]domain.SearchHit, n)
	for i := range hits {
		hits[i] = domain.SearchHit{
			Title: fmt.Sprintf("%s result %d", prefix, i),
			URL:   fmt.Sprintf("https://%s%d.example/article", prefix, i),
		}
	}
	return hits
}

type harness struct {
	searcher *fakeSearcher
	fetcher  *fakeFetcher
	embedder port.Embedder
	store    *spyStore
	reranker port.Reranker
	llm      *fakeLLM
	cache    *countingCache
}

func newHarness() *harness {
	return &harness{
		searcher: &fakeSearcher{byQuery: map[string][]domain.SearchHit{}},
		fetcher:  &fakeFetcher{pages: map[string]string{}},
		embedder: embedding.NewHashEmbedder(testDim),
		store:    &spyStore{MemoryStore: memstore.NewMemoryStore(testDim)},
		reranker: &countingReranker{Reranker: rerank.NewLexicalReranker()},
		llm:      &fakeLLM{answer: "Quantum entanglement correlates particles [1]. It is tested with Bell inequalities [2, 3]."},
		cache:    &countingCache{AnswerCache: cache.NewQueryCache(100, time.Hour)},
	}
}

func (h *harness) ingest() *IngestUseCase {
	return NewIngestUseCase(
		h.searcher,
		h.fetcher,
		extract.NewHTMLExtractor(),
		chunker.NewTextSplitter(1000, 200),
		h.embedder,
		h.store,
		10,
		4,
		nil,
	)
}

func (h *harness) research() *ResearchUseCase {
	return NewResearchUseCase(
		h.cache,
		h.store,
		h.ingest(),
		NewRankUseCase(h.store, h.embedder, h.reranker, 25, nil),
		NewSynthesizeUseCase(h.llm, nil),
		5,
		nil,
	)
}
