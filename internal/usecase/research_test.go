package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
)

const entanglementQuery = "What is quantum entanglement?"

// scenarioA prepares 10 hits of which 7 fetch and extract successfully.
func scenarioA(h *harness) []domain.SearchHit {
	hits := makeHits("site", 10)
	h.searcher.hits = hits
	for i := 0; i < 7; i++ {
		h.fetcher.pages[hits[i].URL] = quantumPage(i)
	}
	h.fetcher.pages[hits[9].URL] = "   " // fetched, nothing to extract
	return hits
}

func TestResearch_FirstRun(t *testing.T) {
	h := newHarness()
	hits := scenarioA(h)
	uc := h.research()

	out, err := uc.Run(context.Background(), entanglementQuery)
	require.NoError(t, err)

	assert.EqualValues(t, 1, h.searcher.calls.Load())
	assert.EqualValues(t, 10, h.fetcher.calls.Load())

	urls := map[string]struct{}{}
	for _, c := range h.store.Chunks() {
		urls[c.URL] = struct{}{}
	}
	assert.Len(t, urls, 7, "every successfully extracted hit contributes chunks")
	for i := 7; i < 10; i++ {
		assert.NotContains(t, urls, hits[i].URL)
	}

	rr := h.reranker.(*countingReranker)
	assert.EqualValues(t, 25, rr.seen.Load(), "rerank sees the top-25 retrieval")

	require.Len(t, out.Sources, 5)
	for i := 1; i < len(out.Sources); i++ {
		assert.GreaterOrEqual(t, out.Sources[i-1].Score, out.Sources[i].Score)
	}
	for _, s := range out.Sources {
		assert.NotEmpty(t, s.Content)
		assert.True(t, strings.HasPrefix(s.Title, "site result"))
	}
	assert.Regexp(t, `\[\d+(, \d+)*\]`, out.SynthesizedAnswer)

	cached, ok, err := h.cache.AnswerCache.Get(context.Background(), entanglementQuery)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, out, cached)
}

func TestResearch_PromptNumberingMatchesSources(t *testing.T) {
	h := newHarness()
	scenarioA(h)

	out, err := h.research().Run(context.Background(), entanglementQuery)
	require.NoError(t, err)
	require.Equal(t, 1, h.llm.calls())

	prompt := h.llm.prompts[0]
	last := -1
	for i, s := range out.Sources {
		marker := fmt.Sprintf("Source [%d] (URL: %s):\n%s", i+1, s.URL, s.Content)
		pos := strings.Index(prompt, marker)
		require.GreaterOrEqual(t, pos, 0, "source %d missing from prompt", i+1)
		assert.Greater(t, pos, last, "source %d out of order", i+1)
		last = pos
	}
	assert.NotContains(t, prompt, fmt.Sprintf("Source [%d]", len(out.Sources)+1))
}

func TestResearch_CacheHitShortCircuits(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	uc := h.research()
	ctx := context.Background()

	first, err := uc.Run(ctx, entanglementQuery)
	require.NoError(t, err)

	second, err := uc.Run(ctx, entanglementQuery)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, h.searcher.calls.Load())
	assert.EqualValues(t, 10, h.fetcher.calls.Load())
	assert.EqualValues(t, 1, h.reranker.(*countingReranker).calls.Load())
	assert.Equal(t, 1, h.llm.calls())
	assert.Equal(t, 1, h.store.resets)
}

func TestResearch_EmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", "\t\n"} {
		h := newHarness()
		scenarioA(h)

		_, err := h.research().Run(context.Background(), q)
		assert.ErrorIs(t, err, domain.ErrEmptyQuery)

		assert.Zero(t, h.cache.gets.Load())
		assert.Zero(t, h.searcher.calls.Load())
		assert.Zero(t, h.fetcher.calls.Load())
		assert.Zero(t, h.store.resets)
		assert.Zero(t, h.llm.calls())
	}
}

func TestResearch_NoSearchResults(t *testing.T) {
	h := newHarness()

	_, err := h.research().Run(context.Background(), entanglementQuery)
	assert.ErrorIs(t, err, domain.ErrNoSearchResults)
	assert.True(t, domain.IsPipelineFailure(err))
	assert.Zero(t, h.cache.sets.Load())
	assert.Zero(t, h.llm.calls())
}

func TestResearch_AllFetchesFail(t *testing.T) {
	h := newHarness()
	h.searcher.hits = makeHits("dead", 10)

	_, err := h.research().Run(context.Background(), entanglementQuery)
	assert.ErrorIs(t, err, domain.ErrNoCandidates)
	assert.EqualValues(t, 10, h.fetcher.calls.Load())
	assert.Zero(t, h.cache.sets.Load())
	assert.Zero(t, h.llm.calls())
}

func TestResearch_SynthesisFailureDegrades(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	h.llm.err = errors.New("quota exceeded")

	out, err := h.research().Run(context.Background(), entanglementQuery)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, out.SynthesizedAnswer)
	assert.Len(t, out.Sources, 5)

	cached, ok, _ := h.cache.AnswerCache.Get(context.Background(), entanglementQuery)
	require.True(t, ok)
	assert.Equal(t, FallbackAnswer, cached.SynthesizedAnswer)
}

func TestResearch_RerankFailure(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	h.reranker = &fakeReranker{err: errors.New("cross-encoder offline")}

	_, err := h.research().Run(context.Background(), entanglementQuery)
	assert.ErrorIs(t, err, domain.ErrRerankFailed)
	assert.Zero(t, h.cache.sets.Load())
	assert.Zero(t, h.llm.calls())
}

func TestResearch_StoreFailuresAreTerminal(t *testing.T) {
	for _, stage := range []string{"reset", "insert"} {
		t.Run(stage, func(t *testing.T) {
			h := newHarness()
			scenarioA(h)
			h.store.failOn = stage

			_, err := h.research().Run(context.Background(), entanglementQuery)
			require.Error(t, err)
			assert.False(t, domain.IsPipelineFailure(err))
			assert.Zero(t, h.cache.sets.Load())
		})
	}
}

func TestResearch_QueryEmbeddingFailureIsTerminal(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	h.embedder = &failingEmbedder{Embedder: h.embedder, marker: entanglementQuery}

	_, err := h.research().Run(context.Background(), entanglementQuery)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to embed query")
}

func TestResearch_CacheErrorsAreNotFatal(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	h.cache.getErr = errors.New("cache unreachable")
	h.cache.setErr = errors.New("cache unreachable")

	out, err := h.research().Run(context.Background(), entanglementQuery)
	require.NoError(t, err)
	assert.Len(t, out.Sources, 5)
	assert.EqualValues(t, 1, h.searcher.calls.Load())
}

func TestResearch_ResetBetweenRuns(t *testing.T) {
	h := newHarness()
	first := makeHits("alpha", 3)
	second := makeHits("beta", 3)
	h.searcher.byQuery["first query"] = first
	h.searcher.byQuery["second query"] = second
	for i, hit := range append(first, second...) {
		h.fetcher.pages[hit.URL] = quantumPage(i)
	}
	uc := h.research()

	_, err := uc.Run(context.Background(), "first query")
	require.NoError(t, err)
	out, err := uc.Run(context.Background(), "second query")
	require.NoError(t, err)

	require.Len(t, h.store.searches, 2)
	for _, host := range h.store.searches[1] {
		assert.True(t, strings.HasPrefix(host, "beta"), "stale chunk from %s visible to second run", host)
	}
	for _, s := range out.Sources {
		assert.Contains(t, s.URL, "beta")
	}
}

func TestResearch_ConcurrentIdenticalQueriesShareOneRun(t *testing.T) {
	h := newHarness()
	scenarioA(h)
	uc := h.research()

	var wg sync.WaitGroup
	results := make([]*domain.ResearchOutput, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = uc.Run(context.Background(), entanglementQuery)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
	assert.EqualValues(t, 1, h.searcher.calls.Load())
	assert.Equal(t, 1, h.llm.calls())
}

func TestResearch_ConcurrentDistinctQueriesAreIsolated(t *testing.T) {
	h := newHarness()
	queries := []string{"q-a", "q-b", "q-c", "q-d"}
	for qi, q := range queries {
		hits := makeHits(fmt.Sprintf("%s-host", q), 3)
		h.searcher.byQuery[q] = hits
		for i, hit := range hits {
			h.fetcher.pages[hit.URL] = quantumPage(qi*10 + i)
		}
	}
	uc := h.research()

	var wg sync.WaitGroup
	for _, q := range queries {
		wg.Add(1)
		go func(q string) {
			defer wg.Done()
			out, err := uc.Run(context.Background(), q)
			if assert.NoError(t, err) {
				for _, s := range out.Sources {
					assert.Contains(t, s.URL, q+"-host")
				}
			}
		}(q)
	}
	wg.Wait()

	require.Len(t, h.store.searches, len(queries))
	for _, hosts := range h.store.searches {
		prefixes := map[string]struct{}{}
		for _, host := range hosts {
			prefixes[host[:3]] = struct{}{}
		}
		assert.Len(t, prefixes, 1, "a search saw chunks from several runs: %v", hosts)
	}
}

func TestResearch_Cancelled(t *testing.T) {
	h := newHarness()
	scenarioA(h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.research().Run(ctx, entanglementQuery)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResearch_SearchWeb(t *testing.T) {
	h := newHarness()
	hits := makeHits("site", 3)
	h.searcher.hits = append(hits, hits[0])

	got, err := h.research().SearchWeb(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, hits, got)

	_, err = h.research().SearchWeb(context.Background(), " ")
	assert.ErrorIs(t, err, domain.ErrEmptyQuery)
}
