package cache

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research/internal/domain"
	"research/internal/port"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func answer(text string) *domain.ResearchOutput {
	return &domain.ResearchOutput{
		SynthesizedAnswer: text,
		Sources:           []domain.SourceCitation{{Title: "t", URL: "https://example.com", Content: "c", Score: 0.9}},
	}
}

type cacheFactory func(t *testing.T, ttl time.Duration, clock *fakeClock) port.AnswerCache

func caches() map[string]cacheFactory {
	return map[string]cacheFactory{
		"memory": func(t *testing.T, ttl time.Duration, clock *fakeClock) port.AnswerCache {
			return NewQueryCache(10, ttl).WithClock(clock.Now)
		},
		"bolt": func(t *testing.T, ttl time.Duration, clock *fakeClock) port.AnswerCache {
			c, err := NewBoltCache(filepath.Join(t.TempDir(), "cache.db"), ttl)
			require.NoError(t, err)
			t.Cleanup(func() { c.Close() })
			return c.WithClock(clock.Now)
		},
	}
}

func TestCache_SetGet(t *testing.T) {
	for name, open := range caches() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{t: time.Unix(1000, 0)}
			c := open(t, time.Hour, clock)

			_, ok, err := c.Get(ctx, "What is RAG?")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, c.Set(ctx, "What is RAG?", answer("A1 [1]")))

			got, ok, err := c.Get(ctx, "What is RAG?")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, answer("A1 [1]"), got)
		})
	}
}

func TestCache_KeysAreExact(t *testing.T) {
	for name, open := range caches() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := open(t, time.Hour, &fakeClock{t: time.Unix(1000, 0)})

			require.NoError(t, c.Set(ctx, "What is RAG?", answer("A1")))

			for _, variant := range []string{"what is rag?", "What is RAG? ", " What is RAG?"} {
				_, ok, err := c.Get(ctx, variant)
				require.NoError(t, err)
				assert.False(t, ok, "variant %q must miss", variant)
			}
		})
	}
}

func TestCache_Expiry(t *testing.T) {
	for name, open := range caches() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clock := &fakeClock{t: time.Unix(1000, 0)}
			c := open(t, time.Hour, clock)

			require.NoError(t, c.Set(ctx, "q", answer("A1")))

			clock.Advance(59 * time.Minute)
			_, ok, err := c.Get(ctx, "q")
			require.NoError(t, err)
			assert.True(t, ok)

			clock.Advance(time.Minute)
			_, ok, err = c.Get(ctx, "q")
			require.NoError(t, err)
			assert.False(t, ok, "entry at expiry must miss")

			// A rewrite after expiry starts a fresh TTL.
			require.NoError(t, c.Set(ctx, "q", answer("A2")))
			got, ok, err := c.Get(ctx, "q")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "A2", got.SynthesizedAnswer)
		})
	}
}

func TestCache_Overwrite(t *testing.T) {
	for name, open := range caches() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			c := open(t, time.Hour, &fakeClock{t: time.Unix(1000, 0)})

			require.NoError(t, c.Set(ctx, "q", answer("old")))
			require.NoError(t, c.Set(ctx, "q", answer("new")))

			got, ok, err := c.Get(ctx, "q")
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, "new", got.SynthesizedAnswer)
		})
	}
}

func TestQueryCache_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(10, time.Hour)

	in := answer("A1")
	require.NoError(t, c.Set(ctx, "q", in))
	in.Sources[0].Title = "mutated"

	got, _, _ := c.Get(ctx, "q")
	assert.Equal(t, "t", got.Sources[0].Title)

	got.Sources[0].Title = "mutated again"
	again, _, _ := c.Get(ctx, "q")
	assert.Equal(t, "t", again.Sources[0].Title)
}

func TestQueryCache_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(2, time.Hour)

	require.NoError(t, c.Set(ctx, "a", answer("a")))
	require.NoError(t, c.Set(ctx, "b", answer("b")))
	_, _, _ = c.Get(ctx, "a")
	require.NoError(t, c.Set(ctx, "c", answer("c")))

	assert.Equal(t, 2, c.Size())
	_, ok, _ := c.Get(ctx, "b")
	assert.False(t, ok, "b was least recently used")
	_, ok, _ = c.Get(ctx, "a")
	assert.True(t, ok)
}

func TestQueryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewQueryCache(50, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("q%d", i%5)
			_ = c.Set(ctx, key, answer(key))
			_, _, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Size())
}

func TestBoltCache_Persists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	c, err := NewBoltCache(path, time.Hour)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, "q", answer("kept")))
	require.NoError(t, c.Close())

	c, err = NewBoltCache(path, time.Hour)
	require.NoError(t, err)
	defer c.Close()

	got, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "kept", got.SynthesizedAnswer)
}

func TestBoltCache_ExpiredDeleteKeepsFreshAnswer(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c, err := NewBoltCache(filepath.Join(t.TempDir(), "cache.db"), time.Minute)
	require.NoError(t, err)
	defer c.Close()
	c.WithClock(clock.Now)

	require.NoError(t, c.Set(ctx, "q", answer("stale")))
	clock.Advance(time.Minute)

	// A reader saw the stale entry; a writer refreshes it before the delete.
	require.NoError(t, c.Set(ctx, "q", answer("fresh")))
	require.NoError(t, c.deleteExpired("q"))

	got, ok, err := c.Get(ctx, "q")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "fresh", got.SynthesizedAnswer)

	clock.Advance(time.Minute)
	require.NoError(t, c.deleteExpired("q"))
	_, ok, err = c.Get(ctx, "q")
	require.NoError(t, err)
	assert.False(t, ok)
}
