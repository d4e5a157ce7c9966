package cache

import (
	"context"
	"sync"
	"time"

	"research/internal/domain"
	"research/internal/port"
)

// QueryCache is an in-memory LRU of answers keyed by the exact query string.
// Entries older than the TTL behave as if they were never written.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	order   []string
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

type cacheEntry struct {
	output    *domain.ResearchOutput
	expiresAt time.Time
}

var _ port.AnswerCache = (*QueryCache)(nil)

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &QueryCache{
		entries: make(map[string]*cacheEntry),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source.
func (c *QueryCache) WithClock(now func() time.Time) *QueryCache {
	c.now = now
	return c
}

func (c *QueryCache) Get(ctx context.Context, query string) (*domain.ResearchOutput, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, exists := c.entries[query]
	if !exists {
		return nil, false, nil
	}

	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, query)
		c.removeFromOrder(query)
		return nil, false, nil
	}

	c.moveToEnd(query)
	return entry.output.Clone(), true, nil
}

func (c *QueryCache) Set(ctx context.Context, query string, out *domain.ResearchOutput) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := &cacheEntry{
		output:    out.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}

	if _, exists := c.entries[query]; exists {
		c.entries[query] = entry
		c.moveToEnd(query)
		return nil
	}

	if len(c.entries) >= c.maxSize {
		c.evictOldest()
	}

	c.entries[query] = entry
	c.order = append(c.order, query)
	return nil
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *QueryCache) evictOldest() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

func (c *QueryCache) moveToEnd(key string) {
	c.removeFromOrder(key)
	c.order = append(c.order, key)
}

func (c *QueryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
