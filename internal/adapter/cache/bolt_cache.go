package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"research/internal/domain"
	"research/internal/port"
)

var bucketAnswers = []byte("answers")

// BoltCache persists answers in a BoltDB file so they survive restarts.
// Expired entries are removed when they are read.
type BoltCache struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

var _ port.AnswerCache = (*BoltCache)(nil)

type storedAnswer struct {
	Value     *domain.ResearchOutput `json:"value"`
	ExpiresAt int64                  `json:"expires_at"` // unix nanoseconds
}

func NewBoltCache(path string, ttl time.Duration) (*BoltCache, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAnswers)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create answers bucket: %w", err)
	}

	return &BoltCache{db: db, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source.
func (c *BoltCache) WithClock(now func() time.Time) *BoltCache {
	c.now = now
	return c
}

func (c *BoltCache) Get(ctx context.Context, query string) (*domain.ResearchOutput, bool, error) {
	var (
		stored  storedAnswer
		found   bool
		expired bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketAnswers).Get([]byte(query))
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &stored); err != nil {
			return fmt.Errorf("failed to decode cached answer: %w", err)
		}
		if c.now().UnixNano() >= stored.ExpiresAt {
			expired = true
			return nil
		}
		found = stored.Value != nil
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if expired {
		if err := c.deleteExpired(query); err != nil {
			return nil, false, err
		}
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	return stored.Value, true, nil
}

func (c *BoltCache) Set(ctx context.Context, query string, out *domain.ResearchOutput) error {
	data, err := json.Marshal(storedAnswer{
		Value:     out,
		ExpiresAt: c.now().Add(c.ttl).UnixNano(),
	})
	if err != nil {
		return fmt.Errorf("failed to encode answer: %w", err)
	}
	return c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAnswers).Put([]byte(query), data)
	})
}

// deleteExpired removes the entry for query only if it is still expired, so
// a fresh answer written since the read is kept.
func (c *BoltCache) deleteExpired(query string) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAnswers)
		data := b.Get([]byte(query))
		if data == nil {
			return nil
		}
		var stored storedAnswer
		if err := json.Unmarshal(data, &stored); err == nil && c.now().UnixNano() < stored.ExpiresAt {
			return nil
		}
		return b.Delete([]byte(query))
	})
}

func (c *BoltCache) Close() error {
	return c.db.Close()
}
