// Package memstore provides a process-local CorpusStore with no persistence.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"research/internal/adapter/store"
	"research/internal/domain"
	"research/internal/port"
)

type MemoryStore struct {
	mu        sync.RWMutex
	dimension int
	chunks    []domain.DocumentChunk
	closed    bool
}

var _ port.CorpusStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A dimension of zero accepts any
// vector length.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension}
}

func (s *MemoryStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.chunks = nil
	return nil
}

func (s *MemoryStore) Insert(ctx context.Context, chunks ...domain.DocumentChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	for _, c := range chunks {
		if s.dimension != 0 && len(c.Embedding) != s.dimension {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, s.dimension, len(c.Embedding))
		}
	}
	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float32, topK int) ([]domain.RankedCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errClosed
	}
	if s.dimension != 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", domain.ErrDimensionMismatch, len(embedding), s.dimension)
	}
	return store.Rank(embedding, s.chunks, topK), nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

// Chunks returns a copy of the stored chunks in insertion order.
func (s *MemoryStore) Chunks() []domain.DocumentChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.DocumentChunk, len(s.chunks))
	copy(out, s.chunks)
	return out
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.chunks = nil
	return nil
}

var errClosed = errors.New("memory store is closed")
