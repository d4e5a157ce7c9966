package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.etcd.io/bbolt"

	"research/internal/domain"
	"research/internal/port"
)

var bucketDocuments = []byte("documents")

// BoltCorpusStore persists the corpus in a BoltDB file and keeps an in-memory
// mirror in insertion order for brute-force search.
type BoltCorpusStore struct {
	db        *bbolt.DB
	dimension int

	mu     sync.RWMutex
	chunks []domain.DocumentChunk
}

var _ port.CorpusStore = (*BoltCorpusStore)(nil)

type storedChunk struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// NewBoltCorpusStore opens (or creates) the corpus at path. Chunks left by a
// previous process are loaded so Count reflects the file contents.
func NewBoltCorpusStore(path string, dimension int) (*BoltCorpusStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDocuments)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create documents bucket: %w", err)
	}

	s := &BoltCorpusStore{db: db, dimension: dimension}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load corpus: %w", err)
	}
	return s, nil
}

// load reads stored chunks in key order, which is insertion order.
func (s *BoltCorpusStore) load() error {
	return s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocuments).ForEach(func(k, v []byte) error {
			var sc storedChunk
			if err := json.Unmarshal(v, &sc); err != nil {
				return nil // Skip corrupted entries
			}
			s.chunks = append(s.chunks, sc.toDomain())
			return nil
		})
	})
}

func (s *BoltCorpusStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocuments); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket(bucketDocuments)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to reset corpus: %w", err)
	}
	s.chunks = nil
	return nil
}

func (s *BoltCorpusStore) Insert(ctx context.Context, chunks ...domain.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := checkDimension(s.dimension, chunks); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDocuments)
		for _, c := range chunks {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			data, err := json.Marshal(storedChunk{
				URL:       c.URL,
				Title:     c.Title,
				Content:   c.Content,
				Embedding: c.Embedding,
			})
			if err != nil {
				return err
			}
			if err := b.Put(sequenceKey(seq), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	s.chunks = append(s.chunks, chunks...)
	return nil
}

func (s *BoltCorpusStore) Search(ctx context.Context, embedding []float32, topK int) ([]domain.RankedCandidate, error) {
	if s.dimension != 0 && len(embedding) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d, store expects %d", domain.ErrDimensionMismatch, len(embedding), s.dimension)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return Rank(embedding, s.chunks, topK), nil
}

func (s *BoltCorpusStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *BoltCorpusStore) Close() error {
	return s.db.Close()
}

func (sc storedChunk) toDomain() domain.DocumentChunk {
	return domain.DocumentChunk{
		URL:       sc.URL,
		Title:     sc.Title,
		Content:   sc.Content,
		Embedding: sc.Embedding,
	}
}

// sequenceKey encodes seq big-endian so byte order matches insertion order.
func sequenceKey(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
