package memstore

import (
	"context"
	"errors"
	"testing"

	"research/internal/domain"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	err := s.Insert(ctx,
		domain.DocumentChunk{URL: "a", Content: "first", Embedding: []float32{1, 0}},
		domain.DocumentChunk{URL: "b", Content: "second", Embedding: []float32{0, 1}},
	)
	if err != nil {
		t.Fatal(err)
	}

	if n, _ := s.Count(ctx); n != 2 {
		t.Errorf("expected 2 chunks, got %d", n)
	}

	got, err := s.Search(ctx, []float32{0, 1}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].URL != "b" {
		t.Errorf("expected b first, got %+v", got)
	}

	if err := s.Reset(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("expected empty store after reset, got %d", n)
	}
}

func TestMemoryStore_DimensionMismatch(t *testing.T) {
	s := NewMemoryStore(2)
	err := s.Insert(context.Background(), domain.DocumentChunk{URL: "a", Embedding: []float32{1}})
	if !errors.Is(err, domain.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
	if len(s.Chunks()) != 0 {
		t.Error("rejected insert must not store anything")
	}
}

func TestMemoryStore_Closed(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	s.Close()

	if err := s.Reset(ctx); err == nil {
		t.Error("expected error after close")
	}
	if _, err := s.Search(ctx, []float32{1}, 1); err == nil {
		t.Error("expected error after close")
	}
}
