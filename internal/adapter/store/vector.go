package store

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"research/internal/domain"
)

// Rank scores every chunk against the query embedding and returns at most
// topK candidates by descending cosine similarity. Equal scores keep the
// order in which chunks were stored.
func Rank(query []float32, chunks []domain.DocumentChunk, topK int) []domain.RankedCandidate {
	if topK <= 0 || len(chunks) == 0 {
		return nil
	}

	candidates := make([]domain.RankedCandidate, len(chunks))
	for i, c := range chunks {
		candidates[i] = domain.RankedCandidate{
			DocumentChunk: c,
			Similarity:    cosineSimilarity(query, c.Embedding),
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})

	if topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK]
}

// cosineSimilarity is 1 minus cosine distance. A zero vector scores 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// checkDimension reports whether every chunk embedding has length dim.
// A dim of zero accepts any length.
func checkDimension(dim int, chunks []domain.DocumentChunk) error {
	if dim == 0 {
		return nil
	}
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("%w: expected %d, got %d", domain.ErrDimensionMismatch, dim, len(c.Embedding))
		}
	}
	return nil
}

// float32SliceToBytes encodes a vector as little-endian float32s.
func float32SliceToBytes(floats []float32) []byte {
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
