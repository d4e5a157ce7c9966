package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"sort"

	"research/internal/adapter/analyzer"
)

// HashEmbedder maps text to a fixed-size vector by hashing stemmed terms into
// buckets. It needs no model server and is deterministic, which makes it
// suitable for offline use and tests. Vectors are L2-normalized; text with
// no terms yields the zero vector.
type HashEmbedder struct {
	dimension int
	tokenizer *analyzer.Tokenizer
}

func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 384
	}
	return &HashEmbedder{
		dimension: dimension,
		tokenizer: analyzer.NewTokenizer(true),
	}
}

func (e *HashEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = e.embedOne(text)
	}
	return embeddings, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)

	// Colliding terms share a bucket; a fixed order keeps the float32 sum stable.
	terms := e.tokenizer.Terms(text)
	ordered := make([]string, 0, len(terms))
	for term := range terms {
		ordered = append(ordered, term)
	}
	sort.Strings(ordered)

	for _, term := range ordered {
		tf := terms[term]
		h := fnv.New64a()
		h.Write([]byte(term))
		sum := h.Sum64()

		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[(sum>>1)%uint64(e.dimension)] += sign * float32(1+math.Log(float64(tf)))
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (e *HashEmbedder) Dimension() int {
	return e.dimension
}

func (e *HashEmbedder) ModelName() string {
	return "hash"
}
