package rerank

import (
	"context"
	"math"
	"sort"

	"research/internal/adapter/analyzer"
	"research/internal/port"
)

// LexicalReranker scores passages with BM25, using the candidate set itself
// as the corpus. It needs no model or network access.
type LexicalReranker struct {
	tokenizer *analyzer.Tokenizer
	k1        float64
	b         float64
}

var _ port.Reranker = (*LexicalReranker)(nil)

func NewLexicalReranker() *LexicalReranker {
	return &LexicalReranker{
		tokenizer: analyzer.NewTokenizer(true),
		k1:        1.2,
		b:         0.75,
	}
}

// Rerank returns one score per document. Documents without any query term,
// including empty ones, score 0.
func (r *LexicalReranker) Rerank(ctx context.Context, query string, documents []string) ([]port.RerankedResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTerms := r.tokenizer.Terms(query)

	docTerms := make([]map[string]int, len(documents))
	docLens := make([]int, len(documents))
	df := make(map[string]int)
	total := 0
	for i, doc := range documents {
		docTerms[i] = r.tokenizer.Terms(doc)
		for term, tf := range docTerms[i] {
			docLens[i] += tf
			if _, ok := queryTerms[term]; ok {
				df[term]++
			}
		}
		total += docLens[i]
	}

	N := float64(len(documents))
	avgDl := 1.0
	if total > 0 {
		avgDl = float64(total) / N
	}

	results := make([]port.RerankedResult, len(documents))
	parts := make([]float64, 0, len(queryTerms))
	for i := range documents {
		dl := float64(docLens[i])
		parts = parts[:0]
		for term := range queryTerms {
			tf, exists := docTerms[i][term]
			if !exists {
				continue
			}
			n := float64(df[term])
			idf := math.Log((N-n+0.5)/(n+0.5) + 1)

			tfFloat := float64(tf)
			parts = append(parts, idf*(tfFloat*(r.k1+1))/(tfFloat+r.k1*(1-r.b+r.b*dl/avgDl)))
		}
		results[i] = port.RerankedResult{Index: i, Score: sum(parts)}
	}

	return results, nil
}

// ModelName returns the model name.
func (r *LexicalReranker) ModelName() string {
	return "bm25"
}

// sum adds term contributions smallest first, so documents whose
// contributions are permutations of each other get bit-identical scores.
func sum(parts []float64) float64 {
	sort.Float64s(parts)
	total := 0.0
	for _, p := range parts {
		total += p
	}
	return total
}
