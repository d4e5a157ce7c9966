package domain

import "strings"

// SearchHit is a single web search result.
type SearchHit struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"content,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// DocumentChunk is a window of extracted page text with its embedding.
type DocumentChunk struct {
	URL       string
	Title     string
	Content   string
	Embedding []float32
}

// RankedCandidate is a chunk returned by vector search, optionally rescored
// by the cross-encoder.
type RankedCandidate struct {
	DocumentChunk
	Similarity  float64
	RerankScore *float64
}

// Score returns the rerank score when present, otherwise the similarity.
func (c RankedCandidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.Similarity
}

// Citation converts the candidate into the externally visible source form.
func (c RankedCandidate) Citation() SourceCitation {
	return SourceCitation{
		Title:   c.Title,
		URL:     c.URL,
		Content: c.Content,
		Score:   c.Score(),
	}
}

// SourceCitation is one numbered source of an answer, as returned to callers.
type SourceCitation struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// ResearchOutput is the result of one pipeline run and the unit stored in
// the answer cache.
type ResearchOutput struct {
	SynthesizedAnswer string           `json:"synthesized_answer"`
	Sources           []SourceCitation `json:"sources"`
}

// Clone returns a deep copy so cached values are never shared with callers.
func (o *ResearchOutput) Clone() *ResearchOutput {
	if o == nil {
		return nil
	}
	out := &ResearchOutput{
		SynthesizedAnswer: o.SynthesizedAnswer,
		Sources:           make([]SourceCitation, len(o.Sources)),
	}
	copy(out.Sources, o.Sources)
	return out
}

// ResearchResponse is the API envelope around a ResearchOutput.
type ResearchResponse struct {
	Query  string          `json:"query"`
	Result *ResearchOutput `json:"result"`
}

// FetchedPage is raw content downloaded for a search hit.
type FetchedPage struct {
	URL         string
	ContentType string
	Body        []byte
}

// IngestResult summarises the corpus build of one run.
type IngestResult struct {
	Hits    int
	Fetched int
	Skipped int
	Chunks  int
}

// ValidateQuery rejects empty and whitespace-only queries.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return ErrEmptyQuery
	}
	return nil
}
