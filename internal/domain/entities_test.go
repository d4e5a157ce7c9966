package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateQuery(t *testing.T) {
	tests := []struct {
		query string
		err   error
	}{
		{"What is quantum entanglement?", nil},
		{"", ErrEmptyQuery},
		{"   ", ErrEmptyQuery},
		{"\t\n", ErrEmptyQuery},
		{"  padded  ", nil},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.query), func(t *testing.T) {
			assert.Equal(t, tt.err, ValidateQuery(tt.query))
		})
	}
}

func TestRankedCandidateScore(t *testing.T) {
	c := RankedCandidate{Similarity: 0.4}
	assert.Equal(t, 0.4, c.Score())

	s := 2.5
	c.RerankScore = &s
	assert.Equal(t, 2.5, c.Score())

	assert.Equal(t, 0.0, RankedCandidate{}.Citation().Score)
}

func TestCitationCarriesChunkFields(t *testing.T) {
	c := RankedCandidate{
		DocumentChunk: DocumentChunk{URL: "https://a.example", Title: "A", Content: "body"},
		Similarity:    0.9,
	}
	got := c.Citation()
	assert.Equal(t, SourceCitation{Title: "A", URL: "https://a.example", Content: "body", Score: 0.9}, got)
}

func TestResearchOutputClone(t *testing.T) {
	orig := &ResearchOutput{
		SynthesizedAnswer: "answer [1]",
		Sources:           []SourceCitation{{Title: "A", URL: "u"}},
	}
	cp := orig.Clone()
	cp.Sources[0].Title = "changed"

	assert.Equal(t, "A", orig.Sources[0].Title)
	assert.Nil(t, (*ResearchOutput)(nil).Clone())
}

func TestIsPipelineFailure(t *testing.T) {
	assert.True(t, IsPipelineFailure(fmt.Errorf("run: %w", ErrNoSearchResults)))
	assert.True(t, IsPipelineFailure(ErrNoCandidates))
	assert.True(t, IsPipelineFailure(ErrRerankFailed))
	assert.False(t, IsPipelineFailure(ErrEmptyQuery))
	assert.False(t, IsPipelineFailure(errors.New("boom")))
}
