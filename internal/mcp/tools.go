package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// ResearchInput is the input schema for the research tool.
type ResearchInput struct {
	Query string `json:"query" jsonschema:"the question to research on the web"`
}

// ResearchOutput is the output schema for the research tool.
type ResearchOutput struct {
	Answer  string         `json:"answer"`
	Sources []SourceOutput `json:"sources"`
}

// SourceOutput is one numbered source. Number matches the bracketed
// citations in the answer.
type SourceOutput struct {
	Number  int     `json:"number"`
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the web search query"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results []HitOutput `json:"results"`
	Count   int         `json:"count"`
}

// HitOutput is one web search result.
type HitOutput struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "research",
		Description: "Search the web, read the top results and answer the query with numbered citations",
	}, s.handleResearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Run only the web search step and return the result titles and URLs",
	}, s.handleSearch)
}

func (s *Server) handleResearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ResearchInput,
) (*mcp.CallToolResult, ResearchOutput, error) {
	out, err := s.research.Run(ctx, input.Query)
	if err != nil {
		s.logger.Warn("Research tool failed", zap.String("query", input.Query), zap.Error(err))
		return nil, ResearchOutput{}, err
	}

	output := ResearchOutput{
		Answer:  out.SynthesizedAnswer,
		Sources: make([]SourceOutput, len(out.Sources)),
	}
	for i, src := range out.Sources {
		output.Sources[i] = SourceOutput{
			Number:  i + 1,
			Title:   src.Title,
			URL:     src.URL,
			Content: src.Content,
			Score:   src.Score,
		}
	}

	return nil, output, nil
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	hits, err := s.research.SearchWeb(ctx, input.Query)
	if err != nil {
		return nil, SearchOutput{}, err
	}

	output := SearchOutput{
		Results: make([]HitOutput, len(hits)),
		Count:   len(hits),
	}
	for i, h := range hits {
		output.Results[i] = HitOutput{Title: h.Title, URL: h.URL}
	}

	return nil, output, nil
}
