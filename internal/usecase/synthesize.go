package usecase

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"go.uber.org/zap"

	"research/internal/domain"
	"research/internal/port"
)

// FallbackAnswer is returned in place of a synthesized answer when the
// language model fails.
const FallbackAnswer = "An error occurred while synthesizing the answer. Please try again."

// RefusalAnswer is the sentence the model must use when the sources are
// insufficient.
const RefusalAnswer = "I cannot answer the query based on the provided sources."

//go:embed templates/*.txt
var promptTemplates embed.FS

var synthesisPrompt = template.Must(
	template.New("synthesis_prompt.txt").
		Funcs(templateFuncs()).
		ParseFS(promptTemplates, "templates/synthesis_prompt.txt"),
)

// SynthesizeUseCase turns the selected context into a cited answer.
type SynthesizeUseCase struct {
	llm    port.LLM
	logger *zap.Logger
}

func NewSynthesizeUseCase(llm port.LLM, logger *zap.Logger) *SynthesizeUseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SynthesizeUseCase{llm: llm, logger: logger}
}

// Synthesize asks the model for an answer grounded in sources, numbered 1..N
// in the order given. It never fails: model errors and empty completions
// yield FallbackAnswer.
func (u *SynthesizeUseCase) Synthesize(ctx context.Context, query string, sources []domain.SourceCitation) string {
	prompt, err := BuildPrompt(query, sources)
	if err != nil {
		u.logger.Error("Failed to render synthesis prompt", zap.Error(err))
		return FallbackAnswer
	}

	answer, err := u.llm.Generate(ctx, prompt)
	if err != nil {
		u.logger.Error("Synthesis failed", zap.String("model", u.llm.ModelName()), zap.Error(err))
		return FallbackAnswer
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		u.logger.Warn("Synthesis returned an empty answer", zap.String("model", u.llm.ModelName()))
		return FallbackAnswer
	}
	return answer
}

type promptData struct {
	Query   string
	Sources []domain.SourceCitation
	Refusal string
}

// BuildPrompt renders the grounded synthesis prompt.
func BuildPrompt(query string, sources []domain.SourceCitation) (string, error) {
	var buf bytes.Buffer
	err := synthesisPrompt.Execute(&buf, promptData{
		Query:   query,
		Sources: sources,
		Refusal: RefusalAnswer,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatSources": func(sources []domain.SourceCitation) string {
			var sb strings.Builder
			for i, s := range sources {
				sb.WriteString(fmt.Sprintf("Source [%d] (URL: %s):\n", i+1, s.URL))
				sb.WriteString(s.Content)
				sb.WriteString("\n---\n")
			}
			return sb.String()
		},
	}
}
