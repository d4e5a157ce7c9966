package chunker

import (
	"strings"
	"unicode/utf8"
)

// Default window sizes, in characters.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// defaultSeparators are tried in order: paragraphs, lines, words, characters.
var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter splits text into overlapping windows of at most chunkSize
// characters, preferring paragraph, then line, then word boundaries.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

// NewTextSplitter creates a splitter. Invalid sizes fall back to defaults and
// an overlap that is not smaller than the chunk size is reduced to a quarter of it.
func NewTextSplitter(chunkSize, overlap int) *TextSplitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultChunkOverlap
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &TextSplitter{
		chunkSize:  chunkSize,
		overlap:    overlap,
		separators: defaultSeparators,
	}
}

// Split returns the chunks of text. Empty or whitespace-only text yields none.
func (s *TextSplitter) Split(text string) []string {
	return s.split(text, s.separators)
}

func (s *TextSplitter) split(text string, separators []string) []string {
	sep := separators[len(separators)-1]
	var rest []string
	for i, candidate := range separators {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	var chunks []string
	var pending []string
	for _, piece := range splitOn(text, sep) {
		if runeLen(piece) < s.chunkSize {
			pending = append(pending, piece)
			continue
		}
		if len(pending) > 0 {
			chunks = append(chunks, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(pending) > 0 {
		chunks = append(chunks, s.merge(pending, sep)...)
	}
	return chunks
}

// merge packs small pieces into windows, carrying up to overlap characters of
// trailing pieces into the next window.
func (s *TextSplitter) merge(pieces []string, sep string) []string {
	sepLen := runeLen(sep)
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		n := runeLen(piece)
		if total+n+joinCost(current, sepLen) > s.chunkSize {
			if len(current) > 0 {
				if chunk := join(current, sep); chunk != "" {
					chunks = append(chunks, chunk)
				}
				for total > s.overlap || (total > 0 && total+n+joinCost(current, sepLen) > s.chunkSize) {
					total -= runeLen(current[0])
					if len(current) > 1 {
						total -= sepLen
					}
					current = current[1:]
				}
			}
		}
		current = append(current, piece)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}

	if chunk := join(current, sep); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func joinCost(current []string, sepLen int) int {
	if len(current) > 0 {
		return sepLen
	}
	return 0
}

func join(pieces []string, sep string) string {
	return strings.TrimSpace(strings.Join(pieces, sep))
}

func splitOn(text, sep string) []string {
	var parts []string
	if sep == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, p := range strings.Split(text, sep) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
