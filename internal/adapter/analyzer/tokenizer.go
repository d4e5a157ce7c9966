// Package analyzer turns natural-language text into normalised terms for
// lexical scoring and feature hashing.
package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase terms with stopword removal and
// optional light suffix stripping.
type Tokenizer struct {
	stopwords map[string]struct{}
	useStem   bool
}

// NewTokenizer creates a new Tokenizer.
func NewTokenizer(useStemming bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		useStem:   useStemming,
	}
}

// Tokenize splits text into terms.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < 2 {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		if t.useStem {
			word = stripSuffix(word)
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Terms returns the term frequencies of text.
func (t *Tokenizer) Terms(text string) map[string]int {
	terms := make(map[string]int)
	for _, tok := range t.Tokenize(text) {
		terms[tok]++
	}
	return terms
}

// splitWords splits text into words using unicode letter/digit runs.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else {
			if current.Len() > 0 {
				words = append(words, current.String())
				current.Reset()
			}
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

// suffixes are tried longest first; a stem must keep at least three runes.
var suffixes = []string{"ations", "ation", "ments", "ment", "ness", "ings", "ing", "ies", "ed", "es", "ly", "s"}

func stripSuffix(word string) string {
	for _, suf := range suffixes {
		if !strings.HasSuffix(word, suf) {
			continue
		}
		stem := strings.TrimSuffix(word, suf)
		if len([]rune(stem)) < 3 {
			continue
		}
		switch {
		case suf == "ies":
			return stem + "y"
		case suf == "s" && strings.HasSuffix(stem, "s"):
			return word // "class", "glass"
		}
		return trimFinalE(stem)
	}
	return trimFinalE(word)
}

func trimFinalE(word string) string {
	if strings.HasSuffix(word, "e") && len([]rune(word)) > 3 {
		return strings.TrimSuffix(word, "e")
	}
	return word
}

// defaultStopwords returns a set of common English stopwords.
func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
