// Package normalize turns raw post text into the lowercase, punctuation-free
// form that keyword matching and phrase mining operate on.
package normalize

import (
	"regexp"
	"strings"
)

// MinTokenLength is the shortest token kept by a Tokenizer
const MinTokenLength = 3

var urlPattern = regexp.MustCompile(`(?i)(?:https?://|www\.)\S*`)

// Join concatenates a title and body with a single space
func Join(title, body string) string {
	return title + " " + body
}

// Clean lowercases text, removes URLs, replaces everything outside
// [a-z0-9 ] with a space and collapses whitespace.
func Clean(text string) string {
	if text == "" {
		return ""
	}

	text = urlPattern.ReplaceAllString(strings.ToLower(text), " ")

	var b strings.Builder
	b.Grow(len(text))
	space := true // suppress leading spaces
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}

	return strings.TrimRight(b.String(), " ")
}

// Tokenizer splits cleaned text into tokens, dropping stopwords and short tokens
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
}

// NewTokenizer creates a tokenizer with the given stopword list
func NewTokenizer(stopwords []string) *Tokenizer {
	stops := make(map[string]struct{}, len(stopwords))
	for _, w := range stopwords {
		stops[strings.ToLower(w)] = struct{}{}
	}
	return &Tokenizer{stopwords: stops, minLen: MinTokenLength}
}

// NewDefaultTokenizer creates a tokenizer using DefaultStopwords
func NewDefaultTokenizer() *Tokenizer {
	return NewTokenizer(DefaultStopwords)
}

// Tokenize cleans text and returns the surviving tokens in order
func (t *Tokenizer) Tokenize(text string) []string {
	fields := strings.Fields(Clean(text))
	tokens := fields[:0]
	for _, f := range fields {
		if len(f) < t.minLen || t.IsStopword(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// IsStopword reports whether the word is on the stopword list
func (t *Tokenizer) IsStopword(word string) bool {
	_, ok := t.stopwords[word]
	return ok
}
