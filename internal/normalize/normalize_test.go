package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Empty",
			input:    "",
			expected: "",
		},
		{
			name:     "Lowercases and strips punctuation",
			input:    "RAG pipeline error, need advice!",
			expected: "rag pipeline error need advice",
		},
		{
			name:     "Removes URLs",
			input:    "See https://example.com/a?b=c and www.foo.io/x for details",
			expected: "see and for details",
		},
		{
			name:     "Collapses whitespace",
			input:    "  many \t\n spaces   here  ",
			expected: "many spaces here",
		},
		{
			name:     "Apostrophes become spaces",
			input:    "It doesn't work",
			expected: "it doesn t work",
		},
		{
			name:     "Non-ASCII letters removed",
			input:    "café naïve",
			expected: "caf na ve",
		},
		{
			name:     "Only punctuation",
			input:    "?!...",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Clean(tt.input))
		})
	}
}

func TestCleanIsDeterministic(t *testing.T) {
	input := "Why is my LLM bill SO expensive?? https://x.com"
	assert.Equal(t, Clean(input), Clean(input))
	assert.Equal(t, Clean(input), Clean(Clean(input)))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "title body", Join("title", "body"))
	assert.Equal(t, "title ", Join("title", ""))
	assert.Equal(t, "", Clean(Join("", "")))
}

func TestTokenize(t *testing.T) {
	tokenizer := NewDefaultTokenizer()

	tokens := tokenizer.Tokenize("The rate limiting on the API is a problem for us")
	assert.Equal(t, []string{"rate", "limiting", "api", "problem"}, tokens)
}

func TestTokenizeDropsShortTokens(t *testing.T) {
	tokenizer := NewTokenizer(nil)

	tokens := tokenizer.Tokenize("go is ok but rust wins")
	assert.Equal(t, []string{"but", "rust", "wins"}, tokens)
}

func TestTokenizeEmpty(t *testing.T) {
	tokenizer := NewDefaultTokenizer()
	assert.Empty(t, tokenizer.Tokenize(""))
	assert.Empty(t, tokenizer.Tokenize("   !!! "))
}

func TestIsStopword(t *testing.T) {
	tokenizer := NewTokenizer([]string{"The", "and"})
	assert.True(t, tokenizer.IsStopword("the"))
	assert.True(t, tokenizer.IsStopword("and"))
	assert.False(t, tokenizer.IsStopword("rag"))
}
