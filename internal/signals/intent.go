package signals

import (
	"strings"

	"github.com/azure/community-signals-bot/internal/normalize"
)

// Intent labels, in rule order
const (
	IntentQuestion   = "question"
	IntentComplaint  = "complaint"
	IntentShowcase   = "showcase"
	IntentBenchmark  = "benchmark"
	IntentDiscussion = "discussion"
)

var complaintWords = []string{
	"hate", "terrible", "worst", "awful", "annoying", "frustrat",
	"sucks", "broken", "useless", "disappointed", "ridiculous",
}

var showcasePhrases = []string{
	"i built", "i made", "we built", "we launched", "just launched",
	"show hn", "introducing", "check out my", "side project", "open sourced",
}

// ClassifyIntent applies the intent rules in order; the first match wins.
// The question-mark rule looks at the raw text, the rest at cleaned text.
func ClassifyIntent(text string) string {
	clean := normalize.Clean(text)
	padded := " " + clean + " "

	switch {
	case strings.Contains(text, "?") ||
		strings.Contains(clean, "how do") ||
		strings.Contains(padded, " anyone "):
		return IntentQuestion
	case containsAny(clean, complaintWords):
		return IntentComplaint
	case containsAny(clean, showcasePhrases):
		return IntentShowcase
	case strings.Contains(clean, "benchmark") || strings.Contains(padded, " vs "):
		return IntentBenchmark
	default:
		return IntentDiscussion
	}
}

// IntentLabels returns every intent label in rule order
func IntentLabels() []string {
	return []string{IntentQuestion, IntentComplaint, IntentShowcase, IntentBenchmark, IntentDiscussion}
}
