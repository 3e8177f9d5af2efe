package insights

import (
	"sort"
	"strings"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/normalize"
)

// Phrase mining defaults
const (
	DefaultMinCount    = 3
	DefaultMaxEvidence = 5
)

// PhraseOptions configures the phrase miner
type PhraseOptions struct {
	Windows     []int // n-gram sizes
	MinCount    int
	MaxEvidence int
	Tokenizer   *normalize.Tokenizer
}

// DefaultPhraseOptions mines 2- and 3-grams seen at least three times
func DefaultPhraseOptions() PhraseOptions {
	return PhraseOptions{
		Windows:     []int{2, 3},
		MinCount:    DefaultMinCount,
		MaxEvidence: DefaultMaxEvidence,
	}
}

func (o PhraseOptions) withDefaults() PhraseOptions {
	if len(o.Windows) == 0 {
		o.Windows = []int{2, 3}
	}
	if o.MinCount < 1 {
		o.MinCount = DefaultMinCount
	}
	if o.MaxEvidence <= 0 {
		o.MaxEvidence = DefaultMaxEvidence
	}
	if o.Tokenizer == nil {
		o.Tokenizer = normalize.NewDefaultTokenizer()
	}
	return o
}

// MinePhrases extracts every contiguous n-gram of the configured sizes from
// each post, keeps phrases with at least MinCount occurrences and orders them
// by occurrence count, ties broken by first appearance. A phrase repeated
// inside one post counts once per position.
func MinePhrases(posts []models.ScoredPost, opts PhraseOptions) []models.PhraseRow {
	opts = opts.withDefaults()

	var order []string
	occurrences := make(map[string][]int) // phrase -> post indexes, one per occurrence

	seenWindow := make(map[int]bool)
	var windows []int
	for _, n := range opts.Windows {
		if n > 0 && !seenWindow[n] {
			seenWindow[n] = true
			windows = append(windows, n)
		}
	}

	for i, p := range posts {
		tokens := opts.Tokenizer.Tokenize(normalize.Join(p.Title, p.Body))
		for _, n := range windows {
			for j := 0; j+n <= len(tokens); j++ {
				phrase := strings.Join(tokens[j:j+n], " ")
				if _, ok := occurrences[phrase]; !ok {
					order = append(order, phrase)
				}
				occurrences[phrase] = append(occurrences[phrase], i)
			}
		}
	}

	rows := make([]models.PhraseRow, 0)
	for _, phrase := range order {
		idx := occurrences[phrase]
		if len(idx) < opts.MinCount {
			continue
		}
		rows = append(rows, phraseRow(phrase, idx, posts, opts.MaxEvidence))
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Posts > rows[j].Posts
	})

	return rows
}

func phraseRow(phrase string, idx []int, posts []models.ScoredPost, maxEvidence int) models.PhraseRow {
	var pain, demand, priority int
	evidence := make([]models.Evidence, 0, maxEvidence)
	inEvidence := make(map[int]bool, maxEvidence)

	for _, i := range idx {
		p := posts[i]
		pain += p.Flags.Pain
		demand += p.Flags.Demand
		priority += p.InsightPriority

		if len(evidence) < maxEvidence && !inEvidence[i] {
			inEvidence[i] = true
			evidence = append(evidence, models.Evidence{
				Title:     p.Title,
				Community: p.Community,
				Score:     p.Score,
			})
		}
	}

	count := len(idx)
	return models.PhraseRow{
		Phrase:      phrase,
		Posts:       count,
		PainPct:     round(ratio(pain, count)*100, 1),
		DemandPct:   round(ratio(demand, count)*100, 1),
		AvgPriority: round(ratio(priority, count), 2),
		Evidence:    evidence,
	}
}
