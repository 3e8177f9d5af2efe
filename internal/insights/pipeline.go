// Package insights turns a batch of raw posts into scored posts and the
// derived weekly, per-community and phrase tables.
package insights

import (
	"math"
	"sort"
	"sync"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/signals"
)

// Options configures the aggregation stages
type Options struct {
	Phrases PhraseOptions
}

// DefaultOptions returns the default aggregation options
func DefaultOptions() Options {
	return Options{Phrases: DefaultPhraseOptions()}
}

// Score classifies every post of the batch. The result is never nil and is
// identical for identical input.
func Score(posts []models.RawPost, classifier *signals.Classifier) []models.ScoredPost {
	scored := make([]models.ScoredPost, 0, len(posts))
	for _, p := range posts {
		scored = append(scored, classifier.ScorePost(p))
	}
	return scored
}

// Analyze scores the batch and computes the three derived tables. The
// aggregators only read the scored batch, so they run concurrently.
func Analyze(posts []models.RawPost, classifier *signals.Classifier, opts Options) *models.Tables {
	tables := &models.Tables{Posts: Score(posts, classifier)}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		tables.Weekly = WeeklyTrends(tables.Posts)
	}()
	go func() {
		defer wg.Done()
		tables.Communities = CommunityMetrics(tables.Posts)
	}()
	go func() {
		defer wg.Done()
		tables.Phrases = MinePhrases(tables.Posts, opts.Phrases)
	}()
	wg.Wait()

	return tables
}

// TopInsights returns up to n posts with the highest insight priority,
// keeping batch order among equal priorities.
func TopInsights(posts []models.ScoredPost, n int) []models.ScoredPost {
	sorted := make([]models.ScoredPost, len(posts))
	copy(sorted, posts)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].InsightPriority > sorted[j].InsightPriority
	})
	if n >= 0 && len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// ratio returns num/den, or 0 when den is zero
func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
