package insights

import (
	"sort"

	"github.com/azure/community-signals-bot/internal/models"
)

// maxSummaryPhrases caps the phrases carried in a summary
const maxSummaryPhrases = 5

// Summarize condenses the tables into totals, topic counts, the latest
// week's trend movements and the strongest phrases
func Summarize(tables *models.Tables) models.Summary {
	summary := models.Summary{Topics: make([]models.TopicCount, 0)}
	if tables == nil {
		return summary
	}

	topics := make(map[string]int)
	for _, p := range tables.Posts {
		summary.Signals.Add(p.Flags)
		topics[p.Topic]++
	}
	for topic, n := range topics {
		summary.Topics = append(summary.Topics, models.TopicCount{Topic: topic, Posts: n})
	}
	sort.Slice(summary.Topics, func(i, j int) bool {
		if summary.Topics[i].Posts != summary.Topics[j].Posts {
			return summary.Topics[i].Posts > summary.Topics[j].Posts
		}
		return summary.Topics[i].Topic < summary.Topics[j].Topic
	})

	if n := len(tables.Weekly); n > 0 {
		latest := tables.Weekly[n-1]
		summary.LatestWeek = latest.Week
		for _, b := range models.AllBuckets() {
			switch latest.Trends.Get(b) {
			case models.TrendRising:
				summary.Rising = append(summary.Rising, b)
			case models.TrendDeclining:
				summary.Declining = append(summary.Declining, b)
			}
		}
	}

	for i, p := range tables.Phrases {
		if i == maxSummaryPhrases {
			break
		}
		summary.TopPhrases = append(summary.TopPhrases, p.Phrase)
	}

	summary.Communities = len(tables.Communities)
	return summary
}
