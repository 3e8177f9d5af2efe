package insights

import (
	"sort"

	"github.com/azure/community-signals-bot/internal/models"
)

// CommunityMetrics groups posts by community name, exactly as received, and
// computes per-bucket rates. Only communities present in the batch get a row.
func CommunityMetrics(posts []models.ScoredPost) []models.CommunityMetricsRow {
	byCommunity := make(map[string]*models.CommunityMetricsRow)
	prioritySums := make(map[string]int)

	for _, p := range posts {
		row, ok := byCommunity[p.Community]
		if !ok {
			row = &models.CommunityMetricsRow{Community: p.Community}
			byCommunity[p.Community] = row
		}
		row.TotalPosts++
		row.Counts.Add(p.Flags)
		prioritySums[p.Community] += p.InsightPriority
	}

	rows := make([]models.CommunityMetricsRow, 0, len(byCommunity))
	for name, row := range byCommunity {
		c := row.Counts
		row.Rates = models.BucketRates{
			Pain:      round(ratio(c.Pain, row.TotalPosts), 3),
			Demand:    round(ratio(c.Demand, row.TotalPosts), 3),
			Cost:      round(ratio(c.Cost, row.TotalPosts), 3),
			Confusion: round(ratio(c.Confusion, row.TotalPosts), 3),
			Sentiment: round(ratio(c.Sentiment, row.TotalPosts), 3),
		}
		row.AvgPriority = round(ratio(prioritySums[name], row.TotalPosts), 2)
		rows = append(rows, *row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].Community < rows[j].Community
	})

	return rows
}
