package insights

import (
	"fmt"
	"sort"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
)

// TrendThreshold is the week-over-week change, in percent, beyond which a
// bucket is rising or declining.
const TrendThreshold = 20.0

// WeekKey returns the zero-padded ISO week identifier of t, e.g. "2024-W02"
func WeekKey(t time.Time) (key string, year, week int) {
	year, week = t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week), year, week
}

// TrendLabelFor classifies a week-over-week change. A nil change has no data.
func TrendLabelFor(change *float64) models.TrendLabel {
	switch {
	case change == nil:
		return models.TrendNoData
	case *change > TrendThreshold:
		return models.TrendRising
	case *change < -TrendThreshold:
		return models.TrendDeclining
	default:
		return models.TrendStable
	}
}

// QualityFor tiers a signal strength
func QualityFor(strength int) models.SignalQuality {
	switch {
	case strength >= 10:
		return models.QualityHigh
	case strength >= 5:
		return models.QualityMedium
	default:
		return models.QualityLow
	}
}

// PercentChange returns (current-previous)/previous*100, or nil when the
// previous value is zero.
func PercentChange(previous, current int) *float64 {
	if previous == 0 {
		return nil
	}
	change := float64(current-previous) / float64(previous) * 100
	return &change
}

// WeeklyTrends buckets posts by ISO week and computes week-over-week changes
// against the preceding row. The first row has no change data.
func WeeklyTrends(posts []models.ScoredPost) []models.WeeklyTrendRow {
	byWeek := make(map[string]*models.WeeklyTrendRow)
	prioritySums := make(map[string]int)

	for _, p := range posts {
		key, year, week := WeekKey(p.CreatedAt)
		row, ok := byWeek[key]
		if !ok {
			row = &models.WeeklyTrendRow{Week: key, ISOYear: year, ISOWeek: week}
			byWeek[key] = row
		}
		row.TotalPosts++
		row.Counts.Add(p.Flags)
		prioritySums[key] += p.InsightPriority
	}

	keys := make([]string, 0, len(byWeek))
	for key := range byWeek {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([]models.WeeklyTrendRow, 0, len(keys))
	for i, key := range keys {
		row := *byWeek[key]
		row.AvgPriority = round(ratio(prioritySums[key], row.TotalPosts), 2)
		row.SignalStrength = row.Counts.Sum()
		row.SignalQuality = QualityFor(row.SignalStrength)

		for _, b := range models.AllBuckets() {
			var change *float64
			if i > 0 {
				change = PercentChange(rows[i-1].Counts.Get(b), row.Counts.Get(b))
			}
			row.Changes.Set(b, change)
			row.Trends.Set(b, TrendLabelFor(change))
		}

		rows = append(rows, row)
	}

	return rows
}
