package sources

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/sirupsen/logrus"
)

// Post limit bounds per community
const (
	MinLimit     = 10
	MaxLimit     = 300
	DefaultLimit = 100
)

// Query describes one collection run
type Query struct {
	Communities    []string
	Limit          int
	FilterKeywords []string
	Since          time.Time // zero means unbounded
	Until          time.Time
	MinScore       int
	MinComments    int
}

// Validate checks the query bounds
func (q Query) Validate() error {
	if len(q.Communities) == 0 {
		return fmt.Errorf("at least one community is required")
	}
	if q.Limit < MinLimit || q.Limit > MaxLimit {
		return fmt.Errorf("limit must be between %d and %d, got %d", MinLimit, MaxLimit, q.Limit)
	}
	if !q.Since.IsZero() && !q.Until.IsZero() && q.Until.Before(q.Since) {
		return fmt.Errorf("until must not be before since")
	}
	return nil
}

// Key returns a canonical cache key: community order and case do not matter
func (q Query) Key() string {
	communities := make([]string, 0, len(q.Communities))
	for _, c := range q.Communities {
		communities = append(communities, strings.ToLower(strings.TrimSpace(c)))
	}
	sort.Strings(communities)

	keywords := make([]string, 0, len(q.FilterKeywords))
	for _, k := range q.FilterKeywords {
		keywords = append(keywords, strings.ToLower(strings.TrimSpace(k)))
	}
	sort.Strings(keywords)

	return fmt.Sprintf("%s|%d|%s|%d|%d|%d|%d",
		strings.Join(communities, ","),
		q.Limit,
		strings.Join(keywords, ","),
		unixOrZero(q.Since),
		unixOrZero(q.Until),
		q.MinScore,
		q.MinComments,
	)
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

// Collect fetches every community concurrently and returns a materialized
// batch. A failing community is recorded in the batch results and never
// aborts the others.
func Collect(ctx context.Context, source Source, q Query) *models.Batch {
	results := make([]models.CommunityResult, len(q.Communities))
	fetched := make([][]models.RawPost, len(q.Communities))

	var wg sync.WaitGroup
	for i, community := range q.Communities {
		wg.Add(1)
		go func(i int, community string) {
			defer wg.Done()

			posts, err := source.FetchPosts(ctx, community, q.Limit)
			result := models.CommunityResult{Community: community, Fetched: len(posts)}
			if err != nil {
				result.Err = err
				result.Reason = err.Error()
				logrus.WithFields(logrus.Fields{
					"source":    source.GetName(),
					"community": community,
				}).Errorf("Failed to fetch community: %v", err)
			}

			kept := q.filter(posts)
			result.Kept = len(kept)
			results[i] = result
			fetched[i] = kept
		}(i, community)
	}
	wg.Wait()

	batch := &models.Batch{
		Posts:     make([]models.RawPost, 0),
		Results:   results,
		FetchedAt: time.Now().UTC(),
	}
	for _, posts := range fetched {
		batch.Posts = append(batch.Posts, posts...)
	}
	batch.Posts = deduplicate(batch.Posts)

	logrus.WithFields(logrus.Fields{
		"source":      source.GetName(),
		"communities": len(q.Communities),
		"failed":      len(batch.Failures()),
		"posts":       len(batch.Posts),
	}).Info("Collection completed")

	return batch
}

// filter applies the keyword, date, score and comment filters
func (q Query) filter(posts []models.RawPost) []models.RawPost {
	keywords := make([]string, 0, len(q.FilterKeywords))
	for _, k := range q.FilterKeywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			keywords = append(keywords, k)
		}
	}

	var kept []models.RawPost
	for _, p := range posts {
		if !q.Since.IsZero() && p.CreatedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && p.CreatedAt.After(q.Until) {
			continue
		}
		if p.Score < q.MinScore || p.CommentCount < q.MinComments {
			continue
		}
		if len(keywords) > 0 && !matchesAny(strings.ToLower(p.Text()), keywords) {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func matchesAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// deduplicate keeps the first post seen for each ID. Posts without an ID
// cannot be compared and are always kept.
func deduplicate(posts []models.RawPost) []models.RawPost {
	seen := make(map[string]bool)
	unique := make([]models.RawPost, 0, len(posts))

	for _, p := range posts {
		if p.ID == "" {
			unique = append(unique, p)
			continue
		}
		if !seen[p.ID] {
			seen[p.ID] = true
			unique = append(unique, p)
		}
	}

	return unique
}
