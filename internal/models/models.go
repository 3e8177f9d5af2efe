package models

import "time"

// RawPost represents a post fetched from a community before any scoring
type RawPost struct {
	ID           string    `json:"id"`
	Community    string    `json:"community"` // subreddit name, as received
	Title        string    `json:"title"`
	Body         string    `json:"body"`
	Author       string    `json:"author"`
	Score        int       `json:"score"`
	CommentCount int       `json:"comment_count"`
	TopComments  string    `json:"top_comments,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Permalink    string    `json:"permalink"`
}

// Text returns title and body joined by a single space
func (p RawPost) Text() string {
	return p.Title + " " + p.Body
}

// Flags holds the per-bucket keyword matches of a post. Every field is 0 or 1.
type Flags struct {
	Pain      int `json:"pain"`
	Demand    int `json:"demand"`
	Cost      int `json:"cost"`
	Confusion int `json:"confusion"`
	Sentiment int `json:"sentiment"`
}

// Get returns the flag for a bucket
func (f Flags) Get(b Bucket) int {
	switch b {
	case BucketPain:
		return f.Pain
	case BucketDemand:
		return f.Demand
	case BucketCost:
		return f.Cost
	case BucketConfusion:
		return f.Confusion
	case BucketSentiment:
		return f.Sentiment
	}
	return 0
}

// ScoredPost is a RawPost plus the signals derived from its text
type ScoredPost struct {
	RawPost
	Flags           Flags  `json:"flags"`
	InsightPriority int    `json:"insight_priority"`
	Topic           string `json:"topic"`
	Intent          string `json:"intent"`
	Opportunity     string `json:"opportunity"`
}

// CommunityResult records the outcome of fetching one community
type CommunityResult struct {
	Community string `json:"community"`
	Fetched   int    `json:"fetched"`
	Kept      int    `json:"kept"`
	Cached    bool   `json:"cached"`
	Err       error  `json:"-"`
	Reason    string `json:"reason,omitempty"`
}

// OK reports whether the community was fetched without error
func (r CommunityResult) OK() bool {
	return r.Err == nil
}

// Batch is a fully materialized set of posts plus per-community diagnostics
type Batch struct {
	Posts     []RawPost         `json:"posts"`
	Results   []CommunityResult `json:"results"`
	FetchedAt time.Time         `json:"fetched_at"`
}

// Failures returns the results of communities that could not be fetched
func (b *Batch) Failures() []CommunityResult {
	var failed []CommunityResult
	for _, r := range b.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Tables are the four derived tables handed to display and export
type Tables struct {
	Posts       []ScoredPost          `json:"posts"`
	Weekly      []WeeklyTrendRow      `json:"weekly"`
	Communities []CommunityMetricsRow `json:"communities"`
	Phrases     []PhraseRow           `json:"phrases"`
}

// TopicCount is the number of posts classified under one topic
type TopicCount struct {
	Topic string `json:"topic"`
	Posts int    `json:"posts"`
}

// Summary condenses the derived tables for notifications and status output
type Summary struct {
	Signals     BucketCounts `json:"signals"`
	Topics      []TopicCount `json:"topics"`
	LatestWeek  string       `json:"latest_week,omitempty"`
	Rising      []Bucket     `json:"rising,omitempty"`
	Declining   []Bucket     `json:"declining,omitempty"`
	TopPhrases  []string     `json:"top_phrases,omitempty"`
	Communities int          `json:"communities"`
}

// Report represents a periodic insight report
type Report struct {
	ID          string            `json:"id"`
	GeneratedAt time.Time         `json:"generated_at"`
	Period      string            `json:"period"` // "daily", "weekly" or "manual"
	TotalPosts  int               `json:"total_posts"`
	Summary     Summary           `json:"summary"`
	Tables      *Tables           `json:"tables"`
	TopInsights []ScoredPost      `json:"top_insights"`
	Fetch       []CommunityResult `json:"fetch"`
	Exports     []string          `json:"exports,omitempty"`
}

// Alert represents an urgent notification about high-priority posts
type Alert struct {
	ID        string       `json:"id"`
	Type      string       `json:"type"` // "hot", "info"
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Posts     []ScoredPost `json:"posts,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}
