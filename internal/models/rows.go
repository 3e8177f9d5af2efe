package models

// Bucket names a keyword signal category
type Bucket string

const (
	BucketPain      Bucket = "pain"
	BucketDemand    Bucket = "demand"
	BucketCost      Bucket = "cost"
	BucketConfusion Bucket = "confusion"
	BucketSentiment Bucket = "sentiment"
)

// AllBuckets returns every bucket in canonical column order
func AllBuckets() []Bucket {
	return []Bucket{BucketPain, BucketDemand, BucketCost, BucketConfusion, BucketSentiment}
}

// TrendLabel classifies a week-over-week change
type TrendLabel string

const (
	TrendRising    TrendLabel = "rising"
	TrendDeclining TrendLabel = "declining"
	TrendStable    TrendLabel = "stable"
	TrendNoData    TrendLabel = "no_data"
)

// SignalQuality tiers a week's combined signal strength
type SignalQuality string

const (
	QualityHigh   SignalQuality = "high"
	QualityMedium SignalQuality = "medium"
	QualityLow    SignalQuality = "low"
)

// BucketCounts holds a count per bucket
type BucketCounts struct {
	Pain      int `json:"pain"`
	Demand    int `json:"demand"`
	Cost      int `json:"cost"`
	Confusion int `json:"confusion"`
	Sentiment int `json:"sentiment"`
}

// Add accumulates the flags of one post
func (c *BucketCounts) Add(f Flags) {
	c.Pain += f.Pain
	c.Demand += f.Demand
	c.Cost += f.Cost
	c.Confusion += f.Confusion
	c.Sentiment += f.Sentiment
}

// Get returns the count for a bucket
func (c BucketCounts) Get(b Bucket) int {
	return Flags(c).Get(b)
}

// Sum returns the total across all buckets
func (c BucketCounts) Sum() int {
	return c.Pain + c.Demand + c.Cost + c.Confusion + c.Sentiment
}

// BucketRates holds a ratio per bucket
type BucketRates struct {
	Pain      float64 `json:"pain"`
	Demand    float64 `json:"demand"`
	Cost      float64 `json:"cost"`
	Confusion float64 `json:"confusion"`
	Sentiment float64 `json:"sentiment"`
}

// Get returns the rate for a bucket
func (r BucketRates) Get(b Bucket) float64 {
	switch b {
	case BucketPain:
		return r.Pain
	case BucketDemand:
		return r.Demand
	case BucketCost:
		return r.Cost
	case BucketConfusion:
		return r.Confusion
	case BucketSentiment:
		return r.Sentiment
	}
	return 0
}

// BucketChanges holds a week-over-week percentage change per bucket.
// A nil value means the change is undefined.
type BucketChanges struct {
	Pain      *float64 `json:"pain"`
	Demand    *float64 `json:"demand"`
	Cost      *float64 `json:"cost"`
	Confusion *float64 `json:"confusion"`
	Sentiment *float64 `json:"sentiment"`
}

// Get returns the change for a bucket
func (c BucketChanges) Get(b Bucket) *float64 {
	switch b {
	case BucketPain:
		return c.Pain
	case BucketDemand:
		return c.Demand
	case BucketCost:
		return c.Cost
	case BucketConfusion:
		return c.Confusion
	case BucketSentiment:
		return c.Sentiment
	}
	return nil
}

// Set stores the change for a bucket
func (c *BucketChanges) Set(b Bucket, v *float64) {
	switch b {
	case BucketPain:
		c.Pain = v
	case BucketDemand:
		c.Demand = v
	case BucketCost:
		c.Cost = v
	case BucketConfusion:
		c.Confusion = v
	case BucketSentiment:
		c.Sentiment = v
	}
}

// BucketTrends holds a trend label per bucket
type BucketTrends struct {
	Pain      TrendLabel `json:"pain"`
	Demand    TrendLabel `json:"demand"`
	Cost      TrendLabel `json:"cost"`
	Confusion TrendLabel `json:"confusion"`
	Sentiment TrendLabel `json:"sentiment"`
}

// Get returns the label for a bucket
func (t BucketTrends) Get(b Bucket) TrendLabel {
	switch b {
	case BucketPain:
		return t.Pain
	case BucketDemand:
		return t.Demand
	case BucketCost:
		return t.Cost
	case BucketConfusion:
		return t.Confusion
	case BucketSentiment:
		return t.Sentiment
	}
	return TrendNoData
}

// Set stores the label for a bucket
func (t *BucketTrends) Set(b Bucket, l TrendLabel) {
	switch b {
	case BucketPain:
		t.Pain = l
	case BucketDemand:
		t.Demand = l
	case BucketCost:
		t.Cost = l
	case BucketConfusion:
		t.Confusion = l
	case BucketSentiment:
		t.Sentiment = l
	}
}

// WeeklyTrendRow aggregates one ISO week of scored posts
type WeeklyTrendRow struct {
	Week           string        `json:"week"` // "YYYY-Www"
	ISOYear        int           `json:"iso_year"`
	ISOWeek        int           `json:"iso_week"`
	TotalPosts     int           `json:"total_posts"`
	Counts         BucketCounts  `json:"counts"`
	AvgPriority    float64       `json:"avg_priority"`
	Changes        BucketChanges `json:"wow_change_pct"`
	Trends         BucketTrends  `json:"trends"`
	SignalStrength int           `json:"signal_strength"`
	SignalQuality  SignalQuality `json:"signal_quality"`
}

// CommunityMetricsRow aggregates the scored posts of one community
type CommunityMetricsRow struct {
	Community   string       `json:"community"`
	TotalPosts  int          `json:"total_posts"`
	Counts      BucketCounts `json:"counts"`
	Rates       BucketRates  `json:"rates"`
	AvgPriority float64      `json:"avg_priority"`
}

// Evidence is a sample post backing a discovered phrase
type Evidence struct {
	Title     string `json:"title"`
	Community string `json:"community"`
	Score     int    `json:"score"`
}

// PhraseRow is a frequently recurring n-gram with its statistics
type PhraseRow struct {
	Phrase      string     `json:"phrase"`
	Posts       int        `json:"posts"`
	PainPct     float64    `json:"pain_pct"`
	DemandPct   float64    `json:"demand_pct"`
	AvgPriority float64    `json:"avg_priority"`
	Evidence    []Evidence `json:"evidence"`
}
