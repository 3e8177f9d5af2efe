// Package signals scores post text against the keyword lexicon and maps it
// to a topic, an intent and a business opportunity.
package signals

import (
	"fmt"
	"strings"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/normalize"
)

// Classifier evaluates text against the keyword buckets and topic taxonomy.
// It is read-only after construction and safe for concurrent use.
type Classifier struct {
	buckets       map[models.Bucket][]string
	topics        []Topic
	opportunities map[string]string
	fallback      string
}

// NewClassifier compiles a lexicon. Triggers are cleaned with the same
// normalizer as post text so that both sides of the substring test agree.
func NewClassifier(lex *Lexicon) (*Classifier, error) {
	if lex == nil {
		return nil, fmt.Errorf("%w: lexicon is nil", ErrMissingBucket)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}

	c := &Classifier{
		buckets:       make(map[models.Bucket][]string, len(lex.Buckets)),
		opportunities: make(map[string]string, len(lex.Opportunities)),
		fallback:      lex.Fallback,
	}

	for _, bucket := range models.AllBuckets() {
		c.buckets[bucket] = cleanTriggers(lex.Buckets[bucket])
	}
	for _, topic := range lex.Topics {
		c.topics = append(c.topics, Topic{Label: topic.Label, Triggers: cleanTriggers(topic.Triggers)})
	}
	for label, desc := range lex.Opportunities {
		c.opportunities[label] = desc
	}

	return c, nil
}

// MustNewClassifier is like NewClassifier but panics on an invalid lexicon
func MustNewClassifier(lex *Lexicon) *Classifier {
	c, err := NewClassifier(lex)
	if err != nil {
		panic(err)
	}
	return c
}

func cleanTriggers(triggers []string) []string {
	cleaned := make([]string, 0, len(triggers))
	for _, t := range triggers {
		if ct := normalize.Clean(t); ct != "" {
			cleaned = append(cleaned, ct)
		}
	}
	return cleaned
}

// Classify returns the bucket flags for raw or normalized text
func (c *Classifier) Classify(text string) models.Flags {
	clean := normalize.Clean(text)
	if clean == "" {
		return models.Flags{}
	}

	return models.Flags{
		Pain:      c.match(models.BucketPain, clean),
		Demand:    c.match(models.BucketDemand, clean),
		Cost:      c.match(models.BucketCost, clean),
		Confusion: c.match(models.BucketConfusion, clean),
		Sentiment: c.match(models.BucketSentiment, clean),
	}
}

func (c *Classifier) match(bucket models.Bucket, clean string) int {
	if containsAny(clean, c.buckets[bucket]) {
		return 1
	}
	return 0
}

// Priority computes the insight priority; pain and demand weigh double.
func Priority(f models.Flags) int {
	return 2*f.Pain + 2*f.Demand + f.Cost + f.Confusion + f.Sentiment
}

// ClassifyTopic returns the first topic in declaration order with a matching
// trigger, or TopicOther.
func (c *Classifier) ClassifyTopic(text string) string {
	clean := normalize.Clean(text)
	if clean == "" {
		return TopicOther
	}
	for _, topic := range c.topics {
		if containsAny(clean, topic.Triggers) {
			return topic.Label
		}
	}
	return TopicOther
}

// Opportunity maps a topic label to its business opportunity description
func (c *Classifier) Opportunity(topic string) string {
	if desc, ok := c.opportunities[topic]; ok {
		return desc
	}
	return c.fallback
}

// ScorePost derives every signal of a single post
func (c *Classifier) ScorePost(p models.RawPost) models.ScoredPost {
	text := normalize.Join(p.Title, p.Body)
	flags := c.Classify(text)
	topic := c.ClassifyTopic(text)

	return models.ScoredPost{
		RawPost:         p,
		Flags:           flags,
		InsightPriority: Priority(flags),
		Topic:           topic,
		Intent:          ClassifyIntent(text),
		Opportunity:     c.Opportunity(topic),
	}
}

func containsAny(text string, triggers []string) bool {
	for _, t := range triggers {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}

// LoadClassifier builds a classifier from a lexicon file, or from the
// built-in lexicon when path is empty
func LoadClassifier(path string) (*Classifier, error) {
	lex := DefaultLexicon()
	if path != "" {
		var err error
		if lex, err = LoadLexicon(path); err != nil {
			return nil, err
		}
	}
	return NewClassifier(lex)
}
