package signals

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/normalize"
	"gopkg.in/yaml.v3"
)

// TopicOther is returned when no topic trigger matches
const TopicOther = "other"

var (
	// ErrMissingBucket is returned when a required keyword bucket is absent or empty
	ErrMissingBucket = errors.New("missing keyword bucket")
	// ErrInvalidTaxonomy is returned when the topic taxonomy cannot be used
	ErrInvalidTaxonomy = errors.New("invalid topic taxonomy")
)

// Topic is one entry of the ordered topic taxonomy
type Topic struct {
	Label    string   `yaml:"label"`
	Triggers []string `yaml:"triggers"`
}

// Lexicon is the static keyword configuration: signal buckets, the ordered
// topic taxonomy and the topic → business opportunity lookup.
type Lexicon struct {
	Buckets       map[models.Bucket][]string `yaml:"buckets"`
	Topics        []Topic                    `yaml:"topics"`
	Opportunities map[string]string          `yaml:"opportunities"`
	Fallback      string                     `yaml:"fallback_opportunity"`
}

// DefaultLexicon returns a fresh copy of the built-in lexicon
func DefaultLexicon() *Lexicon {
	lex := &Lexicon{
		Buckets: map[models.Bucket][]string{
			models.BucketPain: {
				"problem", "issue", "stuck", "failing", "broken",
				"doesn't work", "error", "limitation", "hard to",
			},
			models.BucketDemand: {
				"need", "looking for", "recommend", "any alternative",
				"best way", "solution", "how do i", "advice",
			},
			models.BucketCost: {
				"price", "cost", "expensive", "cheap",
				"billing", "roi", "worth it",
			},
			models.BucketConfusion: {
				"confused", "unsure", "which one", "vs",
				"difference", "compare",
			},
			models.BucketSentiment: {
				"frustrated", "disappointed", "love",
				"hate", "terrible", "amazing",
			},
		},
		Topics: []Topic{
			{Label: "rag", Triggers: []string{"retrieval", "rag pipeline", "rag system", "rag app", "vector db", "vector database", "vector store", "embedding", "chunking", "rerank"}},
			{Label: "agents", Triggers: []string{"agent", "tool calling", "function calling", "langchain", "langgraph", "crewai", "autogen", "mcp server"}},
			{Label: "fine_tuning", Triggers: []string{"fine tun", "finetun", "lora", "training data", "dpo"}},
			{Label: "evaluation", Triggers: []string{"eval", "hallucinat", "benchmark", "accuracy", "ground truth"}},
			{Label: "deployment", Triggers: []string{"deploy", "inference", "latency", "gpu", "serving", "kubernetes", "docker", "self host"}},
			{Label: "pricing", Triggers: []string{"pricing", "price", "billing", "subscription", "cost", "expensive"}},
			{Label: "growth", Triggers: []string{"marketing", "customer", "churn", "saas", "startup", "launch", "revenue", "mrr"}},
			{Label: "hiring", Triggers: []string{"hiring", "job", "interview", "salary", "career"}},
		},
		Opportunities: map[string]string{
			"rag":         "Managed retrieval and vector search tooling",
			"agents":      "Agent orchestration and reliability tooling",
			"fine_tuning": "Fine-tuning and dataset preparation services",
			"evaluation":  "LLM evaluation and hallucination monitoring",
			"deployment":  "Inference hosting and deployment automation",
			"pricing":     "Cost optimization and usage analytics",
			"growth":      "Go-to-market and customer acquisition tools",
			"hiring":      "Talent and upskilling platforms",
		},
		Fallback: "General community insight, review manually",
	}
	return lex
}

// LoadLexicon reads a YAML lexicon file and overlays it on the defaults.
// Buckets present in the file replace the default triggers of that bucket,
// a non-empty topic list replaces the default taxonomy, and opportunities
// are merged by label.
func LoadLexicon(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read lexicon file: %w", err)
	}

	var file Lexicon
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse lexicon yaml: %w", err)
	}

	lex := DefaultLexicon()
	for bucket, triggers := range file.Buckets {
		lex.Buckets[models.Bucket(strings.ToLower(string(bucket)))] = triggers
	}
	if len(file.Topics) > 0 {
		lex.Topics = file.Topics
	}
	for label, desc := range file.Opportunities {
		lex.Opportunities[label] = desc
	}
	if file.Fallback != "" {
		lex.Fallback = file.Fallback
	}

	if err := lex.Validate(); err != nil {
		return nil, fmt.Errorf("validate lexicon: %w", err)
	}
	return lex, nil
}

// Validate checks that every required bucket has at least one usable trigger
// and that the topic taxonomy is well formed.
func (l *Lexicon) Validate() error {
	for _, bucket := range models.AllBuckets() {
		usable := 0
		for _, trigger := range l.Buckets[bucket] {
			if normalize.Clean(trigger) != "" {
				usable++
			}
		}
		if usable == 0 {
			return fmt.Errorf("%w: %s", ErrMissingBucket, bucket)
		}
	}

	if len(l.Topics) == 0 {
		return fmt.Errorf("%w: no topics defined", ErrInvalidTaxonomy)
	}
	seen := make(map[string]bool, len(l.Topics))
	for i, topic := range l.Topics {
		switch {
		case topic.Label == "":
			return fmt.Errorf("%w: topic %d has no label", ErrInvalidTaxonomy, i)
		case topic.Label == TopicOther:
			return fmt.Errorf("%w: %q is reserved", ErrInvalidTaxonomy, TopicOther)
		case seen[topic.Label]:
			return fmt.Errorf("%w: duplicate topic %q", ErrInvalidTaxonomy, topic.Label)
		case len(topic.Triggers) == 0:
			return fmt.Errorf("%w: topic %q has no triggers", ErrInvalidTaxonomy, topic.Label)
		}
		seen[topic.Label] = true
	}

	return nil
}

// TopicLabels returns the topic labels in declaration order followed by TopicOther
func (l *Lexicon) TopicLabels() []string {
	labels := make([]string, 0, len(l.Topics)+1)
	for _, t := range l.Topics {
		labels = append(labels, t.Label)
	}
	return append(labels, TopicOther)
}
