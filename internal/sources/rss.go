package sources

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/time/rate"
)

// RSSSource reads the public subreddit RSS feed. It needs no credentials but
// carries neither score nor comment counts, so both are reported as 0.
type RSSSource struct {
	baseURL   string
	client    *resty.Client
	limiter   *rate.Limiter
	parser    *gofeed.Parser
	sanitizer *bluemonday.Policy
}

// NewRSSSource creates a new RSS source. An empty baseURL uses www.reddit.com.
func NewRSSSource(baseURL, userAgent string, requestsPerSecond float64) *RSSSource {
	if baseURL == "" {
		baseURL = redditPublicURL
	}
	if userAgent == "" {
		userAgent = "Community-Signals-Bot/1.0"
	}
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}

	return &RSSSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: resty.New().
			SetTimeout(30*time.Second).
			SetHeader("User-Agent", userAgent),
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		parser:    gofeed.NewParser(),
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *RSSSource) GetName() string {
	return "reddit-rss"
}

func (s *RSSSource) IsEnabled() bool {
	return true
}

// FetchPosts returns up to limit entries of the community's newest posts
func (s *RSSSource) FetchPosts(ctx context.Context, community string, limit int) ([]models.RawPost, error) {
	community = strings.TrimPrefix(strings.TrimSpace(community), "r/")
	if community == "" {
		return nil, fmt.Errorf("empty community name")
	}
	if limit <= 0 {
		return nil, nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feedURL := fmt.Sprintf("%s/r/%s/new/.rss", s.baseURL, url.PathEscape(community))
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		Get(feedURL)

	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit RSS returned status %d", resp.StatusCode())
	}

	feed, err := s.parser.ParseString(string(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("failed to parse r/%s feed: %w", community, err)
	}

	var posts []models.RawPost
	for _, item := range feed.Items {
		if len(posts) >= limit {
			break
		}
		posts = append(posts, s.toRawPost(community, item))
	}

	return posts, nil
}

func (s *RSSSource) toRawPost(community string, item *gofeed.Item) models.RawPost {
	body := item.Content
	if body == "" {
		body = item.Description
	}

	author := ""
	if item.Author != nil {
		author = item.Author.Name
	} else if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}
	author = strings.TrimPrefix(author, "/u/")

	var created time.Time
	if item.PublishedParsed != nil {
		created = item.PublishedParsed.UTC()
	} else if item.UpdatedParsed != nil {
		created = item.UpdatedParsed.UTC()
	}

	link := item.Link
	if link == "" {
		link = item.GUID
	}

	id := item.GUID
	if id == "" {
		id = link
	}
	// Atom ids look like "t3_abc123"
	id = strings.TrimPrefix(id, "t3_")

	return models.RawPost{
		ID:        redditIDPrefix + id,
		Community: community,
		Title:     item.Title,
		Body:      s.plainText(body),
		Author:    author,
		CreatedAt: created,
		Permalink: link,
	}
}

// plainText strips markup from the feed body and decodes entities
func (s *RSSSource) plainText(content string) string {
	if content == "" {
		return ""
	}
	stripped := html.UnescapeString(s.sanitizer.Sanitize(content))
	return strings.Join(strings.Fields(stripped), " ")
}
