package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const (
	redditPublicURL = "https://www.reddit.com"
	redditOAuthURL  = "https://oauth.reddit.com"
	redditAuthURL   = "https://www.reddit.com/api/v1/access_token"

	// Reddit returns at most 100 posts per listing page
	redditPageSize = 100
	// Number of top comments kept as a preview
	redditTopComments = 2

	redditIDPrefix = "reddit_"
)

// RedditOptions configures a RedditSource
type RedditOptions struct {
	ClientID          string
	ClientSecret      string
	UserAgent         string
	Sort              string // "hot", "new" or "top"
	RequestsPerSecond float64
	FetchComments     bool

	// Overrides for tests
	BaseURL string
	AuthURL string
}

// RedditSource fetches subreddit listings from the Reddit JSON API
type RedditSource struct {
	opts    RedditOptions
	client  *resty.Client
	limiter *rate.Limiter

	mu          sync.Mutex
	accessToken string
	tokenExpiry time.Time
}

type redditAuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

type redditListing struct {
	Data struct {
		After    string `json:"after"`
		Children []struct {
			Kind string     `json:"kind"`
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Selftext    string  `json:"selftext"`
	Body        string  `json:"body"` // comments only
	Author      string  `json:"author"`
	Subreddit   string  `json:"subreddit"`
	Permalink   string  `json:"permalink"`
	Created     float64 `json:"created_utc"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
}

// NewRedditSource creates a new Reddit source
func NewRedditSource(opts RedditOptions) *RedditSource {
	if opts.UserAgent == "" {
		opts.UserAgent = "Community-Signals-Bot/1.0"
	}
	if opts.Sort == "" {
		opts.Sort = "hot"
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.AuthURL == "" {
		opts.AuthURL = redditAuthURL
	}

	return &RedditSource{
		opts: opts,
		client: resty.New().
			SetTimeout(30 * time.Second).
			SetHeader("User-Agent", opts.UserAgent),
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

func (r *RedditSource) GetName() string {
	return "reddit"
}

// IsEnabled always returns true: without credentials the public listing is used
func (r *RedditSource) IsEnabled() bool {
	return true
}

// Authenticated reports whether OAuth credentials are configured
func (r *RedditSource) Authenticated() bool {
	return r.opts.ClientID != "" && r.opts.ClientSecret != ""
}

func (r *RedditSource) baseURL() string {
	if r.opts.BaseURL != "" {
		return strings.TrimRight(r.opts.BaseURL, "/")
	}
	if r.Authenticated() {
		return redditOAuthURL
	}
	return redditPublicURL
}

// FetchPosts returns up to limit posts from the community listing
func (r *RedditSource) FetchPosts(ctx context.Context, community string, limit int) ([]models.RawPost, error) {
	community = strings.TrimPrefix(strings.TrimSpace(community), "r/")
	if community == "" {
		return nil, fmt.Errorf("empty community name")
	}
	if limit <= 0 {
		return nil, nil
	}

	var posts []models.RawPost
	after := ""

	for len(posts) < limit {
		pageSize := limit - len(posts)
		if pageSize > redditPageSize {
			pageSize = redditPageSize
		}

		listing, err := r.fetchListing(ctx, community, pageSize, after)
		if err != nil {
			return nil, err
		}

		for _, child := range listing.Data.Children {
			if child.Kind != "t3" || len(posts) >= limit {
				continue
			}
			posts = append(posts, r.toRawPost(community, child.Data))
		}

		after = listing.Data.After
		if after == "" || len(listing.Data.Children) == 0 {
			break
		}
	}

	if r.opts.FetchComments {
		for i := range posts {
			comments, err := r.topComments(ctx, community, strings.TrimPrefix(posts[i].ID, redditIDPrefix))
			if err != nil {
				logrus.Debugf("Failed to fetch comments for r/%s post %s: %v", community, posts[i].ID, err)
				continue
			}
			posts[i].TopComments = comments
		}
	}

	return posts, nil
}

func (r *RedditSource) fetchListing(ctx context.Context, community string, pageSize int, after string) (*redditListing, error) {
	params := map[string]string{
		"limit":    strconv.Itoa(pageSize),
		"raw_json": "1",
	}
	if after != "" {
		params["after"] = after
	}

	listingURL := fmt.Sprintf("%s/r/%s/%s.json", r.baseURL(), url.PathEscape(community), r.opts.Sort)
	body, err := r.get(ctx, listingURL, params)
	if err != nil {
		return nil, err
	}

	var listing redditListing
	if err := json.Unmarshal(body, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode r/%s listing: %w", community, err)
	}

	return &listing, nil
}

func (r *RedditSource) topComments(ctx context.Context, community, postID string) (string, error) {
	commentsURL := fmt.Sprintf("%s/r/%s/comments/%s.json", r.baseURL(), url.PathEscape(community), url.PathEscape(postID))
	body, err := r.get(ctx, commentsURL, map[string]string{
		"limit":    strconv.Itoa(redditTopComments),
		"depth":    "1",
		"sort":     "top",
		"raw_json": "1",
	})
	if err != nil {
		return "", err
	}

	// The response is [post listing, comment listing]
	var listings []redditListing
	if err := json.Unmarshal(body, &listings); err != nil {
		return "", fmt.Errorf("failed to decode comments: %w", err)
	}
	if len(listings) < 2 {
		return "", nil
	}

	var comments []string
	for _, child := range listings[1].Data.Children {
		if child.Kind != "t1" || len(comments) >= redditTopComments {
			continue
		}
		comments = append(comments, strings.ReplaceAll(strings.TrimSpace(child.Data.Body), "\n", " "))
	}

	return strings.Join(comments, " | "), nil
}

func (r *RedditSource) get(ctx context.Context, endpoint string, params map[string]string) ([]byte, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req := r.client.R().
		SetContext(ctx).
		SetQueryParams(params)

	if r.Authenticated() {
		token, err := r.token(ctx)
		if err != nil {
			return nil, fmt.Errorf("reddit authentication failed: %w", err)
		}
		req.SetHeader("Authorization", "Bearer "+token)
	}

	resp, err := req.Get(endpoint)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("reddit API returned status %d", resp.StatusCode())
	}

	return resp.Body(), nil
}

// token returns a cached access token, authenticating when it has expired
func (r *RedditSource) token(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.accessToken != "" && time.Now().Before(r.tokenExpiry) {
		return r.accessToken, nil
	}

	resp, err := r.client.R().
		SetContext(ctx).
		SetBasicAuth(r.opts.ClientID, r.opts.ClientSecret).
		SetFormData(map[string]string{
			"grant_type": "client_credentials",
		}).
		Post(r.opts.AuthURL)

	if err != nil {
		return "", err
	}

	if resp.StatusCode() != 200 {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode())
	}

	var authResp redditAuthResponse
	if err := json.Unmarshal(resp.Body(), &authResp); err != nil {
		return "", err
	}
	if authResp.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access token")
	}

	// Refresh a minute early
	r.accessToken = authResp.AccessToken
	r.tokenExpiry = time.Now().Add(time.Duration(authResp.ExpiresIn)*time.Second - time.Minute)
	return r.accessToken, nil
}

func (r *RedditSource) toRawPost(community string, post redditPost) models.RawPost {
	return models.RawPost{
		ID:           redditIDPrefix + post.ID,
		Community:    community,
		Title:        post.Title,
		Body:         post.Selftext,
		Author:       post.Author,
		Score:        post.Score,
		CommentCount: post.NumComments,
		CreatedAt:    time.Unix(int64(post.Created), 0).UTC(),
		Permalink:    fmt.Sprintf("https://reddit.com%s", post.Permalink),
	}
}
