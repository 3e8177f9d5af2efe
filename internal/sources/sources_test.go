package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedditSource_GetName(t *testing.T) {
	source := NewRedditSource(RedditOptions{})
	assert.Equal(t, "reddit", source.GetName())
	assert.True(t, source.IsEnabled())
}

func TestRedditSource_Authenticated(t *testing.T) {
	tests := []struct {
		name         string
		clientID     string
		clientSecret string
		expected     bool
	}{
		{name: "Both credentials provided", clientID: "client_id", clientSecret: "client_secret", expected: true},
		{name: "Missing client ID", clientSecret: "client_secret", expected: false},
		{name: "Missing client secret", clientID: "client_id", expected: false},
		{name: "Both missing", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := NewRedditSource(RedditOptions{ClientID: tt.clientID, ClientSecret: tt.clientSecret})
			assert.Equal(t, tt.expected, source.Authenticated())
		})
	}
}

const listingPage1 = `{"data":{"after":"t3_b","children":[
 {"kind":"t3","data":{"id":"a","title":"Is there a tool for RAG?","selftext":"Looking for advice","author":"alice","subreddit":"SaaS","permalink":"/r/SaaS/comments/a/x/","created_utc":1704189600,"score":12,"num_comments":4}},
 {"kind":"t3","data":{"id":"b","title":"Pricing is too expensive","selftext":"","author":"bob","subreddit":"SaaS","permalink":"/r/SaaS/comments/b/y/","created_utc":1704276000,"score":3,"num_comments":1}}
]}}`

const listingPage2 = `{"data":{"after":"","children":[
 {"kind":"t3","data":{"id":"c","title":"Launch week","selftext":"We shipped","author":"carol","subreddit":"SaaS","permalink":"/r/SaaS/comments/c/z/","created_utc":1704362400,"score":40,"num_comments":9}}
]}}`

func TestRedditSource_FetchPosts_Paginates(t *testing.T) {
	var afters []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/SaaS/new.json", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("raw_json"))
		after := r.URL.Query().Get("after")
		afters = append(afters, after)
		if after == "" {
			fmt.Fprint(w, listingPage1)
			return
		}
		fmt.Fprint(w, listingPage2)
	}))
	defer server.Close()

	source := NewRedditSource(RedditOptions{BaseURL: server.URL, Sort: "new", RequestsPerSecond: 1000})
	posts, err := source.FetchPosts(context.Background(), "r/SaaS", 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"", "t3_b"}, afters)
	require.Len(t, posts, 3)

	first := posts[0]
	assert.Equal(t, "reddit_a", first.ID)
	assert.Equal(t, "SaaS", first.Community)
	assert.Equal(t, "Is there a tool for RAG?", first.Title)
	assert.Equal(t, "Looking for advice", first.Body)
	assert.Equal(t, "alice", first.Author)
	assert.Equal(t, 12, first.Score)
	assert.Equal(t, 4, first.CommentCount)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), first.CreatedAt)
	assert.Equal(t, "https://reddit.com/r/SaaS/comments/a/x/", first.Permalink)
	assert.Empty(t, first.TopComments)
}

func TestRedditSource_FetchPosts_RespectsLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		fmt.Fprint(w, listingPage1)
	}))
	defer server.Close()

	source := NewRedditSource(RedditOptions{BaseURL: server.URL, RequestsPerSecond: 1000})
	posts, err := source.FetchPosts(context.Background(), "SaaS", 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "reddit_a", posts[0].ID)
}

func TestRedditSource_FetchPosts_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	source := NewRedditSource(RedditOptions{BaseURL: server.URL, RequestsPerSecond: 1000})

	_, err := source.FetchPosts(context.Background(), "private_sub", 10)
	assert.ErrorContains(t, err, "status 403")

	_, err = source.FetchPosts(context.Background(), "  ", 10)
	assert.Error(t, err)
}

func TestRedditSource_FetchPosts_TopComments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/r/SaaS/hot.json":
			fmt.Fprint(w, listingPage2)
		case "/r/SaaS/comments/c.json":
			fmt.Fprint(w, `[{"data":{"children":[]}},{"data":{"children":[
				{"kind":"t1","data":{"body":"Congrats!\nLooks great"}},
				{"kind":"t1","data":{"body":"What stack?"}},
				{"kind":"t1","data":{"body":"third"}}
			]}}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	source := NewRedditSource(RedditOptions{BaseURL: server.URL, RequestsPerSecond: 1000, FetchComments: true})
	posts, err := source.FetchPosts(context.Background(), "SaaS", 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "Congrats! Looks great | What stack?", posts[0].TopComments)
}

func TestRedditSource_OAuth(t *testing.T) {
	var tokenRequests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			tokenRequests++
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", user)
			assert.Equal(t, "secret", pass)
			fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
			return
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		fmt.Fprint(w, listingPage2)
	}))
	defer server.Close()

	source := NewRedditSource(RedditOptions{
		ClientID:          "id",
		ClientSecret:      "secret",
		BaseURL:           server.URL,
		AuthURL:           server.URL + "/token",
		RequestsPerSecond: 1000,
	})

	for i := 0; i < 2; i++ {
		posts, err := source.FetchPosts(context.Background(), "SaaS", 10)
		require.NoError(t, err)
		assert.Len(t, posts, 1)
	}
	assert.Equal(t, 1, tokenRequests, "token should be reused until expiry")
}

const atomFeed = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>newest submissions : SaaS</title>
  <entry>
    <author><name>/u/alice</name></author>
    <content type="html">&lt;div&gt;&lt;p&gt;Is there a &lt;b&gt;tool&lt;/b&gt; for this?&lt;/p&gt;&lt;/div&gt;</content>
    <id>t3_abc</id>
    <link href="https://www.reddit.com/r/SaaS/comments/abc/need_help/"/>
    <updated>2024-01-02T10:00:00+00:00</updated>
    <published>2024-01-02T10:00:00+00:00</published>
    <title>Need help</title>
  </entry>
  <entry>
    <author><name>/u/bob</name></author>
    <content type="html">second</content>
    <id>t3_def</id>
    <link href="https://www.reddit.com/r/SaaS/comments/def/other/"/>
    <updated>2024-01-03T10:00:00+00:00</updated>
    <title>Other</title>
  </entry>
</feed>`

func TestRSSSource_FetchPosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/r/SaaS/new/.rss", r.URL.Path)
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeed)
	}))
	defer server.Close()

	source := NewRSSSource(server.URL, "", 1000)
	assert.Equal(t, "reddit-rss", source.GetName())

	posts, err := source.FetchPosts(context.Background(), "SaaS", 10)
	require.NoError(t, err)
	require.Len(t, posts, 2)

	p := posts[0]
	assert.Equal(t, "reddit_abc", p.ID)
	assert.Equal(t, "SaaS", p.Community)
	assert.Equal(t, "Need help", p.Title)
	assert.Equal(t, "Is there a tool for this?", p.Body)
	assert.Equal(t, "alice", p.Author)
	assert.Equal(t, 0, p.Score)
	assert.Equal(t, 0, p.CommentCount)
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), p.CreatedAt)
	assert.Equal(t, "https://www.reddit.com/r/SaaS/comments/abc/need_help/", p.Permalink)

	// Falls back to the updated timestamp
	assert.Equal(t, time.Date(2024, 1, 3, 10, 0, 0, 0, time.UTC), posts[1].CreatedAt)

	limited, err := source.FetchPosts(context.Background(), "SaaS", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// fakeSource serves canned posts per community
type fakeSource struct {
	mu     sync.Mutex
	posts  map[string][]models.RawPost
	errs   map[string]error
	calls  int
	limits []int
}

func (f *fakeSource) GetName() string { return "fake" }
func (f *fakeSource) IsEnabled() bool { return true }

func (f *fakeSource) FetchPosts(ctx context.Context, community string, limit int) ([]models.RawPost, error) {
	f.mu.Lock()
	f.calls++
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	if err := f.errs[community]; err != nil {
		return nil, err
	}
	return f.posts[community], nil
}

func rawPost(id, community, title string, score, comments int, created time.Time) models.RawPost {
	return models.RawPost{
		ID:           id,
		Community:    community,
		Title:        title,
		Score:        score,
		CommentCount: comments,
		CreatedAt:    created,
	}
}

var day = time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)

func TestCollect_IsolatesFailures(t *testing.T) {
	source := &fakeSource{
		posts: map[string][]models.RawPost{
			"SaaS":     {rawPost("1", "SaaS", "one", 1, 0, day), rawPost("2", "SaaS", "two", 1, 0, day)},
			"startups": {rawPost("3", "startups", "three", 1, 0, day)},
		},
		errs: map[string]error{"gone": errors.New("status 404")},
	}

	batch := Collect(context.Background(), source, Query{Communities: []string{"SaaS", "gone", "startups"}, Limit: 50})

	require.Len(t, batch.Results, 3)
	assert.Equal(t, "SaaS", batch.Results[0].Community)
	assert.True(t, batch.Results[0].OK())
	assert.Equal(t, 2, batch.Results[0].Fetched)
	assert.Equal(t, "gone", batch.Results[1].Community)
	assert.False(t, batch.Results[1].OK())
	assert.Equal(t, "status 404", batch.Results[1].Reason)
	assert.Equal(t, 1, batch.Results[2].Kept)

	require.Len(t, batch.Failures(), 1)

	ids := make([]string, 0, len(batch.Posts))
	for _, p := range batch.Posts {
		ids = append(ids, p.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
	assert.Equal(t, []int{50, 50, 50}, source.limits)
}

func TestCollect_AllFailing(t *testing.T) {
	source := &fakeSource{errs: map[string]error{"a": errors.New("boom"), "b": errors.New("boom")}}

	batch := Collect(context.Background(), source, Query{Communities: []string{"a", "b"}, Limit: 10})
	assert.NotNil(t, batch.Posts)
	assert.Empty(t, batch.Posts)
	assert.Len(t, batch.Failures(), 2)
}

func TestCollect_Deduplicates(t *testing.T) {
	dup := rawPost("1", "SaaS", "crosspost", 1, 0, day)
	source := &fakeSource{posts: map[string][]models.RawPost{
		"SaaS":     {dup},
		"startups": {dup},
	}}

	batch := Collect(context.Background(), source, Query{Communities: []string{"SaaS", "startups"}, Limit: 10})
	assert.Len(t, batch.Posts, 1)
}

func TestCollect_KeepsPostsWithoutID(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.RawPost{
		"SaaS": {
			rawPost("", "SaaS", "first", 1, 0, day),
			rawPost("", "SaaS", "second", 1, 0, day),
			rawPost("1", "SaaS", "third", 1, 0, day),
		},
	}}

	batch := Collect(context.Background(), source, Query{Communities: []string{"SaaS"}, Limit: 10})
	assert.Len(t, batch.Posts, 3)
}

func TestQuery_Filter(t *testing.T) {
	posts := []models.RawPost{
		rawPost("old", "SaaS", "Old RAG post", 50, 10, day.AddDate(0, 0, -30)),
		rawPost("low", "SaaS", "Low score RAG", 0, 10, day),
		rawPost("quiet", "SaaS", "Quiet RAG", 50, 0, day),
		rawPost("off", "SaaS", "Unrelated", 50, 10, day),
		rawPost("keep", "SaaS", "Great rag pipeline", 50, 10, day),
	}

	q := Query{
		FilterKeywords: []string{" RAG "},
		Since:          day.AddDate(0, 0, -7),
		MinScore:       5,
		MinComments:    2,
	}

	kept := q.filter(posts)
	require.Len(t, kept, 1)
	assert.Equal(t, "keep", kept[0].ID)

	assert.Len(t, Query{}.filter(posts), len(posts))
	assert.Empty(t, Query{Until: day.AddDate(0, 0, -60)}.filter(posts))
}

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{name: "Valid", query: Query{Communities: []string{"SaaS"}, Limit: 100}},
		{name: "Lower bound", query: Query{Communities: []string{"SaaS"}, Limit: MinLimit}},
		{name: "Upper bound", query: Query{Communities: []string{"SaaS"}, Limit: MaxLimit}},
		{name: "Below range", query: Query{Communities: []string{"SaaS"}, Limit: 9}, wantErr: true},
		{name: "Above range", query: Query{Communities: []string{"SaaS"}, Limit: 301}, wantErr: true},
		{name: "No communities", query: Query{Limit: 100}, wantErr: true},
		{name: "Inverted dates", query: Query{Communities: []string{"SaaS"}, Limit: 100, Since: day, Until: day.AddDate(0, 0, -1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuery_Key(t *testing.T) {
	a := Query{Communities: []string{"SaaS", "startups"}, Limit: 100, FilterKeywords: []string{"rag", "LLM"}}
	b := Query{Communities: []string{"startups", "saas"}, Limit: 100, FilterKeywords: []string{"llm", "rag"}}
	c := Query{Communities: []string{"SaaS", "startups"}, Limit: 50}

	assert.Equal(t, a.Key(), b.Key())
	assert.NotEqual(t, a.Key(), c.Key())
}

func TestCachedCollect(t *testing.T) {
	source := &fakeSource{posts: map[string][]models.RawPost{
		"SaaS": {rawPost("1", "SaaS", "one", 1, 0, day)},
	}}
	cache := NewBatchCache(4, time.Minute)
	q := Query{Communities: []string{"SaaS"}, Limit: 10}

	first := CachedCollect(context.Background(), cache, source, q)
	assert.False(t, first.Results[0].Cached)

	second := CachedCollect(context.Background(), cache, source, q)
	assert.True(t, second.Results[0].Cached)
	assert.Equal(t, first.Posts, second.Posts)
	assert.Equal(t, 1, source.calls)
	assert.False(t, first.Results[0].Cached, "cached copy must not alias the stored batch")

	cache.Invalidate(q)
	CachedCollect(context.Background(), cache, source, q)
	assert.Equal(t, 2, source.calls)

	cache.Purge()
	assert.Equal(t, 0, cache.Len())
}

func TestCachedCollect_SkipsFailedBatches(t *testing.T) {
	source := &fakeSource{errs: map[string]error{"SaaS": errors.New("boom")}}
	cache := NewBatchCache(4, time.Minute)
	q := Query{Communities: []string{"SaaS"}, Limit: 10}

	CachedCollect(context.Background(), cache, source, q)
	CachedCollect(context.Background(), cache, source, q)

	assert.Equal(t, 2, source.calls)
	assert.Equal(t, 0, cache.Len())
}

func TestCachedCollect_NilCache(t *testing.T) {
	source := &fakeSource{}
	CachedCollect(context.Background(), nil, source, Query{Communities: []string{"SaaS"}, Limit: 10})
	CachedCollect(context.Background(), nil, source, Query{Communities: []string{"SaaS"}, Limit: 10})
	assert.Equal(t, 2, source.calls)
}

func TestNew(t *testing.T) {
	api, err := New(&config.Config{SourceMode: "api", ListingSort: "new", RedditRPS: 2})
	require.NoError(t, err)
	assert.Equal(t, "reddit", api.GetName())

	rss, err := New(&config.Config{SourceMode: "rss"})
	require.NoError(t, err)
	assert.Equal(t, "reddit-rss", rss.GetName())

	_, err = New(&config.Config{SourceMode: "pushshift"})
	assert.ErrorIs(t, err, ErrSourceDisabled)
}
