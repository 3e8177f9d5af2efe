package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
)

// ErrSourceDisabled is returned when a source cannot be used with the current configuration
var ErrSourceDisabled = errors.New("source disabled")

// Source defines the contract for community post fetchers
type Source interface {
	GetName() string
	FetchPosts(ctx context.Context, community string, limit int) ([]models.RawPost, error)
	IsEnabled() bool
}

// New returns the source selected by SOURCE_MODE
func New(cfg *config.Config) (Source, error) {
	switch cfg.SourceMode {
	case "", "api":
		return NewRedditSource(RedditOptions{
			ClientID:          cfg.RedditClientID,
			ClientSecret:      cfg.RedditClientSecret,
			UserAgent:         cfg.RedditUserAgent,
			Sort:              cfg.ListingSort,
			RequestsPerSecond: cfg.RedditRPS,
			FetchComments:     cfg.FetchComments,
		}), nil
	case "rss":
		return NewRSSSource("", cfg.RedditUserAgent, cfg.RedditRPS), nil
	default:
		return nil, fmt.Errorf("%w: unknown source mode %q", ErrSourceDisabled, cfg.SourceMode)
	}
}
