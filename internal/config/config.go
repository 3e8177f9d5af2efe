package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port     string
	Debug    bool
	LogLevel string

	// Schedule configuration
	ReportSchedule string // "daily" or "weekly"
	TimeZone       string

	// Collection
	Communities    []string
	PostLimit      int
	ListingSort    string // "hot", "new" or "top"
	FilterKeywords []string
	MinScore       int
	MinComments    int
	LookbackDays   int // 0 disables the date filter
	FetchComments  bool

	// Phrase mining and lexicon
	PhraseMinCount int
	PhraseWindows  []int
	LexiconFile    string

	// Batch cache
	CacheTTL  time.Duration
	CacheSize int

	// Hot post alerts
	HotPriorityThreshold int

	// Reddit
	RedditClientID     string
	RedditClientSecret string
	RedditUserAgent    string
	RedditRPS          float64
	SourceMode         string // "api" or "rss"

	// Export configuration
	StorageAccount   string
	StorageContainer string
	ExportDir        string

	// Notification configuration
	TeamsWebhookURL   string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
	TelegramToken     string
	TelegramChatID    int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Debug:          getBoolEnv("DEBUG", false),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		ReportSchedule: getEnv("REPORT_SCHEDULE", "weekly"),
		TimeZone:       getEnv("TIMEZONE", "UTC"),

		Communities:    getSliceEnv("COMMUNITIES", []string{"SaaS", "startups", "ProductManagement"}),
		PostLimit:      getIntEnv("POST_LIMIT", 100),
		ListingSort:    getEnv("LISTING_SORT", "hot"),
		FilterKeywords: getSliceEnv("FILTER_KEYWORDS", nil),
		MinScore:       getIntEnv("MIN_SCORE", 0),
		MinComments:    getIntEnv("MIN_COMMENTS", 0),
		LookbackDays:   getIntEnv("LOOKBACK_DAYS", 0),
		FetchComments:  getBoolEnv("FETCH_COMMENTS", false),

		PhraseMinCount: getIntEnv("PHRASE_MIN_COUNT", 3),
		PhraseWindows:  getIntSliceEnv("PHRASE_WINDOWS", []int{2, 3}),
		LexiconFile:    getEnv("LEXICON_FILE", ""),

		CacheTTL:  getDurationEnv("CACHE_TTL", 15*time.Minute),
		CacheSize: getIntEnv("CACHE_SIZE", 16),

		HotPriorityThreshold: getIntEnv("HOT_PRIORITY_THRESHOLD", 5),

		RedditClientID:     getEnv("REDDIT_CLIENT_ID", ""),
		RedditClientSecret: getEnv("REDDIT_CLIENT_SECRET", ""),
		RedditUserAgent:    getEnv("REDDIT_USER_AGENT", "Community-Signals-Bot/1.0"),
		RedditRPS:          getFloatEnv("REDDIT_RPS", 1),
		SourceMode:         getEnv("SOURCE_MODE", "api"),

		StorageAccount:   getEnv("AZURE_STORAGE_ACCOUNT", ""),
		StorageContainer: getEnv("AZURE_STORAGE_CONTAINER", "community-signals"),
		ExportDir:        getEnv("EXPORT_DIR", "exports"),

		TeamsWebhookURL:   getEnv("TEAMS_WEBHOOK_URL", ""),
		NotificationEmail: getEnv("NOTIFICATION_EMAIL", ""),
		SMTPHost:          getEnv("SMTP_HOST", ""),
		SMTPPort:          getIntEnv("SMTP_PORT", 587),
		SMTPUsername:      getEnv("SMTP_USERNAME", ""),
		SMTPPassword:      getEnv("SMTP_PASSWORD", ""),
		TelegramToken:     getEnv("TELEGRAM_TOKEN", ""),
		TelegramChatID:    getInt64Env("TELEGRAM_CHAT_ID", 0),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.TimeZone, err)
	}

	if len(c.Communities) == 0 {
		return fmt.Errorf("COMMUNITIES must name at least one community")
	}

	if c.PostLimit < 10 || c.PostLimit > 300 {
		return fmt.Errorf("POST_LIMIT must be between 10 and 300, got %d", c.PostLimit)
	}

	switch c.ListingSort {
	case "hot", "new", "top":
	default:
		return fmt.Errorf("LISTING_SORT must be 'hot', 'new' or 'top'")
	}

	if c.MinScore < 0 || c.MinComments < 0 || c.LookbackDays < 0 {
		return fmt.Errorf("MIN_SCORE, MIN_COMMENTS and LOOKBACK_DAYS must not be negative")
	}

	if c.PhraseMinCount < 1 {
		return fmt.Errorf("PHRASE_MIN_COUNT must be at least 1")
	}

	if len(c.PhraseWindows) == 0 {
		return fmt.Errorf("PHRASE_WINDOWS must name at least one n-gram size")
	}
	for _, n := range c.PhraseWindows {
		if n < 1 || n > 5 {
			return fmt.Errorf("PHRASE_WINDOWS sizes must be between 1 and 5, got %d", n)
		}
	}

	if c.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative")
	}

	if c.HotPriorityThreshold < 1 {
		return fmt.Errorf("HOT_PRIORITY_THRESHOLD must be at least 1")
	}

	if c.SourceMode != "api" && c.SourceMode != "rss" {
		return fmt.Errorf("SOURCE_MODE must be 'api' or 'rss'")
	}

	if c.RedditRPS <= 0 {
		return fmt.Errorf("REDDIT_RPS must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	if c.TelegramToken != "" && c.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}

	return nil
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// NotificationsEnabled reports whether any notification channel is configured
func (c *Config) NotificationsEnabled() bool {
	return c.TeamsWebhookURL != "" || c.NotificationEmail != "" || c.TelegramToken != ""
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getSliceEnv splits a comma-separated value, dropping blank entries
func getSliceEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// getIntSliceEnv parses a comma-separated list of integers. Any malformed
// entry yields the default.
func getIntSliceEnv(key string, defaultValue []int) []int {
	items := getSliceEnv(key, nil)
	if items == nil {
		return defaultValue
	}

	values := make([]int, 0, len(items))
	for _, item := range items {
		parsed, err := strconv.Atoi(item)
		if err != nil {
			return defaultValue
		}
		values = append(values, parsed)
	}
	return values
}
