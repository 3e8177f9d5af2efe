package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/export"
	"github.com/azure/community-signals-bot/internal/insights"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/notifications"
	"github.com/azure/community-signals-bot/internal/signals"
	"github.com/azure/community-signals-bot/internal/sources"
	"github.com/azure/community-signals-bot/internal/storage"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// Posts listed as top insights in a report
	topInsightCount = 10
	// Window searched by the hot post check
	hotCheckWindow = 24 * time.Hour
	// Alerted post IDs are forgotten after this long
	alertMemory = 7 * 24 * time.Hour
	// Prefix for export snapshots
	reportPrefix = "reports/"
	// Always holds the newest report
	latestReportFile = "latest.json"
)

var (
	// ErrAllCommunitiesFailed is returned when no community could be fetched
	ErrAllCommunitiesFailed = errors.New("all communities failed to fetch")
	// ErrNoReport is returned before the first analysis run has completed
	ErrNoReport = errors.New("no report available yet")
)

// Dependencies are the collaborators of the monitoring service. Storage,
// Notifier and Metrics are optional.
type Dependencies struct {
	Source     sources.Source
	Classifier *signals.Classifier
	Cache      *sources.BatchCache
	Storage    storage.StorageInterface
	Notifier   notifications.NotificationInterface
	Metrics    *Collector
	Now        func() time.Time
}

// Service runs community analyses and hot post checks
type Service struct {
	config     *config.Config
	source     sources.Source
	classifier *signals.Classifier
	cache      *sources.BatchCache
	storage    storage.StorageInterface
	notifier   notifications.NotificationInterface
	collector  *Collector
	now        func() time.Time

	mu      sync.RWMutex
	metrics *Metrics
	latest  *models.Report
	alerted map[string]time.Time
}

// Metrics holds the status of the latest runs
type Metrics struct {
	TotalPosts        int                 `json:"total_posts"`
	LastRun           time.Time           `json:"last_run"`
	LastRunDuration   string              `json:"last_run_duration"`
	CommunityPosts    map[string]int      `json:"community_posts"`
	FailedCommunities []string            `json:"failed_communities"`
	Signals           models.BucketCounts `json:"signals"`
	Phrases           int                 `json:"phrases"`
	Cached            bool                `json:"cached"`
	ErrorCount        int                 `json:"error_count"`
	LastExports       []string            `json:"last_exports"`
	LastHotCheck      time.Time           `json:"last_hot_check"`
	HotAlertsSent     int                 `json:"hot_alerts_sent"`
}

// NewService creates a new monitoring service
func NewService(cfg *config.Config, deps Dependencies) *Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		config:     cfg,
		source:     deps.Source,
		classifier: deps.Classifier,
		cache:      deps.Cache,
		storage:    deps.Storage,
		notifier:   deps.Notifier,
		collector:  deps.Metrics,
		now:        now,
		metrics: &Metrics{
			CommunityPosts: make(map[string]int),
		},
		alerted: make(map[string]time.Time),
	}
}

// Query builds the collection query from configuration. The lookback start is
// truncated to the day so repeated runs share a cache key.
func (s *Service) Query() sources.Query {
	q := sources.Query{
		Communities:    s.config.Communities,
		Limit:          s.config.PostLimit,
		FilterKeywords: s.config.FilterKeywords,
		MinScore:       s.config.MinScore,
		MinComments:    s.config.MinComments,
	}
	if s.config.LookbackDays > 0 {
		today := s.now().UTC().Truncate(24 * time.Hour)
		q.Since = today.AddDate(0, 0, -s.config.LookbackDays)
	}
	return q
}

func (s *Service) analysisOptions() insights.Options {
	opts := insights.DefaultOptions()
	opts.Phrases.Windows = s.config.PhraseWindows
	opts.Phrases.MinCount = s.config.PhraseMinCount
	return opts
}

// BuildReport scores a batch and derives every table
func (s *Service) BuildReport(batch *models.Batch) *models.Report {
	tables := insights.Analyze(batch.Posts, s.classifier, s.analysisOptions())

	return &models.Report{
		ID:          uuid.New().String(),
		GeneratedAt: s.now().UTC(),
		Period:      s.config.ReportSchedule,
		TotalPosts:  len(tables.Posts),
		Summary:     insights.Summarize(tables),
		Tables:      tables,
		TopInsights: insights.TopInsights(tables.Posts, topInsightCount),
		Fetch:       batch.Results,
	}
}

// RunAnalysis collects the configured communities, builds a report, exports
// it and sends it to the notification channels
func (s *Service) RunAnalysis(ctx context.Context) (*models.Report, error) {
	start := time.Now()
	logrus.Info("Starting analysis run")

	q := s.Query()
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	batch := sources.CachedCollect(ctx, s.cache, s.source, q)
	if s.collector != nil {
		s.collector.RecordFetch(batch.Results)
	}

	failures := batch.Failures()
	if len(batch.Results) > 0 && len(failures) == len(batch.Results) {
		s.recordFailure(time.Since(start), len(failures))
		return nil, fmt.Errorf("%w: %s", ErrAllCommunitiesFailed, failures[0].Reason)
	}

	report := s.BuildReport(batch)
	logrus.Infof("Analyzed %d posts from %d communities (%d failed)",
		report.TotalPosts, len(batch.Results), len(failures))

	errorCount := len(failures)
	report.Exports = s.exportReport(ctx, report)

	var notifyErr error
	if s.notifier != nil {
		if err := s.notifier.SendReport(ctx, report); err != nil {
			logrus.Errorf("Failed to send report: %v", err)
			notifyErr = err
			errorCount++
		}
	}

	s.updateMetrics(report, time.Since(start), errorCount)
	if s.collector != nil {
		s.collector.RecordRun(notifyErr == nil, time.Since(start))
		s.collector.RecordTables(report.Tables, report.Summary)
	}

	logrus.Infof("Analysis run completed in %v", time.Since(start))
	return report, notifyErr
}

func (s *Service) recordFailure(duration time.Duration, errorCount int) {
	s.mu.Lock()
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ErrorCount = errorCount
	s.mu.Unlock()

	if s.collector != nil {
		s.collector.RecordRun(false, duration)
	}
}

// exportReport stores the four tables as CSV, a workbook and the report JSON
// under a timestamped prefix. Failures are logged and skipped.
func (s *Service) exportReport(ctx context.Context, report *models.Report) []string {
	if s.storage == nil {
		return nil
	}

	prefix := fmt.Sprintf("%s%s/", reportPrefix, report.GeneratedAt.Format("2006-01-02T150405Z"))
	files := make(map[string][]byte)
	var order []string

	add := func(name string, data []byte, err error) {
		if err != nil {
			logrus.Errorf("Failed to render %s: %v", name, err)
			s.exportFailed()
			return
		}
		files[name] = data
		order = append(order, name)
	}

	for _, t := range export.AllTables() {
		data, err := export.CSV(report.Tables, t)
		add(prefix+string(t)+".csv", data, err)
	}

	workbook, err := export.Workbook(report.Tables)
	add(prefix+"insights.xlsx", workbook, err)

	reportJSON, err := json.MarshalIndent(report, "", "  ")
	add(prefix+"report.json", reportJSON, err)

	var stored []string
	for _, name := range order {
		if err := s.storage.Store(ctx, name, files[name]); err != nil {
			logrus.Errorf("Failed to store %s: %v", name, err)
			s.exportFailed()
			continue
		}
		stored = append(stored, name)
	}

	if reportJSON != nil {
		if err := s.storage.Store(ctx, latestReportFile, reportJSON); err != nil {
			logrus.Errorf("Failed to store %s: %v", latestReportFile, err)
			s.exportFailed()
		}
	}

	logrus.Infof("Exported %d files under %s", len(stored), prefix)
	return stored
}

func (s *Service) exportFailed() {
	if s.collector != nil {
		s.collector.RecordExportFailure()
	}
}

func (s *Service) updateMetrics(report *models.Report, duration time.Duration, errorCount int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = report

	s.metrics.TotalPosts = report.TotalPosts
	s.metrics.LastRun = s.now()
	s.metrics.LastRunDuration = duration.String()
	s.metrics.ErrorCount = errorCount
	s.metrics.Signals = report.Summary.Signals
	s.metrics.Phrases = len(report.Tables.Phrases)
	s.metrics.LastExports = report.Exports

	s.metrics.CommunityPosts = make(map[string]int)
	s.metrics.FailedCommunities = nil
	s.metrics.Cached = len(report.Fetch) > 0
	for _, r := range report.Fetch {
		s.metrics.CommunityPosts[r.Community] = r.Kept
		if !r.OK() {
			s.metrics.FailedCommunities = append(s.metrics.FailedCommunities, r.Community)
		}
		if !r.Cached {
			s.metrics.Cached = false
		}
	}
}

// GetMetrics returns current metrics as JSON
func (s *Service) GetMetrics() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, _ := json.MarshalIndent(s.metrics, "", "  ")
	return string(data)
}

// LatestReport returns the report of the last successful run
func (s *Service) LatestReport() (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.latest == nil {
		return nil, ErrNoReport
	}
	return s.latest, nil
}

// ExportTable renders one table of the latest report as CSV
func (s *Service) ExportTable(table export.Table) ([]byte, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return export.CSV(report.Tables, table)
}

// ExportWorkbook renders the latest report as an XLSX workbook
func (s *Service) ExportWorkbook() ([]byte, error) {
	report, err := s.LatestReport()
	if err != nil {
		return nil, err
	}
	return export.Workbook(report.Tables)
}

// InvalidateCache drops the cached batch so the next run fetches fresh posts
func (s *Service) InvalidateCache() {
	if s.cache != nil {
		s.cache.Invalidate(s.Query())
	}
}

// RunHotCheck scores the newest posts and alerts on those at or above the hot
// priority threshold that have not been alerted before. It bypasses the cache.
func (s *Service) RunHotCheck(ctx context.Context) error {
	start := time.Now()
	logrus.Info("Starting hot post check")

	// Same filters as the report, newest posts only
	q := s.Query()
	q.Since = s.now().Add(-hotCheckWindow)
	batch := sources.Collect(ctx, s.source, q)
	if len(batch.Results) > 0 && len(batch.Failures()) == len(batch.Results) {
		return fmt.Errorf("%w: %s", ErrAllCommunitiesFailed, batch.Failures()[0].Reason)
	}

	hot := s.newHotPosts(insights.Score(batch.Posts, s.classifier))

	s.mu.Lock()
	s.metrics.LastHotCheck = s.now()
	s.mu.Unlock()

	if len(hot) == 0 {
		logrus.Info("No new hot posts found")
		return nil
	}

	alert := &models.Alert{
		ID:        uuid.New().String(),
		Type:      "hot",
		Title:     fmt.Sprintf("%d hot community posts", len(hot)),
		Message:   fmt.Sprintf("Found %d new posts with insight priority %d or higher", len(hot), s.config.HotPriorityThreshold),
		Posts:     hot,
		CreatedAt: s.now().UTC(),
	}

	if s.notifier != nil {
		if err := s.notifier.SendAlert(ctx, alert); err != nil {
			return fmt.Errorf("failed to send hot post alert: %w", err)
		}
	}

	s.markAlerted(hot)
	if s.collector != nil {
		s.collector.RecordAlert()
	}

	logrus.Infof("Hot check completed in %v, alerted %d posts", time.Since(start), len(hot))
	return nil
}

// newHotPosts returns posts above the threshold that were not alerted yet,
// highest priority first
func (s *Service) newHotPosts(scored []models.ScoredPost) []models.ScoredPost {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-alertMemory)
	for id, at := range s.alerted {
		if at.Before(cutoff) {
			delete(s.alerted, id)
		}
	}

	var hot []models.ScoredPost
	for _, p := range scored {
		if p.InsightPriority < s.config.HotPriorityThreshold {
			continue
		}
		if _, seen := s.alerted[p.ID]; seen {
			continue
		}
		hot = append(hot, p)
	}

	return insights.TopInsights(hot, -1)
}

func (s *Service) markAlerted(posts []models.ScoredPost) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, p := range posts {
		s.alerted[p.ID] = now
	}
	s.metrics.HotAlertsSent += len(posts)
}
