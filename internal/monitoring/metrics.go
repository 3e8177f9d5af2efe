package monitoring

import (
	"net/http"
	"time"

	"github.com/azure/community-signals-bot/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records Prometheus metrics for analysis runs
type Collector struct {
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	communityFetch *prometheus.CounterVec
	cacheHits      prometheus.Counter
	postsAnalyzed  prometheus.Gauge
	signalPosts    *prometheus.GaugeVec
	phrases        prometheus.Gauge
	alertsSent     prometheus.Counter
	exportFailures prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "community_signals_runs_total",
			Help: "Analysis runs by outcome",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "community_signals_run_duration_seconds",
			Help:    "Duration of analysis runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		communityFetch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "community_signals_community_fetch_total",
			Help: "Community fetches by community and outcome",
		}, []string{"community", "status"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_signals_cache_hits_total",
			Help: "Analysis runs served from the batch cache",
		}),
		postsAnalyzed: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "community_signals_posts_analyzed",
			Help: "Posts analyzed in the latest run",
		}),
		signalPosts: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "community_signals_signal_posts",
			Help: "Posts flagged per signal bucket in the latest run",
		}, []string{"bucket"}),
		phrases: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "community_signals_phrases",
			Help: "Recurring phrases found in the latest run",
		}),
		alertsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_signals_hot_alerts_total",
			Help: "Hot post alerts sent",
		}),
		exportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "community_signals_export_failures_total",
			Help: "Export files that could not be stored",
		}),
	}

	reg.MustRegister(
		c.runs,
		c.runDuration,
		c.communityFetch,
		c.cacheHits,
		c.postsAnalyzed,
		c.signalPosts,
		c.phrases,
		c.alertsSent,
		c.exportFailures,
	)

	return c
}

// RecordRun records the outcome and duration of an analysis run
func (c *Collector) RecordRun(success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	c.runs.WithLabelValues(status).Inc()
	c.runDuration.Observe(duration.Seconds())
}

// RecordFetch records per-community fetch outcomes of a batch
// A batch served from cache only counts as a cache hit.
func (c *Collector) RecordFetch(results []models.CommunityResult) {
	if len(results) > 0 && results[0].Cached {
		c.cacheHits.Inc()
		return
	}
	for _, r := range results {
		status := "success"
		if !r.OK() {
			status = "failure"
		}
		c.communityFetch.WithLabelValues(r.Community, status).Inc()
	}
}

// RecordTables records the size of the latest analysis
func (c *Collector) RecordTables(tables *models.Tables, summary models.Summary) {
	c.postsAnalyzed.Set(float64(len(tables.Posts)))
	c.phrases.Set(float64(len(tables.Phrases)))
	for _, b := range models.AllBuckets() {
		c.signalPosts.WithLabelValues(string(b)).Set(float64(summary.Signals.Get(b)))
	}
}

func (c *Collector) RecordAlert() {
	c.alertsSent.Inc()
}

func (c *Collector) RecordExportFailure() {
	c.exportFailures.Inc()
}

// Handler returns the Prometheus scrape handler
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
