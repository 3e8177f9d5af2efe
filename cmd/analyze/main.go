package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/export"
	"github.com/azure/community-signals-bot/internal/insights"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/azure/community-signals-bot/internal/signals"
	"github.com/azure/community-signals-bot/internal/sources"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const dateLayout = "2006-01-02"

type options struct {
	communities string
	limit       int
	keywords    string
	since       string
	until       string
	minScore    int
	minComments int
	outDir      string
	lexicon     string
	source      string
	top         int
	verbose     bool
}

func main() {
	opts := parseFlags(os.Args[1:])

	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, using environment variables")
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logrus.SetLevel(logrus.WarnLevel)
	if opts.verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed).Sprint("error:"), err)
		os.Exit(1)
	}
}

func parseFlags(args []string) options {
	var opts options
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	fs.StringVar(&opts.communities, "communities", "", "comma separated communities (default from COMMUNITIES)")
	fs.IntVar(&opts.limit, "limit", 0, "posts per community, 10 to 300 (default from POST_LIMIT)")
	fs.StringVar(&opts.keywords, "keywords", "", "comma separated keyword filter")
	fs.StringVar(&opts.since, "since", "", "earliest post date (YYYY-MM-DD)")
	fs.StringVar(&opts.until, "until", "", "latest post date (YYYY-MM-DD, inclusive)")
	fs.IntVar(&opts.minScore, "min-score", -1, "minimum post score")
	fs.IntVar(&opts.minComments, "min-comments", -1, "minimum comment count")
	fs.StringVar(&opts.outDir, "out", "", "directory for CSV and XLSX files (skipped when empty)")
	fs.StringVar(&opts.lexicon, "lexicon", "", "YAML lexicon file (default from LEXICON_FILE)")
	fs.StringVar(&opts.source, "source", "", "api or rss (default from SOURCE_MODE)")
	fs.IntVar(&opts.top, "top", 10, "number of top insights to print")
	fs.BoolVar(&opts.verbose, "v", false, "verbose logging")
	fs.Parse(args)
	return opts
}

// buildQuery overlays command line options on the configured defaults
func buildQuery(cfg *config.Config, opts options) (sources.Query, error) {
	q := sources.Query{
		Communities:    cfg.Communities,
		Limit:          cfg.PostLimit,
		FilterKeywords: cfg.FilterKeywords,
		MinScore:       cfg.MinScore,
		MinComments:    cfg.MinComments,
	}

	if opts.communities != "" {
		q.Communities = splitList(opts.communities)
	}
	if opts.limit != 0 {
		q.Limit = opts.limit
	}
	if opts.keywords != "" {
		q.FilterKeywords = splitList(opts.keywords)
	}
	if opts.minScore >= 0 {
		q.MinScore = opts.minScore
	}
	if opts.minComments >= 0 {
		q.MinComments = opts.minComments
	}

	if opts.since != "" {
		since, err := time.Parse(dateLayout, opts.since)
		if err != nil {
			return q, fmt.Errorf("invalid -since: %w", err)
		}
		q.Since = since
	}
	if opts.until != "" {
		until, err := time.Parse(dateLayout, opts.until)
		if err != nil {
			return q, fmt.Errorf("invalid -until: %w", err)
		}
		// Inclusive of the whole day
		q.Until = until.Add(24*time.Hour - time.Nanosecond)
	}

	return q, q.Validate()
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.source != "" {
		cfg.SourceMode = opts.source
	}
	if opts.lexicon != "" {
		cfg.LexiconFile = opts.lexicon
	}

	q, err := buildQuery(cfg, opts)
	if err != nil {
		return err
	}

	classifier, err := signals.LoadClassifier(cfg.LexiconFile)
	if err != nil {
		return fmt.Errorf("failed to load lexicon: %w", err)
	}

	source, err := sources.New(cfg)
	if err != nil {
		return err
	}

	start := time.Now()
	batch := sources.Collect(ctx, source, q)
	printFetch(batch.Results)

	failures := batch.Failures()
	if len(failures) > 0 && len(failures) == len(batch.Results) {
		return fmt.Errorf("all communities failed to fetch")
	}

	analysisOpts := insights.DefaultOptions()
	analysisOpts.Phrases.Windows = cfg.PhraseWindows
	analysisOpts.Phrases.MinCount = cfg.PhraseMinCount
	tables := insights.Analyze(batch.Posts, classifier, analysisOpts)

	printSummary(tables, insights.Summarize(tables))
	printWeekly(tables.Weekly)
	printTopInsights(insights.TopInsights(tables.Posts, opts.top))
	printPhrases(tables.Phrases)

	if opts.outDir != "" {
		if err := writeFiles(opts.outDir, tables, start.UTC()); err != nil {
			return err
		}
	}

	fmt.Printf("\nDone in %s\n", time.Since(start).Round(time.Millisecond))
	return nil
}

func printFetch(results []models.CommunityResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Println(color.New(color.FgCyan, color.Bold).Sprint("Communities"))
	for _, r := range results {
		if !r.OK() {
			fmt.Printf("  %s r/%s: %s\n", red("✗"), r.Community, r.Reason)
			continue
		}
		fmt.Printf("  %s r/%-20s %s posts kept of %s fetched\n", green("✓"), r.Community,
			humanize.Comma(int64(r.Kept)), humanize.Comma(int64(r.Fetched)))
	}
}

func printSummary(tables *models.Tables, summary models.Summary) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()

	fmt.Printf("\n%s\n", cyan("Summary"))
	fmt.Printf("  Posts analyzed: %s from %d communities\n", humanize.Comma(int64(len(tables.Posts))), summary.Communities)
	for _, b := range models.AllBuckets() {
		fmt.Printf("  %-10s %d\n", b, summary.Signals.Get(b))
	}
	for _, tc := range summary.Topics {
		fmt.Printf("  topic %-12s %d\n", tc.Topic, tc.Posts)
	}
}

func printWeekly(weeks []models.WeeklyTrendRow) {
	if len(weeks) == 0 {
		return
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Weekly trends"))
	for _, w := range weeks {
		var cols []string
		for _, b := range models.AllBuckets() {
			label := string(w.Trends.Get(b))
			switch w.Trends.Get(b) {
			case models.TrendRising:
				label = green(label)
			case models.TrendDeclining:
				label = red(label)
			case models.TrendNoData:
				label = yellow(label)
			}
			cols = append(cols, fmt.Sprintf("%s %d (%s)", b, w.Counts.Get(b), label))
		}
		fmt.Printf("  %s  %3d posts  %s  [%s]\n", w.Week, w.TotalPosts, strings.Join(cols, "  "), w.SignalQuality)
	}
}

func printTopInsights(posts []models.ScoredPost) {
	if len(posts) == 0 {
		return
	}

	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Printf("\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Top insights"))
	for i, p := range posts {
		fmt.Printf("  %2d. %s %s\n", i+1, yellow(fmt.Sprintf("[%d]", p.InsightPriority)), p.Title)
		fmt.Printf("      r/%s | %s | %s | %s\n", p.Community, p.Topic, p.Intent, humanize.Time(p.CreatedAt))
		fmt.Printf("      %s\n", p.Opportunity)
	}
}

func printPhrases(phrases []models.PhraseRow) {
	if len(phrases) == 0 {
		return
	}

	fmt.Printf("\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Recurring phrases"))
	for _, p := range phrases {
		fmt.Printf("  %-30s %3d posts  pain %5.1f%%  demand %5.1f%%  avg %.2f\n",
			p.Phrase, p.Posts, p.PainPct, p.DemandPct, p.AvgPriority)
	}
}

func writeFiles(dir string, tables *models.Tables, at time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]string, 0, len(export.AllTables())+1)
	for _, t := range export.AllTables() {
		data, err := export.CSV(tables, t)
		if err != nil {
			return err
		}
		path := filepath.Join(dir, export.FileName(t, at, "csv"))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}

	workbook, err := export.Workbook(tables)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("insights_%s.xlsx", at.Format("20060102_150405")))
	if err := os.WriteFile(path, workbook, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	written = append(written, path)

	fmt.Printf("\n%s\n", color.New(color.FgCyan, color.Bold).Sprint("Files"))
	for _, p := range written {
		fmt.Printf("  %s\n", p)
	}
	return nil
}
