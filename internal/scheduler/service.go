package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	dailyReportSpec  = "0 0 9 * * *"
	weeklyReportSpec = "0 0 9 * * MON"
	hotCheckSpec     = "0 0 */4 * * *"

	// Upper bound for a single scheduled job
	jobTimeout = 30 * time.Minute
)

// Runner is the part of the monitoring service driven by the scheduler
type Runner interface {
	RunAnalysis(ctx context.Context) (*models.Report, error)
	RunHotCheck(ctx context.Context) error
}

// Service handles scheduling of analysis runs and hot post checks
type Service struct {
	config *config.Config
	runner Runner
	cron   *cron.Cron
}

// NewService creates a new scheduler service in the configured timezone
func NewService(cfg *config.Config, runner Runner) *Service {
	return &Service{
		config: cfg,
		runner: runner,
		cron:   cron.New(cron.WithSeconds(), cron.WithLocation(cfg.Location())),
	}
}

// ReportSpec returns the cron expression for a report schedule, weekly by default
func ReportSpec(schedule string) string {
	if schedule == "daily" {
		return dailyReportSpec
	}
	return weeklyReportSpec
}

// Start begins the scheduled runs
func (s *Service) Start() error {
	if _, err := s.cron.AddFunc(ReportSpec(s.config.ReportSchedule), s.runAnalysis); err != nil {
		return fmt.Errorf("failed to schedule analysis: %w", err)
	}

	if _, err := s.cron.AddFunc(hotCheckSpec, s.runHotCheck); err != nil {
		return fmt.Errorf("failed to schedule hot check: %w", err)
	}

	s.cron.Start()
	logrus.Infof("Scheduler started with %s schedule in %s (plus hot checks every 4 hours)",
		s.config.ReportSchedule, s.cron.Location())
	return nil
}

func (s *Service) runAnalysis() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	logrus.Info("Starting scheduled analysis run")
	if _, err := s.runner.RunAnalysis(ctx); err != nil {
		logrus.Errorf("Scheduled analysis run failed: %v", err)
	}
}

func (s *Service) runHotCheck() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.runner.RunHotCheck(ctx); err != nil {
		logrus.Errorf("Hot post check failed: %v", err)
	}
}

// Entries returns the number of scheduled jobs
func (s *Service) Entries() int {
	return len(s.cron.Entries())
}

// Next returns the next time the report job fires
func (s *Service) Next(after time.Time) (time.Time, error) {
	schedule, err := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow).
		Parse(ReportSpec(s.config.ReportSchedule))
	if err != nil {
		return time.Time{}, err
	}
	return schedule.Next(after.In(s.cron.Location())), nil
}

// Stop stops the scheduler and waits for running jobs
func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		logrus.Info("Scheduler stopped")
	}
}
