package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/azure/community-signals-bot/internal/config"
	"github.com/azure/community-signals-bot/internal/monitoring"
	"github.com/azure/community-signals-bot/internal/notifications"
	"github.com/azure/community-signals-bot/internal/scheduler"
	"github.com/azure/community-signals-bot/internal/signals"
	"github.com/azure/community-signals-bot/internal/sources"
	"github.com/azure/community-signals-bot/internal/storage"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load environment variables from .env file if it exists
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg)
	logrus.Info("Starting Community Signals Bot")

	classifier, err := signals.LoadClassifier(cfg.LexiconFile)
	if err != nil {
		logrus.Fatalf("Failed to load lexicon: %v", err)
	}

	source, err := sources.New(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize source: %v", err)
	}

	ctx := context.Background()
	store, err := newStorage(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}

	if !cfg.NotificationsEnabled() {
		logrus.Warn("No notification channel configured, reports are only exported")
	}

	registry := prometheus.NewRegistry()
	monitoringService := monitoring.NewService(cfg, monitoring.Dependencies{
		Source:     source,
		Classifier: classifier,
		Cache:      sources.NewBatchCache(cfg.CacheSize, cfg.CacheTTL),
		Storage:    store,
		Notifier:   notifications.NewService(cfg),
		Metrics:    monitoring.NewCollector(registry),
	})

	schedulerService := scheduler.NewService(cfg, monitoringService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(monitoringService, registry),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("HTTP server starting on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func setupLogging(cfg *config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if cfg.Debug {
		level = logrus.DebugLevel
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.JSONFormatter{})
}

// newStorage uses Azure Blob Storage when an account is configured and the
// local export directory otherwise
func newStorage(ctx context.Context, cfg *config.Config) (storage.StorageInterface, error) {
	if cfg.StorageAccount != "" {
		return storage.NewAzureStorage(ctx, cfg.StorageAccount, cfg.StorageContainer)
	}
	logrus.Infof("AZURE_STORAGE_ACCOUNT not set, exporting to %s", cfg.ExportDir)
	return storage.NewLocalStorage(cfg.ExportDir)
}
