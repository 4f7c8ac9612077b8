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

	"github.com/forumlens/audience-insights/internal/analysis"
	"github.com/forumlens/audience-insights/internal/config"
	"github.com/forumlens/audience-insights/internal/insights"
	"github.com/forumlens/audience-insights/internal/notifications"
	"github.com/forumlens/audience-insights/internal/ratelimit"
	"github.com/forumlens/audience-insights/internal/scheduler"
	"github.com/forumlens/audience-insights/internal/sources"
	"github.com/forumlens/audience-insights/internal/storage"
	"github.com/joho/godotenv"
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

	logrus.SetLevel(logrus.InfoLevel)
	if cfg.Debug {
		logrus.SetLevel(logrus.DebugLevel)
	}
	logrus.SetFormatter(&logrus.JSONFormatter{})

	logrus.Info("Starting audience insights service")

	store, closeStore, err := newStorage(cfg)
	if err != nil {
		logrus.Fatalf("Failed to initialize storage: %v", err)
	}
	defer closeStore()

	opts, err := cfg.AnalyzerOptions()
	if err != nil {
		logrus.Fatalf("Failed to load analyzer options: %v", err)
	}
	analyzer, err := analysis.New(opts)
	if err != nil {
		logrus.Fatalf("Invalid analyzer configuration: %v", err)
	}

	reddit := sources.NewRedditSource(cfg.RedditClientID, cfg.RedditClientSecret, cfg.RedditUserAgent)
	registry := sources.NewRegistry(
		reddit,
		sources.NewHackerNewsSource(),
		sources.NewStackOverflowSource(),
	)

	notificationService := notifications.NewService(cfg)
	insightsService := insights.NewService(cfg, analyzer, registry, store, notificationService)

	schedulerService := scheduler.NewService(cfg, insightsService)
	if err := schedulerService.Start(); err != nil {
		logrus.Fatalf("Failed to start scheduler: %v", err)
	}
	defer schedulerService.Stop()

	limits := ratelimit.NewMemoryStore()
	pruneCtx, stopPrune := context.WithCancel(context.Background())
	defer stopPrune()
	go pruneRateLimits(pruneCtx, limits, 5*time.Minute)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      newRouter(cfg, insightsService, reddit, ratelimit.SystemClock, limits),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute,
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

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logrus.Errorf("Server forced to shutdown: %v", err)
	}

	logrus.Info("Server exited")
}

func newStorage(cfg *config.Config) (storage.StorageInterface, func(), error) {
	switch cfg.StorageBackend {
	case "azure":
		s, err := storage.NewAzureStorage(cfg.StorageAccount, cfg.StorageContainer)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "sqlite":
		s, err := storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {
			if err := s.Close(); err != nil {
				logrus.Errorf("Failed to close snapshot database: %v", err)
			}
		}, nil
	default:
		logrus.Info("Report snapshots disabled")
		return storage.NopStorage{}, func() {}, nil
	}
}
