package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/finsight/finsight-go/internal/analytics"
	"github.com/finsight/finsight-go/internal/api"
	"github.com/finsight/finsight-go/internal/api/handlers"
	"github.com/finsight/finsight-go/internal/categorize"
	"github.com/finsight/finsight-go/internal/config"
	"github.com/finsight/finsight-go/internal/database"
	"github.com/finsight/finsight-go/internal/extract"
	"github.com/finsight/finsight-go/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application failed: %v\n", err)
		os.Exit(1)
	}
}

// run orchestrates startup: configuration, logging, optional storage and
// cache connections, the analysis pipeline wiring, and graceful shutdown.
func run() error {
	// .env is optional; real deployments use environment variables.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.Environment)

	var db *database.PostgresDB
	if cfg.Database.Enabled {
		db, err = database.NewPostgresConnection(context.Background(), cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
	} else {
		logger.Info("Database disabled, analysis runs will not be persisted")
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = database.NewRedisConnection(cfg.Redis, logger)
		if err != nil {
			// The label cache is an optimization; run without it.
			logger.WithError(err).Warn("Redis unavailable, running without label cache")
			redisClient = nil
		} else {
			defer func() {
				_ = redisClient.Close()
			}()
		}
	}

	classifier := categorize.NewClient(cfg.Categorizer, logger)
	labelCache := categorize.NewLabelCache(redisClient, cfg.Categorizer.CacheTTL, logger)
	categorizer := categorize.NewCategorizer(classifier, labelCache, cfg.Categorizer.BatchSize, logger)

	analysisHandler := handlers.NewAnalysisHandler(
		cfg,
		logger,
		extract.NewTableNormalizer(logger),
		categorizer,
		analytics.NewAnomalyDetector(cfg.Anomaly, logger),
		database.NewTransactionStore(db, logger),
	)

	healthHandler := handlers.NewHealthHandler(map[string]handlers.HealthChecker{
		"classifier": classifier,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	api.SetupRoutes(router, cfg, healthHandler, analysisHandler)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       15 * time.Second,
	}

	serverLog := logging.Component(logger, "server")
	go func() {
		serverLog.WithField("port", cfg.Server.Port).Info("Starting analytics server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	serverLog.Info("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited gracefully")
	return nil
}
