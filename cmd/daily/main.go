package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jonboulle/clockwork"

	"snowday-platform/internal/config"
	"snowday-platform/internal/repository"
	"snowday-platform/internal/services"
	"snowday-platform/internal/upstream"
	"snowday-platform/pkg/database"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

// The daily job runs one tracking cycle and exits. It is meant for cron: an
// afternoon run resolves today's predictions and records today's outcomes,
// an evening run logs tomorrow's predictions.
func main() {
	dryRun := flag.Bool("dry-run", false, "Compute everything but write nothing")
	force := flag.Bool("force", false, "Run even outside the winter season")
	seedBacktest := flag.Bool("seed-backtest", false, "Seed the prediction log from historical records instead of running the daily cycle")
	timeout := flag.Duration("timeout", 2*time.Minute, "Overall run timeout")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("snowday-daily", "1.0.0", logging.ParseLevel(cfg.Logging.Level))
	metricsCollector := metrics.NewCollector("snowday_daily")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	dbConfig := &database.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Database,
		SSLMode:         cfg.Database.SSLMode,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	db, err := database.NewPostgresDB(dbConfig, logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[STARTUP_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	historyRepo := repository.NewHistoryRepository(db, logger, metricsCollector)
	logRepo := repository.NewPredictionLogRepository(db, logger, metricsCollector)

	weatherClient := upstream.NewNWSClient(upstream.NWSClientConfig{
		ObservationURL: cfg.Upstream.ObservationURL,
		ForecastURL:    cfg.Upstream.ForecastURL,
		AlertsURL:      cfg.Upstream.AlertsURL,
		UserAgent:      cfg.Upstream.UserAgent,
		Timeout:        cfg.Upstream.Timeout,
	}, logger, metricsCollector)

	statusSource := upstream.NewCachedStatusSource(
		upstream.NewHTTPStatusSource(cfg.Upstream.StatusURL, cfg.Upstream.Timeout),
		cfg.Upstream.StatusCacheTTL,
		clockwork.NewRealClock(),
		metricsCollector,
	)

	predictionService := services.NewPredictionService(weatherClient, historyRepo, cfg.Tracking.Schools, logger, metricsCollector)
	trackingService := services.NewTrackingService(logRepo, historyRepo, statusSource, predictionService, weatherClient, clockwork.NewRealClock(), cfg.Tracking.Schools, logger, metricsCollector)

	if *seedBacktest {
		created, err := trackingService.SeedBacktest(ctx)
		if err != nil {
			logger.Fatal(ctx, "[SEED_ERROR] Backtest seeding failed", logging.Fields{}, err)
		}
		fmt.Printf("Seeded %d backtest entries\n", created)
		return
	}

	result, err := trackingService.LogDaily(ctx, services.LogOptions{
		ForceLog: *force,
		DryRun:   *dryRun,
	})
	if err != nil {
		logger.Fatal(ctx, "[DAILY_ERROR] Daily tracking run failed", logging.Fields{}, err)
	}

	fmt.Printf("Resolved %d, logged %d, skipped %d, saved %d for tomorrow\n",
		result.Resolved, result.Logged, result.Skipped, result.SavedForTomorrow)
	for _, e := range result.Errors {
		fmt.Fprintf(os.Stderr, "warning: %s\n", e)
	}
}
