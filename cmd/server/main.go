package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"snowday-platform/internal/config"
	"snowday-platform/internal/handlers"
	"snowday-platform/internal/repository"
	"snowday-platform/internal/services"
	"snowday-platform/internal/upstream"
	"snowday-platform/pkg/database"
	"snowday-platform/pkg/logging"
	"snowday-platform/pkg/metrics"
)

func main() {
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

	// Initialize logger
	logger := logging.NewStructuredLogger("snowday-api", "1.0.0", logging.ParseLevel(cfg.Logging.Level))

	ctx := context.Background()
	logger.Info(ctx, "[STARTUP] Starting snow day prediction API server", logging.Fields{
		"version":     "1.0.0",
		"server_host": cfg.Server.Host,
		"server_port": cfg.Server.Port,
		"db_host":     cfg.Database.Host,
		"db_name":     cfg.Database.Database,
		"schools":     len(cfg.Tracking.Schools),
	})

	// Initialize metrics collector
	metricsCollector := metrics.NewCollector("snowday_platform")

	// Initialize database
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

	// Initialize repositories
	historyRepo := repository.NewHistoryRepository(db, logger, metricsCollector)
	logRepo := repository.NewPredictionLogRepository(db, logger, metricsCollector)

	// Initialize upstream clients
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

	// Initialize services
	predictionService := services.NewPredictionService(weatherClient, historyRepo, cfg.Tracking.Schools, logger, metricsCollector)
	trackingService := services.NewTrackingService(logRepo, historyRepo, statusSource, predictionService, weatherClient, clockwork.NewRealClock(), cfg.Tracking.Schools, logger, metricsCollector)

	// Initialize handlers
	predictionHandler := handlers.NewPredictionHandler(predictionService, trackingService, logger, metricsCollector)

	// Setup router
	router := mux.NewRouter()
	router.Use(handlers.RequestID)

	// Register routes
	predictionHandler.RegisterRoutes(router)

	// Prometheus metrics endpoint
	router.Handle("/metrics", promhttp.Handler())

	// Create HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Info(ctx, "[SERVER_START] HTTP server listening", logging.Fields{
			"address": server.Addr,
		})

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "[SERVER_ERROR] Server failed", logging.Fields{}, err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "[SHUTDOWN] Shutting down server...", logging.Fields{})

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "[SHUTDOWN_ERROR] Server forced to shutdown", logging.Fields{}, err)
	}

	logger.Info(ctx, "[SHUTDOWN_COMPLETE] Server stopped", logging.Fields{})
}
