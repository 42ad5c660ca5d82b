// Package main provides the entry point for the paper sharing Temporal worker,
// which imports externally hosted PDFs onto the media host.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helixir/paper-sharing-service/internal/config"
	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
	"github.com/helixir/paper-sharing-service/internal/pdf"
	"github.com/helixir/paper-sharing-service/internal/service"
	"github.com/helixir/paper-sharing-service/internal/storage"
	"github.com/helixir/paper-sharing-service/internal/temporal"
	"github.com/helixir/paper-sharing-service/internal/temporal/activities"
	"github.com/helixir/paper-sharing-service/internal/temporal/workflows"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger = logger.With().Str("component", "worker").Logger()
	logger.Info().Msg("paper-sharing-service worker starting")

	if !cfg.Storage.Enabled {
		return errors.New("media import requires storage.enabled")
	}

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	// Connect to PostgreSQL.
	db, err := database.New(ctx, &cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info().Msg("database connection established")

	// Media host.
	s3Client, err := storage.NewS3Client(ctx, storage.ClientConfig{
		Endpoint:        cfg.Storage.Endpoint,
		Region:          cfg.Storage.Region,
		UsePathStyle:    cfg.Storage.UsePathStyle,
		AccessKeyID:     cfg.Storage.AccessKeyID,
		SecretAccessKey: cfg.Storage.SecretAccessKey,
	})
	if err != nil {
		return fmt.Errorf("create s3 client: %w", err)
	}
	media, err := storage.NewS3Store(s3Client, cfg.Storage.Bucket, cfg.Storage.Prefix, cfg.Storage.PublicBaseURL)
	if err != nil {
		return fmt.Errorf("create media store: %w", err)
	}

	downloader := pdf.NewDownloader(pdf.Config{
		Timeout:              cfg.Media.DownloadTimeout,
		MaxSize:              cfg.Media.MaxDownloadSize,
		UserAgent:            "paper-sharing-service",
		AllowPrivateNetworks: cfg.Media.AllowPrivateNetworks,
	})

	// Create Temporal client.
	temporalClient, err := temporal.NewClient(temporal.ClientConfig{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		TaskQueue: cfg.Temporal.TaskQueue,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to temporal: %w", err)
	}
	defer temporalClient.Close()
	logger.Info().
		Str("host_port", cfg.Temporal.HostPort).
		Str("namespace", cfg.Temporal.Namespace).
		Msg("temporal client connected")

	// Create worker manager and register the media import workflow.
	manager, err := temporal.NewWorkerManager(temporalClient, temporal.DefaultWorkerConfig(cfg.Temporal.TaskQueue))
	if err != nil {
		return fmt.Errorf("create worker manager: %w", err)
	}

	manager.RegisterWorkflow(workflows.MediaImportWorkflow, temporal.MediaImportWorkflowName)
	manager.RegisterActivities(activities.NewMediaActivities(
		downloader,
		media,
		service.NewPgUnitOfWork(db),
		outbox.NewEmitter(outbox.EmitterConfig{
			ServiceName: "paper-sharing-service",
			MaxAttempts: cfg.Outbox.MaxAttempts,
		}),
		metrics,
	))

	// Worker metrics on the metrics port.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	logger.Info().
		Str("task_queue", manager.TaskQueue()).
		Strs("workflows", manager.Workflows()).
		Msg("starting temporal worker")

	// Run blocks until ctx is cancelled.
	runErr := manager.Run(ctx)

	if metricsServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	if runErr != nil {
		return fmt.Errorf("worker: %w", runErr)
	}
	logger.Info().Msg("paper-sharing-service worker stopped")
	return nil
}
