// Package main provides the entry point for the paper sharing service API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/helixir/paper-sharing-service/internal/auth"
	"github.com/helixir/paper-sharing-service/internal/cache"
	"github.com/helixir/paper-sharing-service/internal/config"
	"github.com/helixir/paper-sharing-service/internal/database"
	"github.com/helixir/paper-sharing-service/internal/events"
	"github.com/helixir/paper-sharing-service/internal/llm"
	"github.com/helixir/paper-sharing-service/internal/observability"
	"github.com/helixir/paper-sharing-service/internal/outbox"
	"github.com/helixir/paper-sharing-service/internal/pdf"
	"github.com/helixir/paper-sharing-service/internal/repository"
	"github.com/helixir/paper-sharing-service/internal/search"
	"github.com/helixir/paper-sharing-service/internal/server"
	httpserver "github.com/helixir/paper-sharing-service/internal/server/http"
	"github.com/helixir/paper-sharing-service/internal/service"
	"github.com/helixir/paper-sharing-service/internal/storage"
	"github.com/helixir/paper-sharing-service/internal/temporal"
)

const serviceName = "paper-sharing-service"

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
	logger = logger.With().Str("component", "server").Logger()
	logger.Info().Msg("paper-sharing-service server starting")

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

	// Run migrations if configured.
	if cfg.Database.MigrationAutoRun {
		if err := migrate(db, cfg.Database.MigrationPath, logger); err != nil {
			return err
		}
	}

	repos := service.NewPgRepositories(db)
	uow := service.NewPgUnitOfWork(db)
	emitter := outbox.NewEmitter(outbox.EmitterConfig{
		ServiceName: serviceName,
		MaxAttempts: cfg.Outbox.MaxAttempts,
	})

	var checks []httpserver.ReadinessCheck

	// Redis cache for suggested titles and the home feed.
	var (
		titleCache cache.TitleCache
		feedCache  cache.FeedCache
	)
	if cfg.Cache.Enabled {
		redisClient, err := cache.Connect(ctx, cfg.Cache.Address, cfg.Cache.Password, cfg.Cache.DB)
		if err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		defer func() { _ = redisClient.Close() }()

		rc, err := cache.NewRedisCache(redisClient, cache.Options{
			Prefix:   cfg.Cache.Prefix,
			TitleTTL: cfg.Cache.TitleTTL,
			FeedTTL:  cfg.Cache.FeedTTL,
		})
		if err != nil {
			return fmt.Errorf("create redis cache: %w", err)
		}
		titleCache, feedCache = rc, rc
		checks = append(checks, redisCheck(redisClient))
		logger.Info().Str("address", cfg.Cache.Address).Msg("redis cache enabled")
	}

	// Media host.
	var media storage.MediaStore
	if cfg.Storage.Enabled {
		store, err := newMediaStore(ctx, cfg.Storage)
		if err != nil {
			return err
		}
		media = store
		logger.Info().Str("bucket", cfg.Storage.Bucket).Msg("media store enabled")
	}

	downloader := pdf.NewDownloader(pdf.Config{
		Timeout:              cfg.Media.DownloadTimeout,
		MaxSize:              cfg.Media.MaxDownloadSize,
		UserAgent:            serviceName,
		AllowPrivateNetworks: cfg.Media.AllowPrivateNetworks,
	})

	// Title suggester for semantic search.
	suggester, err := llm.NewTitleSuggester(ctx, llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		MaxTitles:   cfg.Search.MaxTitles,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Gemini: llm.GeminiConfig{
			APIKey: cfg.LLM.Gemini.APIKey,
			Model:  cfg.LLM.Gemini.Model,
		},
	})
	if err != nil {
		return fmt.Errorf("create title suggester: %w", err)
	}
	if suggester != nil {
		suggester = llm.NewInstrumented(suggester, metrics, logger)
		logger.Info().Str("provider", cfg.LLM.Provider).Msg("title suggester enabled")
	}

	searchSvc := search.NewService(
		repository.NewPgPaperRepository(db),
		suggester,
		titleCache,
		search.Config{
			SemanticEnabled: cfg.Search.SemanticEnabled,
			RecentLimit:     cfg.Search.RecentLimit,
			ResultLimit:     cfg.Search.ResultLimit,
			RateLimitRPS:    cfg.LLM.RateLimitRPS,
			RateLimitBurst:  cfg.LLM.RateLimitBurst,
			RateLimitWait:   cfg.Search.RateLimitWait,
		},
		metrics,
		logger,
	)

	paperOpts := []service.PaperOption{service.WithMetrics(metrics)}
	if media != nil {
		paperOpts = append(paperOpts, service.WithMediaStore(media))
	}
	if feedCache != nil {
		paperOpts = append(paperOpts, service.WithFeedCache(feedCache))
	}

	// Temporal client for background media import.
	var importClient *temporal.MediaImportClient
	if cfg.Temporal.Enabled && media != nil {
		temporalCfg := temporal.ClientConfig{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
			TaskQueue: cfg.Temporal.TaskQueue,
		}
		temporalClient, err := temporal.NewClient(temporalCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to temporal: %w", err)
		}
		importClient = temporal.NewMediaImportClient(temporalClient, temporalCfg, logger)
		defer importClient.Close()

		paperOpts = append(paperOpts, service.WithMediaImporter(importClient))
		checks = append(checks, httpserver.ReadinessCheck{Name: "temporal", Check: importClient.Health})
		logger.Info().
			Str("host_port", cfg.Temporal.HostPort).
			Str("namespace", cfg.Temporal.Namespace).
			Msg("temporal client connected")
	}

	papers := service.NewPaperService(repos, uow, emitter, service.PaperConfig{
		RecentLimit:   cfg.Search.RecentLimit,
		MaxUploadSize: cfg.Storage.MaxUploadSize,
	}, logger, paperOpts...)
	bookmarks := service.NewBookmarkService(uow, emitter, logger)

	sessions, err := auth.NewSessionManager(cfg.Auth.SessionSecret, cfg.Auth.SessionTTL, cfg.Auth.Issuer)
	if err != nil {
		return fmt.Errorf("create session manager: %w", err)
	}
	var google service.IdentityVerifier
	if cfg.Auth.Google.Enabled {
		gv, err := auth.NewGoogleVerifier(ctx, cfg.Auth.Google.ClientID, cfg.Auth.Google.JWKSURL, cfg.Auth.Google.KeyRefreshInterval)
		if err != nil {
			return fmt.Errorf("create google verifier: %w", err)
		}
		defer func() { _ = gv.Close(context.Background()) }()
		google = gv
	}
	users := service.NewUserService(repos, uow, emitter, sessions, google, logger)

	// Background workers stop when bgCtx is cancelled.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	var background []func()

	if cfg.Kafka.Enabled {
		writer := outbox.NewKafkaWriter(outbox.WriterConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.Topic,
			BatchSize:    cfg.Kafka.BatchSize,
			BatchTimeout: cfg.Kafka.BatchTimeout,
		})
		publisher := outbox.NewKafkaPublisher(writer)
		relay := outbox.NewRelay(outbox.NewPgTxStore(db), publisher, outbox.RelayConfig{
			PollInterval: cfg.Outbox.PollInterval,
			BatchSize:    cfg.Outbox.BatchSize,
		}, metrics, logger)
		background = append(background, goRun(bgCtx, logger, "outbox relay", relay.Run, publisher.Close))

		if feedCache != nil {
			reader := events.NewKafkaReader(events.Config{
				Brokers: cfg.Kafka.Brokers,
				Topic:   cfg.Kafka.Topic,
				GroupID: cfg.Kafka.GroupID,
			})
			listener := events.NewListener(reader, feedCache, logger)
			background = append(background, goRun(bgCtx, logger, "feed listener", listener.Run, reader.Close))
		}
		logger.Info().Strs("brokers", cfg.Kafka.Brokers).Str("topic", cfg.Kafka.Topic).Msg("kafka enabled")
	}

	// Without a relay nothing drains pending events, so the sweeper expires them too.
	sweeper := outbox.NewSweeper(outbox.NewPgTxStore(db), outbox.SweeperConfig{
		Interval:       cfg.Outbox.SweepInterval,
		Retention:      cfg.Outbox.Retention,
		IncludePending: !cfg.Kafka.Enabled,
	}, logger)
	background = append(background, goRun(bgCtx, logger, "outbox sweeper", sweeper.Run))

	// gRPC health server.
	healthServer := server.NewHealthServer(db, server.DefaultCheckInterval, logger)
	grpcServer := server.NewGRPCServer(healthServer)
	grpcAddr := cfg.Server.GRPCAddress()
	grpcListener, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen on gRPC port: %w", err)
	}
	background = append(background, goRun(bgCtx, logger, "grpc health", func(ctx context.Context) error {
		healthServer.Run(ctx)
		return ctx.Err()
	}))

	// HTTP REST API server.
	httpCfg := httpserver.Config{
		Address:           cfg.Server.HTTPAddress(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		CookieName:        cfg.Auth.CookieName,
		CookieSecure:      cfg.Auth.CookieSecure,
		MaxUploadSize:     cfg.Storage.MaxUploadSize,
		CORSAllowedOrigin: cfg.Server.CORSAllowedOrigin,
	}
	httpSrv := httpserver.NewServer(httpCfg, httpserver.Dependencies{
		Papers:    papers,
		Bookmarks: bookmarks,
		Users:     users,
		Search:    searchSvc,
		Sessions:  sessions,
		PDFs:      downloader,
		Media:     media,
		DB:        db,
		Checks:    checks,
		Metrics:   metrics,
	}, logger)

	// Set up Prometheus metrics handler on a separate port if configured.
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
	}

	// Channel to collect server errors.
	errCh := make(chan error, 3)

	go func() {
		logger.Info().Str("address", grpcAddr).Msg("gRPC health server starting")
		if err := grpcServer.Serve(grpcListener); err != nil {
			errCh <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	readyLog := logger.Info().
		Str("grpc_address", grpcAddr).
		Str("http_address", httpCfg.Address).
		Bool("semantic_search", searchSvc.SemanticEnabled()).
		Bool("media_import", importClient != nil)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("paper-sharing-service is ready")

	// Wait for shutdown signal or server error.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("server error")
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down paper-sharing-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Stop background workers; the health server reports NOT_SERVING from here.
	bgCancel()
	for _, wait := range background {
		wait()
	}

	stopped := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		logger.Info().Msg("gRPC server stopped gracefully")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("gRPC server forced shutdown due to timeout")
		grpcServer.Stop()
	}

	logger.Info().Msg("paper-sharing-service shutdown complete")
	return runErr
}

// migrate applies all pending migrations.
func migrate(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			logger.Error().Err(closeErr).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// newMediaStore connects the S3 media store.
func newMediaStore(ctx context.Context, cfg config.StorageConfig) (*storage.S3Store, error) {
	client, err := storage.NewS3Client(ctx, storage.ClientConfig{
		Endpoint:        cfg.Endpoint,
		Region:          cfg.Region,
		UsePathStyle:    cfg.UsePathStyle,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	store, err := storage.NewS3Store(client, cfg.Bucket, cfg.Prefix, cfg.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("create media store: %w", err)
	}
	return store, nil
}

func redisCheck(client *redis.Client) httpserver.ReadinessCheck {
	return httpserver.ReadinessCheck{
		Name: "redis",
		Check: func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return client.Ping(ctx).Err()
		},
	}
}

// goRun runs fn in a goroutine and returns a function that waits for it to
// return and then runs the closers.
func goRun(ctx context.Context, logger zerolog.Logger, name string, fn func(context.Context) error, closers ...func() error) func() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Str("worker", name).Msg("background worker stopped")
		}
	}()
	return func() {
		<-done
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Warn().Err(err).Str("worker", name).Msg("close failed")
			}
		}
	}
}
