package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"creator_sync/internal/config"
	"creator_sync/internal/publisher"
	"creator_sync/internal/scheduler"
	"creator_sync/internal/scrape"
	"creator_sync/internal/server"
	"creator_sync/internal/service"
	"creator_sync/internal/storage/postgres"
	"creator_sync/internal/storage/s3"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = setupLogger(cfg.LogLevel)

	db, err := sqlx.Connect("postgres", cfg.Database.DSN())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	rabbitMQ, err := publisher.NewRabbitMQ(publisher.Config{
		URL:        cfg.RabbitMQ.URL,
		Exchange:   cfg.RabbitMQ.Exchange,
		RoutingKey: cfg.RabbitMQ.RoutingKey,
		QueueName:  cfg.RabbitMQ.QueueName,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to rabbitmq", "error", err)
		os.Exit(1)
	}
	defer rabbitMQ.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	avatarStore, err := s3.NewAvatarStore(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to initialize avatar storage", "error", err)
		os.Exit(1)
	}

	creatorStore := postgres.NewCreatorStore(db)
	recordStore := postgres.NewRecordStore(db)
	syncLogStore := postgres.NewSyncLogStore(db)

	client := scrape.NewClient(scrape.Config{
		BaseURL:        cfg.Scrape.BaseURL,
		Token:          cfg.Scrape.Token,
		Timeout:        cfg.Scrape.Timeout,
		MaxAttempts:    cfg.Scrape.Retry.MaxAttempts,
		InitialBackoff: cfg.Scrape.Retry.InitialBackoff,
		MaxBackoff:     cfg.Scrape.Retry.MaxBackoff,
	}, logger)
	launcher := scrape.NewLauncher(client, cfg.Scrape, cfg.Server, logger)

	ingestService := service.NewIngestService(
		creatorStore,
		recordStore,
		syncLogStore,
		client,
		avatarStore,
		cfg.Server.WebhookSecret,
		cfg.Scrape.DatasetLimit,
		logger,
	)
	fleetService, err := service.NewFleetService(
		creatorStore,
		recordStore,
		syncLogStore,
		launcher,
		cfg.Sync,
		logger,
	)
	if err != nil {
		logger.Error("failed to initialize fleet service", "error", err)
		os.Exit(1)
	}
	healthService := service.NewHealthService(creatorStore, syncLogStore, launcher, cfg.Sync, logger)
	costService := service.NewCostService(
		syncLogStore,
		client,
		rabbitMQ,
		cfg.RabbitMQ.Channel,
		cfg.Sync.CostBatchSize,
		logger,
	)

	handlers := server.NewHandlers(ingestService, fleetService, healthService, costService, logger)
	router := server.NewRouter(handlers, cfg.Server)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if cfg.Scheduler.Enabled {
		loc, err := time.LoadLocation(cfg.Sync.Timezone)
		if err != nil {
			logger.Error("failed to load timezone", "error", err)
			os.Exit(1)
		}
		sched := scheduler.NewScheduler(fleetService, costService, cfg.Scheduler.ReportHour, loc, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("starting http server", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "error", err)
	}

	// Let in-flight detached launches finish before the process exits.
	fleetService.Wait()
	logger.Info("shutdown complete")
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: logLevel}
	handler := slog.NewJSONHandler(os.Stdout, opts)
	return slog.New(handler)
}
