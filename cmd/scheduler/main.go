package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/courseflow/internal/config"
	"github.com/hszk-dev/courseflow/internal/infrastructure/cache"
	"github.com/hszk-dev/courseflow/internal/infrastructure/postgres"
	"github.com/hszk-dev/courseflow/internal/infrastructure/queue"
	"github.com/hszk-dev/courseflow/internal/invalidation"
	"github.com/hszk-dev/courseflow/internal/scheduler"
	"github.com/hszk-dev/courseflow/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Initialize infrastructure clients
	pgClient, err := postgres.NewClient(ctx, postgres.DefaultClientConfig(cfg.Database.DSN()))
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer pgClient.Close()
	logger.Info("connected to PostgreSQL")

	queueClient, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	logger.Info("connected to Redis")

	// Wire repositories, invalidation and the sweeps
	itemRepo := postgres.NewCurriculumRepository(pgClient.Pool())
	enrollmentRepo := postgres.NewEnrollmentRepository(pgClient.Pool())
	notificationRepo := postgres.NewNotificationRepository(pgClient.Pool())

	store := cache.NewRedisStore(redisClient)
	bus := invalidation.NewBus(store, enrollmentRepo, invalidation.BusConfig{
		EnrollmentSampleLimit: cfg.Signer.EnrollmentSample,
	})

	sweeps := usecase.NewSweepService(
		itemRepo,
		queueClient,
		notificationRepo,
		bus,
		usecase.SweepServiceConfig{
			StaggerInterval: cfg.Signer.StaggerInterval,
			RefreshWindow:   cfg.Signer.RefreshWindow,
			AlertThreshold:  cfg.Signer.AlertThreshold,
			BatchLimit:      cfg.Signer.SweepBatchLimit,
		},
	)

	runner := scheduler.NewRunner(sweeps, scheduler.RunnerConfig{
		RegenerateInterval: cfg.Scheduler.RegenerateInterval,
		RefreshInterval:    cfg.Scheduler.RefreshInterval,
		CleanupInterval:    cfg.Scheduler.CleanupInterval,
		RetryInterval:      cfg.Scheduler.RetryInterval,
		MonitorInterval:    cfg.Scheduler.MonitorInterval,
	})

	// Metrics endpoint; the scheduler has no other HTTP surface.
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: promhttp.Handler(),
	}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer metricsSrv.Close()

	// Run the sweeps until a shutdown signal arrives
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting scheduler")
		errCh <- runner.Run(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down scheduler", slog.String("signal", sig.String()))
	}

	cancel()
	if err := <-errCh; err != nil {
		return err
	}

	logger.Info("scheduler stopped")
	return nil
}
