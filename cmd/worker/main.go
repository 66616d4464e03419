package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/courseflow/internal/config"
	"github.com/hszk-dev/courseflow/internal/domain/repository"
	"github.com/hszk-dev/courseflow/internal/gateway"
	"github.com/hszk-dev/courseflow/internal/infrastructure/cache"
	"github.com/hszk-dev/courseflow/internal/infrastructure/postgres"
	"github.com/hszk-dev/courseflow/internal/infrastructure/queue"
	"github.com/hszk-dev/courseflow/internal/infrastructure/storage"
	"github.com/hszk-dev/courseflow/internal/invalidation"
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

	storageClient, err := storage.NewClient(storage.ClientConfig{
		Endpoint:       cfg.MinIO.Endpoint,
		PublicEndpoint: cfg.MinIO.PublicEndpoint,
		AccessKey:      cfg.MinIO.AccessKey,
		SecretKey:      cfg.MinIO.SecretKey,
		SessionToken:   cfg.MinIO.SessionToken,
		UseSSL:         cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to MinIO: %w", err)
	}
	logger.Info("connected to MinIO")

	queueCfg := queue.DefaultClientConfig(cfg.RabbitMQ.URL())
	queueCfg.MaxRetries = cfg.Worker.MaxRetries
	queueCfg.BackoffBase = cfg.Signer.BackoffBase
	queueClient, err := queue.NewClient(ctx, queueCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	defer queueClient.Close()
	logger.Info("connected to RabbitMQ")

	// Redis client for cache invalidation
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

	// Wire repositories, invalidation and the generation service
	itemRepo := postgres.NewCurriculumRepository(pgClient.Pool())
	enrollmentRepo := postgres.NewEnrollmentRepository(pgClient.Pool())

	store := cache.NewRedisStore(redisClient)
	bus := invalidation.NewBus(store, enrollmentRepo, invalidation.BusConfig{
		EnrollmentSampleLimit: cfg.Signer.EnrollmentSample,
	})

	signer := gateway.New(storageClient)

	generationSvc := usecase.NewGenerationService(
		itemRepo,
		signer,
		bus,
		usecase.GenerationServiceConfig{
			SignedURLTTL: cfg.Signer.SignedURLTTL,
		},
	)

	// Setup signal handling for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	// Start consuming messages in a goroutine
	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming URL generation tasks")
		err := queueClient.ConsumeGenerationTasks(ctx, func(task repository.URLGenerationTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing task",
				slog.String("item_id", task.ItemID.String()),
				slog.Int("attempt", task.Attempt),
			)

			if err := generationSvc.ProcessTask(ctx, task); err != nil {
				logger.Error("task processing failed",
					slog.String("item_id", task.ItemID.String()),
					slog.Int("attempt", task.Attempt),
					slog.String("error", err.Error()),
				)
				return err
			}

			logger.Info("task completed successfully",
				slog.String("item_id", task.ItemID.String()),
			)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Cancel the main context to stop consuming new messages
	cancel()

	// Wait for in-flight tasks to complete (or timeout)
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
	}

	logger.Info("worker stopped")
	return nil
}
