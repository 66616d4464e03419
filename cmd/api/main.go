package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/courseflow/internal/api/handler"
	"github.com/hszk-dev/courseflow/internal/api/middleware"
	"github.com/hszk-dev/courseflow/internal/config"
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

	// Wire repositories, invalidation and services
	itemRepo := postgres.NewCurriculumRepository(pgClient.Pool())
	courseRepo := postgres.NewCourseRepository(pgClient.Pool())
	enrollmentRepo := postgres.NewEnrollmentRepository(pgClient.Pool())

	store := cache.NewRedisStore(redisClient)
	bus := invalidation.NewBus(store, enrollmentRepo, invalidation.BusConfig{
		EnrollmentSampleLimit: cfg.Signer.EnrollmentSample,
	})

	signer := gateway.New(storageClient)

	catalogSvc := usecase.NewCatalogService(
		itemRepo,
		courseRepo,
		queueClient,
		signer,
		bus,
		usecase.CatalogServiceConfig{
			EnqueueDelay: cfg.Signer.EnqueueDelay,
		},
	)
	cachedSvc := usecase.NewCachedCatalogService(catalogSvc, store, usecase.CachedCatalogServiceConfig{})

	r := setupRouter(logger, cachedSvc, signer)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, svc usecase.CatalogService, checker handler.ConnectivityChecker) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/health", handler.Health)
	r.Handle("/metrics", promhttp.Handler())

	curriculumHandler := handler.NewCurriculumHandler(svc)
	diagnosticsHandler := handler.NewDiagnosticsHandler(checker)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/courses/{courseID}", func(r chi.Router) {
			r.Get("/", curriculumHandler.CourseDetail)
			r.Post("/items", curriculumHandler.Create)
		})
		r.Route("/items/{id}", func(r chi.Router) {
			r.Get("/", curriculumHandler.Get)
			r.Delete("/", curriculumHandler.Delete)
			r.Get("/signed-url", curriculumHandler.SignedURL)
			r.Get("/playback-status", curriculumHandler.PlaybackStatus)
			r.Post("/refresh", curriculumHandler.Refresh)
		})
		r.Get("/diagnostics/storage", diagnosticsHandler.StorageConnectivity)
	})

	return r
}
