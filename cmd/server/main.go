package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/fitcenter-webhooks/internal/api"
	"github.com/Priya8975/fitcenter-webhooks/internal/config"
	"github.com/Priya8975/fitcenter-webhooks/internal/engine"
	"github.com/Priya8975/fitcenter-webhooks/internal/metrics"
	"github.com/Priya8975/fitcenter-webhooks/internal/store"
	ws "github.com/Priya8975/fitcenter-webhooks/internal/websocket"
	"github.com/Priya8975/fitcenter-webhooks/internal/worker"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Cancelled on SIGINT/SIGTERM; pipelines sleeping between attempts stop here.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, storageName, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		rs, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rs.Close()
		redisClient = rs.Client()
		logger.Info("connected to Redis")
	} else {
		logger.Warn("REDIS_URL not set, endpoint health tracking disabled and test throttle is per-process")
	}

	health := engine.NewHealthTracker(redisClient, cfg.HealthFailureThreshold, logger.With("component", "health"))

	var limiter engine.Limiter
	if redisClient != nil {
		limiter = engine.NewRateLimiter(redisClient, cfg.TestRatePerMinute, time.Minute, logger.With("component", "ratelimit"))
	} else {
		limiter = engine.NewLocalLimiter(cfg.TestRatePerMinute, time.Minute)
	}

	hub := ws.NewHub(logger.With("component", "websocket"))
	go hub.Run(ctx)

	metrics.Register()

	workerLogger := logger.With("component", "worker")
	pool := worker.NewPool(ctx, cfg.NumWorkers, workerLogger)
	scheduler := worker.NewScheduler(st, st,
		worker.NewExecutor(cfg.DeliveryTimeout),
		engine.NewBackoff(cfg.BackoffUnit),
		workerLogger,
		metrics.DeliveryObserver{}, health, hub,
	)
	dispatcher := worker.NewDispatcher(st, scheduler, pool, workerLogger)

	router := api.NewRouter(api.Deps{
		Store:        st,
		StorageName:  storageName,
		Dispatcher:   dispatcher,
		Pipelines:    pool,
		Health:       health,
		TestLimiter:  limiter,
		Hub:          hub,
		RedisEnabled: redisClient != nil,
		AdminSecret:  cfg.AdminJWTSecret,
		DefaultRetry: cfg.DefaultRetryCount,
		Logger:       logger.With("component", "api"),
	})
	if !cfg.AuthEnabled() {
		logger.Warn("ADMIN_JWT_SECRET not set, admin API is unauthenticated")
	}

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			"port", cfg.Port,
			"storage", storageName,
			"workers", cfg.NumWorkers,
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("waiting for delivery pipelines", "in_flight", pool.InFlight())
	pool.Wait()

	logger.Info("server stopped")
}

// openStore picks Postgres when DATABASE_URL is set and the in-memory store
// otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, string, error) {
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory store; data is lost on restart")
		return store.NewMemory(), "memory", nil
	}

	pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	logger.Info("connected to PostgreSQL")

	if err := pg.RunMigrations(ctx); err != nil {
		pg.Close()
		return nil, "", err
	}
	logger.Info("database migrations applied")

	return pg, "postgres", nil
}
