package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/carebridge/telemed-sync/internal/api/router"
	"github.com/carebridge/telemed-sync/internal/auth"
	"github.com/carebridge/telemed-sync/internal/backend"
	appconfig "github.com/carebridge/telemed-sync/internal/config"
	"github.com/carebridge/telemed-sync/internal/http/handlers"
	"github.com/carebridge/telemed-sync/internal/observability/metrics"
	"github.com/carebridge/telemed-sync/internal/storage"
	appsync "github.com/carebridge/telemed-sync/internal/sync"
	"github.com/carebridge/telemed-sync/pkg/logging"
)

func main() {
	// .env is a development convenience; absence is fine.
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting telemed-sync API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"backend", cfg.BackendBaseURL,
	)

	redisOpts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOpts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	store := storage.NewRedisKV(redisClient, cfg.RedisKeyPrefix)
	tokens := auth.NewTokenStore(store, logger)

	client, err := backend.New(backend.Config{
		BaseURL:   cfg.BackendBaseURL,
		Timeout:   cfg.BackendTimeout,
		Logger:    logger,
		UserAgent: cfg.BackendUserAgent,
		Tokens:    tokens,
	})
	if err != nil {
		logger.Error("failed to configure backend client", "error", err)
		os.Exit(1)
	}

	syncMetrics := metrics.NewSyncMetrics(prometheus.DefaultRegisterer)
	resolver := backend.NewResolver(backend.ResolverConfig{
		Client:  client,
		Store:   store,
		Logger:  logger,
		Metrics: syncMetrics,
	})

	queue := appsync.NewQueue(store, logger)
	cache := appsync.NewCache(store, queue, logger)
	engine := appsync.NewEngine(appsync.EngineConfig{
		Resolver: resolver,
		Fetcher:  client,
		Queue:    queue,
		Cache:    cache,
		Creds:    tokens,
		Logger:   logger,
		Metrics:  syncMetrics,
	})

	// Restore durable state before serving anything.
	initCtx, cancelInit := context.WithTimeout(context.Background(), 10*time.Second)
	engine.Init(initCtx)
	resolver.Load(initCtx)
	cancelInit()

	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	probe := appsync.NewProbeSource(client, cfg.ProbeInterval, logger)
	monitor := appsync.NewMonitor(probe, engine, logger)
	go func() {
		if err := monitor.Run(monitorCtx); err != nil && monitorCtx.Err() == nil {
			logger.Error("connectivity monitor stopped", "error", err)
		}
	}()

	appointmentsHandler := handlers.NewAppointmentsHandler(engine, logger)
	r := router.New(&router.Config{
		Logger:              logger,
		AppointmentsHandler: appointmentsHandler,
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	stopMonitor()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
