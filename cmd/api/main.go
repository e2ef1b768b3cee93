package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/rastermill/rastermill/internal/api"
	"github.com/rastermill/rastermill/internal/config"
	"github.com/rastermill/rastermill/internal/queue"
	"github.com/rastermill/rastermill/internal/ratelimit"
	"github.com/rastermill/rastermill/internal/storage"
	"github.com/rastermill/rastermill/internal/store"
	"github.com/rastermill/rastermill/internal/telemetry"
	"github.com/rastermill/rastermill/internal/transform"
)

func main() {
	cfg := config.Load()
	logger := log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lmsgprefix)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TraceConfig{
		ServiceName:  "rastermill-api",
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	}, logger)
	cancel()
	if err != nil {
		logger.Fatalf("tracing setup failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	if err := transform.Startup(); err != nil {
		logger.Fatalf("image backend startup failed: %v", err)
	}
	defer transform.Shutdown()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Printf("queue client close error: %v", err)
		}
	}()

	jobStore := newJobStore(logger, cfg.Database.DSN)

	storageClient, err := storage.NewClient(storage.Config{
		Endpoint: cfg.Storage.Endpoint,
		Access:   cfg.Storage.AccessKey,
		Secret:   cfg.Storage.SecretKey,
		Bucket:   cfg.Storage.Bucket,
		UseSSL:   cfg.Storage.UseSSL,
	})
	if err != nil {
		logger.Printf("object storage unavailable: %v", err)
		storageClient = nil
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := storageClient.EnsureBucket(ctx); err != nil {
			logger.Printf("ensure bucket failed: %v", err)
		}
		cancel()
	}

	opts := api.Options{
		PresignTTL:            cfg.API.PresignTTL,
		Tracer:                otel.Tracer("rastermill/api"),
		RateLimitUserIDHeader: cfg.RateLimit.UserIDHeader,
	}

	if cfg.RateLimit.Capacity > 0 {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, "rastermill:ratelimit")
		if err != nil {
			logger.Printf("rate limiter disabled: %v", err)
		} else {
			opts.RateLimiter = limiter
		}
	}

	app := newAPIServer(logger, queueClient, jobStore, storageClient, opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      app.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", cfg.API.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Println("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Printf("graceful shutdown failed: %v", err)
	}
}

// newJobStore prefers postgres and falls back to the in-memory store when
// the database is unreachable.
func newJobStore(logger *log.Logger, dsn string) store.JobStore {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pg, err := store.NewPostgresJobStore(ctx, dsn)
	if err != nil {
		logger.Printf("postgres unavailable, using in-memory job store: %v", err)
		return store.NewMemoryJobStore()
	}
	return pg
}

func newAPIServer(logger *log.Logger, queueClient *queue.Client, jobStore store.JobStore, storageClient *storage.Client, opts api.Options) *api.Server {
	if storageClient == nil {
		return api.NewServer(logger, queueClient, jobStore, nil, opts)
	}
	return api.NewServer(logger, queueClient, jobStore, storageClient, opts)
}
