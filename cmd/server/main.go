package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/telltide-relay/internal/api"
	"github.com/Priya8975/telltide-relay/internal/config"
	"github.com/Priya8975/telltide-relay/internal/ratelimit"
	"github.com/Priya8975/telltide-relay/internal/store"
	"github.com/Priya8975/telltide-relay/internal/stream"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := run(logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	level, _ := cfg.SlogLevel()
	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	notifications := store.NewNotificationStore(
		store.WithCapacity(cfg.BacklogSize),
		store.WithLogger(logger),
	)
	gateway := stream.NewGateway(notifications, stream.Config{
		PingInterval: cfg.PingInterval,
		BufferSize:   cfg.StreamBuffer,
	}, logger)

	// Ingest throttling is optional and needs Redis
	var limiter *ratelimit.Limiter
	if cfg.RedisURL != "" && cfg.IngestRateLimit > 0 {
		redisClient, err := store.ConnectRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		limiter = ratelimit.New(redisClient, time.Second, logger)
		logger.Info("ingest throttling enabled", "limit_per_second", cfg.IngestRateLimit)
	}

	router := api.NewRouter(notifications, gateway, limiter, api.RouterConfig{
		Version:         version,
		MaxBodyBytes:    cfg.MaxBodyBytes,
		IngestRateLimit: cfg.IngestRateLimit,
	}, logger)

	// No ReadTimeout or WriteTimeout: either one would cut long-lived streams
	// short. Streams set their own deadline per write.
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server starting", "port", cfg.Port, "backlog_size", cfg.BacklogSize)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
