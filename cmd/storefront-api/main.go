// Command storefront-api serves storefront catalog data from the CDN
// through the caching fetch layer.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/storefront-cdn/internal/config"
	"github.com/Sternrassler/storefront-cdn/pkg/cache"
	"github.com/Sternrassler/storefront-cdn/pkg/catalog"
	"github.com/Sternrassler/storefront-cdn/pkg/client"
	"github.com/Sternrassler/storefront-cdn/pkg/logging"
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("storefront-api stopped")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Setup(logging.Config{
		Level:   logging.LogLevel(cfg.Logging.Level),
		Pretty:  cfg.Logging.Pretty,
		Output:  os.Stderr,
		Service: logging.ComponentServer,
	})
	logger := logging.NewLogger(logging.ComponentServer)

	redisClient := connectRedis(cfg.Redis.URL)
	if redisClient != nil {
		defer redisClient.Close()
	}

	fetcher, err := client.New(clientConfig(cfg, redisClient))
	if err != nil {
		return err
	}
	defer fetcher.Close()

	srv := newServer(catalog.NewAccessors(fetcher), serverOptions{
		Currency: cfg.Storefront.Currency,
		Locale:   cfg.Storefront.Locale,
		Redis:    redisClient,
	})

	addr := ":" + cfg.Server.Port
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().
			Str("addr", addr).
			Str("cdn", cfg.CDN.BaseURL).
			Bool("redis_mirror", redisClient != nil).
			Msg("Starting storefront API")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-done:
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}
	logger.Info().Msg("Shutting down storefront API")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return httpServer.Shutdown(shutdownCtx)
}

// clientConfig maps the loaded configuration onto the fetcher.
func clientConfig(cfg *config.Config, redisClient *redis.Client) client.Config {
	fc := client.DefaultConfig(cache.NewManager())
	fc.BaseURL = cfg.CDN.BaseURL
	fc.UserAgent = cfg.CDN.UserAgent
	fc.Timeout = cfg.CDN.Timeout
	fc.Retry = client.RetryConfig{
		Attempts:  cfg.CDN.RetryAttempts,
		BaseDelay: cfg.CDN.RetryBaseDelay,
	}
	fc.MaxConcurrency = cfg.CDN.MaxConcurrency
	fc.DefaultCache = cache.Config{
		TTL:                  cfg.Cache.TTL,
		StaleWhileRevalidate: cfg.Cache.StaleWhileRevalidate,
	}
	if redisClient != nil {
		fc.Mirror = cache.NewMirror(redisClient)
	}
	return fc
}

// connectRedis returns nil when url is empty or Redis is unreachable;
// the API then runs on the in-memory cache alone.
func connectRedis(url string) *redis.Client {
	if url == "" {
		return nil
	}

	logger := logging.NewLogger(logging.ComponentServer)

	opts, err := redis.ParseURL(url)
	if err != nil {
		logger.Warn().Err(err).Msg("Invalid REDIS_URL, running without mirror")
		return nil
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", opts.Addr).Msg("Redis unreachable, running without mirror")
		rdb.Close()
		return nil
	}

	logger.Info().Str("addr", opts.Addr).Msg("Connected to Redis mirror")
	return rdb
}
