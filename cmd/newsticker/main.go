package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/hblund/newsticker/internal/config"
	"github.com/hblund/newsticker/internal/favicon"
	"github.com/hblund/newsticker/internal/iconcache"
	"github.com/hblund/newsticker/internal/logging"
	"github.com/hblund/newsticker/internal/pipeline"
	"github.com/hblund/newsticker/internal/ratelimit"
	"github.com/hblund/newsticker/internal/sources"
)

func main() {
	cfg := config.Load()

	level := logging.LevelInfo
	switch cfg.Logging.Level {
	case "debug":
		level = logging.LevelDebug
	case "warn":
		level = logging.LevelWarn
	case "error":
		level = logging.LevelError
	}
	logger := logging.New(level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	srcs, err := sources.LoadSources(cfg.Sources.Path)
	if err != nil {
		logger.Error("Failed to load sources", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	// Initialize icon store backend
	var store iconcache.Store
	switch cfg.Cache.Backend {
	case "redis":
		logger.Info("Using Redis icon store", logging.WithField("addr", cfg.Cache.RedisAddr))
		redisStore, err := iconcache.NewRedisStore(iconcache.RedisConfig{Addr: cfg.Cache.RedisAddr})
		if err != nil {
			logger.Error("Failed to connect to Redis, falling back to disk store", logging.WithField("error", err.Error()))
		} else {
			store = redisStore
			defer redisStore.Close()
		}
	}
	if store == nil {
		logger.Info("Using disk icon store", logging.WithField("dir", cfg.Cache.Dir))
		diskStore, err := iconcache.NewDiskStore(cfg.Cache.Dir)
		if err != nil {
			logger.Error("Failed to open icon cache directory", logging.WithField("error", err.Error()))
			os.Exit(1)
		}
		store = diskStore
	}

	limiter := ratelimit.New(cfg.Fetch.RateLimitDur)
	resolver := favicon.NewResolver(cfg.Fetch.Timeout, cfg.Fetch.UserAgent, logger)

	icons, err := iconcache.New(ctx, store, resolver, limiter, iconcache.Options{
		DownloadTimeout: cfg.Fetch.Timeout,
		UserAgent:       cfg.Fetch.UserAgent,
	}, logger)
	if err != nil {
		logger.Error("Failed to initialize icon cache", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	if removed, err := icons.Sweep(ctx, cfg.Cache.Retention); err != nil {
		logger.Warn("Icon sweep had errors", logging.WithField("error", err.Error()))
	} else if removed > 0 {
		logger.Info("Swept expired icons", logging.WithField("removed", removed))
	}

	direction := pipeline.SortNewestFirst
	if cfg.Pipeline.SortOrder == "oldest" {
		direction = pipeline.SortOldestFirst
	}

	fetcherCfg := sources.FetcherConfig{
		Timeout:        cfg.Fetch.Timeout,
		MaxItems:       cfg.Fetch.MaxItems,
		UserAgent:      cfg.Fetch.UserAgent,
		MinTitleLength: sources.DefaultConfig().MinTitleLength,
	}

	p, err := pipeline.New(icons, limiter, fetcherCfg, direction, logger)
	if err != nil {
		logger.Error("Failed to build pipeline", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	result, err := p.Run(ctx, pipeline.Request{
		Sources:            srcs,
		RecencyWindowHours: cfg.Pipeline.RecencyWindowHours,
	})
	if err != nil {
		logger.Error("Aggregation failed", logging.WithField("error", err.Error()))
		os.Exit(1)
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logger.Error("Failed to encode result", logging.WithField("error", err.Error()))
		os.Exit(1)
	}
}
