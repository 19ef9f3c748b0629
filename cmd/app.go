package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/cache"
	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/orchestrator"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/ratelimit"
	"github.com/spigell/jobscout/internal/shutdown"
	"github.com/spigell/jobscout/internal/sources"
	_ "github.com/spigell/jobscout/internal/sources/all"
	"github.com/spigell/jobscout/internal/storage"
	"github.com/spigell/jobscout/internal/tracker"
)

const (
	storeBolt     = "bolt"
	storeMemory   = "memory"
	storeRedis    = "redis"
	storePostgres = "postgres"
	dbFile        = "jobscout.db"
	cacheDir      = "cache"
)

// components are the long-lived collaborators of a command. Everything that
// holds a handle is registered in hooks.
type components struct {
	config   *Config
	logger   *zap.Logger
	hooks    *shutdown.Hooks
	db       *storage.DB
	cache    *cache.Cache
	limiter  *ratelimit.Limiter
	tracker  *tracker.Tracker
	fetchers []sources.Fetcher
}

// setup opens the local database and builds the stores the command needs.
// Only a data dir that cannot be used is an error; remote stores that fail to
// connect fall back to local ones with a warning.
func setup(ctx context.Context, config *Config, logger *zap.Logger, hooks *shutdown.Hooks) (*components, error) {
	c := &components{config: config, logger: logger, hooks: hooks}

	db, err := storage.Open(filepath.Join(config.DataDir, dbFile), logger, ratelimit.BucketName, tracker.BucketName)
	if err != nil {
		logger.Warn("local store unavailable, quota and seen records are kept in memory", zap.Error(err))
	} else {
		c.db = db
		hooks.Add("local store", db.Close)
	}

	if !config.Cache.Disabled {
		c.cache, err = cache.New(filepath.Join(config.DataDir, cacheDir), config.Cache.TTL, logger)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}
	}

	rules := ratelimit.ApplyOverrides(ratelimit.DefaultRules(), config.RateLimit.Overrides, logger)
	c.limiter = ratelimit.New(c.limiterStore(ctx), rules, logger)
	hooks.Add("rate limiter", c.limiter.Close)

	c.tracker = tracker.New(c.trackerStore(ctx), logger)
	hooks.Add("tracker", c.tracker.Close)

	return c, nil
}

func (c *components) limiterStore(ctx context.Context) ratelimit.Store {
	switch strings.ToLower(c.config.RateLimit.Store) {
	case storeRedis:
		store, err := ratelimit.NewRedisStore(ctx, c.config.RateLimit.RedisURL)
		if err == nil {
			return store
		}
		c.logger.Warn("redis quota store unavailable, using local store", zap.Error(err))
	case storeMemory:
		return ratelimit.NewMemoryStore()
	}

	if c.db == nil {
		return ratelimit.NewMemoryStore()
	}
	return ratelimit.NewBoltStore(c.db)
}

func (c *components) trackerStore(ctx context.Context) tracker.Store {
	switch strings.ToLower(c.config.Tracker.Store) {
	case storePostgres:
		store, err := tracker.NewPostgresStore(ctx, c.config.Tracker.DatabaseURL)
		if err == nil {
			return store
		}
		c.logger.Warn("postgres seen store unavailable, using local store", zap.Error(err))
	case storeMemory:
		return tracker.NewMemoryStore()
	}

	if c.db == nil {
		return tracker.NewMemoryStore()
	}
	return tracker.NewBoltStore(c.db)
}

// buildFetchers instantiates the configured sources. A source that cannot be
// built is skipped with a warning.
func (c *components) buildFetchers() []sources.Fetcher {
	client := sources.NewClient(c.cache, c.limiter, c.logger, c.config.UserAgent)

	fetchers, errs := sources.Build(c.config.Sources, sources.Deps{
		Client:   client,
		Logger:   c.logger,
		MaxPages: c.config.Fetch.MaxPages,
	})
	for _, err := range errs {
		c.logger.Warn("skipping source", zap.Error(err))
	}

	c.fetchers = fetchers
	return fetchers
}

func (c *components) pipeline(steps []filtering.Filter, onEvent func(orchestrator.Event)) (*pipeline.Pipeline, error) {
	cfg := c.config.Filters.chainConfig()
	if err := filtering.Validate(cfg, steps); err != nil {
		return nil, fmt.Errorf("filters: %w", err)
	}

	orch := orchestrator.New(c.buildFetchers(), orchestrator.Options{
		Workers: c.config.Fetch.Workers,
		Timeout: c.config.Fetch.Timeout,
		OnEvent: onEvent,
	}, c.logger)

	return pipeline.New(orch, c.tracker, c.logger, pipeline.WithFilters(steps, cfg)), nil
}

// backends lists the backend keys of the configured fetchers.
func (c *components) backends() []string {
	backends := make([]string, 0, len(c.fetchers))
	for _, f := range c.fetchers {
		backends = append(backends, f.Backend())
	}
	return backends
}
