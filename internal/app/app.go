// Package app wires storage, cache, catalog client and the resolution service
// from configuration for the binaries.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"partsbot/internal/cache"
	"partsbot/internal/catalog"
	"partsbot/internal/collectors"
	"partsbot/internal/config"
	"partsbot/internal/pipeline"
	"partsbot/internal/storage"
)

type App struct {
	DB      *storage.DB
	Cache   cache.Store
	Service *pipeline.Service
}

// Open builds the full stack. Redis is used when CACHE_REDIS_ADDR is set; an
// unreachable Redis degrades to the in-memory cache.
func Open(ctx context.Context, cfg config.Config, log zerolog.Logger) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, err
	}
	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	store := openCache(ctx, cfg, log)
	client := catalog.NewClient(cfg, store)
	svc, err := pipeline.NewService(cfg, pipeline.Deps{
		Catalog:  client,
		Fetcher:  collectors.NewFetcher(cfg),
		Metadata: db,
		Recorder: db,
	}, log)
	if err != nil {
		_ = store.Close()
		_ = db.Close()
		return nil, err
	}
	return &App{DB: db, Cache: store, Service: svc}, nil
}

func (a *App) Close() error {
	_ = a.Cache.Close()
	return a.DB.Close()
}

func openCache(ctx context.Context, cfg config.Config, log zerolog.Logger) cache.Store {
	if cfg.CacheRedisAddr == "" {
		return cache.NewMemory()
	}
	r, err := cache.NewRedis(ctx, cache.RedisConfig{
		Addr:     cfg.CacheRedisAddr,
		Password: cfg.CacheRedisPassword,
		DB:       cfg.CacheRedisDB,
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.CacheRedisAddr).Msg("redis unavailable, using in-memory cache")
		return cache.NewMemory()
	}
	return r
}
