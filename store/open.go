package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/foldline/market-ledger/config"
)

// Open builds a Store from configuration: PostgreSQL when DATABASE_URL
// is set (optionally wrapped with the Redis read-through cache), the
// in-memory store otherwise. The returned cleanup function closes any
// connections that were opened.
func Open(ctx context.Context, cfg *config.Config) (Store, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URL not set, using in-memory store (data will not persist)")
		return NewMemoryStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	var cleanup []func()
	cleanup = append(cleanup, pool.Close)

	var st Store = NewPostgresStore(pool)
	slog.Info("connected to PostgreSQL")

	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		rdb := redis.NewClient(opt)
		cleanup = append(cleanup, func() { rdb.Close() })
		st = NewCachedStore(st, rdb, cfg.CacheTTL)
		slog.Info("Redis cache enabled", "ttl", cfg.CacheTTL)
	}

	return st, func() {
		for _, fn := range cleanup {
			fn()
		}
	}, nil
}
