// Package config loads the persistence settings for the market ledger
// from the environment, with optional .env file support.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings for the persistence collaborator.
// Zero values select the in-memory store with no cache.
type Config struct {
	// DatabaseURL is the PostgreSQL connection string. Empty selects the
	// in-memory store.
	DatabaseURL string

	// RedisURL enables the read-through cache when set.
	RedisURL string

	// CacheTTL bounds how long cached market/user rows live.
	CacheTTL time.Duration
}

// DefaultCacheTTL is used when CACHE_TTL is unset.
const DefaultCacheTTL = 30 * time.Second

// Load reads configuration from the environment. A .env file in the
// working directory is merged in first when present (silently ignored
// if missing).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		RedisURL:    os.Getenv("REDIS_URL"),
		CacheTTL:    DefaultCacheTTL,
	}

	if v := os.Getenv("CACHE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CACHE_TTL %q: %w", v, err)
		}
		cfg.CacheTTL = ttl
	}

	return cfg, nil
}
