package cache

import (
	"fmt"
	"time"

	"github.com/goliatone/go-repository-query/internal/cacheinfra"
)

// Backend selects the CacheService implementation.
type Backend string

const (
	BackendSturdyc Backend = "sturdyc"
	BackendRedis   Backend = "redis"
)

// Config selects and sizes a cache backend.
type Config struct {
	Backend              Backend
	Capacity             int
	NumShards            int
	TTL                  time.Duration
	EvictionPercentage   int
	EarlyRefresh         *EarlyRefreshConfig
	MissingRecordStorage bool
	EvictionInterval     time.Duration
	Redis                RedisConfig
}

// EarlyRefreshConfig mirrors the sturdyc early refresh options.
type EarlyRefreshConfig struct {
	MinAsyncRefreshTime time.Duration
	MaxAsyncRefreshTime time.Duration
	SyncRefreshTime     time.Duration
	RetryBaseDelay      time.Duration
}

// RedisConfig is used when Backend is BackendRedis. TTL is shared with the
// in-process backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// DefaultConfig returns an in-process cache.
func DefaultConfig() Config {
	cfg := fromSturdyc(cacheinfra.DefaultConfig())
	cfg.Backend = BackendSturdyc
	return cfg
}

// Validate checks the settings of the selected backend.
func (c Config) Validate() error {
	switch c.backend() {
	case BackendSturdyc:
		return c.toSturdyc().Validate()
	case BackendRedis:
		return c.toRedis().Validate()
	}
	return &cacheinfra.ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
}

// NewCacheService builds the backend named by cfg.Backend.
func NewCacheService(cfg Config) (CacheService, error) {
	switch cfg.backend() {
	case BackendSturdyc:
		return cacheinfra.NewSturdycService(cfg.toSturdyc())
	case BackendRedis:
		return cacheinfra.NewRedisService(cfg.toRedis())
	}
	return nil, cfg.Validate()
}

func (c Config) backend() Backend {
	if c.Backend == "" {
		return BackendSturdyc
	}
	return c.Backend
}

func (c Config) toSturdyc() cacheinfra.Config {
	var early *cacheinfra.EarlyRefreshConfig
	if c.EarlyRefresh != nil {
		early = &cacheinfra.EarlyRefreshConfig{
			MinAsyncRefreshTime: c.EarlyRefresh.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: c.EarlyRefresh.MaxAsyncRefreshTime,
			SyncRefreshTime:     c.EarlyRefresh.SyncRefreshTime,
			RetryBaseDelay:      c.EarlyRefresh.RetryBaseDelay,
		}
	}
	return cacheinfra.Config{
		Capacity:             c.Capacity,
		NumShards:            c.NumShards,
		TTL:                  c.TTL,
		EvictionPercentage:   c.EvictionPercentage,
		EarlyRefresh:         early,
		MissingRecordStorage: c.MissingRecordStorage,
		EvictionInterval:     c.EvictionInterval,
	}
}

func (c Config) toRedis() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		TTL:      c.TTL,
	}
}

func fromSturdyc(cfg cacheinfra.Config) Config {
	out := Config{
		Capacity:             cfg.Capacity,
		NumShards:            cfg.NumShards,
		TTL:                  cfg.TTL,
		EvictionPercentage:   cfg.EvictionPercentage,
		MissingRecordStorage: cfg.MissingRecordStorage,
		EvictionInterval:     cfg.EvictionInterval,
	}
	if r := cfg.EarlyRefresh; r != nil {
		out.EarlyRefresh = &EarlyRefreshConfig{
			MinAsyncRefreshTime: r.MinAsyncRefreshTime,
			MaxAsyncRefreshTime: r.MaxAsyncRefreshTime,
			SyncRefreshTime:     r.SyncRefreshTime,
			RetryBaseDelay:      r.RetryBaseDelay,
		}
	}
	return out
}
