package cacheinfra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"
)

// RedisConfig configures the shared redis backend.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// Prefix namespaces every key this process writes.
	Prefix string
	// TTL is the lifetime of an entry. Must be greater than 0.
	TTL time.Duration
	// ScanCount is the COUNT hint of the SCAN issued by DeleteByPrefix.
	ScanCount int64
}

// Validate reports the first invalid field.
func (c RedisConfig) Validate() error {
	switch {
	case c.Addr == "":
		return &ConfigError{Field: "Addr", Message: "cannot be empty"}
	case c.TTL <= 0:
		return &ConfigError{Field: "TTL", Message: "must be greater than 0"}
	case c.DB < 0:
		return &ConfigError{Field: "DB", Message: "must be non-negative"}
	case c.ScanCount < 0:
		return &ConfigError{Field: "ScanCount", Message: "must be non-negative"}
	}
	return nil
}

// redisClient is the subset of *redis.Client the backend uses.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd
}

// RedisService stores msgpack encoded values in redis. Values decode into the
// result type of the fetch callback, so a hit returns the same Go type a miss
// would.
type RedisService struct {
	client    redisClient
	prefix    string
	ttl       time.Duration
	scanCount int64
	group     singleflight.Group
}

// NewRedisService validates cfg and dials lazily through go-redis.
func NewRedisService(cfg RedisConfig) (*RedisService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return newRedisService(client, cfg), nil
}

func newRedisService(client redisClient, cfg RedisConfig) *RedisService {
	count := cfg.ScanCount
	if count == 0 {
		count = 100
	}
	return &RedisService{
		client:    client,
		prefix:    cfg.Prefix,
		ttl:       cfg.TTL,
		scanCount: count,
	}
}

// GetOrFetch returns the decoded value stored under key, or runs fetchFn, a
// func(context.Context) (T, error), and stores its result. Concurrent misses
// in this process share one fetch.
func (s *RedisService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	f, err := newFetcher(fetchFn)
	if err != nil {
		return nil, err
	}
	full := s.prefix + key

	raw, err := s.client.Get(ctx, full).Bytes()
	switch {
	case err == nil:
		ptr := f.zero()
		if err := msgpack.Unmarshal(raw, ptr.Interface()); err != nil {
			return nil, fmt.Errorf("cacheinfra: decode %q: %w", key, err)
		}
		return ptr.Elem().Interface(), nil
	case !errors.Is(err, redis.Nil):
		return nil, fmt.Errorf("cacheinfra: get %q: %w", key, err)
	}

	value, err, _ := s.group.Do(full, func() (any, error) {
		value, err := f.call(ctx)
		if err != nil {
			return nil, err
		}
		payload, err := msgpack.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("cacheinfra: encode %q: %w", key, err)
		}
		if err := s.client.Set(ctx, full, payload, s.ttl).Err(); err != nil {
			return nil, fmt.Errorf("cacheinfra: set %q: %w", key, err)
		}
		return value, nil
	})
	return value, err
}

// Delete drops key.
func (s *RedisService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("cacheinfra: delete %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix drops every key starting with prefix, walking the keyspace
// with SCAN.
func (s *RedisService) DeleteByPrefix(ctx context.Context, prefix string) error {
	match := escapeGlob(s.prefix+prefix) + "*"
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, match, s.scanCount).Result()
		if err != nil {
			return fmt.Errorf("cacheinfra: scan %q: %w", prefix, err)
		}
		if len(keys) > 0 {
			if err := s.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("cacheinfra: delete prefix %q: %w", prefix, err)
			}
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// escapeGlob quotes the characters SCAN MATCH treats as patterns.
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
