package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/goliatone/go-repository-query/internal/cacheinfra"
)

type stubCacheService struct {
	result any
	err    error
	keys   []string
}

func (m *stubCacheService) GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error) {
	m.keys = append(m.keys, key)
	return m.result, m.err
}

func (m *stubCacheService) Delete(ctx context.Context, key string) error {
	return nil
}

func TestGetOrFetch_TypedResult(t *testing.T) {
	stub := &stubCacheService{result: 12}
	got, err := GetOrFetch(context.Background(), stub, "recipes::Count", func(context.Context) (int, error) {
		return 0, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if got != 12 {
		t.Errorf("expected 12, got %d", got)
	}
	if len(stub.keys) != 1 || stub.keys[0] != "recipes::Count" {
		t.Errorf("unexpected keys %v", stub.keys)
	}
}

func TestGetOrFetch_NilResultIsZero(t *testing.T) {
	type facet interface{ Key() string }

	got, err := GetOrFetch[facet](context.Background(), &stubCacheService{}, "k", func(context.Context) (facet, error) {
		return nil, nil
	})
	if err != nil || got != nil {
		t.Fatalf("expected zero value, got %v, %v", got, err)
	}
}

func TestGetOrFetch_TypeMismatch(t *testing.T) {
	stub := &stubCacheService{result: "twelve"}
	_, err := GetOrFetch(context.Background(), stub, "k", func(context.Context) (int, error) {
		return 0, nil
	})
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if mismatch.Key != "k" {
		t.Errorf("unexpected key %q", mismatch.Key)
	}
}

func TestGetOrFetch_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	_, err := GetOrFetch(context.Background(), &stubCacheService{err: boom}, "k", func(context.Context) (int, error) {
		return 0, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestNewCacheService_Backends(t *testing.T) {
	svc, err := NewCacheService(DefaultConfig())
	if err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, ok := svc.(PrefixInvalidator); !ok {
		t.Error("expected sturdyc backend to support prefix invalidation")
	}

	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.Redis = RedisConfig{Addr: "localhost:6379", Prefix: "test:"}
	svc, err = NewCacheService(cfg)
	if err != nil {
		t.Fatalf("redis backend: %v", err)
	}
	if _, ok := svc.(*cacheinfra.RedisService); !ok {
		t.Errorf("expected redis service, got %T", svc)
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memcached"
	var cfgErr *cacheinfra.ConfigError
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "Backend" {
		t.Fatalf("expected Backend error, got %v", err)
	}
	if _, err := NewCacheService(cfg); err == nil {
		t.Fatal("expected unknown backend to fail")
	}

	cfg = DefaultConfig()
	cfg.Backend = BackendRedis
	if err := cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != "Addr" {
		t.Fatalf("expected Addr error, got %v", err)
	}

	cfg = DefaultConfig()
	cfg.TTL = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected zero TTL to fail")
	}

	cfg = DefaultConfig()
	cfg.Backend = ""
	cfg.TTL = time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty backend should default to sturdyc: %v", err)
	}
}
