package cacheinfra

import (
	"context"
	"errors"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// fakeRedis records calls and keeps values in memory. SCAN returns one key per
// page from the keyspace seen at cursor 0, so DeleteByPrefix has to follow
// the cursor.
type fakeRedis struct {
	mu       sync.Mutex
	data     map[string][]byte
	ttls     map[string]time.Duration
	matches  []string
	snapshot []string
	getErr   error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(string(v), nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.([]byte)
	f.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func (f *fakeRedis) Scan(_ context.Context, cursor uint64, match string, _ int64) *redis.ScanCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.matches = append(f.matches, match)

	if cursor == 0 {
		f.snapshot = f.snapshot[:0]
		for k := range f.data {
			if ok, _ := path.Match(match, k); ok {
				f.snapshot = append(f.snapshot, k)
			}
		}
		sort.Strings(f.snapshot)
	}
	keys := f.snapshot
	if int(cursor) >= len(keys) {
		return redis.NewScanCmdResult(nil, 0, nil)
	}
	next := cursor + 1
	if int(next) >= len(keys) {
		next = 0
	}
	return redis.NewScanCmdResult(keys[cursor:cursor+1], next, nil)
}

type facetOption struct {
	Key    string
	Values []string
}

func newTestRedis(t *testing.T) (*RedisService, *fakeRedis) {
	t.Helper()
	fake := newFakeRedis()
	return newRedisService(fake, RedisConfig{Addr: "fake:6379", Prefix: "app:", TTL: time.Minute}), fake
}

func TestRedisConfig_Validate(t *testing.T) {
	valid := RedisConfig{Addr: "localhost:6379", TTL: time.Minute}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name  string
		cfg   RedisConfig
		field string
	}{
		{"missing addr", RedisConfig{TTL: time.Minute}, "Addr"},
		{"zero ttl", RedisConfig{Addr: "x"}, "TTL"},
		{"negative db", RedisConfig{Addr: "x", TTL: time.Minute, DB: -1}, "DB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfgErr *ConfigError
			if err := tt.cfg.Validate(); !errors.As(err, &cfgErr) || cfgErr.Field != tt.field {
				t.Fatalf("expected ConfigError on %s, got %v", tt.field, err)
			}
		})
	}
}

func TestRedisService_MissStoresEncodedValue(t *testing.T) {
	svc, fake := newTestRedis(t)
	ctx := context.Background()

	want := []facetOption{{Key: "difficulty", Values: []string{"1", "3"}}}
	got, err := svc.GetOrFetch(ctx, "recipes::options", func(context.Context) ([]facetOption, error) {
		return want, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if opts := got.([]facetOption); len(opts) != 1 || opts[0].Key != "difficulty" {
		t.Fatalf("unexpected value %#v", got)
	}

	raw, ok := fake.data["app:recipes::options"]
	if !ok {
		t.Fatal("expected value stored under the prefixed key")
	}
	var decoded []facetOption
	if err := msgpack.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("stored value is not msgpack: %v", err)
	}
	if decoded[0].Values[1] != "3" {
		t.Errorf("unexpected stored payload %#v", decoded)
	}
	if fake.ttls["app:recipes::options"] != time.Minute {
		t.Errorf("expected TTL of one minute, got %v", fake.ttls["app:recipes::options"])
	}
}

func TestRedisService_HitDecodesIntoFetchType(t *testing.T) {
	svc, fake := newTestRedis(t)
	ctx := context.Background()

	payload, err := msgpack.Marshal(int64(12))
	if err != nil {
		t.Fatal(err)
	}
	fake.data["app:recipes::count"] = payload

	got, err := svc.GetOrFetch(ctx, "recipes::count", func(context.Context) (int64, error) {
		t.Fatal("fetch must not run on a hit")
		return 0, nil
	})
	if err != nil {
		t.Fatalf("GetOrFetch: %v", err)
	}
	if got.(int64) != 12 {
		t.Errorf("expected 12, got %v", got)
	}
}

func TestRedisService_FetchErrorIsNotStored(t *testing.T) {
	svc, fake := newTestRedis(t)
	boom := errors.New("boom")

	_, err := svc.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if len(fake.data) != 0 {
		t.Errorf("expected nothing stored, got %v", fake.data)
	}
}

func TestRedisService_GetErrorIsReturned(t *testing.T) {
	svc, fake := newTestRedis(t)
	fake.getErr = errors.New("connection refused")

	_, err := svc.GetOrFetch(context.Background(), "k", func(context.Context) (int, error) {
		return 1, nil
	})
	if err == nil || !errors.Is(err, fake.getErr) {
		t.Fatalf("expected wrapped connection error, got %v", err)
	}
}

func TestRedisService_DeleteByPrefixFollowsCursor(t *testing.T) {
	svc, fake := newTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"app:recipes::a", "app:recipes::b", "app:recipes::c", "app:authors::a", "other:recipes::a"} {
		fake.data[k] = []byte{0xc0}
	}
	if err := svc.DeleteByPrefix(ctx, "recipes::"); err != nil {
		t.Fatalf("DeleteByPrefix: %v", err)
	}

	var left []string
	for k := range fake.data {
		left = append(left, k)
	}
	sort.Strings(left)
	if len(left) != 2 || left[0] != "app:authors::a" || left[1] != "other:recipes::a" {
		t.Errorf("unexpected remaining keys %v", left)
	}
	if len(fake.matches) < 3 {
		t.Errorf("expected SCAN to be paged, got %d calls", len(fake.matches))
	}

	if err := svc.Delete(ctx, "authors::a"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := fake.data["app:authors::a"]; ok {
		t.Error("expected key removed")
	}
}

func TestEscapeGlob(t *testing.T) {
	if got := escapeGlob("a*b?[c]"); got != `a\*b\?\[c\]` {
		t.Errorf("unexpected escape %q", got)
	}
}
