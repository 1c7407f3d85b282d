package repositorycache

import (
	"context"
	"strings"
	"sync"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-query/cache"
	"github.com/goliatone/go-repository-query/filters"
	"github.com/goliatone/go-repository-query/genericrepo"
	"go.uber.org/zap"
)

var _ genericrepo.Store[genericrepo.Entity] = (*CachedStore[genericrepo.Entity])(nil)

// Cached read operations. Keys are namespace::method::args.
const (
	methodCount         = "Count"
	methodFilterOptions = "FilterOptions"
)

// CachedStore decorates a Store with a read-through cache for the aggregate
// free reads, Count and FilterOptions. Query and Get always reach the base
// store: they return tracked aggregates whose identity must stay unique.
// Every successful write drops the whole namespace, then the namespaces of
// its dependents.
type CachedStore[D genericrepo.Entity] struct {
	base        genericrepo.Store[D]
	cache       cache.CacheService
	keys        cache.KeySerializer
	namespace   string
	keyRegistry *sync.Map
	dependents  []Invalidator
	logger      *zap.Logger
}

// Invalidator drops every cached entry of one namespace.
type Invalidator interface {
	Invalidate(ctx context.Context)
}

// Option configures a CachedStore.
type Option func(*settings)

type settings struct {
	namespace  string
	serializer cache.KeySerializer
	dependents []Invalidator
	logger     *zap.Logger
}

// WithNamespace overrides the namespace derived from the entity type.
func WithNamespace(ns string) Option {
	return func(s *settings) { s.namespace = ns }
}

// WithKeySerializer replaces the namespaced default serializer. Its keys must
// start with cache.Prefix(namespace) for invalidation to reach them.
func WithKeySerializer(ks cache.KeySerializer) Option {
	return func(s *settings) { s.serializer = ks }
}

// WithDependents registers stores whose cached reads depend on this store's
// rows, such as a store filtering by a joined column of this table. Writes
// here invalidate them too.
func WithDependents(deps ...Invalidator) Option {
	return func(s *settings) { s.dependents = append(s.dependents, deps...) }
}

// WithLogger sets the logger used to report failed invalidations.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}

// New wraps base.
func New[D genericrepo.Entity](base genericrepo.Store[D], svc cache.CacheService, opts ...Option) *CachedStore[D] {
	s := settings{namespace: namespaceOf[D]()}
	for _, opt := range opts {
		opt(&s)
	}
	if s.serializer == nil {
		s.serializer = cache.NewKeySerializer(s.namespace)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return &CachedStore[D]{
		base:        base,
		cache:       svc,
		keys:        s.serializer,
		namespace:   s.namespace,
		keyRegistry: &sync.Map{},
		dependents:  s.dependents,
		logger:      s.logger,
	}
}

// Namespace returns the key namespace of the store.
func (c *CachedStore[D]) Namespace() string {
	return c.namespace
}

// Query passes through.
func (c *CachedStore[D]) Query(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) ([]D, error) {
	return c.base.Query(ctx, f, base...)
}

// Get passes through.
func (c *CachedStore[D]) Get(ctx context.Context, id string) (D, error) {
	return c.base.Get(ctx, id)
}

// Count is cached per filter map and base criteria. Base criteria are keyed by
// function identity, so pass package level criteria rather than fresh closures
// to share entries.
func (c *CachedStore[D]) Count(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) (int, error) {
	key := c.keys.SerializeKey(methodCount, map[string]any(f), base)
	c.trackKey(key)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (int, error) {
		return c.base.Count(ctx, f, base...)
	})
}

// FilterOptions is cached once per namespace.
func (c *CachedStore[D]) FilterOptions(ctx context.Context) (map[string][]string, error) {
	key := c.keys.SerializeKey(methodFilterOptions)
	c.trackKey(key)
	return cache.GetOrFetch(ctx, c.cache, key, func(ctx context.Context) (map[string][]string, error) {
		return c.base.FilterOptions(ctx)
	})
}

// Add writes through and invalidates on success.
func (c *CachedStore[D]) Add(ctx context.Context, entity D) error {
	if err := c.base.Add(ctx, entity); err != nil {
		return err
	}
	c.invalidateWrite(ctx, "Add")
	return nil
}

// Persist writes through and invalidates on success.
func (c *CachedStore[D]) Persist(ctx context.Context, entity D) error {
	if err := c.base.Persist(ctx, entity); err != nil {
		return err
	}
	c.invalidateWrite(ctx, "Persist")
	return nil
}

// PersistAll writes through and invalidates on success.
func (c *CachedStore[D]) PersistAll(ctx context.Context, entities []D) error {
	if err := c.base.PersistAll(ctx, entities); err != nil {
		return err
	}
	c.invalidateWrite(ctx, "PersistAll")
	return nil
}

// Invalidate drops every cached entry of the namespace. Dependents are left
// alone.
func (c *CachedStore[D]) Invalidate(ctx context.Context) {
	c.invalidate(ctx, "Invalidate")
}

func (c *CachedStore[D]) invalidateWrite(ctx context.Context, op string) {
	c.invalidate(ctx, op)
	for _, dep := range c.dependents {
		dep.Invalidate(ctx)
	}
}

func (c *CachedStore[D]) trackKey(key string) {
	c.keyRegistry.Store(key, struct{}{})
}

// invalidate prefers the backend's prefix delete, which also reaches entries
// written by other processes sharing a redis backend, and falls back to the
// keys this process tracked. Failures are logged: the write already committed.
func (c *CachedStore[D]) invalidate(ctx context.Context, op string) {
	prefix := cache.Prefix(c.namespace)

	if p, ok := c.cache.(cache.PrefixInvalidator); ok {
		if err := p.DeleteByPrefix(ctx, prefix); err != nil {
			c.logger.Warn("repositorycache: prefix invalidation failed",
				zap.String("namespace", c.namespace),
				zap.String("op", op),
				zap.Error(err),
			)
		}
		c.keyRegistry.Range(func(k, _ any) bool {
			c.keyRegistry.Delete(k)
			return true
		})
		return
	}

	c.keyRegistry.Range(func(k, _ any) bool {
		key := k.(string)
		if !strings.HasPrefix(key, prefix) {
			return true
		}
		if err := c.cache.Delete(ctx, key); err != nil {
			c.logger.Warn("repositorycache: key invalidation failed",
				zap.String("key", key),
				zap.String("op", op),
				zap.Error(err),
			)
			return true
		}
		c.keyRegistry.Delete(k)
		return true
	})
}
