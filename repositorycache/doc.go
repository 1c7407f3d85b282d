// Package repositorycache decorates a genericrepo.Store with a read-through
// cache.
//
// Only reads that return plain values are cached:
//
//   - Count, keyed by the filter map and the base criteria.
//   - FilterOptions, one entry per store.
//
// Query and Get pass through. They return aggregates tracked by the
// repository's seen set, and a cached aggregate would be a second in-memory
// copy of the same row.
//
// Add, Persist and PersistAll delegate to the base store and, when the write
// succeeds, drop every entry of the store's namespace. Backends implementing
// cache.PrefixInvalidator drop the namespace in one call; otherwise the keys
// read through this decorator are deleted one by one. A failed invalidation is
// logged and never fails the write.
//
//	svc, _ := cache.NewCacheService(cache.DefaultConfig())
//	store := repositorycache.New[*recipes.Recipe](recipeRepo, svc,
//		repositorycache.WithLogger(logger),
//	)
//	n, err := store.Count(ctx, filters.Filters{"difficulty_gte": 3})
//
// The namespace defaults to the snake_case name of the entity type, "recipe"
// for *recipes.Recipe. Use WithNamespace when two stores share an entity type.
package repositorycache
