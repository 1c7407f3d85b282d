// Package cache defines the read-through contract used by the repositorycache
// decorator and the key serializer that turns filter maps into cache keys.
//
// Two backends are available through NewCacheService:
//
//   - sturdyc: an in-process sharded cache, the default.
//   - redis: a shared cache storing msgpack payloads, for several processes
//     serving the same database.
//
// Typical use:
//
//	svc, err := cache.NewCacheService(cache.DefaultConfig())
//	keys := cache.NewKeySerializer("recipes")
//	key := keys.SerializeKey("Count", filters.Filters{"difficulty_gte": 3})
//	n, err := cache.GetOrFetch(ctx, svc, key, func(ctx context.Context) (int, error) {
//		return store.Count(ctx, filters.Filters{"difficulty_gte": 3})
//	})
//
// # Keys
//
// Keys are namespace::method::arg... Maps are rendered with sorted entries and
// times in UTC, so equal filter maps share a key. Functions render as their
// code pointer, which is only stable within one process; do not pass closures
// as arguments when the redis backend is shared between processes.
//
// Backends that implement PrefixInvalidator can drop a whole namespace, which
// is how the decorator invalidates after a write.
package cache
