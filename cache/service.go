package cache

import "context"

// KeySerializer builds a cache key from a method name and its arguments. Equal
// arguments must produce equal keys regardless of map iteration order.
type KeySerializer interface {
	SerializeKey(method string, args ...any) string
}

// FetchFn loads a value from the source of truth on a miss.
type FetchFn[T any] func(ctx context.Context) (T, error)

// CacheService is the read-through contract the repository decorator relies
// on. fetchFn must be a func(context.Context) (T, error).
type CacheService interface {
	GetOrFetch(ctx context.Context, key string, fetchFn any) (any, error)
	Delete(ctx context.Context, key string) error
}

// PrefixInvalidator is implemented by backends that can drop a whole key
// namespace at once.
type PrefixInvalidator interface {
	DeleteByPrefix(ctx context.Context, prefix string) error
}

// GetOrFetch is the typed form of CacheService.GetOrFetch. A nil cached value
// yields the zero T.
func GetOrFetch[T any](ctx context.Context, service CacheService, key string, fetchFn FetchFn[T]) (T, error) {
	var zero T
	result, err := service.GetOrFetch(ctx, key, fetchFn)
	if err != nil {
		return zero, err
	}
	if result == nil {
		return zero, nil
	}
	typed, ok := result.(T)
	if !ok {
		return zero, &TypeMismatchError{Key: key, Got: result}
	}
	return typed, nil
}

// TypeMismatchError reports a cached value whose type differs from the one
// the caller asked for, typically two call sites sharing a key.
type TypeMismatchError struct {
	Key string
	Got any
}

func (e *TypeMismatchError) Error() string {
	return "cache: value under " + e.Key + " has unexpected type " + typeName(e.Got)
}
