package entitycache

import (
	"fmt"

	"go.uber.org/zap"
)

type invalidator interface {
	Invalidate()
	Computed() bool
}

// Set groups the views of one aggregate type under a closed enumeration K.
// Each aggregate declares its own K, so asking one aggregate to invalidate
// another aggregate's view does not compile.
type Set[K comparable] struct {
	views  map[K]invalidator
	order  []K
	logger *zap.Logger
}

// NewSet returns an empty set. A nil logger discards warnings.
func NewSet[K comparable](logger *zap.Logger) *Set[K] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set[K]{
		views:  make(map[K]invalidator),
		logger: logger,
	}
}

// Register adds a view under key and returns it. Registering a key twice
// panics: views are declared once, at construction.
func Register[K comparable, T any](s *Set[K], key K, compute func() T) *Lazy[T] {
	if _, ok := s.views[key]; ok {
		panic(fmt.Sprintf("entitycache: view %v registered twice", key))
	}
	l := NewLazy(compute)
	s.views[key] = l
	s.order = append(s.order, key)
	return l
}

// Invalidate drops the named views. A key of the right type that was never
// registered is logged and skipped.
func (s *Set[K]) Invalidate(keys ...K) {
	for _, key := range keys {
		v, ok := s.views[key]
		if !ok {
			s.logger.Warn("entitycache: invalidating unregistered view",
				zap.String("view", fmt.Sprint(key)),
			)
			continue
		}
		v.Invalidate()
	}
}

// InvalidateAll drops every view. Generic multi-property updates use it when
// they cannot tell which views their changes touch.
func (s *Set[K]) InvalidateAll() {
	for _, key := range s.order {
		s.views[key].Invalidate()
	}
}

// Computed reports whether the view registered under key holds a value.
func (s *Set[K]) Computed(key K) bool {
	v, ok := s.views[key]
	return ok && v.Computed()
}

// Keys returns the registered keys in registration order.
func (s *Set[K]) Keys() []K {
	return append([]K(nil), s.order...)
}
