// Package entitycache holds derived, read-only views computed lazily from an
// entity's own mutable collections.
//
// A view is UNCOMPUTED until first read, COMPUTED until invalidated, and is
// recomputed on the next read after that. Entities invalidate views
// synchronously inside the method that mutated the source collection, so a
// read never observes a stale view.
//
// Views are not safe for concurrent mutation; an aggregate has one writer.
package entitycache

// Lazy is a single derived view.
type Lazy[T any] struct {
	compute  func() T
	value    T
	computed bool
}

// NewLazy returns an uncomputed view backed by compute.
func NewLazy[T any](compute func() T) *Lazy[T] {
	return &Lazy[T]{compute: compute}
}

// Get returns the view, computing it if needed.
func (l *Lazy[T]) Get() T {
	if !l.computed {
		l.value = l.compute()
		l.computed = true
	}
	return l.value
}

// Invalidate drops the computed value.
func (l *Lazy[T]) Invalidate() {
	var zero T
	l.value = zero
	l.computed = false
}

// Computed reports whether the view currently holds a value.
func (l *Lazy[T]) Computed() bool {
	return l.computed
}
