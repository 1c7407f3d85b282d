package cacheinfra

import (
	"context"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// fetcher is a validated func(context.Context) (T, error) of unknown T.
type fetcher struct {
	fn  reflect.Value
	out reflect.Type
}

// newFetcher checks that fetchFn has the shape func(context.Context) (T, error).
// Backends call it before touching the cache so a malformed callback never
// reaches the client.
func newFetcher(fetchFn any) (fetcher, error) {
	if fetchFn == nil {
		return fetcher{}, &ConfigError{Field: "fetchFn", Message: "cannot be nil"}
	}
	v := reflect.ValueOf(fetchFn)
	t := v.Type()
	switch {
	case t.Kind() != reflect.Func:
		return fetcher{}, &ConfigError{Field: "fetchFn", Message: "must be a function"}
	case t.NumIn() != 1 || t.NumOut() != 2:
		return fetcher{}, &ConfigError{Field: "fetchFn", Message: "must have signature func(context.Context) (T, error)"}
	case !t.In(0).Implements(contextType):
		return fetcher{}, &ConfigError{Field: "fetchFn", Message: "first parameter must be context.Context"}
	case !t.Out(1).Implements(errorType):
		return fetcher{}, &ConfigError{Field: "fetchFn", Message: "second return value must be error"}
	}
	return fetcher{fn: v, out: t.Out(0)}, nil
}

func (f fetcher) call(ctx context.Context) (any, error) {
	if fn, ok := f.fn.Interface().(func(context.Context) (any, error)); ok {
		return fn(ctx)
	}

	results := f.fn.Call([]reflect.Value{reflect.ValueOf(ctx)})

	var value any
	if r := results[0]; r.IsValid() && r.CanInterface() {
		value = r.Interface()
	}
	if e := results[1]; !e.IsNil() {
		return value, e.Interface().(error)
	}
	return value, nil
}

// zero returns a pointer to a new value of the fetch result type, for decoders.
func (f fetcher) zero() reflect.Value {
	return reflect.New(f.out)
}
