package genericrepo

import (
	"context"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-query/filters"
)

// Entity is the aggregate root a repository loads and persists.
type Entity interface {
	EntityID() string
}

// Versioned entities take part in optimistic concurrency control. The entity
// owns its counter: every state-changing call bumps it by exactly one.
type Versioned interface {
	Version() int64
}

// Discardable entities are soft deleted.
type Discardable interface {
	Discarded() bool
	SetDiscarded(discarded bool)
}

// Store is the aggregate facing surface of a Repository. Decorators such as
// the read-through cache wrap a Store.
type Store[D Entity] interface {
	Query(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) ([]D, error)
	Get(ctx context.Context, id string) (D, error)
	Count(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) (int, error)
	FilterOptions(ctx context.Context) (map[string][]string, error)
	Add(ctx context.Context, entity D) error
	Persist(ctx context.Context, entity D) error
	PersistAll(ctx context.Context, entities []D) error
}
