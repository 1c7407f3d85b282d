package genericrepo

import (
	"context"
	"errors"
	"time"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// DefaultChildTimeout bounds concurrent child mapping.
const DefaultChildTimeout = 5 * time.Second

// Config describes one aggregate. R is the bun model of the root table.
type Config[D Entity, R any] struct {
	Registry *filters.Registry
	// Tags enables the tags and tags_not_exists filter keys.
	Tags *filters.TagSchema

	// IDColumn defaults to "id".
	IDColumn string
	// SoftDeleteColumn, when set, hides rows flagged true from reads.
	SoftDeleteColumn string
	// VersionColumn, when set, makes updates compare the stored version.
	VersionColumn string

	ToRow   func(entity D) (*R, error)
	FromRow func(row *R) (D, error)

	// Relations are bun relations loaded with every read.
	Relations []string
	// AfterScan runs on the scanned rows before FromRow, e.g. to load tags.
	AfterScan func(ctx context.Context, db bun.IDB, rows []*R) error
	// Children map an entity to writes that follow the root row.
	Children []ChildMapper[D]
}

func (c *Config[D, R]) validate() error {
	switch {
	case c.Registry == nil:
		return errors.New("genericrepo: config needs a filter registry")
	case c.ToRow == nil || c.FromRow == nil:
		return errors.New("genericrepo: config needs ToRow and FromRow")
	}
	if c.IDColumn == "" {
		c.IDColumn = "id"
	}
	return nil
}

// Option configures a Repository.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	metrics      *Metrics
	childTimeout time.Duration
	defaultLimit int
}

func defaultOptions() options {
	return options{
		logger:       zap.NewNop(),
		childTimeout: DefaultChildTimeout,
	}
}

// WithLogger sets the logger. Builds log at debug, conflicts and timeouts at warn.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics records query and write metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithChildTimeout bounds child mapping. Non-positive values keep the default.
func WithChildTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.childTimeout = d
		}
	}
}

// WithDefaultLimit caps queries that carry no limit key. Zero means unlimited.
func WithDefaultLimit(n int) Option {
	return func(o *options) {
		if n >= 0 {
			o.defaultLimit = n
		}
	}
}
