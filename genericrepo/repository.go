package genericrepo

import (
	"context"
	"fmt"
	"sort"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-query/filters"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"go.uber.org/zap"
)

// TagFacetPrefix prefixes the FilterOptions entries built from the tag relation.
const TagFacetPrefix = "tag:"

// Repository is the generic, filter driven repository of one aggregate.
type Repository[D Entity, R any] struct {
	db      bun.IDB
	dialect dialect.Name
	cfg     Config[D, R]
	tags    *filters.TagEngine
	seen    *seenSet[D]
	opts    options
	logger  *zap.Logger
}

var _ Store[Entity] = (*Repository[Entity, struct{}])(nil)

// New validates cfg and returns a repository reading and writing through db.
func New[D Entity, R any](db bun.IDB, cfg Config[D, R], opts ...Option) (*Repository[D, R], error) {
	if db == nil {
		return nil, fmt.Errorf("genericrepo: nil database")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Repository[D, R]{
		db:      db,
		dialect: db.Dialect().Name(),
		cfg:     cfg,
		seen:    newSeenSet[D](),
		opts:    o,
		logger:  o.logger.With(zap.String("table", cfg.Registry.Root().Table)),
	}
	if cfg.Tags != nil {
		r.tags = filters.NewTagEngine(*cfg.Tags)
	}
	return r, nil
}

// Registry returns the filter registry the repository validates against.
func (r *Repository[D, R]) Registry() *filters.Registry {
	return r.cfg.Registry
}

// Seen reports whether entity was returned or added by this repository.
func (r *Repository[D, R]) Seen(entity D) bool {
	return r.seen.has(entity)
}

func (r *Repository[D, R]) table() string {
	return r.cfg.Registry.Root().Table
}

func (r *Repository[D, R]) parse(f filters.Filters) (*filters.Request, error) {
	return r.cfg.Registry.Parse(f, r.tags != nil)
}

// Query returns the entities matching f. base, when given, replaces the
// default SELECT of every root column as the starting statement. Every key of
// f is validated before the database is touched.
func (r *Repository[D, R]) Query(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) ([]D, error) {
	defer r.opts.metrics.observe(r.table(), "query", time.Now())

	req, err := r.parse(f)
	if err != nil {
		return nil, err
	}

	var rows []*R
	q := r.db.NewSelect().Model(&rows)
	for _, criteria := range base {
		q = criteria(q)
	}
	if q, err = r.build(q, req, withPaging); err != nil {
		return nil, err
	}
	for _, rel := range r.cfg.Relations {
		q = q.Relation(rel)
	}

	r.debugSQL("query", q)
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("%s: query: %w", r.table(), err)
	}
	r.opts.metrics.returned(r.table(), len(rows))
	return r.materialize(ctx, rows)
}

// Get returns the live entity with the given id.
func (r *Repository[D, R]) Get(ctx context.Context, id string) (D, error) {
	defer r.opts.metrics.observe(r.table(), "get", time.Now())

	var zero D
	root := r.cfg.Registry.Root()

	var rows []*R
	q := r.db.NewSelect().Model(&rows).
		Where("? = ?", bun.Ident(root.Qualified(r.cfg.IDColumn)), id)
	if r.cfg.SoftDeleteColumn != "" {
		q = q.Where("? = ?", bun.Ident(root.Qualified(r.cfg.SoftDeleteColumn)), false)
	}
	for _, rel := range r.cfg.Relations {
		q = q.Relation(rel)
	}

	r.debugSQL("get", q)
	if err := q.Scan(ctx); err != nil {
		return zero, fmt.Errorf("%s: get %q: %w", r.table(), id, err)
	}
	switch len(rows) {
	case 0:
		return zero, &NotFoundError{Table: r.table(), ID: id}
	case 1:
	default:
		return zero, &AmbiguousResultError{Table: r.table(), ID: id, Count: len(rows)}
	}

	entities, err := r.materialize(ctx, rows)
	if err != nil {
		return zero, err
	}
	return entities[0], nil
}

// Count returns the number of distinct root rows matching f. skip, limit and
// sort are validated but ignored.
func (r *Repository[D, R]) Count(ctx context.Context, f filters.Filters, base ...repository.SelectCriteria) (int, error) {
	defer r.opts.metrics.observe(r.table(), "count", time.Now())

	req, err := r.parse(f)
	if err != nil {
		return 0, err
	}

	root := r.cfg.Registry.Root()
	inner := r.db.NewSelect().Model((*R)(nil)).
		ColumnExpr("?", bun.Ident(root.Qualified(r.cfg.IDColumn)))
	for _, criteria := range base {
		inner = criteria(inner)
	}
	if inner, err = r.build(inner, req, withoutPaging); err != nil {
		return 0, err
	}

	var n int
	q := r.db.NewSelect().TableExpr("(?) AS counted", inner).ColumnExpr("count(*)")
	r.debugSQL("count", q)
	if err := q.Scan(ctx, &n); err != nil {
		return 0, fmt.Errorf("%s: count: %w", r.table(), err)
	}
	return n, nil
}

// FilterOptions lists the distinct non-null values of every declared facet,
// plus one "tag:<key>" entry per tag key in use by the aggregate.
func (r *Repository[D, R]) FilterOptions(ctx context.Context) (map[string][]string, error) {
	defer r.opts.metrics.observe(r.table(), "filter_options", time.Now())

	out := make(map[string][]string)
	root := r.cfg.Registry.Root()

	for _, b := range r.cfg.Registry.FacetBindings() {
		col := bun.Ident(b.Qualified())
		q := r.db.NewSelect().
			TableExpr("? AS ?", bun.Ident(root.Table), bun.Ident(root.Alias)).
			ColumnExpr("CAST(? AS TEXT)", col).
			Distinct().
			Where("? IS NOT NULL", col).
			OrderExpr("1")
		// Joined facets only report values a live root row reaches.
		if b.Mapper != root {
			q, _ = filters.NewJoinManager().HandleJoins(q, b.Mapper.Joins)
		}
		if r.cfg.SoftDeleteColumn != "" {
			q = q.Where("? = ?", bun.Ident(root.Qualified(r.cfg.SoftDeleteColumn)), false)
		}

		var values []string
		r.debugSQL("filter_options", q)
		if err := q.Scan(ctx, &values); err != nil {
			return nil, fmt.Errorf("%s: options for %s: %w", r.table(), b.Key, err)
		}
		out[b.Key] = values
	}

	if r.tags != nil {
		tags, err := tagFacets(ctx, r.db, r.tags.Schema().Type)
		if err != nil {
			return nil, fmt.Errorf("%s: tag options: %w", r.table(), err)
		}
		for key, values := range tags {
			out[TagFacetPrefix+key] = values
		}
	}
	return out, nil
}

// FacetKeys returns the keys FilterOptions reports on, sorted. Tag facets are
// data dependent and not included.
func (r *Repository[D, R]) FacetKeys() []string {
	var keys []string
	for _, b := range r.cfg.Registry.FacetBindings() {
		keys = append(keys, b.Key)
	}
	sort.Strings(keys)
	return keys
}

func (r *Repository[D, R]) materialize(ctx context.Context, rows []*R) ([]D, error) {
	if r.cfg.AfterScan != nil && len(rows) > 0 {
		if err := r.cfg.AfterScan(ctx, r.db, rows); err != nil {
			return nil, fmt.Errorf("%s: after scan: %w", r.table(), err)
		}
	}

	out := make([]D, 0, len(rows))
	for _, row := range rows {
		entity, err := r.cfg.FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: map row: %w", r.table(), err)
		}
		r.seen.add(entity)
		out = append(out, entity)
	}
	return out, nil
}

func (r *Repository[D, R]) debugSQL(op string, q *bun.SelectQuery) {
	if ce := r.logger.Check(zap.DebugLevel, "repository statement"); ce != nil {
		ce.Write(zap.String("op", op), zap.String("sql", q.String()))
	}
}
