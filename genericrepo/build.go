package genericrepo

import (
	"math"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// page controls whether skip, limit and sort are applied to a build.
type page bool

const (
	withPaging    page = true
	withoutPaging page = false
)

// build applies a validated request to q. The JoinManager lives for this call
// only. Operator errors surface here, before the statement is executed.
func (r *Repository[D, R]) build(q *bun.SelectQuery, req *filters.Request, paging page) (*bun.SelectQuery, error) {
	root := r.cfg.Registry.Root()
	joins := filters.NewJoinManager()

	if r.cfg.SoftDeleteColumn != "" {
		q = q.Where("? = ?", bun.Ident(root.Qualified(r.cfg.SoftDeleteColumn)), false)
	}

	for _, m := range r.cfg.Registry.Mappers() {
		refs := req.KeysFor(m)
		if len(refs) == 0 {
			continue
		}
		if len(m.Joins) > 0 {
			q, _ = joins.HandleJoins(q, m.Joins)
		}
		for _, ref := range refs {
			value := req.Values[ref.Key]
			op := filters.OperatorFor(ref, value)
			if op.MultiValue() {
				joins.MarkMultiValue()
			}
			criteria, err := filters.Predicate(r.dialect, ref.Key, ref.Binding.Qualified(), op, value)
			if err != nil {
				return nil, err
			}
			q = criteria(q)
		}
	}

	if r.tags != nil {
		outer := root.Qualified(r.cfg.IDColumn)
		q = r.tags.MustMatch(outer, req.Tags)(q)
		q = r.tags.MustNotMatch(outer, req.TagsNotExists)(q)
	}

	if paging {
		q = r.paginate(q, req)
		if req.Sort != nil {
			if m := req.SortRef.Binding.Mapper; len(m.Joins) > 0 {
				q, _ = joins.HandleJoins(q, m.Joins)
			}
			dir := "ASC"
			if req.Sort.Descending {
				dir = "DESC"
			}
			q = q.OrderExpr("? "+dir+" NULLS LAST", bun.Ident(req.SortRef.Binding.Qualified()))
		}
	}

	if joins.NeedsDistinct() {
		q = q.Distinct()
	}
	return q, nil
}

func (r *Repository[D, R]) paginate(q *bun.SelectQuery, req *filters.Request) *bun.SelectQuery {
	limit := req.Limit
	if limit == 0 {
		limit = r.opts.defaultLimit
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if req.Skip > 0 {
		// SQLite only accepts OFFSET after a LIMIT.
		if limit == 0 && r.dialect == dialect.SQLite {
			q = q.Limit(math.MaxInt32)
		}
		q = q.Offset(req.Skip)
	}
	return q
}
