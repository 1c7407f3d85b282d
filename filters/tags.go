package filters

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"
)

// TagFilter is one (key, value, author) triple of a tag filter.
type TagFilter struct {
	Key      string
	Value    string
	AuthorID string
}

// Tables of the polymorphic tag relation shared by every aggregate.
const (
	TagTable  = "tags"
	LinkTable = "tag_links"
)

// TagSchema binds the tag relation to one aggregate kind.
type TagSchema struct {
	// Type is the discriminator stored on every tag of the aggregate.
	Type string
}

// TagEngine builds EXISTS predicates over the tag relation for one aggregate
// type.
type TagEngine struct {
	schema TagSchema
}

// NewTagEngine returns an engine bound to schema.
func NewTagEngine(schema TagSchema) *TagEngine {
	return &TagEngine{schema: schema}
}

// Schema returns the schema the engine filters on.
func (e *TagEngine) Schema() TagSchema {
	return e.schema
}

// MustMatch keeps rows carrying, for every distinct key in tags, at least one
// of the supplied values. outerID is the qualified id column of the outer row,
// e.g. "r.id". An empty list is no constraint.
func (e *TagEngine) MustMatch(outerID string, tags []TagFilter) repository.SelectCriteria {
	if len(tags) == 0 {
		return noConstraint
	}

	groups := groupByKey(tags)
	parts := make([]string, 0, len(groups))
	args := make([]any, 0, len(groups))
	for _, g := range groups {
		parts = append(parts, "EXISTS (?)")
		args = append(args, e.exists(outerID, g.key, g.alternatives))
	}

	expr := strings.Join(parts, " AND ")
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(expr, args...)
	}
}

// MustNotMatch drops rows carrying any one of the supplied tuples. Unlike
// MustMatch the tuples are not grouped by key. An empty list is no constraint.
func (e *TagEngine) MustNotMatch(outerID string, tags []TagFilter) repository.SelectCriteria {
	if len(tags) == 0 {
		return noConstraint
	}

	parts := make([]string, 0, len(tags))
	args := make([]any, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, "EXISTS (?)")
		args = append(args, e.exists(outerID, t.Key, []alternative{{authorID: t.AuthorID, values: []string{t.Value}}}))
	}

	expr := "NOT (" + strings.Join(parts, " OR ") + ")"
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(expr, args...)
	}
}

func (e *TagEngine) exists(outerID, key string, alts []alternative) schema.QueryAppender {
	var b strings.Builder
	args := []any{
		bun.Ident(LinkTable), bun.Ident("tg_link"),
		bun.Ident(TagTable), bun.Ident("tg"),
		bun.Ident("tg.id"), bun.Ident("tg_link.tag_id"),
		bun.Ident("tg_link.owner_id"), bun.Ident(outerID),
		bun.Ident("tg.type"), e.schema.Type,
		bun.Ident("tg.key"), key,
	}
	b.WriteString("SELECT 1 FROM ? AS ? JOIN ? AS ? ON ? = ? WHERE ? = ? AND ? = ? AND ? = ? AND (")
	for i, alt := range alts {
		if i > 0 {
			b.WriteString(" OR ")
		}
		b.WriteString("(? IN (?) AND ? = ?)")
		args = append(args, bun.Ident("tg.value"), bun.In(alt.values), bun.Ident("tg.author_id"), alt.authorID)
	}
	b.WriteString(")")
	return bun.SafeQuery(b.String(), args...)
}

// alternative is the set of values one author may have tagged under a key.
type alternative struct {
	authorID string
	values   []string
}

type tagGroup struct {
	key          string
	alternatives []alternative
}

// groupByKey sorts tags and groups them by key, then by author within a key.
func groupByKey(tags []TagFilter) []tagGroup {
	sorted := append([]TagFilter(nil), tags...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Key != sorted[j].Key {
			return sorted[i].Key < sorted[j].Key
		}
		if sorted[i].AuthorID != sorted[j].AuthorID {
			return sorted[i].AuthorID < sorted[j].AuthorID
		}
		return sorted[i].Value < sorted[j].Value
	})

	var groups []tagGroup
	for _, t := range sorted {
		if len(groups) == 0 || groups[len(groups)-1].key != t.Key {
			groups = append(groups, tagGroup{key: t.Key})
		}
		g := &groups[len(groups)-1]
		if len(g.alternatives) == 0 || g.alternatives[len(g.alternatives)-1].authorID != t.AuthorID {
			g.alternatives = append(g.alternatives, alternative{authorID: t.AuthorID})
		}
		alt := &g.alternatives[len(g.alternatives)-1]
		alt.values = append(alt.values, t.Value)
	}
	return groups
}

func noConstraint(q *bun.SelectQuery) *bun.SelectQuery {
	return q
}

// ParseTagFilters validates the value of a tags or tags_not_exists key. It
// accepts []TagFilter, [][3]string, [][]string and []any of three element
// lists. Anything else is rejected rather than coerced.
func ParseTagFilters(field string, value any) ([]TagFilter, error) {
	switch v := value.(type) {
	case nil:
		return nil, invalid(field, "expected a list of (key, value, author_id) tuples", nil)
	case []TagFilter:
		return append([]TagFilter(nil), v...), nil
	case [][3]string:
		out := make([]TagFilter, len(v))
		for i, t := range v {
			out[i] = TagFilter{Key: t[0], Value: t[1], AuthorID: t[2]}
		}
		return out, nil
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, invalid(field, "expected a list of (key, value, author_id) tuples", value)
	}

	out := make([]TagFilter, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		tuple, err := parseTuple(fmt.Sprintf("%s[%d]", field, i), rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		out = append(out, tuple)
	}
	return out, nil
}

func parseTuple(field string, value any) (TagFilter, error) {
	if value == nil {
		return TagFilter{}, invalid(field, "expected a (key, value, author_id) tuple", nil)
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return TagFilter{}, invalid(field, "expected a (key, value, author_id) tuple", value)
	}
	if rv.Len() != 3 {
		return TagFilter{}, invalid(field, fmt.Sprintf("expected 3 elements, got %d", rv.Len()), value)
	}

	var parts [3]string
	for i := 0; i < 3; i++ {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return TagFilter{}, invalid(field, fmt.Sprintf("element %d must be a string", i), rv.Index(i).Interface())
		}
		parts[i] = s
	}
	return TagFilter{Key: parts[0], Value: parts[1], AuthorID: parts[2]}, nil
}
