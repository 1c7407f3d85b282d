package filters

import (
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "modernc.org/sqlite"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry(
		Mapper{
			Table: "recipes",
			Alias: "r",
			Columns: map[string]Column{
				"difficulty": {Name: "difficulty", Kind: KindInt},
				"diet":       {Name: "diets", Kind: KindList},
				"published":  {Name: "published", Kind: KindBool},
				"tone":       {Name: "tone", Kind: KindString},
				"tone_ne":    {Name: "tone_ne", Kind: KindString},
			},
			Facets: []string{"difficulty"},
		},
		Mapper{
			Table:   "authors",
			Alias:   "a",
			Columns: map[string]Column{"author_name": {Name: "name"}, "author_country": {Name: "country"}},
			Joins:   []Join{{Table: "authors", Alias: "a", On: "a.id = r.author_id"}},
		},
	)
	require.NoError(t, err)
	return reg
}

func testDB(t *testing.T, d dialect.Name) *bun.DB {
	t.Helper()
	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { sqldb.Close() })
	if d == dialect.PG {
		return bun.NewDB(sqldb, pgdialect.New())
	}
	return bun.NewDB(sqldb, sqlitedialect.New())
}

func TestNewRegistryRejectsDuplicateKeys(t *testing.T) {
	_, err := NewRegistry(
		Mapper{Table: "recipes", Alias: "r", Columns: map[string]Column{"name": {Name: "title"}}},
		Mapper{Table: "authors", Alias: "a", Columns: map[string]Column{"name": {Name: "name"}}},
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `key "name" declared by recipes and authors`)
}

func TestNewRegistryRejectsBadConfiguration(t *testing.T) {
	cases := map[string][]Mapper{
		"reserved key":   {{Table: "recipes", Columns: map[string]Column{"sort": {Name: "sort"}}}},
		"missing column": {{Table: "recipes", Columns: map[string]Column{"title": {}}}},
		"root joins":     {{Table: "recipes", Joins: []Join{{Table: "x", On: "1 = 1"}}}},
		"unknown facet":  {{Table: "recipes", Facets: []string{"title"}}},
		"alias reuse": {
			{Table: "recipes", Alias: "r"},
			{Table: "reviews", Alias: "r"},
		},
	}
	for name, mappers := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(mappers[0], mappers[1:]...)
			assert.Error(t, err)
		})
	}
}

func TestResolve(t *testing.T) {
	reg := testRegistry(t)

	ref, ok := reg.Resolve("difficulty_gte")
	require.True(t, ok)
	assert.True(t, ref.Forced)
	assert.Equal(t, OpGreaterOrEqual, ref.Operator)
	assert.Equal(t, "r.difficulty", ref.Binding.Qualified())

	ref, ok = reg.Resolve("tone_ne")
	require.True(t, ok)
	assert.False(t, ref.Forced, "a registered key is never split")
	assert.Equal(t, "r.tone_ne", ref.Binding.Qualified())

	ref, ok = reg.Resolve("created_at_lte")
	require.True(t, ok)
	assert.Equal(t, "r.created_at", ref.Binding.Qualified())

	ref, ok = reg.Resolve("author_name_not_in")
	require.True(t, ok)
	assert.Equal(t, OpNotIn, ref.Operator)
	assert.Equal(t, "a.name", ref.Binding.Qualified())

	_, ok = reg.Resolve("unknown_gte")
	assert.False(t, ok)
}

func TestResolveOperator(t *testing.T) {
	cases := []struct {
		key   string
		value any
		kind  Kind
		want  Operator
	}{
		{"difficulty", 3, KindInt, OpEqual},
		{"difficulty", []int{1, 2}, KindInt, OpIn},
		{"diet", "vegan", KindList, OpContains},
		{"diet", []string{"vegan"}, KindList, OpIn},
		{"published", true, KindBool, OpIs},
		{"difficulty_gte", 2, KindInt, OpGreaterOrEqual},
		{"difficulty_lte", 2, KindInt, OpLessOrEqual},
		{"title_ne", "x", KindString, OpNotEqual},
		{"title_not_in", []string{"x"}, KindString, OpNotIn},
		{"published_is_not", true, KindBool, OpIsNot},
		{"title", []byte("raw"), KindString, OpEqual},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveOperator(tc.key, tc.value, tc.kind))
		})
	}
}

func TestPredicateRejectsListsForScalarOperators(t *testing.T) {
	for _, op := range []Operator{OpGreaterOrEqual, OpLessOrEqual, OpNotEqual, OpIs, OpEqual, OpContains} {
		_, err := Predicate(dialect.SQLite, "difficulty", "r.difficulty", op, []int{1, 2})
		var verr *ValidationError
		require.Truef(t, errors.As(err, &verr), "operator %s", op)
		assert.Equal(t, "difficulty", verr.Field)
	}
}

func TestPredicateRendering(t *testing.T) {
	db := testDB(t, dialect.SQLite)

	render := func(op Operator, value any) string {
		t.Helper()
		crit, err := Predicate(dialect.SQLite, "k", "r.col", op, value)
		require.NoError(t, err)
		return crit(db.NewSelect().TableExpr("recipes AS r").ColumnExpr("1")).String()
	}

	assert.Contains(t, render(OpIn, []string{"a", "b"}), `"r"."col" IN ('a', 'b')`)
	assert.Contains(t, render(OpIn, []string{}), "1 = 0")
	assert.Contains(t, render(OpNotIn, "a"), `("r"."col" IS NULL OR "r"."col" NOT IN ('a'))`)
	assert.NotContains(t, render(OpNotIn, []string{}), "WHERE")
	assert.Contains(t, render(OpGreaterOrEqual, 3), `"r"."col" >= 3`)
	assert.Contains(t, render(OpContains, "vegan"), `json_each("r"."col")`)
}

func TestPredicateNullValues(t *testing.T) {
	db := testDB(t, dialect.SQLite)

	render := func(op Operator, value any) string {
		t.Helper()
		crit, err := Predicate(dialect.SQLite, "k", "r.col", op, value)
		require.NoError(t, err)
		return crit(db.NewSelect().TableExpr("recipes AS r").ColumnExpr("1")).String()
	}

	var missing *int
	for _, op := range []Operator{OpEqual, OpIs, OpIn} {
		assert.Containsf(t, render(op, nil), `"r"."col" IS NULL`, "operator %s", op)
	}
	assert.Contains(t, render(OpEqual, missing), `"r"."col" IS NULL`)
	for _, op := range []Operator{OpNotEqual, OpIsNot, OpNotIn} {
		stmt := render(op, nil)
		assert.Containsf(t, stmt, `"r"."col" IS NOT NULL`, "operator %s", op)
		assert.NotContainsf(t, stmt, "= NULL", "operator %s", op)
	}

	for _, op := range []Operator{OpGreaterOrEqual, OpLessOrEqual, OpContains} {
		_, err := Predicate(dialect.SQLite, "k", "r.col", op, nil)
		var verr *ValidationError
		require.Truef(t, errors.As(err, &verr), "operator %s", op)
	}
}

func TestContainsPredicatePostgres(t *testing.T) {
	db := testDB(t, dialect.PG)
	crit, err := Predicate(dialect.PG, "diet", "r.diets", OpContains, "vegan")
	require.NoError(t, err)

	stmt := crit(db.NewSelect().TableExpr("recipes AS r").ColumnExpr("1")).String()
	assert.Contains(t, stmt, `"r"."diets"::jsonb @> '["vegan"]'::jsonb`)
}

func TestParseValidatesEveryKey(t *testing.T) {
	reg := testRegistry(t)

	_, err := reg.Parse(Filters{"difficulty": 1, "nope": 2}, true)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "nope", verr.Field)

	_, err = reg.Parse(Filters{KeyTags: [][3]string{{"k", "v", "a"}}}, false)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KeyTags, verr.Field)

	_, err = reg.Parse(Filters{KeySort: "-nope"}, true)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KeySort, verr.Field)

	_, err = reg.Parse(Filters{KeyLimit: -1}, true)
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, KeyLimit, verr.Field)

	req, err := reg.Parse(Filters{
		"difficulty_gte": 2,
		"author_name":    "Ada",
		KeySort:          "-created_at",
		KeySkip:          "5",
		KeyLimit:         10.0,
		KeyTags:          []any{[]any{"cuisine", "thai", "u1"}},
	}, true)
	require.NoError(t, err)
	assert.Equal(t, 5, req.Skip)
	assert.Equal(t, 10, req.Limit)
	assert.True(t, req.Sort.Descending)
	assert.Equal(t, "r.created_at", req.SortRef.Binding.Qualified())
	assert.Len(t, req.Keys, 2)
	assert.Equal(t, []TagFilter{{Key: "cuisine", Value: "thai", AuthorID: "u1"}}, req.Tags)
	assert.Len(t, req.KeysFor(reg.Root()), 1)
}

func TestParseTagFiltersRejectsMalformedTuples(t *testing.T) {
	bad := []any{
		"cuisine",
		[]any{[]any{"cuisine", "thai"}},
		[]any{[]any{"cuisine", 1, "u1"}},
		[]any{"cuisine"},
		[]any{nil},
		nil,
	}
	for _, value := range bad {
		_, err := ParseTagFilters(KeyTags, value)
		var verr *ValidationError
		assert.Truef(t, errors.As(err, &verr), "value %#v", value)
	}

	tags, err := ParseTagFilters(KeyTags, [][]string{{"k", "v", "a"}})
	require.NoError(t, err)
	assert.Equal(t, []TagFilter{{Key: "k", Value: "v", AuthorID: "a"}}, tags)
}

func TestJoinManagerIsIdempotent(t *testing.T) {
	db := testDB(t, dialect.SQLite)
	joins := []Join{{Table: "authors", Alias: "a", On: "a.id = r.author_id"}}

	m := NewJoinManager()
	q := db.NewSelect().TableExpr("recipes AS r").ColumnExpr("r.id")

	q, distinct := m.HandleJoins(q, joins)
	assert.True(t, distinct)
	q, distinct = m.HandleJoins(q, joins)
	assert.False(t, distinct, "no new join and no multi-value comparison")

	m.MarkMultiValue()
	_, distinct = m.HandleJoins(q, joins)
	assert.True(t, distinct)

	assert.Equal(t, 1, strings.Count(q.String(), "JOIN"))
	assert.Equal(t, []string{"a"}, m.Joined())
	assert.True(t, m.NeedsDistinct())
}

func TestJoinManagerNeedsDistinctForMultiValueOnly(t *testing.T) {
	m := NewJoinManager()
	assert.False(t, m.NeedsDistinct())
	m.MarkMultiValue()
	assert.True(t, m.NeedsDistinct())
}

func TestMustMatchGroupsByKeyAndAuthor(t *testing.T) {
	groups := groupByKey([]TagFilter{
		{Key: "k2", Value: "v3", AuthorID: "a"},
		{Key: "k1", Value: "v2", AuthorID: "a"},
		{Key: "k1", Value: "v1", AuthorID: "a"},
		{Key: "k1", Value: "v9", AuthorID: "b"},
	})
	require.Len(t, groups, 2)
	assert.Equal(t, "k1", groups[0].key)
	require.Len(t, groups[0].alternatives, 2)
	assert.Equal(t, []string{"v1", "v2"}, groups[0].alternatives[0].values)
	assert.Equal(t, "b", groups[0].alternatives[1].authorID)
	assert.Equal(t, "k2", groups[1].key)

	db := testDB(t, dialect.SQLite)
	e := NewTagEngine(TagSchema{Type: "recipe"})
	stmt := e.MustMatch("r.id", []TagFilter{
		{Key: "k1", Value: "v1", AuthorID: "a"},
		{Key: "k1", Value: "v2", AuthorID: "a"},
		{Key: "k2", Value: "v3", AuthorID: "a"},
	})(db.NewSelect().TableExpr("recipes AS r").ColumnExpr("r.id")).String()

	assert.Equal(t, 2, strings.Count(stmt, "EXISTS"))
	assert.Contains(t, stmt, `"tg"."value" IN ('v1', 'v2')`)
	assert.Contains(t, stmt, `"tg"."type" = 'recipe'`)
}

func TestMustNotMatchIsUngrouped(t *testing.T) {
	db := testDB(t, dialect.SQLite)
	e := NewTagEngine(TagSchema{Type: "recipe"})
	stmt := e.MustNotMatch("r.id", []TagFilter{
		{Key: "k1", Value: "v1", AuthorID: "a"},
		{Key: "k1", Value: "v2", AuthorID: "a"},
	})(db.NewSelect().TableExpr("recipes AS r").ColumnExpr("r.id")).String()

	assert.Equal(t, 2, strings.Count(stmt, "EXISTS"))
	assert.Contains(t, stmt, "NOT (EXISTS")
	assert.Contains(t, stmt, " OR EXISTS")
}

func TestEmptyTagListIsNoConstraint(t *testing.T) {
	db := testDB(t, dialect.SQLite)
	e := NewTagEngine(TagSchema{Type: "recipe"})
	base := db.NewSelect().TableExpr("recipes AS r").ColumnExpr("r.id")
	want := base.String()

	assert.Equal(t, want, e.MustMatch("r.id", nil)(base).String())
	assert.Equal(t, want, e.MustNotMatch("r.id", []TagFilter{})(base).String())
}
