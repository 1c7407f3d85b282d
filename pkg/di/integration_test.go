package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/goliatone/go-repository-query/pkg/config"
	"github.com/goliatone/go-repository-query/recipes"
)

func seedRecipes(t *testing.T, c *Container) (*recipes.Author, []*recipes.Recipe) {
	t.Helper()
	ctx := context.Background()

	ana, err := recipes.NewAuthor("Ana", "es")
	require.NoError(t, err)
	require.NoError(t, c.Authors().Add(ctx, ana))

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	var out []*recipes.Recipe
	for i, title := range []string{"Paella", "Tortilla", "Gazpacho"} {
		r, err := recipes.NewRecipe(recipes.NewRecipeInput{
			Title:      title,
			Difficulty: i + 1,
			Servings:   4,
			AuthorID:   ana.ID(),
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
		}, c.Logger())
		require.NoError(t, err)
		require.NoError(t, c.Recipes().Add(ctx, r))
		out = append(out, r)
	}
	return ana, out
}

func TestEndToEnd_CountIsCachedUntilWrite(t *testing.T) {
	c := newTestContainer(t, nil)
	ctx := context.Background()
	_, rs := seedRecipes(t, c)

	hard := filters.Filters{"difficulty_gte": 2}
	n, err := c.Recipes().Count(ctx, hard)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// A direct update bypasses the repository, so the cached count is served.
	_, err = c.DB().NewUpdate().Table("recipes").Set("difficulty = 1").Where("1 = 1").Exec(ctx)
	require.NoError(t, err)
	n, err = c.Recipes().Count(ctx, hard)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "expected the cached count")

	// Persisting through the store invalidates the namespace.
	rs[0].Discard()
	require.NoError(t, c.Recipes().Persist(ctx, rs[0]))
	n, err = c.Recipes().Count(ctx, hard)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEndToEnd_AuthorWriteRefreshesRecipeReads(t *testing.T) {
	c := newTestContainer(t, nil)
	ctx := context.Background()
	ana, _ := seedRecipes(t, c)

	spanish := filters.Filters{"author_country": "ES"}
	n, err := c.Recipes().Count(ctx, spanish)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	opts, err := c.Recipes().FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"ES"}, opts["author_country"])

	ana.Relocate("fr")
	require.NoError(t, c.Authors().Persist(ctx, ana))

	got, err := c.Recipes().Query(ctx, spanish)
	require.NoError(t, err)
	assert.Empty(t, got)
	n, err = c.Recipes().Count(ctx, spanish)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "count agrees with query after an author write")
	opts, err = c.Recipes().FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"FR"}, opts["author_country"])
}

func TestEndToEnd_QueryThroughContainer(t *testing.T) {
	c := newTestContainer(t, nil)
	ctx := context.Background()
	ana, _ := seedRecipes(t, c)

	got, err := c.Recipes().Query(ctx, filters.Filters{
		"author_country": "ES",
		"sort":           "-created_at",
		"limit":          2,
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Gazpacho", got[0].Title())
	assert.Equal(t, "Tortilla", got[1].Title())

	opts, err := c.Recipes().FilterOptions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2", "3"}, opts["difficulty"])
	assert.Equal(t, []string{"ES"}, opts["author_country"])

	author, err := c.Authors().Get(ctx, ana.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ana", author.Name())
}

func TestEndToEnd_MetricsAreRecorded(t *testing.T) {
	c := newTestContainer(t, func(cfg *config.Config) { cfg.Cache.Enabled = false })
	ctx := context.Background()
	seedRecipes(t, c)

	_, err := c.Recipes().Query(ctx, filters.Filters{})
	require.NoError(t, err)

	families, err := c.Registry().Gather()
	require.NoError(t, err)
	var rows float64
	for _, mf := range families {
		if mf.GetName() != "repository_rows_returned_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			rows += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, float64(3), rows)
}
