package recipes

import (
	"github.com/goliatone/go-repository-query/filters"
	"github.com/goliatone/go-repository-query/genericrepo"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// RecipeStore is the repository surface for recipes.
type RecipeStore = genericrepo.Store[*Recipe]

// AuthorStore is the repository surface for authors.
type AuthorStore = genericrepo.Store[*Author]

// RecipeRegistry declares the filter keys of the recipe aggregate.
func RecipeRegistry() (*filters.Registry, error) {
	root := filters.Mapper{
		Table: "recipes",
		Alias: "r",
		Columns: map[string]filters.Column{
			"id":           {Name: "id", Kind: filters.KindString},
			"title":        {Name: "title", Kind: filters.KindString},
			"difficulty":   {Name: "difficulty", Kind: filters.KindInt},
			"servings":     {Name: "servings", Kind: filters.KindInt},
			"cook_minutes": {Name: "cook_minutes", Kind: filters.KindInt},
			"author_id":    {Name: "author_id", Kind: filters.KindString},
			"diet":         {Name: "diets", Kind: filters.KindList},
			"published":    {Name: "published", Kind: filters.KindBool},
			"created_at":   {Name: "created_at", Kind: filters.KindTime},
		},
		Facets: []string{"difficulty", "servings"},
	}
	authors := filters.Mapper{
		Table: "authors",
		Alias: "a",
		Columns: map[string]filters.Column{
			"author_name":    {Name: "name", Kind: filters.KindString},
			"author_country": {Name: "country", Kind: filters.KindString},
		},
		Joins:  []filters.Join{{Table: "authors", Alias: "a", On: "a.id = r.author_id"}},
		Facets: []string{"author_country"},
	}
	ingredients := filters.Mapper{
		Table: "ingredients",
		Alias: "ing",
		Columns: map[string]filters.Column{
			"ingredient": {Name: "name", Kind: filters.KindString},
		},
		Joins:  []filters.Join{{Table: "ingredients", Alias: "ing", On: "ing.recipe_id = r.id"}},
		Facets: []string{"ingredient"},
	}
	return filters.NewRegistry(root, authors, ingredients)
}

// AuthorRegistry declares the filter keys of the author aggregate.
func AuthorRegistry() (*filters.Registry, error) {
	return filters.NewRegistry(filters.Mapper{
		Table: "authors",
		Alias: "a",
		Columns: map[string]filters.Column{
			"id":         {Name: "id", Kind: filters.KindString},
			"name":       {Name: "name", Kind: filters.KindString},
			"country":    {Name: "country", Kind: filters.KindString},
			"created_at": {Name: "created_at", Kind: filters.KindTime},
		},
		Facets: []string{"country"},
	})
}

// NewRecipeRepository returns the recipe repository. The logger, when set
// through genericrepo.WithLogger, is not shared with the recipes' derived
// views; pass logger for those.
func NewRecipeRepository(db bun.IDB, logger *zap.Logger, opts ...genericrepo.Option) (*genericrepo.Repository[*Recipe, RecipeRow], error) {
	registry, err := RecipeRegistry()
	if err != nil {
		return nil, err
	}
	return genericrepo.New(db, genericrepo.Config[*Recipe, RecipeRow]{
		Registry:         registry,
		Tags:             &filters.TagSchema{Type: RecipeTagType},
		SoftDeleteColumn: "discarded",
		VersionColumn:    "version",
		ToRow:            recipeToRow,
		FromRow:          recipeFromRow(logger),
		Relations:        []string{"Ingredients", "Steps"},
		AfterScan:        loadRecipeTags,
		Children: []genericrepo.ChildMapper[*Recipe]{
			ingredientChildren,
			stepChildren,
			recipeTagChildren,
		},
	}, opts...)
}

// NewAuthorRepository returns the author repository.
func NewAuthorRepository(db bun.IDB, opts ...genericrepo.Option) (*genericrepo.Repository[*Author, AuthorRow], error) {
	registry, err := AuthorRegistry()
	if err != nil {
		return nil, err
	}
	return genericrepo.New(db, genericrepo.Config[*Author, AuthorRow]{
		Registry:         registry,
		Tags:             &filters.TagSchema{Type: AuthorTagType},
		SoftDeleteColumn: "discarded",
		VersionColumn:    "version",
		ToRow:            authorToRow,
		FromRow:          authorFromRow,
		AfterScan:        loadAuthorTags,
		Children:         []genericrepo.ChildMapper[*Author]{authorTagChildren},
	}, opts...)
}
