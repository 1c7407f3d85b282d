package recipes

import (
	"context"
	"sort"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/goliatone/go-repository-query/genericrepo"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Tag types of the shared tag relation.
const (
	RecipeTagType = "recipe"
	AuthorTagType = "author"
)

func recipeToRow(r *Recipe) (*RecipeRow, error) {
	return &RecipeRow{
		ID:          r.id,
		Title:       r.title,
		Difficulty:  r.difficulty,
		Servings:    r.servings,
		CookMinutes: r.cookMinutes,
		AuthorID:    r.authorID,
		Diets:       append([]string(nil), r.diets...),
		Published:   r.published,
		Discarded:   r.discarded,
		Version:     r.version,
		CreatedAt:   r.createdAt,
	}, nil
}

func recipeFromRow(logger *zap.Logger) func(*RecipeRow) (*Recipe, error) {
	return func(row *RecipeRow) (*Recipe, error) {
		r := newRecipe(logger)
		r.id = row.ID
		r.title = row.Title
		r.difficulty = row.Difficulty
		r.servings = row.Servings
		r.cookMinutes = row.CookMinutes
		r.authorID = row.AuthorID
		r.diets = append([]string(nil), row.Diets...)
		r.published = row.Published
		r.discarded = row.Discarded
		r.version = row.Version
		r.createdAt = row.CreatedAt

		ingredients := append([]*IngredientRow(nil), row.Ingredients...)
		sort.SliceStable(ingredients, func(i, j int) bool {
			return ingredients[i].Position < ingredients[j].Position
		})
		for _, ing := range ingredients {
			r.ingredients = append(r.ingredients, Ingredient{ID: ing.ID, Name: ing.Name, Quantity: ing.Quantity})
		}
		for _, s := range row.Steps {
			r.steps = append(r.steps, Step{StepPosition: StepPosition{Section: s.Section, Index: s.Idx}, Text: s.Text})
		}
		sortSteps(r.steps)
		r.tags = fromRepoTags(row.Tags)
		return r, nil
	}
}

func ingredientChildren(_ context.Context, r *Recipe) (genericrepo.ChildWrite, error) {
	rows := make([]*IngredientRow, len(r.ingredients))
	for i, ing := range r.ingredients {
		rows[i] = &IngredientRow{ID: ing.ID, RecipeID: r.id, Name: ing.Name, Quantity: ing.Quantity, Position: i}
	}
	return genericrepo.ReplaceRows("recipe_id", rows), nil
}

func stepChildren(_ context.Context, r *Recipe) (genericrepo.ChildWrite, error) {
	rows := make([]*StepRow, len(r.steps))
	for i, s := range r.steps {
		rows[i] = &StepRow{RecipeID: r.id, Section: s.Section, Idx: s.Index, Text: s.Text}
	}
	return genericrepo.ReplaceRows("recipe_id", rows), nil
}

func recipeTagChildren(_ context.Context, r *Recipe) (genericrepo.ChildWrite, error) {
	return genericrepo.TagChildren(filters.TagSchema{Type: RecipeTagType}, toRepoTags(r.tags)), nil
}

func loadRecipeTags(ctx context.Context, db bun.IDB, rows []*RecipeRow) error {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	tags, err := genericrepo.LoadTags(ctx, db, RecipeTagType, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		row.Tags = tags[row.ID]
	}
	return nil
}

func authorToRow(a *Author) (*AuthorRow, error) {
	return &AuthorRow{
		ID:        a.id,
		Name:      a.name,
		Country:   a.country,
		Discarded: a.discarded,
		Version:   a.version,
		CreatedAt: a.createdAt,
	}, nil
}

func authorFromRow(row *AuthorRow) (*Author, error) {
	return &Author{
		id:        row.ID,
		name:      row.Name,
		country:   row.Country,
		tags:      fromRepoTags(row.Tags),
		discarded: row.Discarded,
		version:   row.Version,
		createdAt: row.CreatedAt,
	}, nil
}

func authorTagChildren(_ context.Context, a *Author) (genericrepo.ChildWrite, error) {
	return genericrepo.TagChildren(filters.TagSchema{Type: AuthorTagType}, toRepoTags(a.tags)), nil
}

func loadAuthorTags(ctx context.Context, db bun.IDB, rows []*AuthorRow) error {
	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}
	tags, err := genericrepo.LoadTags(ctx, db, AuthorTagType, ids)
	if err != nil {
		return err
	}
	for _, row := range rows {
		row.Tags = tags[row.ID]
	}
	return nil
}

func toRepoTags(tags []Tag) []genericrepo.Tag {
	out := make([]genericrepo.Tag, len(tags))
	for i, t := range tags {
		out[i] = genericrepo.Tag{Key: t.Key, Value: t.Value, AuthorID: t.AuthorID}
	}
	return out
}

func fromRepoTags(tags []genericrepo.Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	out := make([]Tag, len(tags))
	for i, t := range tags {
		out[i] = Tag{Key: t.Key, Value: t.Value, AuthorID: t.AuthorID}
	}
	return out
}
