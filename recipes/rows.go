package recipes

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-repository-query/genericrepo"
	"github.com/uptrace/bun"
)

// RecipeRow is the bun model of the recipes table.
type RecipeRow struct {
	bun.BaseModel `bun:"table:recipes,alias:r"`

	ID          string    `bun:"id,pk"`
	Title       string    `bun:"title,notnull"`
	Difficulty  int       `bun:"difficulty,notnull"`
	Servings    int       `bun:"servings,notnull"`
	CookMinutes *int      `bun:"cook_minutes"`
	AuthorID    string    `bun:"author_id,notnull"`
	Diets       []string  `bun:"diets,type:json"`
	Published   bool      `bun:"published,notnull"`
	Discarded   bool      `bun:"discarded,notnull"`
	Version     int64     `bun:"version,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`

	Ingredients []*IngredientRow `bun:"rel:has-many,join:id=recipe_id"`
	Steps       []*StepRow       `bun:"rel:has-many,join:id=recipe_id"`

	Tags []genericrepo.Tag `bun:"-"`
}

// IngredientRow is the bun model of the ingredients table.
type IngredientRow struct {
	bun.BaseModel `bun:"table:ingredients,alias:ing"`

	ID       string `bun:"id,pk"`
	RecipeID string `bun:"recipe_id,notnull"`
	Name     string `bun:"name,notnull"`
	Quantity string `bun:"quantity"`
	Position int    `bun:"position,notnull"`
}

// StepRow is the bun model of the steps table.
type StepRow struct {
	bun.BaseModel `bun:"table:steps,alias:st"`

	RecipeID string `bun:"recipe_id,pk"`
	Section  string `bun:"section,pk"`
	Idx      int    `bun:"idx,pk"`
	Text     string `bun:"text,notnull"`
}

// AuthorRow is the bun model of the authors table.
type AuthorRow struct {
	bun.BaseModel `bun:"table:authors,alias:a"`

	ID        string    `bun:"id,pk"`
	Name      string    `bun:"name,notnull"`
	Country   string    `bun:"country"`
	Discarded bool      `bun:"discarded,notnull"`
	Version   int64     `bun:"version,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull"`

	Tags []genericrepo.Tag `bun:"-"`
}

// CreateSchema creates the tables of both aggregates and the tag relation.
// Migrations are out of scope; this is for tests, demos and the CLI.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	models := []any{
		(*AuthorRow)(nil),
		(*RecipeRow)(nil),
		(*IngredientRow)(nil),
		(*StepRow)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*IngredientRow)(nil)).
		Index("ingredients_recipe_id_idx").
		Column("recipe_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return genericrepo.CreateTagTables(ctx, db)
}
