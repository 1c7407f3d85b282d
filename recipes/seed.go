package recipes

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
)

// SeedFile is the JSON document loaded by Seed. Authors are referenced from
// recipes and tags by their Ref, which is replaced with the stored id.
type SeedFile struct {
	Authors []SeedAuthor `json:"authors"`
	Recipes []SeedRecipe `json:"recipes"`
}

type SeedAuthor struct {
	Ref     string    `json:"ref"`
	Name    string    `json:"name"`
	Country string    `json:"country"`
	Tags    []SeedTag `json:"tags"`
}

type SeedRecipe struct {
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Difficulty  int               `json:"difficulty"`
	Servings    int               `json:"servings"`
	CookMinutes *int              `json:"cook_minutes"`
	Diets       []string          `json:"diets"`
	Published   bool              `json:"published"`
	CreatedAt   time.Time         `json:"created_at"`
	Ingredients []IngredientInput `json:"ingredients"`
	Steps       []StepInput       `json:"steps"`
	Tags        []SeedTag         `json:"tags"`
}

type SeedTag struct {
	Key    string `json:"key"`
	Value  string `json:"value"`
	Author string `json:"author"`
}

// ReadSeedFile decodes a SeedFile, rejecting unknown fields.
func ReadSeedFile(r io.Reader) (*SeedFile, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var f SeedFile
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	return &f, nil
}

// SeedResult lists the stored aggregates in file order.
type SeedResult struct {
	Authors []*Author
	Recipes []*Recipe
}

// Seed adds every author, then every recipe. It stops at the first failure;
// aggregates added before it stay stored.
func Seed(ctx context.Context, authors AuthorStore, recipes RecipeStore, f *SeedFile, logger *zap.Logger) (*SeedResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	refs := make(map[string]string, len(f.Authors))
	out := &SeedResult{}

	for _, sa := range f.Authors {
		a, err := NewAuthor(sa.Name, sa.Country)
		if err != nil {
			return out, fmt.Errorf("seed author %q: %w", sa.Ref, err)
		}
		if sa.Ref != "" {
			refs[sa.Ref] = a.ID()
		}
		a.SetTags(seedTags(sa.Tags, refs))
		if err := authors.Add(ctx, a); err != nil {
			return out, fmt.Errorf("seed author %q: %w", sa.Ref, err)
		}
		out.Authors = append(out.Authors, a)
	}

	for _, sr := range f.Recipes {
		authorID, ok := refs[sr.Author]
		if !ok {
			authorID = sr.Author
		}
		r, err := NewRecipe(NewRecipeInput{
			Title:       sr.Title,
			Difficulty:  sr.Difficulty,
			Servings:    sr.Servings,
			CookMinutes: sr.CookMinutes,
			AuthorID:    authorID,
			Diets:       sr.Diets,
			CreatedAt:   sr.CreatedAt,
		}, logger)
		if err != nil {
			return out, fmt.Errorf("seed recipe %q: %w", sr.Title, err)
		}
		err = r.Apply(
			ReplaceIngredients{Ingredients: sr.Ingredients},
			ReplaceSteps{Steps: sr.Steps},
			SetPublished{Published: sr.Published},
		)
		if err != nil {
			return out, fmt.Errorf("seed recipe %q: %w", sr.Title, err)
		}
		r.SetTags(seedTags(sr.Tags, refs))
		if err := recipes.Add(ctx, r); err != nil {
			return out, fmt.Errorf("seed recipe %q: %w", sr.Title, err)
		}
		out.Recipes = append(out.Recipes, r)
	}

	logger.Info("seeded",
		zap.Int("authors", len(out.Authors)),
		zap.Int("recipes", len(out.Recipes)),
	)
	return out, nil
}

func seedTags(in []SeedTag, refs map[string]string) []Tag {
	out := make([]Tag, len(in))
	for i, t := range in {
		author, ok := refs[t.Author]
		if !ok {
			author = t.Author
		}
		out[i] = Tag{Key: t.Key, Value: t.Value, AuthorID: author}
	}
	return out
}
