package main

import (
	"time"

	"github.com/goliatone/go-repository-query/recipes"
)

type recipeView struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	AuthorID    string           `json:"author_id"`
	Difficulty  int              `json:"difficulty"`
	Servings    int              `json:"servings"`
	CookMinutes *int             `json:"cook_minutes,omitempty"`
	Diets       []string         `json:"diets,omitempty"`
	Published   bool             `json:"published"`
	CreatedAt   time.Time        `json:"created_at"`
	Ingredients []ingredientView `json:"ingredients,omitempty"`
	Steps       []stepView       `json:"steps,omitempty"`
	Tags        []recipes.Tag    `json:"tags,omitempty"`
}

type ingredientView struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

type stepView struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Text    string `json:"text"`
}

func newRecipeView(r *recipes.Recipe) recipeView {
	v := recipeView{
		ID:         r.ID(),
		Title:      r.Title(),
		AuthorID:   r.AuthorID(),
		Difficulty: r.Difficulty(),
		Servings:   r.Servings(),
		Diets:      r.Diets(),
		Published:  r.Published(),
		CreatedAt:  r.CreatedAt(),
		Tags:       r.Tags(),
	}
	if m, ok := r.CookMinutes(); ok {
		v.CookMinutes = &m
	}
	for _, ing := range r.Ingredients() {
		v.Ingredients = append(v.Ingredients, ingredientView{Name: ing.Name, Quantity: ing.Quantity})
	}
	for _, s := range r.Steps() {
		v.Steps = append(v.Steps, stepView{Section: s.Section, Index: s.Index, Text: s.Text})
	}
	return v
}
