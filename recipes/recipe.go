// Package recipes holds the sample aggregates served by the generic
// repository: recipes, with their ingredients, steps and tags, and authors.
package recipes

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-repository-query/entitycache"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// View names a derived view of a Recipe.
type View uint8

const (
	ViewStepsByPosition View = iota + 1
	ViewIngredientsByID
	ViewIngredientIDs
)

func (v View) String() string {
	switch v {
	case ViewStepsByPosition:
		return "steps_by_position"
	case ViewIngredientsByID:
		return "ingredients_by_id"
	case ViewIngredientIDs:
		return "ingredient_ids"
	default:
		return fmt.Sprintf("view(%d)", uint8(v))
	}
}

// Ingredient is a line of a recipe's ingredient list.
type Ingredient struct {
	ID       string
	Name     string
	Quantity string
}

// StepPosition addresses a step within a recipe.
type StepPosition struct {
	Section string
	Index   int
}

// Step is one instruction of a recipe.
type Step struct {
	StepPosition
	Text string
}

// Tag is a (key, value) tag applied to a recipe by an author.
type Tag struct {
	Key      string
	Value    string
	AuthorID string
}

// FieldError reports a recipe field that failed validation.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("recipe %s: %s", e.Field, e.Message)
}

// Recipe is the recipe aggregate root.
type Recipe struct {
	id          string
	title       string
	difficulty  int
	servings    int
	cookMinutes *int
	authorID    string
	diets       []string
	published   bool
	discarded   bool
	version     int64
	createdAt   time.Time

	ingredients []Ingredient
	steps       []Step
	tags        []Tag

	views           *entitycache.Set[View]
	stepsByPosition *entitycache.Lazy[map[StepPosition]Step]
	ingredientsByID *entitycache.Lazy[map[string]Ingredient]
	ingredientIDs   *entitycache.Lazy[map[string]struct{}]
}

// NewRecipeInput holds the fields of a new recipe.
type NewRecipeInput struct {
	Title       string
	Difficulty  int
	Servings    int
	CookMinutes *int
	AuthorID    string
	Diets       []string
	CreatedAt   time.Time
}

// NewRecipe validates in and returns an unsaved recipe with a fresh id.
func NewRecipe(in NewRecipeInput, logger *zap.Logger) (*Recipe, error) {
	if in.AuthorID == "" {
		return nil, &FieldError{Field: "author_id", Message: "is required"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("recipe id: %w", err)
	}
	created := in.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	r := newRecipe(logger)
	r.id = id.String()
	r.authorID = in.AuthorID
	r.createdAt = created
	r.diets = normalizeDiets(in.Diets)
	r.cookMinutes = in.CookMinutes

	if err := r.setTitle(in.Title); err != nil {
		return nil, err
	}
	if err := r.setDifficulty(in.Difficulty); err != nil {
		return nil, err
	}
	if err := r.setServings(in.Servings); err != nil {
		return nil, err
	}
	return r, nil
}

func newRecipe(logger *zap.Logger) *Recipe {
	r := &Recipe{views: entitycache.NewSet[View](logger)}
	r.stepsByPosition = entitycache.Register(r.views, ViewStepsByPosition, func() map[StepPosition]Step {
		out := make(map[StepPosition]Step, len(r.steps))
		for _, s := range r.steps {
			out[s.StepPosition] = s
		}
		return out
	})
	r.ingredientsByID = entitycache.Register(r.views, ViewIngredientsByID, func() map[string]Ingredient {
		out := make(map[string]Ingredient, len(r.ingredients))
		for _, ing := range r.ingredients {
			out[ing.ID] = ing
		}
		return out
	})
	r.ingredientIDs = entitycache.Register(r.views, ViewIngredientIDs, func() map[string]struct{} {
		out := make(map[string]struct{}, len(r.ingredients))
		for _, ing := range r.ingredients {
			out[ing.ID] = struct{}{}
		}
		return out
	})
	return r
}

func (r *Recipe) ID() string           { return r.id }
func (r *Recipe) EntityID() string     { return r.id }
func (r *Recipe) Title() string        { return r.title }
func (r *Recipe) Difficulty() int      { return r.difficulty }
func (r *Recipe) Servings() int        { return r.servings }
func (r *Recipe) AuthorID() string     { return r.authorID }
func (r *Recipe) Published() bool      { return r.published }
func (r *Recipe) CreatedAt() time.Time { return r.createdAt }
func (r *Recipe) Version() int64       { return r.version }
func (r *Recipe) Discarded() bool      { return r.discarded }

// SetDiscarded sets the soft delete flag.
func (r *Recipe) SetDiscarded(discarded bool) { r.discarded = discarded }

// Discard marks the recipe for soft deletion on the next Persist.
func (r *Recipe) Discard() {
	r.discarded = true
	r.touch()
}

// touch records one state-changing call.
func (r *Recipe) touch() { r.version++ }

// CookMinutes returns the cooking time, if known.
func (r *Recipe) CookMinutes() (int, bool) {
	if r.cookMinutes == nil {
		return 0, false
	}
	return *r.cookMinutes, true
}

// Diets returns the diets the recipe suits, sorted.
func (r *Recipe) Diets() []string {
	return append([]string(nil), r.diets...)
}

// Ingredients returns the ingredients in list order.
func (r *Recipe) Ingredients() []Ingredient {
	return append([]Ingredient(nil), r.ingredients...)
}

// Steps returns the steps ordered by section then index.
func (r *Recipe) Steps() []Step {
	return append([]Step(nil), r.steps...)
}

// Tags returns the recipe's tags.
func (r *Recipe) Tags() []Tag {
	return append([]Tag(nil), r.tags...)
}

// StepsByPosition returns the position lookup view. The map is shared and
// must not be modified.
func (r *Recipe) StepsByPosition() map[StepPosition]Step {
	return r.stepsByPosition.Get()
}

// IngredientsByID returns the id lookup view. The map is shared and must not
// be modified.
func (r *Recipe) IngredientsByID() map[string]Ingredient {
	return r.ingredientsByID.Get()
}

// IngredientIDs returns the id set view. The map is shared and must not be
// modified.
func (r *Recipe) IngredientIDs() map[string]struct{} {
	return r.ingredientIDs.Get()
}

// Step returns the step at pos.
func (r *Recipe) Step(pos StepPosition) (Step, bool) {
	s, ok := r.stepsByPosition.Get()[pos]
	return s, ok
}

// Ingredient returns the ingredient with the given id.
func (r *Recipe) Ingredient(id string) (Ingredient, bool) {
	ing, ok := r.ingredientsByID.Get()[id]
	return ing, ok
}

// HasIngredient reports whether the recipe lists the ingredient id.
func (r *Recipe) HasIngredient(id string) bool {
	_, ok := r.ingredientIDs.Get()[id]
	return ok
}

// ViewComputed reports whether a derived view currently holds a value.
func (r *Recipe) ViewComputed(v View) bool {
	return r.views.Computed(v)
}

// AddIngredient appends an ingredient and returns it.
func (r *Recipe) AddIngredient(name, quantity string) (Ingredient, error) {
	ing, err := r.addIngredient(name, quantity)
	if err != nil {
		return Ingredient{}, err
	}
	r.touch()
	return ing, nil
}

func (r *Recipe) addIngredient(name, quantity string) (Ingredient, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Ingredient{}, &FieldError{Field: "ingredient", Message: "name is required"}
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Ingredient{}, fmt.Errorf("ingredient id: %w", err)
	}
	ing := Ingredient{ID: id.String(), Name: name, Quantity: quantity}
	r.ingredients = append(r.ingredients, ing)
	r.views.Invalidate(ViewIngredientsByID, ViewIngredientIDs)
	return ing, nil
}

// RemoveIngredient drops the ingredient with the given id.
func (r *Recipe) RemoveIngredient(id string) bool {
	for i, ing := range r.ingredients {
		if ing.ID == id {
			r.ingredients = append(r.ingredients[:i:i], r.ingredients[i+1:]...)
			r.views.Invalidate(ViewIngredientsByID, ViewIngredientIDs)
			r.touch()
			return true
		}
	}
	return false
}

// AddStep appends a step to section and returns its position.
func (r *Recipe) AddStep(section, text string) (StepPosition, error) {
	pos, err := r.addStep(section, text)
	if err != nil {
		return StepPosition{}, err
	}
	r.touch()
	return pos, nil
}

func (r *Recipe) addStep(section, text string) (StepPosition, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return StepPosition{}, &FieldError{Field: "step", Message: "text is required"}
	}
	pos := StepPosition{Section: section, Index: 0}
	for _, s := range r.steps {
		if s.Section == section && s.Index >= pos.Index {
			pos.Index = s.Index + 1
		}
	}
	r.steps = append(r.steps, Step{StepPosition: pos, Text: text})
	sortSteps(r.steps)
	r.views.Invalidate(ViewStepsByPosition)
	return pos, nil
}

// RemoveStep drops the step at pos and renumbers the rest of its section.
func (r *Recipe) RemoveStep(pos StepPosition) bool {
	found := false
	kept := r.steps[:0:0]
	for _, s := range r.steps {
		switch {
		case s.StepPosition == pos:
			found = true
			continue
		case s.Section == pos.Section && s.Index > pos.Index:
			s.Index--
		}
		kept = append(kept, s)
	}
	if !found {
		return false
	}
	r.steps = kept
	r.views.Invalidate(ViewStepsByPosition)
	r.touch()
	return true
}

// SetTags replaces the recipe's tags.
func (r *Recipe) SetTags(tags []Tag) {
	r.tags = append([]Tag(nil), tags...)
	r.touch()
}

func (r *Recipe) setTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return &FieldError{Field: "title", Message: "is required"}
	}
	r.title = title
	return nil
}

func (r *Recipe) setDifficulty(d int) error {
	if d < 1 || d > 5 {
		return &FieldError{Field: "difficulty", Message: "must be between 1 and 5"}
	}
	r.difficulty = d
	return nil
}

func (r *Recipe) setServings(n int) error {
	if n < 1 {
		return &FieldError{Field: "servings", Message: "must be positive"}
	}
	r.servings = n
	return nil
}

func sortSteps(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].Section != steps[j].Section {
			return steps[i].Section < steps[j].Section
		}
		return steps[i].Index < steps[j].Index
	})
}

func normalizeDiets(diets []string) []string {
	seen := make(map[string]struct{}, len(diets))
	out := make([]string, 0, len(diets))
	for _, d := range diets {
		d = strings.ToLower(strings.TrimSpace(d))
		if d == "" {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
