package recipes

import "fmt"

// Update is a command changing a recipe. The set of commands is closed; Apply
// is the only place they are interpreted.
type Update interface {
	isRecipeUpdate()
}

// Rename sets the title.
type Rename struct{ Title string }

// SetDifficulty sets the difficulty, 1 to 5.
type SetDifficulty struct{ Difficulty int }

// SetServings sets the number of servings.
type SetServings struct{ Servings int }

// SetCookTime sets or clears the cooking time.
type SetCookTime struct{ Minutes *int }

// SetDiets replaces the diets.
type SetDiets struct{ Diets []string }

// SetPublished publishes or unpublishes the recipe.
type SetPublished struct{ Published bool }

// IngredientInput is one ingredient of ReplaceIngredients.
type IngredientInput struct {
	Name     string `json:"name"`
	Quantity string `json:"quantity"`
}

// ReplaceIngredients replaces the ingredient list.
type ReplaceIngredients struct{ Ingredients []IngredientInput }

// StepInput is one step of ReplaceSteps. Steps are numbered per section in
// the order given.
type StepInput struct {
	Section string `json:"section"`
	Text    string `json:"text"`
}

// ReplaceSteps replaces every step.
type ReplaceSteps struct{ Steps []StepInput }

// Patch sets any subset of the scalar fields. Fields left nil are unchanged.
type Patch struct {
	Title      *string
	Difficulty *int
	Servings   *int
	Published  *bool
}

func (Rename) isRecipeUpdate()             {}
func (SetDifficulty) isRecipeUpdate()      {}
func (SetServings) isRecipeUpdate()        {}
func (SetCookTime) isRecipeUpdate()        {}
func (SetDiets) isRecipeUpdate()           {}
func (SetPublished) isRecipeUpdate()       {}
func (ReplaceIngredients) isRecipeUpdate() {}
func (ReplaceSteps) isRecipeUpdate()       {}
func (Patch) isRecipeUpdate()              {}

// Apply runs the updates in order and stops at the first failure. Updates
// applied before a failure are kept. The version moves by one per call that
// applied anything, however many fields changed.
func (r *Recipe) Apply(updates ...Update) error {
	applied := 0
	defer func() {
		if applied > 0 {
			r.touch()
		}
	}()
	for _, u := range updates {
		if err := r.apply(u); err != nil {
			return err
		}
		applied++
	}
	return nil
}

func (r *Recipe) apply(u Update) error {
	switch u := u.(type) {
	case Rename:
		return r.setTitle(u.Title)
	case SetDifficulty:
		return r.setDifficulty(u.Difficulty)
	case SetServings:
		return r.setServings(u.Servings)
	case SetCookTime:
		if u.Minutes != nil && *u.Minutes < 0 {
			return &FieldError{Field: "cook_minutes", Message: "must not be negative"}
		}
		r.cookMinutes = u.Minutes
		return nil
	case SetDiets:
		r.diets = normalizeDiets(u.Diets)
		return nil
	case SetPublished:
		r.published = u.Published
		return nil
	case ReplaceIngredients:
		return r.replaceIngredients(u.Ingredients)
	case ReplaceSteps:
		return r.replaceSteps(u.Steps)
	case Patch:
		return r.patch(u)
	default:
		return fmt.Errorf("recipes: unsupported update %T", u)
	}
}

func (r *Recipe) replaceIngredients(in []IngredientInput) error {
	prev := r.ingredients
	r.ingredients = nil
	for _, ing := range in {
		if _, err := r.addIngredient(ing.Name, ing.Quantity); err != nil {
			r.ingredients = prev
			r.views.Invalidate(ViewIngredientsByID, ViewIngredientIDs)
			return err
		}
	}
	r.views.Invalidate(ViewIngredientsByID, ViewIngredientIDs)
	return nil
}

func (r *Recipe) replaceSteps(in []StepInput) error {
	prev := r.steps
	r.steps = nil
	for _, s := range in {
		if _, err := r.addStep(s.Section, s.Text); err != nil {
			r.steps = prev
			r.views.Invalidate(ViewStepsByPosition)
			return err
		}
	}
	r.views.Invalidate(ViewStepsByPosition)
	return nil
}

// patch may touch anything, so every view is dropped. A field that fails
// validation leaves every field as it was.
func (r *Recipe) patch(p Patch) error {
	defer r.views.InvalidateAll()
	title, difficulty, servings := r.title, r.difficulty, r.servings
	restore := func(err error) error {
		r.title, r.difficulty, r.servings = title, difficulty, servings
		return err
	}
	if p.Title != nil {
		if err := r.setTitle(*p.Title); err != nil {
			return restore(err)
		}
	}
	if p.Difficulty != nil {
		if err := r.setDifficulty(*p.Difficulty); err != nil {
			return restore(err)
		}
	}
	if p.Servings != nil {
		if err := r.setServings(*p.Servings); err != nil {
			return restore(err)
		}
	}
	if p.Published != nil {
		r.published = *p.Published
	}
	return nil
}
