package recipes

import (
	"errors"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newTestRecipe(t *testing.T, logger *zap.Logger) *Recipe {
	t.Helper()
	r, err := NewRecipe(NewRecipeInput{
		Title:      "Pad thai",
		Difficulty: 2,
		Servings:   2,
		AuthorID:   "u1",
		Diets:      []string{" Vegan", "vegan", "gluten-free"},
	}, logger)
	require.NoError(t, err)
	return r
}

func sameMap(a, b any) bool {
	return reflect.ValueOf(a).Pointer() == reflect.ValueOf(b).Pointer()
}

func TestNewRecipeValidates(t *testing.T) {
	_, err := NewRecipe(NewRecipeInput{Title: "x", Difficulty: 9, Servings: 1, AuthorID: "u1"}, nil)
	var ferr *FieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "difficulty", ferr.Field)

	r := newTestRecipe(t, nil)
	assert.NotEmpty(t, r.ID())
	assert.Equal(t, []string{"gluten-free", "vegan"}, r.Diets())
	assert.False(t, r.CreatedAt().IsZero())
}

func TestViewsFollowTheirSourceCollection(t *testing.T) {
	r := newTestRecipe(t, nil)
	noodles, err := r.AddIngredient("rice noodles", "200g")
	require.NoError(t, err)
	soak, err := r.AddStep("prep", "soak the noodles")
	require.NoError(t, err)

	steps := r.StepsByPosition()
	byID := r.IngredientsByID()
	assert.True(t, r.HasIngredient(noodles.ID))
	assert.Equal(t, "soak the noodles", steps[soak].Text)

	tofu, err := r.AddIngredient("tofu", "150g")
	require.NoError(t, err)

	assert.False(t, r.ViewComputed(ViewIngredientsByID))
	assert.False(t, r.ViewComputed(ViewIngredientIDs))
	assert.True(t, r.ViewComputed(ViewStepsByPosition), "steps were not touched")
	assert.True(t, sameMap(steps, r.StepsByPosition()), "untouched view keeps its identity")

	assert.True(t, r.HasIngredient(tofu.ID))
	assert.Len(t, r.IngredientsByID(), 2)
	assert.False(t, sameMap(byID, r.IngredientsByID()))

	fry, err := r.AddStep("cook", "fry the tofu")
	require.NoError(t, err)
	_, ok := r.Step(fry)
	assert.True(t, ok)

	require.True(t, r.RemoveIngredient(noodles.ID))
	assert.False(t, r.HasIngredient(noodles.ID))
	_, ok = r.Ingredient(tofu.ID)
	assert.True(t, ok)
}

func TestRemoveStepRenumbersSection(t *testing.T) {
	r := newTestRecipe(t, nil)
	for _, text := range []string{"one", "two", "three"} {
		_, err := r.AddStep("main", text)
		require.NoError(t, err)
	}
	_, err := r.AddStep("sauce", "mix")
	require.NoError(t, err)

	require.True(t, r.RemoveStep(StepPosition{Section: "main", Index: 1}))
	assert.False(t, r.RemoveStep(StepPosition{Section: "main", Index: 7}))

	s, ok := r.Step(StepPosition{Section: "main", Index: 1})
	require.True(t, ok)
	assert.Equal(t, "three", s.Text)
	_, ok = r.Step(StepPosition{Section: "main", Index: 2})
	assert.False(t, ok)
	s, ok = r.Step(StepPosition{Section: "sauce", Index: 0})
	require.True(t, ok)
	assert.Equal(t, "mix", s.Text)
}

func TestApplyUpdates(t *testing.T) {
	r := newTestRecipe(t, nil)
	minutes := 25
	require.NoError(t, r.Apply(
		Rename{Title: "Pad see ew"},
		SetDifficulty{Difficulty: 3},
		SetCookTime{Minutes: &minutes},
		SetPublished{Published: true},
		SetDiets{Diets: []string{"Vegetarian"}},
		ReplaceIngredients{Ingredients: []IngredientInput{{Name: "noodles"}, {Name: "broccoli"}}},
		ReplaceSteps{Steps: []StepInput{{Section: "main", Text: "stir fry"}}},
	))

	assert.Equal(t, "Pad see ew", r.Title())
	assert.Equal(t, 3, r.Difficulty())
	got, ok := r.CookMinutes()
	assert.True(t, ok)
	assert.Equal(t, 25, got)
	assert.True(t, r.Published())
	assert.Equal(t, []string{"vegetarian"}, r.Diets())
	assert.Len(t, r.IngredientIDs(), 2)
	assert.Len(t, r.StepsByPosition(), 1)

	err := r.Apply(Rename{Title: " "})
	var ferr *FieldError
	require.True(t, errors.As(err, &ferr))
	assert.Equal(t, "Pad see ew", r.Title())

	err = r.Apply(ReplaceIngredients{Ingredients: []IngredientInput{{Name: "ok"}, {Name: ""}}})
	require.Error(t, err)
	assert.Len(t, r.Ingredients(), 2, "a failed replacement keeps the previous list")
	assert.Len(t, r.IngredientIDs(), 2)
}

func TestPatchInvalidatesEveryView(t *testing.T) {
	r := newTestRecipe(t, nil)
	_, err := r.AddIngredient("rice", "")
	require.NoError(t, err)
	r.StepsByPosition()
	r.IngredientsByID()
	r.IngredientIDs()

	servings := 4
	require.NoError(t, r.Apply(Patch{Servings: &servings}))

	for _, v := range []View{ViewStepsByPosition, ViewIngredientsByID, ViewIngredientIDs} {
		assert.Falsef(t, r.ViewComputed(v), "view %s", v)
	}
	assert.Equal(t, 4, r.Servings())
}

func TestVersionMovesOncePerChange(t *testing.T) {
	r := newTestRecipe(t, nil)
	require.Zero(t, r.Version())

	title, difficulty, servings := "Pad kee mao", 4, 3
	require.NoError(t, r.Apply(Patch{Title: &title, Difficulty: &difficulty, Servings: &servings}))
	assert.Equal(t, int64(1), r.Version(), "a multi-field patch is one change")

	require.NoError(t, r.Apply(
		ReplaceIngredients{Ingredients: []IngredientInput{{Name: "noodles"}, {Name: "basil"}}},
		ReplaceSteps{Steps: []StepInput{{Section: "main", Text: "fry"}, {Section: "main", Text: "toss"}}},
	))
	assert.Equal(t, int64(2), r.Version(), "one Apply call is one change")

	other, bad := "Pad thai", 9
	require.Error(t, r.Apply(Patch{Title: &other, Difficulty: &bad}))
	assert.Equal(t, int64(2), r.Version())
	assert.Equal(t, "Pad kee mao", r.Title(), "a rejected patch changes nothing")

	ing, err := r.AddIngredient("lime", "1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), r.Version())
	assert.True(t, r.RemoveIngredient(ing.ID))
	assert.False(t, r.RemoveIngredient(ing.ID))
	assert.Equal(t, int64(4), r.Version(), "a no-op removal is not a change")

	r.SetTags([]Tag{{Key: "cuisine", Value: "thai", AuthorID: "u1"}})
	r.Discard()
	assert.Equal(t, int64(6), r.Version())

	a, err := NewAuthor("Ada", "gb")
	require.NoError(t, err)
	require.NoError(t, a.Rename("Ada L."))
	a.Relocate("se")
	a.SetTags(nil)
	assert.Equal(t, int64(3), a.Version())
	require.Error(t, a.Rename(" "))
	assert.Equal(t, int64(3), a.Version())
}

func TestInvalidatingUnknownViewWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := newTestRecipe(t, zap.New(core))

	r.views.Invalidate(View(42))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "view(42)", logs.All()[0].ContextMap()["view"])
}
