package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, dsn string, args ...string) string {
	t.Helper()
	t.Setenv("RECIPES_LOG_LEVEL", "error")

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--dsn", dsn}, args...))
	require.NoError(t, cmd.Execute(), out.String())
	return out.String()
}

func TestCLI_SeedQueryOptionsGet(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "recipes.db")

	assert.Contains(t, run(t, dsn, "init"), "schema ready")
	assert.Contains(t, run(t, dsn, "seed"), "seeded 2 authors and 3 recipes")

	var listed []recipeView
	require.NoError(t, json.Unmarshal([]byte(run(t, dsn, "query", "diet=vegetarian", "sort=title")), &listed))
	require.Len(t, listed, 2)
	assert.Equal(t, "Gazpacho", listed[0].Title)
	assert.Equal(t, "Tortilla", listed[1].Title)

	assert.Equal(t, "2", strings.TrimSpace(run(t, dsn, "count", "difficulty_gte=2")))

	var opts map[string][]string
	require.NoError(t, json.Unmarshal([]byte(run(t, dsn, "options")), &opts))
	assert.Equal(t, []string{"ES", "IT"}, opts["author_country"])
	assert.Equal(t, []string{"italian", "spanish"}, opts["tag:cuisine"])

	var got recipeView
	require.NoError(t, json.Unmarshal([]byte(run(t, dsn, "get", listed[1].ID)), &got))
	assert.Equal(t, "Tortilla", got.Title)
	assert.Len(t, got.Steps, 2)
}

func TestCLI_InvalidFilter(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "recipes.db")
	run(t, dsn, "init")

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--dsn", dsn, "query", "colour=red"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "colour")
}

func TestParseFilters(t *testing.T) {
	f, err := parseFilters([]string{"difficulty=[2,3]", "published=true", "title=Tacos", "limit=5"})
	require.NoError(t, err)
	assert.Equal(t, []any{float64(2), float64(3)}, f["difficulty"])
	assert.Equal(t, true, f["published"])
	assert.Equal(t, "Tacos", f["title"])
	assert.Equal(t, float64(5), f["limit"])

	_, err = parseFilters([]string{"novalue"})
	require.Error(t, err)
}
