package main

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-repository-query/recipes"
)

//go:embed seed.json
var sampleSeed []byte

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.container.Migrate(a.ctx(cmd)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
			return nil
		},
	}
}

func newSeedCmd(a *app) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the schema and load authors and recipes from a JSON file",
		Long: `Seed loads a JSON document of authors and recipes. Without --file a
built-in sample of three recipes is loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := a.ctx(cmd)
			if err := a.container.Migrate(ctx); err != nil {
				return err
			}

			var r io.Reader = bytes.NewReader(sampleSeed)
			if file != "" {
				fh, err := os.Open(file)
				if err != nil {
					return err
				}
				defer fh.Close()
				r = fh
			}
			data, err := recipes.ReadSeedFile(r)
			if err != nil {
				return err
			}

			res, err := recipes.Seed(ctx, a.container.Authors(), a.container.Recipes(), data, a.container.Logger())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d authors and %d recipes\n", len(res.Authors), len(res.Recipes))
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "seed file")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "query [key=value...]",
		Short: "List recipes matching the filters",
		Long: `Query lists recipes matching every filter.

Examples:
  recipes query difficulty_gte=3 sort=-created_at limit=10
  recipes query author_country=ES diet=vegan
  recipes query 'tags=[["cuisine","italian","<author id>"]]'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(args)
			if err != nil {
				return err
			}
			rs, err := a.container.Recipes().Query(a.ctx(cmd), f)
			if err != nil {
				return err
			}
			out := make([]recipeView, len(rs))
			for i, r := range rs {
				out[i] = newRecipeView(r)
			}
			return writeJSON(cmd, out)
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count [key=value...]",
		Short: "Count recipes matching the filters",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseFilters(args)
			if err != nil {
				return err
			}
			n, err := a.container.Recipes().Count(a.ctx(cmd), f)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		},
	}
}

func newOptionsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "List the values available for each facet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.container.Recipes().FilterOptions(a.ctx(cmd))
			if err != nil {
				return err
			}
			return writeJSON(cmd, opts)
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one recipe",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := a.container.Recipes().Get(a.ctx(cmd), args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd, newRecipeView(r))
		},
	}
}
