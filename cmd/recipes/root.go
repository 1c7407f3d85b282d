package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-repository-query/filters"
	"github.com/goliatone/go-repository-query/pkg/config"
	"github.com/goliatone/go-repository-query/pkg/di"
)

// app carries the container between PersistentPreRunE and the subcommands.
type app struct {
	configFile string
	dsn        string
	container  *di.Container
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "recipes",
		Short: "Seed and query a recipes database",
		Long: `recipes stores recipes and authors and queries them with flat filter maps.

Configuration is read from --config, then RECIPES_* environment variables,
for example RECIPES_DATABASE_DSN or RECIPES_CACHE_BACKEND=redis.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.open,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.configFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.dsn, "dsn", "", "database DSN, overrides the config")

	root.AddCommand(
		newInitCmd(a),
		newSeedCmd(a),
		newQueryCmd(a),
		newCountCmd(a),
		newOptionsCmd(a),
		newGetCmd(a),
	)
	return root
}

func (a *app) open(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}

	c, err := di.New(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	a.container = c
	return nil
}

func (a *app) close() error {
	if a.container == nil {
		return nil
	}
	return a.container.Close()
}

func (a *app) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// parseFilters turns key=value arguments into a filter map. Values that parse
// as JSON keep their JSON type, so difficulty=[2,3] is a list and
// published=true a boolean; anything else is a string.
func parseFilters(args []string) (filters.Filters, error) {
	f := make(filters.Filters, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", arg)
		}
		var parsed any
		if err := json.Unmarshal([]byte(value), &parsed); err != nil {
			parsed = value
		}
		f[key] = parsed
	}
	return f, nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
