// Package genericrepo turns flat filter maps into bun select statements and
// persists aggregates with optimistic concurrency.
//
// A Repository is configured once per aggregate with a filters.Registry
// describing the root table and every related table a filter key may touch,
// plus the functions mapping domain entities to bun row models and back:
//
//	repo, err := genericrepo.New(db, genericrepo.Config[*Recipe, RecipeRow]{
//		Registry:         registry,
//		Tags:             &filters.TagSchema{Type: "recipe"},
//		SoftDeleteColumn: "discarded",
//		VersionColumn:    "version",
//		ToRow:            toRow,
//		FromRow:          fromRow,
//	})
//
//	recipes, err := repo.Query(ctx, filters.Filters{
//		"difficulty": []int{1, 2},
//		"tags":       [][3]string{{"cuisine", "thai", authorID}},
//		"sort":       "-created_at",
//		"limit":      20,
//	})
//
// Every entity returned by Query or Get, or passed to Add, is remembered so
// that Persist can refuse entities the repository never handed out.
package genericrepo
