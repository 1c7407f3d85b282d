// Package filters translates flat filter maps into bun query criteria.
//
// # Overview
//
// A repository declares one Mapper per table it can filter on: the root table
// it returns rows from, plus any related table reached through a join. The
// mappers are collected into a Registry, which is the static schema used to
// validate and resolve filter keys. No reflection over row models is involved;
// every filterable key, its column and its column kind are declared up front.
//
//	root := filters.Mapper{
//		Table: "recipes",
//		Alias: "r",
//		Columns: map[string]filters.Column{
//			"difficulty": {Name: "difficulty", Kind: filters.KindString},
//			"published":  {Name: "published", Kind: filters.KindBool},
//		},
//	}
//	authors := filters.Mapper{
//		Table: "authors",
//		Alias: "a",
//		Joins: []filters.Join{{Table: "authors", Alias: "a", On: "a.id = r.author_id"}},
//		Columns: map[string]filters.Column{
//			"author_name": {Name: "name", Kind: filters.KindString},
//		},
//	}
//	registry, err := filters.NewRegistry(root, authors)
//
// # Operators
//
// The comparison applied for a key is chosen by ResolveOperator:
//
//   - the suffixes _gte, _lte, _ne, _not_in and _is_not force an operator
//   - a slice value is a membership test (IN)
//   - a scalar against a list column is a containment test
//   - a scalar against a boolean column is IS
//   - anything else is equality
//
// _not_in also matches NULL columns: a missing value is never part of the
// excluded set.
//
// # Joins
//
// JoinManager adds each related table at most once per statement and reports
// when the statement needs DISTINCT because a join or a multi-value comparison
// may have multiplied rows.
//
// # Tags
//
// TagEngine builds EXISTS predicates over the polymorphic tags relation.
// Inclusion groups tuples by key (values sharing a key are alternatives, keys are
// all required). Exclusion negates the flat, ungrouped list: any single matching
// tuple disqualifies a row.
package filters
