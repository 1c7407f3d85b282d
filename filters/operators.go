package filters

import (
	"encoding/json"
	"reflect"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
)

// Operator is the comparison applied between a column and a filter value.
type Operator uint8

const (
	OpEqual Operator = iota
	OpIn
	OpContains
	OpIs
	OpGreaterOrEqual
	OpLessOrEqual
	OpNotEqual
	OpNotIn
	OpIsNot
)

func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpIn:
		return "IN"
	case OpContains:
		return "CONTAINS"
	case OpIs:
		return "IS"
	case OpGreaterOrEqual:
		return ">="
	case OpLessOrEqual:
		return "<="
	case OpNotEqual:
		return "<>"
	case OpNotIn:
		return "NOT IN"
	case OpIsNot:
		return "IS NOT"
	default:
		return "?"
	}
}

// MultiValue reports whether the operator compares against a list of values.
func (o Operator) MultiValue() bool {
	return o == OpIn || o == OpNotIn
}

// longest suffixes first so "_not_in" is never read as "..._not" + "_in".
var suffixes = []struct {
	suffix string
	op     Operator
}{
	{"_not_in", OpNotIn},
	{"_is_not", OpIsNot},
	{"_gte", OpGreaterOrEqual},
	{"_lte", OpLessOrEqual},
	{"_ne", OpNotEqual},
}

// SplitSuffix strips a recognised operator suffix from key.
func SplitSuffix(key string) (string, Operator, bool) {
	for _, s := range suffixes {
		if base, ok := strings.CutSuffix(key, s.suffix); ok && base != "" {
			return base, s.op, true
		}
	}
	return key, OpEqual, false
}

// ResolveOperator picks the operator for a filter key, its value and the kind
// of the target column. Suffixes win over inference.
func ResolveOperator(key string, value any, kind Kind) Operator {
	if _, op, ok := SplitSuffix(key); ok {
		return op
	}
	return inferOperator(value, kind)
}

// OperatorFor is ResolveOperator for a key already resolved by a Registry.
func OperatorFor(ref KeyRef, value any) Operator {
	if ref.Forced {
		return ref.Operator
	}
	return inferOperator(value, ref.Binding.Column.Kind)
}

func inferOperator(value any, kind Kind) Operator {
	switch {
	case isList(value):
		return OpIn
	case kind == KindList:
		return OpContains
	case kind == KindBool:
		return OpIs
	default:
		return OpEqual
	}
}

func isList(value any) bool {
	if value == nil {
		return false
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		// []byte is a scalar blob, not a membership list.
		return rv.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	default:
		return false
	}
}

func listLen(value any) int {
	return reflect.ValueOf(value).Len()
}

// Predicate renders the comparison of column against value as select criteria.
// column is alias qualified ("r.difficulty"). name is the filter key used in
// validation errors.
func Predicate(d dialect.Name, name, column string, op Operator, value any) (repository.SelectCriteria, error) {
	col := bun.Ident(column)

	if isNull(value) {
		return nullPredicate(name, col, op)
	}

	switch op {
	case OpEqual:
		if isList(value) {
			return nil, invalid(name, "equality needs a scalar value", value)
		}
		return where("? = ?", col, value), nil

	case OpGreaterOrEqual, OpLessOrEqual, OpNotEqual:
		if isList(value) {
			return nil, invalid(name, "operator "+op.String()+" needs a scalar value", value)
		}
		return where("? "+op.String()+" ?", col, value), nil

	case OpIs, OpIsNot:
		if isList(value) {
			return nil, invalid(name, "operator "+op.String()+" needs a scalar value", value)
		}
		return where("? "+op.String()+" ?", col, value), nil

	case OpIn:
		if !isList(value) {
			value = []any{value}
		}
		if listLen(value) == 0 {
			return where("1 = 0"), nil
		}
		return where("? IN (?)", col, bun.In(value)), nil

	case OpNotIn:
		if !isList(value) {
			value = []any{value}
		}
		if listLen(value) == 0 {
			return func(q *bun.SelectQuery) *bun.SelectQuery { return q }, nil
		}
		return where("(? IS NULL OR ? NOT IN (?))", col, col, bun.In(value)), nil

	case OpContains:
		if isList(value) {
			return nil, invalid(name, "contains needs a scalar value", value)
		}
		return containsPredicate(d, name, col, value)
	}

	return nil, invalid(name, "unsupported operator", op.String())
}

// nullPredicate compares against SQL NULL, which "=" never matches.
func nullPredicate(name string, col bun.Ident, op Operator) (repository.SelectCriteria, error) {
	switch op {
	case OpEqual, OpIs, OpIn:
		return where("? IS NULL", col), nil
	case OpNotEqual, OpIsNot, OpNotIn:
		return where("? IS NOT NULL", col), nil
	default:
		return nil, invalid(name, "operator "+op.String()+" cannot compare against null", nil)
	}
}

func isNull(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	return rv.Kind() == reflect.Pointer && rv.IsNil()
}

func containsPredicate(d dialect.Name, name string, col bun.Ident, value any) (repository.SelectCriteria, error) {
	switch d {
	case dialect.PG:
		doc, err := json.Marshal([]any{value})
		if err != nil {
			return nil, invalid(name, "value cannot be encoded", value)
		}
		return where("?::jsonb @> ?::jsonb", col, string(doc)), nil
	default:
		return where("EXISTS (SELECT 1 FROM json_each(?) AS je WHERE je.value = ?)", col, value), nil
	}
}

func where(query string, args ...any) repository.SelectCriteria {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where(query, args...)
	}
}
