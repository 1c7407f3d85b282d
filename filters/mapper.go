package filters

import (
	"fmt"
	"sort"
)

// Kind describes how a column stores its values. It drives operator inference.
type Kind uint8

const (
	KindString Kind = iota
	KindInt
	KindFloat
	KindBool
	KindTime
	// KindList marks a column holding a JSON encoded list of scalars.
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindTime:
		return "time"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Column is the target of a filter key.
type Column struct {
	Name string
	Kind Kind
}

// Join is one step of the path from the root table to a related table.
// On is trusted configuration and is rendered verbatim.
type Join struct {
	Table string
	Alias string
	On    string
}

func (j Join) identity() string {
	if j.Alias != "" {
		return j.Alias
	}
	return j.Table
}

// Mapper declares the filter keys owned by one table.
type Mapper struct {
	Table   string
	Alias   string
	Columns map[string]Column
	// Joins is empty for the root table.
	Joins []Join
	// Facets lists the keys reported by FilterOptions.
	Facets []string
}

// Qualified returns the alias qualified column name, e.g. "r.created_at".
func (m *Mapper) Qualified(column string) string {
	return m.Alias + "." + column
}

// Binding is a filter key resolved to the mapper and column that own it.
type Binding struct {
	Key    string
	Mapper *Mapper
	Column Column
}

// Qualified returns the alias qualified column of the binding.
func (b Binding) Qualified() string {
	return b.Mapper.Qualified(b.Column.Name)
}

// Registry is the static schema a repository filters against: the root mapper
// plus every related mapper, indexed by filter key.
type Registry struct {
	root    *Mapper
	mappers []*Mapper
	keys    map[string]Binding
}

// NewRegistry validates the mappers and indexes their keys. A key declared by
// more than one mapper is a configuration error.
func NewRegistry(root Mapper, related ...Mapper) (*Registry, error) {
	r := &Registry{keys: make(map[string]Binding)}
	aliases := make(map[string]string)

	all := append([]Mapper{root}, related...)
	for i := range all {
		m := all[i]
		if m.Table == "" {
			return nil, fmt.Errorf("filters: mapper %d has no table", i)
		}
		if m.Alias == "" {
			m.Alias = m.Table
		}
		if i == 0 && len(m.Joins) > 0 {
			return nil, fmt.Errorf("filters: root mapper %s cannot declare joins", m.Table)
		}
		if owner, ok := aliases[m.Alias]; ok {
			return nil, fmt.Errorf("filters: alias %q used by %s and %s", m.Alias, owner, m.Table)
		}
		aliases[m.Alias] = m.Table

		mp := &m
		for key, col := range m.Columns {
			if col.Name == "" {
				return nil, fmt.Errorf("filters: key %q on %s has no column", key, m.Table)
			}
			if IsReserved(key) {
				return nil, fmt.Errorf("filters: key %q on %s is reserved", key, m.Table)
			}
			if prev, ok := r.keys[key]; ok {
				return nil, fmt.Errorf("filters: key %q declared by %s and %s", key, prev.Mapper.Table, m.Table)
			}
			r.keys[key] = Binding{Key: key, Mapper: mp, Column: col}
		}
		for _, facet := range m.Facets {
			if _, ok := m.Columns[facet]; !ok {
				return nil, fmt.Errorf("filters: facet %q is not a key of %s", facet, m.Table)
			}
		}
		r.mappers = append(r.mappers, mp)
	}

	r.root = r.mappers[0]
	return r, nil
}

// Root returns the mapper of the table rows are returned from.
func (r *Registry) Root() *Mapper {
	return r.root
}

// Mappers returns every mapper, root first, in declaration order.
func (r *Registry) Mappers() []*Mapper {
	return r.mappers
}

// Lookup returns the binding registered for key, without suffix handling.
func (r *Registry) Lookup(key string) (Binding, bool) {
	b, ok := r.keys[key]
	return b, ok
}

// Keys returns every registered key, sorted.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Resolve maps a filter key, possibly carrying an operator suffix, to its
// binding. A registered key is never split, so a column key that happens to
// end in "_ne" keeps working. The structural created_at key falls back to the
// root table when no mapper declares it.
func (r *Registry) Resolve(key string) (KeyRef, bool) {
	if b, ok := r.keys[key]; ok {
		return KeyRef{Key: key, Binding: b}, true
	}
	if base, op, ok := SplitSuffix(key); ok {
		if b, ok := r.lookupOrStructural(base); ok {
			return KeyRef{Key: key, Binding: b, Forced: true, Operator: op}, true
		}
		return KeyRef{}, false
	}
	if b, ok := r.lookupOrStructural(key); ok {
		return KeyRef{Key: key, Binding: b}, true
	}
	return KeyRef{}, false
}

func (r *Registry) lookupOrStructural(key string) (Binding, bool) {
	if b, ok := r.keys[key]; ok {
		return b, true
	}
	if key == KeyCreatedAt {
		return Binding{Key: key, Mapper: r.root, Column: Column{Name: KeyCreatedAt, Kind: KindTime}}, true
	}
	return Binding{}, false
}

// KeyRef is a resolved filter key.
type KeyRef struct {
	Key      string
	Binding  Binding
	Forced   bool
	Operator Operator
}

// FacetBindings returns the bindings of every declared facet, root first.
func (r *Registry) FacetBindings() []Binding {
	var out []Binding
	for _, m := range r.mappers {
		for _, facet := range m.Facets {
			out = append(out, r.keys[facet])
		}
	}
	return out
}
