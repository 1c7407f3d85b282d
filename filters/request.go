package filters

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Filters is the flat, transport agnostic description of the rows a caller
// wants back.
//
//	{
//		"<key>[_gte|_lte|_ne|_not_in|_is_not]": scalar | list,
//		"tags":            [(key, value, author_id), ...],
//		"tags_not_exists": [(key, value, author_id), ...],
//		"sort":            "[-]<key>",
//		"skip":            int,
//		"limit":           int,
//	}
type Filters map[string]any

// Structural and reserved keys.
const (
	KeySkip           = "skip"
	KeyLimit          = "limit"
	KeySort           = "sort"
	KeyCreatedAt      = "created_at"
	KeyTags           = "tags"
	KeyTagsNotExists  = "tags_not_exists"
	descendingPrefix  = "-"
	maxPaginationSize = math.MaxInt32
)

// IsStructural reports whether key shapes the statement rather than filtering
// a column.
func IsStructural(key string) bool {
	switch key {
	case KeySkip, KeyLimit, KeySort, KeyCreatedAt:
		return true
	}
	return false
}

// IsReserved reports whether key cannot be declared by a mapper.
func IsReserved(key string) bool {
	switch key {
	case KeySkip, KeyLimit, KeySort, KeyTags, KeyTagsNotExists:
		return true
	}
	return false
}

// Clone returns a shallow copy of f.
func (f Filters) Clone() Filters {
	out := make(Filters, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of f in a stable order.
func (f Filters) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Sort is a parsed sort key.
type Sort struct {
	Key        string
	Descending bool
}

// ParseSort parses "[-]<key>".
func ParseSort(value any) (Sort, error) {
	s, ok := value.(string)
	if !ok {
		return Sort{}, invalid(KeySort, "expected a string", value)
	}
	s = strings.TrimSpace(s)
	desc := strings.HasPrefix(s, descendingPrefix)
	key := strings.TrimPrefix(s, descendingPrefix)
	if key == "" {
		return Sort{}, invalid(KeySort, "missing key", value)
	}
	return Sort{Key: key, Descending: desc}, nil
}

// ParseCount parses a non-negative skip or limit value.
func ParseCount(field string, value any) (int, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case uint:
		n = int64(v)
	case float64:
		if v != math.Trunc(v) {
			return 0, invalid(field, "expected an integer", value)
		}
		n = int64(v)
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, invalid(field, "expected an integer", value)
		}
		n = parsed
	default:
		return 0, invalid(field, "expected an integer", value)
	}
	if n < 0 || n > maxPaginationSize {
		return 0, invalid(field, fmt.Sprintf("must be between 0 and %d", maxPaginationSize), value)
	}
	return int(n), nil
}

// Request is a filter map validated against a Registry. Nothing in a Request
// can fail once built; every error surfaces from Parse.
type Request struct {
	Skip          int
	Limit         int
	Sort          *Sort
	SortRef       KeyRef
	Keys          []KeyRef
	Values        map[string]any
	Tags          []TagFilter
	TagsNotExists []TagFilter
}

// Parse validates every key of f against the registry. tagsEnabled is false
// for aggregates without a tag relation, in which case the tag keys are
// unknown.
func (r *Registry) Parse(f Filters, tagsEnabled bool) (*Request, error) {
	req := &Request{Values: make(map[string]any, len(f))}

	for _, key := range f.SortedKeys() {
		value := f[key]
		switch key {
		case KeySkip:
			n, err := ParseCount(key, value)
			if err != nil {
				return nil, err
			}
			req.Skip = n
			continue
		case KeyLimit:
			n, err := ParseCount(key, value)
			if err != nil {
				return nil, err
			}
			req.Limit = n
			continue
		case KeySort:
			s, err := ParseSort(value)
			if err != nil {
				return nil, err
			}
			ref, ok := r.Resolve(s.Key)
			if !ok || ref.Forced {
				return nil, invalid(KeySort, "unknown sort key", s.Key)
			}
			req.Sort = &s
			req.SortRef = ref
			continue
		case KeyTags, KeyTagsNotExists:
			if !tagsEnabled {
				return nil, invalid(key, "unknown filter key", nil)
			}
			tags, err := ParseTagFilters(key, value)
			if err != nil {
				return nil, err
			}
			if key == KeyTags {
				req.Tags = tags
			} else {
				req.TagsNotExists = tags
			}
			continue
		}

		ref, ok := r.Resolve(key)
		if !ok {
			return nil, invalid(key, "unknown filter key", nil)
		}
		req.Keys = append(req.Keys, ref)
		req.Values[key] = value
	}

	return req, nil
}

// KeysFor returns the parsed keys owned by m, in key order.
func (req *Request) KeysFor(m *Mapper) []KeyRef {
	var out []KeyRef
	for _, ref := range req.Keys {
		if ref.Binding.Mapper == m {
			out = append(out, ref)
		}
	}
	return out
}
