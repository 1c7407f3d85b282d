package cache

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// KeySeparator joins the segments of a key.
const KeySeparator = "::"

// keySerializer renders arguments canonically. Map entries are sorted by
// their rendered key, so two filter maps with the same entries share a key.
type keySerializer struct {
	namespace string
}

// NewKeySerializer returns a serializer whose keys all start with
// namespace + KeySeparator. An empty namespace adds no prefix.
func NewKeySerializer(namespace string) KeySerializer {
	return &keySerializer{namespace: namespace}
}

// NewDefaultKeySerializer returns a serializer without a namespace.
func NewDefaultKeySerializer() KeySerializer {
	return &keySerializer{}
}

// Prefix returns the key prefix shared by every key of namespace.
func Prefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return namespace + KeySeparator
}

func (s *keySerializer) SerializeKey(method string, args ...any) string {
	var b strings.Builder
	b.WriteString(Prefix(s.namespace))
	b.WriteString(method)
	for _, arg := range args {
		b.WriteString(KeySeparator)
		b.WriteString(render(reflect.ValueOf(arg)))
	}
	return b.String()
}

var timeType = reflect.TypeOf(time.Time{})

func render(v reflect.Value) string {
	if !v.IsValid() {
		return "nil"
	}
	if v.Type() == timeType {
		return "time:" + v.Interface().(time.Time).UTC().Format(time.RFC3339Nano)
	}

	switch v.Kind() {
	case reflect.Func:
		if v.IsNil() {
			return "func:nil"
		}
		return fmt.Sprintf("func:%#x", v.Pointer())
	case reflect.Chan:
		return fmt.Sprintf("chan:%#x", v.Pointer())
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return render(v.Elem())
	case reflect.Slice:
		if v.IsNil() {
			return "[]"
		}
		return renderList(v)
	case reflect.Array:
		return renderList(v)
	case reflect.Map:
		return renderMap(v)
	case reflect.Struct:
		return renderStruct(v)
	case reflect.String:
		return fmt.Sprintf("%q", v.String())
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return fmt.Sprint(v.Interface())
	}
	return jsonFallback(v)
}

func renderList(v reflect.Value) string {
	parts := make([]string, v.Len())
	for i := range parts {
		parts[i] = render(v.Index(i))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func renderMap(v reflect.Value) string {
	pairs := make([]string, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, render(iter.Key())+"="+render(iter.Value()))
	}
	sort.Strings(pairs)
	return "{" + strings.Join(pairs, ",") + "}"
}

func renderStruct(v reflect.Value) string {
	t := v.Type()
	parts := make([]string, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		parts = append(parts, field.Name+":"+render(v.Field(i)))
	}
	return t.Name() + "{" + strings.Join(parts, ",") + "}"
}

func jsonFallback(v reflect.Value) string {
	if !v.CanInterface() {
		return "opaque:" + v.Type().String()
	}
	data, err := json.Marshal(v.Interface())
	if err != nil {
		return "opaque:" + v.Type().String()
	}
	return "json:" + string(data)
}

func typeName(v any) string {
	if v == nil {
		return "nil"
	}
	return reflect.TypeOf(v).String()
}
