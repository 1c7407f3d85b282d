package repositorycache

import (
	"reflect"
	"strings"
	"unicode"
)

// namespaceOf derives a key namespace from the entity type, so *recipes.Recipe
// becomes "recipe". Anything that is not a letter or digit becomes a single
// underscore, which keeps the namespace safe as a redis key prefix.
func namespaceOf[D any]() string {
	t := reflect.TypeOf((*D)(nil)).Elem()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	if name == "" {
		name = t.String()
	}
	return toSnake(name)
}

// toSnake lowercases s and inserts an underscore at every word boundary:
// lower to upper (cookTime), acronym end (HTTPServer) and letter to digit.
func toSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	pending := false

	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pending = b.Len() > 0
			continue
		}
		if b.Len() > 0 && !pending && i > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)):
				pending = true
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				pending = true
			case unicode.IsDigit(r) && unicode.IsLetter(prev):
				pending = true
			}
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
