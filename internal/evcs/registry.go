package evcs

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"
)

// The root column holds the stable identity shared by all snapshots of one
// logical entity (user_id on user_version rows, project_id on
// project_version rows). Commands locate it through this registry rather
// than re-deriving it per call: a silently wrong column name would corrupt
// history, so the mapping is explicit, registered once per entity type, and
// the naming convention only serves as a fallback.

var (
	rootColumnsMu sync.RWMutex
	rootColumns   = map[string]string{}
)

// RegisterRootColumn binds a version model's root column name. Call from the
// model package's init. Registering the same type twice with a different
// column panics: it means two packages disagree about the entity's identity.
func RegisterRootColumn(model any, column string) {
	name := typeName(model)
	rootColumnsMu.Lock()
	defer rootColumnsMu.Unlock()
	if existing, ok := rootColumns[name]; ok && existing != column {
		panic(fmt.Sprintf("evcs: root column for %s registered as both %q and %q", name, existing, column))
	}
	rootColumns[name] = column
}

// RootColumn returns the registered root column for a version model, falling
// back to the naming convention when the type was never registered.
func RootColumn(model any) string {
	name := typeName(model)
	rootColumnsMu.RLock()
	col, ok := rootColumns[name]
	rootColumnsMu.RUnlock()
	if ok {
		return col
	}
	return DeriveRootColumn(name)
}

// DeriveRootColumn derives the root column name from a version type name:
// snake_case the name, strip a trailing "_version", append "_id".
// UserVersion -> user_id, UserPreferenceVersion -> user_preference_id.
func DeriveRootColumn(typeName string) string {
	snake := toSnake(typeName)
	snake = strings.TrimSuffix(snake, "_version")
	return snake + "_id"
}

func typeName(model any) string {
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

func toSnake(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (!unicode.IsUpper(runes[i-1]) || (i+1 < len(runes) && !unicode.IsUpper(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
