package value

import (
	"reflect"
	"strings"
	"time"
)

// Lookup resolves a dotted field path against a document. A missing field,
// or a path that runs through a non-object, yields UndefinedValue.
func Lookup(doc map[string]any, path string) Value {
	if doc == nil {
		return UndefinedValue
	}
	if !strings.Contains(path, ".") {
		v, ok := doc[path]
		if !ok {
			return UndefinedValue
		}
		return Of(v)
	}

	cur := doc
	parts := strings.Split(path, ".")
	for i, part := range parts {
		v, ok := cur[part]
		if !ok {
			return UndefinedValue
		}
		if i == len(parts)-1 {
			return Of(v)
		}
		next := Of(v)
		if next.kind != Object {
			return UndefinedValue
		}
		cur = next.obj
	}
	return UndefinedValue
}

// Clone deep-copies a document value. Maps with string keys become
// map[string]any, slices become []any and time pointers are dereferenced,
// so stored documents only ever hold the shapes Of classifies directly.
func Clone(v any) any {
	switch x := v.(type) {
	case nil, bool, string, float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, time.Time:
		return x
	case *time.Time:
		if x == nil {
			return nil
		}
		return *x
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = Clone(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = Clone(e)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return v
		}
		if rv.IsNil() {
			return nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = Clone(iter.Value().Interface())
		}
		return out
	case reflect.Slice:
		if rv.IsNil() {
			return nil
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Clone(rv.Index(i).Interface())
		}
		return out
	case reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Clone(rv.Index(i).Interface())
		}
		return out
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return Clone(rv.Elem().Interface())
	}
	return v
}

// CloneDocument deep-copies a top-level document.
func CloneDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	return Clone(doc).(map[string]any)
}
