package db

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"github.com/skshohagmiah/flindb/internal/value"
)

// now is replaced in tests
var now = time.Now

// toID accepts the integer shapes an _id can take after decoding.
func toID(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, x > 0
	case int:
		return int64(x), x > 0
	case int32:
		return int64(x), x > 0
	case uint64:
		return int64(x), x > 0 && x <= math.MaxInt64
	case float64:
		if x != math.Trunc(x) || x <= 0 || x > 1<<53 {
			return 0, false
		}
		return int64(x), true
	case json.Number:
		n, err := x.Int64()
		return n, err == nil && n > 0
	}
	return 0, false
}

// cloneDoc deep-copies a document into the shapes the ordering module
// classifies directly.
func cloneDoc(doc Document) Document {
	if doc == nil {
		return nil
	}
	return Document(value.CloneDocument(doc))
}

// userFields is doc without the bookkeeping fields.
func userFields(doc Document) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		out[k] = v
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
