package value

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedDoc map[string]any

func TestLookup(t *testing.T) {
	doc := map[string]any{
		"name":    "odin",
		"missing": nil,
		"options": map[string]any{"a": true, "deep": map[string]any{"n": 3}},
		"tags":    []any{"x"},
	}

	assert.Equal(t, "odin", Lookup(doc, "name").Str())
	assert.Equal(t, Null, Lookup(doc, "missing").Kind())
	assert.Equal(t, Undefined, Lookup(doc, "nope").Kind())
	assert.True(t, Lookup(doc, "options.a").Bool())

	n, ok := Lookup(doc, "options.deep.n").Float()
	require.True(t, ok)
	assert.Equal(t, 3.0, n)

	assert.Equal(t, Undefined, Lookup(doc, "name.first").Kind())
	assert.Equal(t, Undefined, Lookup(doc, "tags.0").Kind())
	assert.Equal(t, Undefined, Lookup(nil, "name").Kind())
}

func TestCloneNormalizesShapes(t *testing.T) {
	ts := time.Date(2020, 5, 1, 12, 0, 0, 0, time.UTC)
	src := map[string]any{
		"list":   []string{"a", "b"},
		"nested": namedDoc{"k": []int{1, 2}},
		"when":   &ts,
	}

	out := CloneDocument(src)
	assert.Equal(t, []any{"a", "b"}, out["list"])
	assert.Equal(t, map[string]any{"k": []any{1, 2}}, out["nested"])
	assert.Equal(t, ts, out["when"])

	out["list"].([]any)[0] = "changed"
	assert.Equal(t, "a", src["list"].([]string)[0])
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ts := time.Date(2021, 3, 4, 5, 6, 7, 8, time.UTC)
	doc := map[string]any{
		"when":  ts,
		"bad":   math.NaN(),
		"big":   math.Inf(-1),
		"items": []any{ts, 1.5},
	}

	enc := Encode(doc).(map[string]any)
	assert.Equal(t, map[string]any{TagDate: ts.Format(time.RFC3339Nano)}, enc["when"])
	assert.Equal(t, map[string]any{TagNumber: "NaN"}, enc["bad"])
	// Encode leaves the source untouched.
	assert.Equal(t, ts, doc["when"])

	dec := Decode(enc).(map[string]any)
	assert.True(t, ts.Equal(dec["when"].(time.Time)))
	assert.True(t, math.IsNaN(dec["bad"].(float64)))
	assert.True(t, math.IsInf(dec["big"].(float64), -1))
	assert.True(t, ts.Equal(dec["items"].([]any)[0].(time.Time)))
}

func TestEncodeValueUndefined(t *testing.T) {
	assert.Equal(t, Undefined, DecodeValue(EncodeValue(UndefinedValue)).Kind())
	assert.Equal(t, Null, DecodeValue(EncodeValue(NullValue)).Kind())
	assert.Equal(t, "x", DecodeValue(EncodeValue(Of("x"))).Str())
}
