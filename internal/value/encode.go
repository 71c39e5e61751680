package value

import (
	"math"
	"time"
)

// Tag keys used when a value has no plain JSON form.
const (
	TagDate      = "$date"
	TagNumber    = "$num"
	TagUndefined = "$undefined"
)

// Encode rewrites a document value into a JSON-safe form. Dates become
// {"$date": RFC3339Nano} and non-finite numbers {"$num": "NaN"|"+Inf"|"-Inf"}.
func Encode(v any) any {
	switch x := Clone(v).(type) {
	case time.Time:
		return map[string]any{TagDate: x.Format(time.RFC3339Nano)}
	case float64:
		return encodeFloat(x)
	case float32:
		return encodeFloat(float64(x))
	case map[string]any:
		for k, e := range x {
			x[k] = Encode(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = Encode(e)
		}
		return x
	default:
		return x
	}
}

func encodeFloat(f float64) any {
	switch {
	case math.IsNaN(f):
		return map[string]any{TagNumber: "NaN"}
	case math.IsInf(f, 1):
		return map[string]any{TagNumber: "+Inf"}
	case math.IsInf(f, -1):
		return map[string]any{TagNumber: "-Inf"}
	}
	return f
}

// Decode reverses Encode on a freshly unmarshalled JSON value, in place.
func Decode(v any) any {
	switch x := v.(type) {
	case map[string]any:
		if len(x) == 1 {
			if s, ok := x[TagDate].(string); ok {
				if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
					return t
				}
			}
			if s, ok := x[TagNumber].(string); ok {
				switch s {
				case "NaN":
					return math.NaN()
				case "+Inf":
					return math.Inf(1)
				case "-Inf":
					return math.Inf(-1)
				}
			}
		}
		for k, e := range x {
			x[k] = Decode(e)
		}
		return x
	case []any:
		for i, e := range x {
			x[i] = Decode(e)
		}
		return x
	}
	return v
}

// EncodeValue renders an index key, keeping the undefined tag.
func EncodeValue(v Value) any {
	if v.kind == Undefined {
		return map[string]any{TagUndefined: true}
	}
	return Encode(v.Raw())
}

// DecodeValue reverses EncodeValue.
func DecodeValue(raw any) Value {
	if m, ok := raw.(map[string]any); ok && len(m) == 1 {
		if b, ok := m[TagUndefined].(bool); ok && b {
			return UndefinedValue
		}
	}
	return Of(Decode(raw))
}
