// Package value classifies document field values into a closed set of kinds
// and defines the single ordering and equality rules every index, operator
// and sort in the store relies on.
package value

import (
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind is the tag of a classified value.
type Kind uint8

const (
	Undefined Kind = iota
	Null
	Bool
	Number
	String
	Date
	Array
	Object
)

var kindNames = [...]string{
	Undefined: "undefined",
	Null:      "null",
	Bool:      "boolean",
	Number:    "number",
	String:    "string",
	Date:      "date",
	Array:     "array",
	Object:    "object",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a tagged view over a document field. Arrays and objects keep a
// reference to the underlying document data; elements are classified on
// demand.
type Value struct {
	kind    Kind
	b       bool
	num     float64
	str     string
	numeric bool // String whose text parses as a number into num
	t       time.Time
	arr     []any
	obj     map[string]any
}

// UndefinedValue is the value of an absent field.
var UndefinedValue = Value{kind: Undefined}

// NullValue is an explicit nil.
var NullValue = Value{kind: Null}

// Of classifies a Go value.
func Of(v any) Value {
	switch x := v.(type) {
	case nil:
		return NullValue
	case Value:
		return x
	case bool:
		return Value{kind: Bool, b: x}
	case float64:
		return Value{kind: Number, num: x}
	case int:
		return Value{kind: Number, num: float64(x)}
	case int64:
		return Value{kind: Number, num: float64(x)}
	case float32:
		return Value{kind: Number, num: float64(x)}
	case int8:
		return Value{kind: Number, num: float64(x)}
	case int16:
		return Value{kind: Number, num: float64(x)}
	case int32:
		return Value{kind: Number, num: float64(x)}
	case uint:
		return Value{kind: Number, num: float64(x)}
	case uint8:
		return Value{kind: Number, num: float64(x)}
	case uint16:
		return Value{kind: Number, num: float64(x)}
	case uint32:
		return Value{kind: Number, num: float64(x)}
	case uint64:
		return Value{kind: Number, num: float64(x)}
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return FromString(string(x))
		}
		return Value{kind: Number, num: f}
	case string:
		return FromString(x)
	case time.Time:
		return Value{kind: Date, t: x}
	case *time.Time:
		if x == nil {
			return NullValue
		}
		return Value{kind: Date, t: *x}
	case []any:
		return Value{kind: Array, arr: x}
	case map[string]any:
		return Value{kind: Object, obj: x}
	}
	return ofReflect(reflect.ValueOf(v))
}

func ofReflect(rv reflect.Value) Value {
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NullValue
		}
		return Of(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NullValue
		}
		elems := make([]any, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i).Interface()
		}
		return Value{kind: Array, arr: elems}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{kind: Object, obj: map[string]any{}}
		}
		if rv.IsNil() {
			return NullValue
		}
		fields := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			fields[iter.Key().String()] = iter.Value().Interface()
		}
		return Value{kind: Object, obj: fields}
	case reflect.String:
		return FromString(rv.String())
	case reflect.Bool:
		return Value{kind: Bool, b: rv.Bool()}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Value{kind: Number, num: float64(rv.Int())}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Value{kind: Number, num: float64(rv.Uint())}
	case reflect.Float32, reflect.Float64:
		return Value{kind: Number, num: rv.Float()}
	}
	return Value{kind: Object, obj: map[string]any{}}
}

// FromString classifies a string, detecting numeric text.
func FromString(s string) Value {
	v := Value{kind: String, str: s}
	if f, ok := parseNumeric(s); ok {
		v.numeric = true
		v.num = f
	}
	return v
}

// parseNumeric accepts decimal and exponent forms plus the spelled-out
// infinities. NaN text is not numeric.
func parseNumeric(s string) (float64, bool) {
	t := strings.TrimSpace(s)
	if t == "" {
		return 0, false
	}
	switch t {
	case "Infinity", "+Infinity":
		return math.Inf(1), true
	case "-Infinity":
		return math.Inf(-1), true
	}
	f, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// Kind returns the tag.
func (v Value) Kind() Kind { return v.kind }

// IsUndefined reports an absent field.
func (v Value) IsUndefined() bool { return v.kind == Undefined }

// IsNullish reports null or undefined.
func (v Value) IsNullish() bool { return v.kind == Undefined || v.kind == Null }

// Bool returns the boolean payload.
func (v Value) Bool() bool { return v.b }

// Str returns the string payload.
func (v Value) Str() string { return v.str }

// Time returns the date payload.
func (v Value) Time() time.Time { return v.t }

// Elems returns the raw array elements.
func (v Value) Elems() []any { return v.arr }

// Fields returns the raw object fields.
func (v Value) Fields() map[string]any { return v.obj }

// IsNumeric reports a number or a numeric string.
func (v Value) IsNumeric() bool {
	return v.kind == Number || (v.kind == String && v.numeric)
}

// Float returns the numeric value of a number or numeric string.
func (v Value) Float() (float64, bool) {
	if v.IsNumeric() {
		return v.num, true
	}
	return 0, false
}

// IsNaN reports a NaN number.
func (v Value) IsNaN() bool { return v.kind == Number && math.IsNaN(v.num) }

// Len is the length of an array or the rune count of a string.
func (v Value) Len() (int, bool) {
	switch v.kind {
	case Array:
		return len(v.arr), true
	case String:
		return utf8.RuneCountInString(v.str), true
	}
	return 0, false
}

// KeyString renders a scalar the way it would appear as a map key.
func (v Value) KeyString() (string, bool) {
	switch v.kind {
	case String:
		return v.str, true
	case Number:
		return formatNumber(v.num), true
	case Bool:
		return strconv.FormatBool(v.b), true
	case Null:
		return "null", true
	case Undefined:
		return "undefined", true
	}
	return "", false
}

// UniqueKey is the identity used by uniqueness constraints. Nullish,
// array and object values are not constrained.
func (v Value) UniqueKey() (string, bool) {
	switch v.rank() {
	case rankBool:
		return "b:" + strconv.FormatBool(v.b), true
	case rankNumber:
		return "n:" + formatNumber(v.num), true
	case rankString:
		return "s:" + v.str, true
	case rankDate:
		return "d:" + strconv.FormatInt(v.t.UnixNano(), 10), true
	}
	return "", false
}

// Raw converts the value back into a plain Go value.
func (v Value) Raw() any {
	switch v.kind {
	case Bool:
		return v.b
	case Number:
		return v.num
	case String:
		return v.str
	case Date:
		return v.t
	case Array:
		return v.arr
	case Object:
		return v.obj
	}
	return nil
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
