package ops

import (
	"math"
	"regexp"
	"strings"

	"github.com/skshohagmiah/flindb/internal/value"
)

// Predicate tests a field value against an operand. Predicates never panic
// on operand shapes they do not understand; they return false.
type Predicate func(v value.Value, operand any) bool

var table [numOps]Predicate

func init() {
	table = [numOps]Predicate{
		Eq:   eq,
		Aeq:  aeq,
		Ne:   ne,
		Neq:  neq,
		Dteq: dteq,

		Gt:      loose(func(c int) bool { return c > 0 }),
		Gte:     loose(func(c int) bool { return c >= 0 }),
		Lt:      loose(func(c int) bool { return c < 0 }),
		Lte:     loose(func(c int) bool { return c <= 0 }),
		Between: between,

		Jgt:      strict(func(a, b float64) bool { return a > b }),
		Jgte:     strict(func(a, b float64) bool { return a >= b }),
		Jlt:      strict(func(a, b float64) bool { return a < b }),
		Jlte:     strict(func(a, b float64) bool { return a <= b }),
		Jbetween: jbetween,

		In:          in,
		Nin:         nin,
		KeyIn:       keyIn,
		NKeyIn:      nkeyIn,
		DefinedIn:   definedIn,
		UndefinedIn: undefinedIn,

		Contains:     contains,
		ContainsNone: containsNone,
		ContainsAny:  containsAny,

		Size:   size,
		Type:   typeOf,
		Finite: finite,

		Regex:  regex,
		Exists: exists,
	}
}

// Eval applies op to a field value. An absent field only satisfies the
// operators that are defined in terms of absence.
func Eval(op Op, v value.Value, operand any) bool {
	if !op.Valid() {
		return false
	}
	if v.IsUndefined() {
		return absent(op, operand)
	}
	return table[op](v, operand)
}

func absent(op Op, operand any) bool {
	switch op {
	case Ne, Nin, NKeyIn, UndefinedIn:
		return true
	case Neq:
		return !value.Of(operand).IsNullish()
	case Aeq:
		return value.Of(operand).IsNullish()
	case Type:
		return typeOf(value.UndefinedValue, operand)
	case Exists:
		b, ok := operand.(bool)
		return ok && !b
	}
	return false
}

func eq(v value.Value, operand any) bool {
	return value.StrictEqual(v, value.Of(operand))
}

func aeq(v value.Value, operand any) bool {
	return value.Aeq(v, value.Of(operand))
}

func ne(v value.Value, operand any) bool {
	o := value.Of(operand)
	if o.IsNaN() {
		return !v.IsNaN()
	}
	return !value.StrictEqual(v, o)
}

func neq(v value.Value, operand any) bool {
	return !value.Aeq(v, value.Of(operand))
}

func dteq(v value.Value, operand any) bool {
	o := value.Of(operand)
	return v.Kind() == value.Date && o.Kind() == value.Date && v.Time().Equal(o.Time())
}

func loose(test func(int) bool) Predicate {
	return func(v value.Value, operand any) bool {
		return test(value.Compare(v, value.Of(operand)))
	}
}

// Bounds extracts a two element [low, high] operand.
func Bounds(operand any) (lo, hi value.Value, ok bool) {
	o := value.Of(operand)
	if o.Kind() != value.Array || len(o.Elems()) != 2 {
		return value.Value{}, value.Value{}, false
	}
	return value.Of(o.Elems()[0]), value.Of(o.Elems()[1]), true
}

func between(v value.Value, operand any) bool {
	lo, hi, ok := Bounds(operand)
	if !ok {
		return false
	}
	return value.Compare(v, lo) >= 0 && value.Compare(v, hi) <= 0
}

// plainNumber accepts only number values, never numeric strings or NaN.
func plainNumber(v value.Value) (float64, bool) {
	if v.Kind() != value.Number || v.IsNaN() {
		return 0, false
	}
	f, _ := v.Float()
	return f, true
}

func strict(test func(a, b float64) bool) Predicate {
	return func(v value.Value, operand any) bool {
		a, ok := plainNumber(v)
		if !ok {
			return false
		}
		b, ok := plainNumber(value.Of(operand))
		return ok && test(a, b)
	}
}

func jbetween(v value.Value, operand any) bool {
	a, ok := plainNumber(v)
	if !ok {
		return false
	}
	lo, hi, ok := Bounds(operand)
	if !ok {
		return false
	}
	l, lok := plainNumber(lo)
	h, hok := plainNumber(hi)
	return lok && hok && a >= l && a <= h
}

func in(v value.Value, operand any) bool {
	o := value.Of(operand)
	switch o.Kind() {
	case value.Array:
		for _, e := range o.Elems() {
			if value.StrictEqual(v, value.Of(e)) {
				return true
			}
		}
	case value.String:
		return v.Kind() == value.String && strings.Contains(o.Str(), v.Str())
	}
	return false
}

func nin(v value.Value, operand any) bool {
	k := value.Of(operand).Kind()
	if k != value.Array && k != value.String {
		return false
	}
	return !in(v, operand)
}

func keyOperand(v value.Value, operand any) (map[string]any, string, bool) {
	o := value.Of(operand)
	if o.Kind() != value.Object {
		return nil, "", false
	}
	key, ok := v.KeyString()
	if !ok {
		return nil, "", false
	}
	return o.Fields(), key, true
}

func keyIn(v value.Value, operand any) bool {
	m, key, ok := keyOperand(v, operand)
	if !ok {
		return false
	}
	_, found := m[key]
	return found
}

func nkeyIn(v value.Value, operand any) bool {
	m, key, ok := keyOperand(v, operand)
	if !ok {
		return false
	}
	_, found := m[key]
	return !found
}

// A nil entry in the operand map counts as undefined.
func definedIn(v value.Value, operand any) bool {
	m, key, ok := keyOperand(v, operand)
	if !ok {
		return false
	}
	e, found := m[key]
	return found && !value.Of(e).IsNullish()
}

func undefinedIn(v value.Value, operand any) bool {
	m, key, ok := keyOperand(v, operand)
	if !ok {
		return false
	}
	e, found := m[key]
	return !found || value.Of(e).IsNullish()
}

// containment returns a membership test for a string, array or object
// field, or nil when the field cannot contain anything.
func containment(v value.Value) func(item any) bool {
	switch v.Kind() {
	case value.String:
		return func(item any) bool {
			s, ok := item.(string)
			return ok && strings.Contains(v.Str(), s)
		}
	case value.Array:
		return func(item any) bool {
			iv := value.Of(item)
			for _, e := range v.Elems() {
				if value.StrictEqual(value.Of(e), iv) {
					return true
				}
			}
			return false
		}
	case value.Object:
		return func(item any) bool {
			key, ok := value.Of(item).KeyString()
			if !ok {
				return false
			}
			_, found := v.Fields()[key]
			return found
		}
	}
	return nil
}

func items(operand any) []any {
	o := value.Of(operand)
	if o.Kind() == value.Array {
		return o.Elems()
	}
	return []any{operand}
}

func contains(v value.Value, operand any) bool {
	check := containment(v)
	if check == nil {
		return false
	}
	for _, item := range items(operand) {
		if !check(item) {
			return false
		}
	}
	return true
}

func containsAny(v value.Value, operand any) bool {
	check := containment(v)
	if check == nil {
		return false
	}
	for _, item := range items(operand) {
		if check(item) {
			return true
		}
	}
	return false
}

func containsNone(v value.Value, operand any) bool {
	if containment(v) == nil {
		return false
	}
	return !containsAny(v, operand)
}

func size(v value.Value, operand any) bool {
	n, ok := v.Len()
	if !ok {
		return false
	}
	want, ok := plainNumber(value.Of(operand))
	return ok && float64(n) == want
}

// typeOf matches the type name of the field against a name or, when the
// operand is an operator object, evaluates those operators on the name.
func typeOf(v value.Value, operand any) bool {
	name := v.Kind().String()
	if s, ok := operand.(string); ok {
		return name == s
	}
	o := value.Of(operand)
	if o.Kind() != value.Object || len(o.Fields()) == 0 {
		return false
	}
	nv := value.FromString(name)
	for sym, arg := range o.Fields() {
		op, ok := Parse(sym)
		if !ok || !Eval(op, nv, arg) {
			return false
		}
	}
	return true
}

func finite(v value.Value, operand any) bool {
	want, ok := operand.(bool)
	if !ok {
		return false
	}
	f, numeric := v.Float()
	isFinite := numeric && !math.IsNaN(f) && !math.IsInf(f, 0)
	return isFinite == want
}

func regex(v value.Value, operand any) bool {
	if v.Kind() != value.String {
		return false
	}
	re, err := CompileRegex(operand)
	if err != nil {
		return false
	}
	return re.MatchString(v.Str())
}

// CompileRegex accepts a *regexp.Regexp, a pattern string, or a
// [pattern, flags] pair where flags is a subset of "imsU".
func CompileRegex(operand any) (*regexp.Regexp, error) {
	switch x := operand.(type) {
	case *regexp.Regexp:
		return x, nil
	case string:
		return regexp.Compile(x)
	}
	o := value.Of(operand)
	if o.Kind() == value.Array && len(o.Elems()) == 2 {
		pattern, pok := o.Elems()[0].(string)
		flags, fok := o.Elems()[1].(string)
		if pok && fok {
			if flags != "" {
				pattern = "(?" + flags + ")" + pattern
			}
			return regexp.Compile(pattern)
		}
	}
	return nil, errBadRegex
}

func exists(v value.Value, operand any) bool {
	b, ok := operand.(bool)
	return ok && b
}
