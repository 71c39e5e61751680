package value

import (
	"cmp"
	"math"
	"strings"
)

// Ordering classes, lowest first. Numeric strings share the number class.
const (
	rankNullish = iota
	rankBool
	rankNumber
	rankString
	rankDate
	rankArray
	rankObject
)

func (v Value) rank() int {
	switch v.kind {
	case Bool:
		return rankBool
	case Number:
		return rankNumber
	case String:
		if v.numeric {
			return rankNumber
		}
		return rankString
	case Date:
		return rankDate
	case Array:
		return rankArray
	case Object:
		return rankObject
	}
	return rankNullish
}

// Compare is the loose total order over values:
//
//	null/undefined < bool < number < string < date < array < object
//
// Numeric strings order by their numeric value among numbers. NaN sorts
// above every other number and equals another NaN. All objects are equal.
func Compare(a, b Value) int {
	ra, rb := a.rank(), b.rank()
	if ra != rb {
		return cmp.Compare(ra, rb)
	}
	switch ra {
	case rankBool:
		switch {
		case a.b == b.b:
			return 0
		case b.b:
			return -1
		}
		return 1
	case rankNumber:
		return compareFloat(a.num, b.num)
	case rankString:
		return strings.Compare(a.str, b.str)
	case rankDate:
		return a.t.Compare(b.t)
	case rankArray:
		n := min(len(a.arr), len(b.arr))
		for i := 0; i < n; i++ {
			if c := Compare(Of(a.arr[i]), Of(b.arr[i])); c != 0 {
				return c
			}
		}
		return cmp.Compare(len(a.arr), len(b.arr))
	}
	return 0
}

func compareFloat(x, y float64) int {
	xn, yn := math.IsNaN(x), math.IsNaN(y)
	switch {
	case xn && yn:
		return 0
	case xn:
		return 1
	case yn:
		return -1
	case x < y:
		return -1
	case x > y:
		return 1
	}
	return 0
}

// CompareAny classifies both operands and compares them.
func CompareAny(a, b any) int { return Compare(Of(a), Of(b)) }

// Aeq is abstract equality: the equivalence induced by Compare.
//
//	Aeq(5, "5") == true
//	Aeq(nil, undefined) == true
//	Aeq([1 2 3], [1 2]) == false
//	Aeq({a:1}, {z:4}) == true
func Aeq(a, b Value) bool { return Compare(a, b) == 0 }

// Less reports a < b, or a <= b when inclusive is set.
func Less(a, b Value, inclusive bool) bool {
	c := Compare(a, b)
	return c < 0 || (inclusive && c == 0)
}

// Greater reports a > b, or a >= b when inclusive is set.
func Greater(a, b Value, inclusive bool) bool {
	c := Compare(a, b)
	return c > 0 || (inclusive && c == 0)
}

// StrictEqual requires the same kind and the same payload. NaN is never
// strictly equal to anything; dates compare by instant; arrays and objects
// compare element by element.
func StrictEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Undefined, Null:
		return true
	case Bool:
		return a.b == b.b
	case Number:
		return a.num == b.num
	case String:
		return a.str == b.str
	case Date:
		return a.t.Equal(b.t)
	case Array:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !StrictEqual(Of(a.arr[i]), Of(b.arr[i])) {
				return false
			}
		}
		return true
	case Object:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !StrictEqual(Of(av), Of(bv)) {
				return false
			}
		}
		return true
	}
	return false
}
