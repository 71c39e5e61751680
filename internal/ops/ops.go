// Package ops is the query operator registry: a closed set of operator
// symbols, each bound to a pure predicate over a field value and an
// operand.
package ops

import (
	"errors"
	"sort"
)

var errBadRegex = errors.New("regex operand must be a pattern, a [pattern, flags] pair or *regexp.Regexp")

// Op identifies a query operator.
type Op uint8

const (
	Invalid Op = iota

	Eq
	Aeq
	Ne
	Neq
	Dteq

	Gt
	Gte
	Lt
	Lte
	Between

	Jgt
	Jgte
	Jlt
	Jlte
	Jbetween

	In
	Nin
	KeyIn
	NKeyIn
	DefinedIn
	UndefinedIn

	Contains
	ContainsNone
	ContainsAny

	Size
	Type
	Finite

	Regex
	Exists

	numOps
)

var names = [numOps]string{
	Invalid:      "",
	Eq:           "$eq",
	Aeq:          "$aeq",
	Ne:           "$ne",
	Neq:          "$neq",
	Dteq:         "$dteq",
	Gt:           "$gt",
	Gte:          "$gte",
	Lt:           "$lt",
	Lte:          "$lte",
	Between:      "$between",
	Jgt:          "$jgt",
	Jgte:         "$jgte",
	Jlt:          "$jlt",
	Jlte:         "$jlte",
	Jbetween:     "$jbetween",
	In:           "$in",
	Nin:          "$nin",
	KeyIn:        "$keyin",
	NKeyIn:       "$nkeyin",
	DefinedIn:    "$definedin",
	UndefinedIn:  "$undefinedin",
	Contains:     "$contains",
	ContainsNone: "$containsNone",
	ContainsAny:  "$containsAny",
	Size:         "$size",
	Type:         "$type",
	Finite:       "$finite",
	Regex:        "$regex",
	Exists:       "$exists",
}

var bySymbol = func() map[string]Op {
	m := make(map[string]Op, numOps)
	for op := Eq; op < numOps; op++ {
		m[names[op]] = op
	}
	return m
}()

// Parse resolves an operator symbol such as "$between".
func Parse(symbol string) (Op, bool) {
	op, ok := bySymbol[symbol]
	return op, ok
}

// String returns the operator symbol.
func (o Op) String() string {
	if o < numOps {
		return names[o]
	}
	return ""
}

// Valid reports a registered operator.
func (o Op) Valid() bool { return o > Invalid && o < numOps }

// All lists every operator in declaration order.
func All() []Op {
	out := make([]Op, 0, numOps-1)
	for op := Eq; op < numOps; op++ {
		out = append(out, op)
	}
	return out
}

// Symbols returns every operator symbol, sorted.
func Symbols() []string {
	out := make([]string, 0, numOps-1)
	for op := Eq; op < numOps; op++ {
		out = append(out, names[op])
	}
	sort.Strings(out)
	return out
}
