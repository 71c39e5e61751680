// Package query turns query documents into clause lists and evaluates them
// against a collection, using secondary indexes where they can narrow the
// candidate set.
package query

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/skshohagmiah/flindb/internal/ops"
)

// ErrMalformedQuery is returned for query documents that cannot be
// normalized.
var ErrMalformedQuery = errors.New("malformed query")

const (
	keyAnd = "$and"
	keyOr  = "$or"
)

// Clause is one field test.
type Clause struct {
	Path    string
	Op      ops.Op
	Operand any
}

func (c Clause) String() string {
	return fmt.Sprintf("%s %s %v", c.Path, c.Op, c.Operand)
}

// Group is a $and or $or over nested queries.
type Group struct {
	Or       bool
	Branches []*Query
}

// Query is a normalized query: every clause and every group must match.
type Query struct {
	Clauses []Clause
	Groups  []Group
}

// Empty reports a query that matches every document.
func (q *Query) Empty() bool {
	return q == nil || (len(q.Clauses) == 0 && len(q.Groups) == 0)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedQuery, fmt.Sprintf(format, args...))
}

// Normalize converts a query document into clauses. Literal leaves become
// $eq, operator objects expand to one clause per operator, and fields are
// visited in sorted order so plans are deterministic.
func Normalize(doc map[string]any) (*Query, error) {
	q := &Query{}
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		raw := doc[field]
		switch {
		case field == "":
			return nil, malformed("empty field name")
		case field == keyAnd || field == keyOr:
			g, err := normalizeGroup(field, raw)
			if err != nil {
				return nil, err
			}
			q.Groups = append(q.Groups, g)
		case strings.HasPrefix(field, "$"):
			return nil, malformed("unknown top-level operator %q", field)
		default:
			clauses, err := normalizeField(field, raw)
			if err != nil {
				return nil, err
			}
			q.Clauses = append(q.Clauses, clauses...)
		}
	}
	return q, nil
}

func normalizeGroup(key string, raw any) (Group, error) {
	g := Group{Or: key == keyOr}
	rv := reflect.ValueOf(raw)
	if raw == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return g, malformed("%s needs an array of queries", key)
	}
	if rv.Len() == 0 {
		return g, malformed("%s needs at least one query", key)
	}
	for i := 0; i < rv.Len(); i++ {
		sub, ok := asMap(rv.Index(i).Interface())
		if !ok {
			return g, malformed("%s element %d is not a query", key, i)
		}
		branch, err := Normalize(sub)
		if err != nil {
			return g, err
		}
		g.Branches = append(g.Branches, branch)
	}
	return g, nil
}

func normalizeField(field string, raw any) ([]Clause, error) {
	if re, ok := raw.(*regexp.Regexp); ok {
		return []Clause{{Path: field, Op: ops.Regex, Operand: re}}, nil
	}
	obj, ok := asMap(raw)
	if !ok || len(obj) == 0 {
		return []Clause{{Path: field, Op: ops.Eq, Operand: raw}}, nil
	}

	var opKeys, plain int
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			opKeys++
		} else {
			plain++
		}
	}
	switch {
	case opKeys == 0:
		return []Clause{{Path: field, Op: ops.Eq, Operand: raw}}, nil
	case plain > 0:
		return nil, malformed("field %q mixes operators and plain keys", field)
	}

	symbols := make([]string, 0, len(obj))
	for k := range obj {
		symbols = append(symbols, k)
	}
	sort.Strings(symbols)
	out := make([]Clause, 0, len(symbols))
	for _, sym := range symbols {
		op, ok := ops.Parse(sym)
		if !ok {
			return nil, malformed("unknown operator %q on field %q", sym, field)
		}
		operand := obj[sym]
		if op == ops.Regex {
			re, err := ops.CompileRegex(operand)
			if err != nil {
				return nil, malformed("field %q: %v", field, err)
			}
			operand = re
		}
		out = append(out, Clause{Path: field, Op: op, Operand: operand})
	}
	return out, nil
}

// asMap accepts map[string]any and any other map type keyed by strings.
func asMap(v any) (map[string]any, bool) {
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}
