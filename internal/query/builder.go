package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skshohagmiah/flindb/internal/ops"
)

// Builder provides a fluent interface for building query documents
type Builder struct {
	fields map[string]map[string]any
	groups []group
}

type group struct {
	key      string
	branches []*Builder
}

// NewBuilder creates an empty query builder
func NewBuilder() *Builder {
	return &Builder{fields: make(map[string]map[string]any)}
}

// Where adds an operator test on field. A repeated operator replaces the
// earlier operand.
func (b *Builder) Where(field string, op ops.Op, operand any) *Builder {
	m, ok := b.fields[field]
	if !ok {
		m = make(map[string]any)
		b.fields[field] = m
	}
	m[op.String()] = operand
	return b
}

// Eq adds a strict equality test (shorthand)
func (b *Builder) Eq(field string, v any) *Builder { return b.Where(field, ops.Eq, v) }

// Ne adds a not-equal test (shorthand)
func (b *Builder) Ne(field string, v any) *Builder { return b.Where(field, ops.Ne, v) }

// Gt adds a greater-than test (shorthand)
func (b *Builder) Gt(field string, v any) *Builder { return b.Where(field, ops.Gt, v) }

// Gte adds a greater-than-or-equal test (shorthand)
func (b *Builder) Gte(field string, v any) *Builder { return b.Where(field, ops.Gte, v) }

// Lt adds a less-than test (shorthand)
func (b *Builder) Lt(field string, v any) *Builder { return b.Where(field, ops.Lt, v) }

// Lte adds a less-than-or-equal test (shorthand)
func (b *Builder) Lte(field string, v any) *Builder { return b.Where(field, ops.Lte, v) }

// Between adds an inclusive range test
func (b *Builder) Between(field string, lo, hi any) *Builder {
	return b.Where(field, ops.Between, []any{lo, hi})
}

// In adds a membership test
func (b *Builder) In(field string, values ...any) *Builder {
	return b.Where(field, ops.In, values)
}

// Contains adds a containment test
func (b *Builder) Contains(field string, items ...any) *Builder {
	return b.Where(field, ops.Contains, items)
}

// Regex adds a pattern test
func (b *Builder) Regex(field, pattern string) *Builder {
	return b.Where(field, ops.Regex, pattern)
}

// Exists tests for presence (true) or absence (false) of field
func (b *Builder) Exists(field string, present bool) *Builder {
	return b.Where(field, ops.Exists, present)
}

// Or matches documents satisfying any of the branches
func (b *Builder) Or(branches ...*Builder) *Builder {
	b.groups = append(b.groups, group{key: keyOr, branches: branches})
	return b
}

// And matches documents satisfying all of the branches
func (b *Builder) And(branches ...*Builder) *Builder {
	b.groups = append(b.groups, group{key: keyAnd, branches: branches})
	return b
}

// Build returns the query document
func (b *Builder) Build() map[string]any {
	out := make(map[string]any, len(b.fields)+len(b.groups))
	for field, m := range b.fields {
		cp := make(map[string]any, len(m))
		for k, v := range m {
			cp[k] = v
		}
		out[field] = cp
	}
	// repeated groups of the same kind fold into one
	for _, g := range b.groups {
		list, _ := out[g.key].([]any)
		if g.key == keyAnd {
			for _, br := range g.branches {
				list = append(list, br.Build())
			}
			out[g.key] = list
			continue
		}
		if list == nil {
			sub := make([]any, 0, len(g.branches))
			for _, br := range g.branches {
				sub = append(sub, br.Build())
			}
			out[g.key] = sub
			continue
		}
		// a second $or must not widen the first one
		and, _ := out[keyAnd].([]any)
		sub := make([]any, 0, len(g.branches))
		for _, br := range g.branches {
			sub = append(sub, br.Build())
		}
		out[keyAnd] = append(and, map[string]any{keyOr: sub})
	}
	return out
}

// Query normalizes the built document
func (b *Builder) Query() (*Query, error) {
	return Normalize(b.Build())
}

// String returns a string representation of the query
func (b *Builder) String() string {
	fields := make([]string, 0, len(b.fields))
	for f := range b.fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fmt.Sprintf("Query{fields=[%s], groups=%d}", strings.Join(fields, ","), len(b.groups))
}
