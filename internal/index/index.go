// Package index implements the two secondary index structures: a sorted
// slice for equality and simple range lookups, and an AVL tree for range
// and membership queries. Both order keys with value.Compare and break ties
// between duplicate keys by ascending document id.
package index

import (
	"errors"
	"fmt"

	"github.com/skshohagmiah/flindb/internal/ops"
	"github.com/skshohagmiah/flindb/internal/value"
)

// ErrIndexInconsistency reports an index that no longer mirrors the live
// document set. The only repair is a rebuild from the documents.
var ErrIndexInconsistency = errors.New("index inconsistency")

// Kind distinguishes index structures.
type Kind uint8

const (
	KindNone Kind = iota
	KindBinary
	KindRanged
)

func (k Kind) String() string {
	switch k {
	case KindBinary:
		return "binary"
	case KindRanged:
		return "ranged"
	}
	return "none"
}

// Request is a range request. High is only read for $between.
type Request struct {
	Op   ops.Op
	Val  value.Value
	High value.Value
}

// KeyFunc returns the current key of a live document.
type KeyFunc func(id int64) (value.Value, bool)

// Index is the behaviour shared by both index structures.
type Index interface {
	Field() string
	Kind() Kind
	Len() int
	Insert(id int64, key value.Value)
	Update(id int64, key value.Value)
	Remove(id int64) bool
	RangeRequest(req Request) []int64
	Validate(live int, keyOf KeyFunc) error
}

// Supports reports whether an index can narrow candidates for op.
func Supports(k Kind, op ops.Op) bool {
	switch op {
	case ops.Eq, ops.Aeq, ops.Dteq, ops.Gt, ops.Gte, ops.Lt, ops.Lte, ops.Between, ops.In:
		return k != KindNone
	case ops.Neq:
		return k == KindRanged
	}
	return false
}

// Candidates translates an operator clause into range requests against idx.
// The returned ids are a superset of the documents satisfying the clause;
// the caller applies the operator predicate to each candidate. ok is false
// when idx cannot serve the clause and a scan is required.
func Candidates(idx Index, op ops.Op, operand any) (ids []int64, ok bool) {
	if !Supports(idx.Kind(), op) {
		return nil, false
	}
	switch op {
	case ops.Eq, ops.Aeq, ops.Dteq:
		return idx.RangeRequest(Request{Op: ops.Eq, Val: value.Of(operand)}), true
	case ops.Between:
		lo, hi, valid := ops.Bounds(operand)
		if !valid {
			return nil, false
		}
		return idx.RangeRequest(Request{Op: ops.Between, Val: lo, High: hi}), true
	case ops.In:
		o := value.Of(operand)
		if o.Kind() != value.Array {
			return nil, false
		}
		seen := make(map[int64]struct{})
		for _, e := range o.Elems() {
			for _, id := range idx.RangeRequest(Request{Op: ops.Eq, Val: value.Of(e)}) {
				if _, dup := seen[id]; !dup {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		return ids, true
	}
	return idx.RangeRequest(Request{Op: op, Val: value.Of(operand)}), true
}

func inconsistent(field, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", ErrIndexInconsistency, field, fmt.Sprintf(format, args...))
}

// checkKeys verifies that keys covers exactly the live documents and that
// every stored key still equals the document's current value.
func checkKeys(field string, keys map[int64]value.Value, live int, keyOf KeyFunc) error {
	if len(keys) != live {
		return inconsistent(field, "%d entries for %d live documents", len(keys), live)
	}
	if keyOf == nil {
		return nil
	}
	for id, key := range keys {
		cur, ok := keyOf(id)
		if !ok {
			return inconsistent(field, "entry for missing document %d", id)
		}
		if value.Compare(cur, key) != 0 {
			return inconsistent(field, "stale key for document %d", id)
		}
	}
	return nil
}
