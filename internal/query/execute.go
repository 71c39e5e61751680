package query

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/skshohagmiah/flindb/internal/index"
	"github.com/skshohagmiah/flindb/internal/ops"
	"github.com/skshohagmiah/flindb/internal/value"
)

// Source is the view of a collection the matcher needs.
type Source interface {
	// IDs returns every live document id.
	IDs() *roaring64.Bitmap
	// Value resolves a dotted path in a live document.
	Value(id int64, path string) value.Value
	// Index returns the preferred index on path, or nil.
	Index(path string) index.Index
}

// Execute evaluates q over within, or over every live document when within
// is nil. Clauses an index can serve are answered from candidates filtered
// by the exact predicate and intersected smallest first; the remaining
// clauses then filter by scan, and groups apply last.
func Execute(q *Query, src Source, within *roaring64.Bitmap) *roaring64.Bitmap {
	var set *roaring64.Bitmap
	if within == nil {
		set = src.IDs()
	} else {
		set = within.Clone()
	}
	if q.Empty() || set.IsEmpty() {
		return set
	}

	var indexed []*roaring64.Bitmap
	var scanned []Clause
	for _, c := range q.Clauses {
		idx := src.Index(c.Path)
		if idx == nil {
			scanned = append(scanned, c)
			continue
		}
		ids, ok := index.Candidates(idx, c.Op, c.Operand)
		if !ok {
			scanned = append(scanned, c)
			continue
		}
		hits := roaring64.New()
		for _, id := range ids {
			if set.Contains(uint64(id)) && ops.Eval(c.Op, src.Value(id, c.Path), c.Operand) {
				hits.Add(uint64(id))
			}
		}
		indexed = append(indexed, hits)
	}

	sort.SliceStable(indexed, func(i, j int) bool {
		return indexed[i].GetCardinality() < indexed[j].GetCardinality()
	})
	for _, hits := range indexed {
		set.And(hits)
		if set.IsEmpty() {
			return set
		}
	}

	for _, c := range scanned {
		set = filter(set, func(id int64) bool {
			return ops.Eval(c.Op, src.Value(id, c.Path), c.Operand)
		})
		if set.IsEmpty() {
			return set
		}
	}

	for _, g := range q.Groups {
		if g.Or {
			union := roaring64.New()
			for _, b := range g.Branches {
				union.Or(Execute(b, src, set))
			}
			set = union
		} else {
			for _, b := range g.Branches {
				set = Execute(b, src, set)
			}
		}
		if set.IsEmpty() {
			return set
		}
	}
	return set
}

// Match evaluates q against a single live document.
func Match(q *Query, src Source, id int64) bool {
	within := roaring64.New()
	within.Add(uint64(id))
	return Execute(q, src, within).Contains(uint64(id))
}

func filter(set *roaring64.Bitmap, keep func(id int64) bool) *roaring64.Bitmap {
	out := roaring64.New()
	it := set.Iterator()
	for it.HasNext() {
		id := it.Next()
		if keep(int64(id)) {
			out.Add(id)
		}
	}
	return out
}

// IDs flattens a result set into ascending document ids.
func IDs(set *roaring64.Bitmap) []int64 {
	out := make([]int64, 0, set.GetCardinality())
	it := set.Iterator()
	for it.HasNext() {
		out = append(out, int64(it.Next()))
	}
	return out
}
