package index

import (
	"cmp"
	"slices"
	"sort"

	"github.com/skshohagmiah/flindb/internal/ops"
	"github.com/skshohagmiah/flindb/internal/value"
)

type entry struct {
	key value.Value
	id  int64
}

func compareEntry(a, b entry) int {
	if c := value.Compare(a.key, b.key); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

// Binary is a sorted (key, id) slice.
type Binary struct {
	field   string
	entries []entry
	keys    map[int64]value.Value
}

// NewBinary creates an empty binary index on field.
func NewBinary(field string) *Binary {
	return &Binary{field: field, keys: make(map[int64]value.Value)}
}

// BuildBinary bulk-loads an index by sorting once instead of inserting one
// entry at a time.
func BuildBinary(field string, ids []int64, keyOf KeyFunc) *Binary {
	b := NewBinary(field)
	b.entries = make([]entry, 0, len(ids))
	for _, id := range ids {
		key, ok := keyOf(id)
		if !ok {
			continue
		}
		b.entries = append(b.entries, entry{key: key, id: id})
		b.keys[id] = key
	}
	slices.SortFunc(b.entries, compareEntry)
	return b
}

func (b *Binary) Field() string { return b.field }
func (b *Binary) Kind() Kind    { return KindBinary }
func (b *Binary) Len() int      { return len(b.entries) }

// position of the first entry not less than e.
func (b *Binary) position(e entry) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return compareEntry(b.entries[i], e) >= 0
	})
}

// Insert adds id under key. A live id is moved instead.
func (b *Binary) Insert(id int64, key value.Value) {
	if _, ok := b.keys[id]; ok {
		b.Update(id, key)
		return
	}
	e := entry{key: key, id: id}
	i := b.position(e)
	b.entries = slices.Insert(b.entries, i, e)
	b.keys[id] = key
}

// Update moves id to key within a single call.
func (b *Binary) Update(id int64, key value.Value) {
	if old, ok := b.keys[id]; ok {
		if value.Compare(old, key) == 0 {
			i := b.position(entry{key: old, id: id})
			b.entries[i].key = key
			b.keys[id] = key
			return
		}
		b.remove(id, old)
	}
	e := entry{key: key, id: id}
	b.entries = slices.Insert(b.entries, b.position(e), e)
	b.keys[id] = key
}

// Remove deletes id, reporting whether it was present.
func (b *Binary) Remove(id int64) bool {
	old, ok := b.keys[id]
	if !ok {
		return false
	}
	b.remove(id, old)
	return true
}

func (b *Binary) remove(id int64, key value.Value) {
	i := b.position(entry{key: key, id: id})
	if i < len(b.entries) && b.entries[i].id == id {
		b.entries = slices.Delete(b.entries, i, i+1)
	}
	delete(b.keys, id)
}

func (b *Binary) lowerBound(key value.Value) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return value.Compare(b.entries[i].key, key) >= 0
	})
}

func (b *Binary) upperBound(key value.Value) int {
	return sort.Search(len(b.entries), func(i int) bool {
		return value.Compare(b.entries[i].key, key) > 0
	})
}

func (b *Binary) span(lo, hi int) []int64 {
	if lo >= hi {
		return nil
	}
	out := make([]int64, 0, hi-lo)
	for _, e := range b.entries[lo:hi] {
		out = append(out, e.id)
	}
	return out
}

// RangeRequest returns ids in key order via binary-search bounds.
func (b *Binary) RangeRequest(req Request) []int64 {
	n := len(b.entries)
	switch req.Op {
	case ops.Eq:
		return b.span(b.lowerBound(req.Val), b.upperBound(req.Val))
	case ops.Gt:
		return b.span(b.upperBound(req.Val), n)
	case ops.Gte:
		return b.span(b.lowerBound(req.Val), n)
	case ops.Lt:
		return b.span(0, b.lowerBound(req.Val))
	case ops.Lte:
		return b.span(0, b.upperBound(req.Val))
	case ops.Between:
		if value.Compare(req.Val, req.High) > 0 {
			return nil
		}
		return b.span(b.lowerBound(req.Val), b.upperBound(req.High))
	case ops.Neq:
		return append(b.span(0, b.lowerBound(req.Val)), b.span(b.upperBound(req.Val), n)...)
	}
	return nil
}

// Validate checks strict (key, id) ordering and that the index mirrors the
// live documents.
func (b *Binary) Validate(live int, keyOf KeyFunc) error {
	if len(b.entries) != len(b.keys) {
		return inconsistent(b.field, "%d entries but %d ids", len(b.entries), len(b.keys))
	}
	for i := 1; i < len(b.entries); i++ {
		if compareEntry(b.entries[i-1], b.entries[i]) >= 0 {
			return inconsistent(b.field, "entries %d and %d out of order", i-1, i)
		}
	}
	for _, e := range b.entries {
		if k, ok := b.keys[e.id]; !ok || value.Compare(k, e.key) != 0 {
			return inconsistent(b.field, "id map disagrees for document %d", e.id)
		}
	}
	return checkKeys(b.field, b.keys, live, keyOf)
}

// Backup returns the ids in index order.
func (b *Binary) Backup() []int64 {
	return b.span(0, len(b.entries))
}

// RestoreBinary rebuilds an index from a saved id order, taking keys from
// the documents. The result still needs Validate.
func RestoreBinary(field string, ids []int64, keyOf KeyFunc) (*Binary, error) {
	b := NewBinary(field)
	b.entries = make([]entry, 0, len(ids))
	for _, id := range ids {
		key, ok := keyOf(id)
		if !ok {
			return nil, inconsistent(field, "saved entry for missing document %d", id)
		}
		if _, dup := b.keys[id]; dup {
			return nil, inconsistent(field, "document %d saved twice", id)
		}
		b.entries = append(b.entries, entry{key: key, id: id})
		b.keys[id] = key
	}
	return b, nil
}
