package db

import (
	"errors"
	"fmt"
	"slices"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/skshohagmiah/flindb/internal/query"
	"github.com/skshohagmiah/flindb/internal/value"
)

type stage func(ids []int64) []int64

// ResultSet is a lazy pipeline over a collection. Stages run when a
// terminal method (IDs, Data, Count, Update, Remove) is called, and each
// call re-runs them against the current documents.
type ResultSet struct {
	coll   *Collection
	stages []stage
	err    error
}

// Chain starts a pipeline over every document of the collection.
func (c *Collection) Chain() *ResultSet {
	return &ResultSet{coll: c}
}

func (rs *ResultSet) push(s stage) *ResultSet {
	if rs.err == nil {
		rs.stages = append(rs.stages, s)
	}
	return rs
}

func (rs *ResultSet) fail(err error) *ResultSet {
	if rs.err == nil {
		rs.err = err
	}
	return rs
}

// Err returns the first error recorded while building the pipeline.
func (rs *ResultSet) Err() error { return rs.err }

// Find keeps the documents matching a query document, preserving the
// current order.
func (rs *ResultSet) Find(q map[string]any) *ResultSet {
	nq, err := query.Normalize(q)
	if err != nil {
		return rs.fail(err)
	}
	return rs.FindQuery(nq)
}

// FindQuery is Find for an already normalized query.
func (rs *ResultSet) FindQuery(q *query.Query) *ResultSet {
	c := rs.coll
	return rs.push(func(ids []int64) []int64 {
		within := roaring64.New()
		for _, id := range ids {
			within.Add(uint64(id))
		}
		hits := query.Execute(q, c, within)
		return slices.DeleteFunc(ids, func(id int64) bool {
			return !hits.Contains(uint64(id))
		})
	})
}

// Where keeps the documents fn accepts. fn sees a copy; changes to it are
// discarded.
func (rs *ResultSet) Where(fn func(Document) bool) *ResultSet {
	c := rs.coll
	return rs.push(func(ids []int64) []int64 {
		return slices.DeleteFunc(ids, func(id int64) bool {
			return !fn(cloneDoc(c.docs[id]))
		})
	})
}

// SimpleSort orders by a field under the loose total order. The sort is
// stable, so equal keys keep their current relative order.
func (rs *ResultSet) SimpleSort(field string, descending bool) *ResultSet {
	c := rs.coll
	return rs.push(func(ids []int64) []int64 {
		keys := make(map[int64]value.Value, len(ids))
		for _, id := range ids {
			keys[id] = value.Lookup(c.docs[id], field)
		}
		slices.SortStableFunc(ids, func(a, b int64) int {
			n := value.Compare(keys[a], keys[b])
			if descending {
				return -n
			}
			return n
		})
		return ids
	})
}

// Sort orders with a caller comparison, stably.
func (rs *ResultSet) Sort(cmp func(a, b Document) int) *ResultSet {
	c := rs.coll
	return rs.push(func(ids []int64) []int64 {
		slices.SortStableFunc(ids, func(a, b int64) int {
			return cmp(c.docs[a], c.docs[b])
		})
		return ids
	})
}

// Offset skips the first n results.
func (rs *ResultSet) Offset(n int) *ResultSet {
	if n < 0 {
		return rs.fail(fmt.Errorf("%w: negative offset %d", ErrMalformedQuery, n))
	}
	return rs.push(func(ids []int64) []int64 {
		if n >= len(ids) {
			return ids[:0]
		}
		return ids[n:]
	})
}

// Limit keeps at most n results.
func (rs *ResultSet) Limit(n int) *ResultSet {
	if n < 0 {
		return rs.fail(fmt.Errorf("%w: negative limit %d", ErrMalformedQuery, n))
	}
	return rs.push(func(ids []int64) []int64 {
		if n < len(ids) {
			return ids[:n]
		}
		return ids
	})
}

func (rs *ResultSet) run() ([]int64, error) {
	if rs.err != nil {
		return nil, rs.err
	}
	ids := rs.coll.ids()
	for _, s := range rs.stages {
		ids = s(ids)
		if len(ids) == 0 {
			break
		}
	}
	rs.coll.metrics.Op(rs.coll.name, opFind)
	return ids, nil
}

// IDs returns the ids of the results in order.
func (rs *ResultSet) IDs() ([]int64, error) {
	return rs.run()
}

// Data returns copies of the result documents in order.
func (rs *ResultSet) Data() ([]Document, error) {
	ids, err := rs.run()
	if err != nil {
		return nil, err
	}
	out := make([]Document, 0, len(ids))
	for _, id := range ids {
		out = append(out, cloneDoc(rs.coll.docs[id]))
	}
	return out, nil
}

// Count returns the number of results.
func (rs *ResultSet) Count() (int, error) {
	ids, err := rs.run()
	return len(ids), err
}

// Update passes a copy of each result to fn and stores it back. It stops
// at the first failed update; earlier updates stay applied.
func (rs *ResultSet) Update(fn func(Document)) (int, error) {
	ids, err := rs.run()
	if err != nil {
		return 0, err
	}
	for i, id := range ids {
		doc := cloneDoc(rs.coll.docs[id])
		fn(doc)
		doc[FieldID] = id
		if err := rs.coll.Update(doc); err != nil {
			return i, err
		}
	}
	return len(ids), nil
}

// Remove deletes every result.
func (rs *ResultSet) Remove() (int, error) {
	ids, err := rs.run()
	if err != nil {
		return 0, err
	}
	var errs []error
	n := 0
	for _, id := range ids {
		if err := rs.coll.Remove(id); err != nil {
			errs = append(errs, err)
			continue
		}
		n++
	}
	return n, errors.Join(errs...)
}
