package index

import (
	"slices"

	"github.com/skshohagmiah/flindb/internal/ops"
	"github.com/skshohagmiah/flindb/internal/value"
)

const nilNode int32 = -1

type node struct {
	key    value.Value
	ids    []int64 // ascending
	left   int32
	right  int32
	height int32
}

// Ranged is an AVL tree with one node per distinct key. Nodes live in an
// arena and reference each other by position, which keeps snapshots plain
// data.
type Ranged struct {
	field string
	nodes []node
	free  []int32
	root  int32
	keys  map[int64]value.Value
}

// NewRanged creates an empty ranged index on field.
func NewRanged(field string) *Ranged {
	return &Ranged{field: field, root: nilNode, keys: make(map[int64]value.Value)}
}

func (r *Ranged) Field() string { return r.field }
func (r *Ranged) Kind() Kind    { return KindRanged }
func (r *Ranged) Len() int      { return len(r.keys) }

// Height of the tree; zero when empty.
func (r *Ranged) Height() int { return int(r.height(r.root)) }

// Insert adds id under key. A live id is moved instead.
func (r *Ranged) Insert(id int64, key value.Value) {
	if _, ok := r.keys[id]; ok {
		r.Update(id, key)
		return
	}
	r.root = r.insert(r.root, id, key)
	r.keys[id] = key
}

// Update removes id from its old key and inserts it under the new one.
func (r *Ranged) Update(id int64, key value.Value) {
	if old, ok := r.keys[id]; ok {
		r.root = r.remove(r.root, id, old)
	}
	r.root = r.insert(r.root, id, key)
	r.keys[id] = key
}

// Remove deletes id, reporting whether it was present.
func (r *Ranged) Remove(id int64) bool {
	old, ok := r.keys[id]
	if !ok {
		return false
	}
	r.root = r.remove(r.root, id, old)
	delete(r.keys, id)
	return true
}

func (r *Ranged) alloc(key value.Value, id int64) int32 {
	n := node{key: key, ids: []int64{id}, left: nilNode, right: nilNode, height: 1}
	if l := len(r.free); l > 0 {
		i := r.free[l-1]
		r.free = r.free[:l-1]
		r.nodes[i] = n
		return i
	}
	r.nodes = append(r.nodes, n)
	return int32(len(r.nodes) - 1)
}

func (r *Ranged) release(n int32) {
	r.nodes[n] = node{left: nilNode, right: nilNode}
	r.free = append(r.free, n)
}

func (r *Ranged) insert(n int32, id int64, key value.Value) int32 {
	if n == nilNode {
		return r.alloc(key, id)
	}
	switch c := value.Compare(key, r.nodes[n].key); {
	case c < 0:
		child := r.insert(r.nodes[n].left, id, key)
		r.nodes[n].left = child
	case c > 0:
		child := r.insert(r.nodes[n].right, id, key)
		r.nodes[n].right = child
	default:
		ids := r.nodes[n].ids
		i, found := slices.BinarySearch(ids, id)
		if !found {
			r.nodes[n].ids = slices.Insert(ids, i, id)
		}
		return n
	}
	return r.rebalance(n)
}

func (r *Ranged) remove(n int32, id int64, key value.Value) int32 {
	if n == nilNode {
		return nilNode
	}
	switch c := value.Compare(key, r.nodes[n].key); {
	case c < 0:
		child := r.remove(r.nodes[n].left, id, key)
		r.nodes[n].left = child
	case c > 0:
		child := r.remove(r.nodes[n].right, id, key)
		r.nodes[n].right = child
	default:
		ids := r.nodes[n].ids
		if i, found := slices.BinarySearch(ids, id); found {
			ids = slices.Delete(ids, i, i+1)
			r.nodes[n].ids = ids
		}
		if len(ids) > 0 {
			return n
		}
		left, right := r.nodes[n].left, r.nodes[n].right
		switch {
		case left == nilNode:
			r.release(n)
			return right
		case right == nilNode:
			r.release(n)
			return left
		}
		var succ int32
		rest := r.detachMin(right, &succ)
		r.nodes[succ].left = left
		r.nodes[succ].right = rest
		r.release(n)
		return r.rebalance(succ)
	}
	return r.rebalance(n)
}

// detachMin unlinks the smallest node of the subtree at n, storing it in
// min, and returns the rebalanced remainder.
func (r *Ranged) detachMin(n int32, min *int32) int32 {
	if r.nodes[n].left == nilNode {
		*min = n
		return r.nodes[n].right
	}
	child := r.detachMin(r.nodes[n].left, min)
	r.nodes[n].left = child
	return r.rebalance(n)
}

func (r *Ranged) height(n int32) int32 {
	if n == nilNode {
		return 0
	}
	return r.nodes[n].height
}

func (r *Ranged) fix(n int32) {
	r.nodes[n].height = 1 + max(r.height(r.nodes[n].left), r.height(r.nodes[n].right))
}

func (r *Ranged) balance(n int32) int32 {
	return r.height(r.nodes[n].left) - r.height(r.nodes[n].right)
}

func (r *Ranged) rotateRight(n int32) int32 {
	l := r.nodes[n].left
	r.nodes[n].left = r.nodes[l].right
	r.nodes[l].right = n
	r.fix(n)
	r.fix(l)
	return l
}

func (r *Ranged) rotateLeft(n int32) int32 {
	rt := r.nodes[n].right
	r.nodes[n].right = r.nodes[rt].left
	r.nodes[rt].left = n
	r.fix(n)
	r.fix(rt)
	return rt
}

func (r *Ranged) rebalance(n int32) int32 {
	r.fix(n)
	switch bf := r.balance(n); {
	case bf > 1:
		if r.balance(r.nodes[n].left) < 0 {
			r.nodes[n].left = r.rotateLeft(r.nodes[n].left)
		}
		return r.rotateRight(n)
	case bf < -1:
		if r.balance(r.nodes[n].right) > 0 {
			r.nodes[n].right = r.rotateRight(r.nodes[n].right)
		}
		return r.rotateLeft(n)
	}
	return n
}

type bound struct {
	key       value.Value
	set       bool
	inclusive bool
}

// walk appends, in key order, the ids of every node between lo and hi.
func (r *Ranged) walk(n int32, lo, hi bound, out []int64) []int64 {
	if n == nilNode {
		return out
	}
	nd := &r.nodes[n]
	cl, ch := 1, -1
	if lo.set {
		cl = value.Compare(nd.key, lo.key)
	}
	if hi.set {
		ch = value.Compare(nd.key, hi.key)
	}
	if cl > 0 {
		out = r.walk(nd.left, lo, hi, out)
	}
	if (cl > 0 || (cl == 0 && lo.inclusive)) && (ch < 0 || (ch == 0 && hi.inclusive)) {
		out = append(out, nd.ids...)
	}
	if ch < 0 {
		out = r.walk(nd.right, lo, hi, out)
	}
	return out
}

// RangeRequest returns ids in key order, ascending id among equal keys.
// $between is inclusive on both ends.
func (r *Ranged) RangeRequest(req Request) []int64 {
	v := req.Val
	switch req.Op {
	case ops.Eq:
		return r.walk(r.root, bound{v, true, true}, bound{v, true, true}, nil)
	case ops.Gt:
		return r.walk(r.root, bound{v, true, false}, bound{}, nil)
	case ops.Gte:
		return r.walk(r.root, bound{v, true, true}, bound{}, nil)
	case ops.Lt:
		return r.walk(r.root, bound{}, bound{v, true, false}, nil)
	case ops.Lte:
		return r.walk(r.root, bound{}, bound{v, true, true}, nil)
	case ops.Between:
		return r.walk(r.root, bound{v, true, true}, bound{req.High, true, true}, nil)
	case ops.Neq:
		out := r.walk(r.root, bound{}, bound{v, true, false}, nil)
		return r.walk(r.root, bound{v, true, false}, bound{}, out)
	}
	return nil
}

// Keys returns the distinct keys in order.
func (r *Ranged) Keys() []value.Value {
	var out []value.Value
	r.inOrder(r.root, func(n *node) bool {
		out = append(out, n.key)
		return true
	})
	return out
}

func (r *Ranged) inOrder(n int32, fn func(*node) bool) bool {
	if n == nilNode {
		return true
	}
	if !r.inOrder(r.nodes[n].left, fn) {
		return false
	}
	if !fn(&r.nodes[n]) {
		return false
	}
	return r.inOrder(r.nodes[n].right, fn)
}

// Validate checks key order, AVL heights and balance, and that the tree
// holds exactly the live documents.
func (r *Ranged) Validate(live int, keyOf KeyFunc) error {
	count := 0
	var prev *node
	var err error
	r.inOrder(r.root, func(n *node) bool {
		if prev != nil && value.Compare(prev.key, n.key) >= 0 {
			err = inconsistent(r.field, "keys out of order")
			return false
		}
		if len(n.ids) == 0 {
			err = inconsistent(r.field, "empty node")
			return false
		}
		for i, id := range n.ids {
			if i > 0 && n.ids[i-1] >= id {
				err = inconsistent(r.field, "ids out of order")
				return false
			}
			if k, ok := r.keys[id]; !ok || value.Compare(k, n.key) != 0 {
				err = inconsistent(r.field, "id map disagrees for document %d", id)
				return false
			}
		}
		count += len(n.ids)
		prev = n
		return true
	})
	if err != nil {
		return err
	}
	if _, err := r.checkHeights(r.root); err != nil {
		return err
	}
	if count != len(r.keys) {
		return inconsistent(r.field, "%d tree entries but %d ids", count, len(r.keys))
	}
	return checkKeys(r.field, r.keys, live, keyOf)
}

func (r *Ranged) checkHeights(n int32) (int32, error) {
	if n == nilNode {
		return 0, nil
	}
	lh, err := r.checkHeights(r.nodes[n].left)
	if err != nil {
		return 0, err
	}
	rh, err := r.checkHeights(r.nodes[n].right)
	if err != nil {
		return 0, err
	}
	h := 1 + max(lh, rh)
	if r.nodes[n].height != h {
		return 0, inconsistent(r.field, "stale height at node %d", n)
	}
	if d := lh - rh; d > 1 || d < -1 {
		return 0, inconsistent(r.field, "unbalanced at node %d", n)
	}
	return h, nil
}
