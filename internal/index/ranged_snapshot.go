package index

import (
	"github.com/skshohagmiah/flindb/internal/value"
)

// NodeSnapshot is one tree node in persisted form. Left and Right are
// positions in RangedSnapshot.Nodes, -1 for no child.
type NodeSnapshot struct {
	Key    any     `json:"key"`
	IDs    []int64 `json:"ids"`
	Left   int32   `json:"left"`
	Right  int32   `json:"right"`
	Height int32   `json:"height"`
}

// RangedSnapshot is the persisted shape of a ranged index.
type RangedSnapshot struct {
	Field string         `json:"field"`
	Root  int32          `json:"root"`
	Nodes []NodeSnapshot `json:"nodes"`
}

// Backup compacts the arena into a snapshot. Free slots are dropped.
func (r *Ranged) Backup() RangedSnapshot {
	snap := RangedSnapshot{Field: r.field, Root: nilNode}
	pos := make(map[int32]int32)
	var order []int32
	r.preOrder(r.root, func(n int32) {
		pos[n] = int32(len(order))
		order = append(order, n)
	})
	remap := func(n int32) int32 {
		if n == nilNode {
			return nilNode
		}
		return pos[n]
	}
	snap.Nodes = make([]NodeSnapshot, len(order))
	for i, n := range order {
		nd := r.nodes[n]
		snap.Nodes[i] = NodeSnapshot{
			Key:    value.EncodeValue(nd.key),
			IDs:    append([]int64(nil), nd.ids...),
			Left:   remap(nd.left),
			Right:  remap(nd.right),
			Height: nd.height,
		}
	}
	if r.root != nilNode {
		snap.Root = 0
	}
	return snap
}

func (r *Ranged) preOrder(n int32, fn func(int32)) {
	if n == nilNode {
		return
	}
	fn(n)
	r.preOrder(r.nodes[n].left, fn)
	r.preOrder(r.nodes[n].right, fn)
}

// RestoreRanged loads a snapshot and recomputes heights from the saved
// shape. A shape outside AVL balance is relinked into a balanced tree in
// the same in-order sequence. Structural damage (bad positions, cycles, ids
// listed twice) is an error; ordering and key staleness are left to Validate.
func RestoreRanged(snap RangedSnapshot, keyOf KeyFunc) (*Ranged, error) {
	r := NewRanged(snap.Field)
	count := int32(len(snap.Nodes))
	if count == 0 {
		if snap.Root != nilNode {
			return nil, inconsistent(snap.Field, "root %d in empty tree", snap.Root)
		}
		return r, nil
	}
	if snap.Root < 0 || snap.Root >= count {
		return nil, inconsistent(snap.Field, "root %d out of range", snap.Root)
	}
	r.nodes = make([]node, count)
	for i, ns := range snap.Nodes {
		for _, child := range []int32{ns.Left, ns.Right} {
			if child != nilNode && (child < 0 || child >= count) {
				return nil, inconsistent(snap.Field, "child %d out of range", child)
			}
		}
		r.nodes[i] = node{
			key:    value.DecodeValue(ns.Key),
			ids:    append([]int64(nil), ns.IDs...),
			left:   ns.Left,
			right:  ns.Right,
		}
	}

	visited := make([]bool, count)
	stack := []int32{snap.Root}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			return nil, inconsistent(snap.Field, "node %d reached twice", n)
		}
		visited[n] = true
		for _, id := range r.nodes[n].ids {
			if _, dup := r.keys[id]; dup {
				return nil, inconsistent(snap.Field, "document %d saved twice", id)
			}
			if keyOf != nil {
				if _, ok := keyOf(id); !ok {
					return nil, inconsistent(snap.Field, "saved entry for missing document %d", id)
				}
			}
			r.keys[id] = r.nodes[n].key
		}
		for _, child := range []int32{r.nodes[n].left, r.nodes[n].right} {
			if child != nilNode {
				stack = append(stack, child)
			}
		}
	}
	for i, seen := range visited {
		if !seen {
			return nil, inconsistent(snap.Field, "node %d unreachable", i)
		}
	}
	r.root = snap.Root
	if !r.restoreHeights(r.root) {
		r.relink()
	}
	return r, nil
}

// restoreHeights recomputes heights bottom-up and reports whether every
// node is within AVL balance.
func (r *Ranged) restoreHeights(n int32) bool {
	if n == nilNode {
		return true
	}
	okLeft := r.restoreHeights(r.nodes[n].left)
	okRight := r.restoreHeights(r.nodes[n].right)
	r.fix(n)
	bf := r.balance(n)
	return okLeft && okRight && bf >= -1 && bf <= 1
}

// relink rebuilds the links as a balanced tree over the current in-order
// node sequence.
func (r *Ranged) relink() {
	order := make([]int32, 0, len(r.nodes))
	var collect func(n int32)
	collect = func(n int32) {
		if n == nilNode {
			return
		}
		collect(r.nodes[n].left)
		order = append(order, n)
		collect(r.nodes[n].right)
	}
	collect(r.root)
	r.root = r.link(order)
}

func (r *Ranged) link(order []int32) int32 {
	if len(order) == 0 {
		return nilNode
	}
	mid := len(order) / 2
	n := order[mid]
	r.nodes[n].left = r.link(order[:mid])
	r.nodes[n].right = r.link(order[mid+1:])
	r.fix(n)
	return n
}
