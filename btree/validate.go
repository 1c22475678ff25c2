package btree

import (
	"math"

	"github.com/pkg/errors"
)

// Height returns the shortest and the longest root-to-leaf distance.
func (t *Tree[V]) Height() (lo, hi int) {
	lo, hi = math.MaxInt, 0
	var walk func(n *node[V], depth int)
	walk = func(n *node[V], depth int) {
		if n.isLeaf() {
			lo, hi = min(lo, depth), max(hi, depth)
			return
		}
		for _, c := range n.children {
			walk(c, depth+1)
		}
	}
	walk(t.root, 0)
	return lo, hi
}

// IsBalanced reports whether every leaf sits at the same depth.
func (t *Tree[V]) IsBalanced() bool {
	lo, hi := t.Height()
	return lo == hi
}

/*
Validate checks every structural invariant of the tree and returns the first
violation found, wrapping ErrCorrupted:
  - every node but the root holds degree-1 .. 2*degree-2 keys at rest
  - keys ascend and respect the bounds set by the ancestors' dividers
  - internal nodes own len(keys)+1 children, payload slices match the keys
  - every leaf sits at the same depth
  - B+Tree routing keys equal the leftmost key on their right, and the leaf chain
    links every leaf left to right
  - the entry count matches
*/
func (t *Tree[V]) Validate() error {
	v := validator[V]{t: t, leafDepth: -1}
	if err := v.check(t.root, 0, nil, nil); err != nil {
		return err
	}
	if v.entries != t.count {
		return errors.Wrapf(ErrCorrupted, "counted %d entries, tree reports %d", v.entries, t.count)
	}
	if t.layout == Plus {
		return v.checkChain()
	}
	return nil
}

type validator[V any] struct {
	t         *Tree[V]
	leafDepth int
	entries   int
	leaves    []*node[V]
}

// check validates n, whose keys must satisfy lo <= k (B+Tree) or lo < k (B-Tree), and k < hi.
func (v *validator[V]) check(n *node[V], depth int, lo, hi *int) error {
	t := v.t
	if n != t.root && t.isUnderflow(n) {
		return errors.Wrapf(ErrCorrupted, "node %d underflows with %d keys", n.id, n.numKeys())
	}
	if t.isFull(n) {
		return errors.Wrapf(ErrCorrupted, "node %d is full with %d keys", n.id, n.numKeys())
	}
	if n.valued != (n.isLeaf() || t.layout == Classic) {
		return errors.Wrapf(ErrCorrupted, "node %d carries the wrong payload", n.id)
	}
	if n.valued && len(n.vals) != n.numKeys() {
		return errors.Wrapf(ErrCorrupted, "node %d has %d keys but %d values", n.id, n.numKeys(), len(n.vals))
	}
	for i, k := range n.keys {
		if i > 0 && n.keys[i-1] >= k {
			return errors.Wrapf(ErrCorrupted, "node %d keys out of order at %d", n.id, i)
		}
		if lo != nil && (k < *lo || (k == *lo && t.layout == Classic)) {
			return errors.Wrapf(ErrCorrupted, "node %d key %d below bound %d", n.id, k, *lo)
		}
		if hi != nil && k >= *hi {
			return errors.Wrapf(ErrCorrupted, "node %d key %d above bound %d", n.id, k, *hi)
		}
	}

	switch n.kind {
	case leafNode:
		if len(n.children) != 0 {
			return errors.Wrapf(ErrCorrupted, "leaf %d has children", n.id)
		}
		if v.leafDepth == -1 {
			v.leafDepth = depth
		} else if v.leafDepth != depth {
			return errors.Wrapf(ErrCorrupted, "leaf %d at depth %d, expected %d", n.id, depth, v.leafDepth)
		}
		v.entries += n.numKeys()
		v.leaves = append(v.leaves, n)
		return nil
	case internalNode:
		if len(n.children) != n.numKeys()+1 {
			return errors.Wrapf(ErrCorrupted, "node %d has %d keys but %d children", n.id, n.numKeys(), len(n.children))
		}
		if t.layout == Classic {
			v.entries += n.numKeys()
		}
		for i, c := range n.children {
			if c == nil {
				return errors.Wrapf(ErrCorrupted, "node %d child %d missing", n.id, i)
			}
			clo, chi := lo, hi
			if i > 0 {
				clo = &n.keys[i-1]
			}
			if i < n.numKeys() {
				chi = &n.keys[i]
			}
			if err := v.check(c, depth+1, clo, chi); err != nil {
				return err
			}
			if t.layout == Plus && i > 0 {
				if k, ok := leftmostKey(c); !ok || k != n.keys[i-1] {
					return errors.Wrapf(ErrCorrupted, "node %d routing key %d, leftmost on its right is %d", n.id, n.keys[i-1], k)
				}
			}
		}
		return nil
	default:
		return errors.Wrapf(ErrCorrupted, "node %d has kind %s", n.id, n.kind)
	}
}

// checkChain compares the leaf chain with the leaves in tree order.
func (v *validator[V]) checkChain() error {
	var prev *node[V]
	leaf := v.t.leftmostLeaf()
	for i, want := range v.leaves {
		if leaf != want {
			return errors.Wrapf(ErrCorrupted, "leaf chain position %d holds node %d, expected %d", i, nodeID(leaf), want.id)
		}
		if leaf.prev != prev {
			return errors.Wrapf(ErrCorrupted, "leaf %d links back to %d", leaf.id, nodeID(leaf.prev))
		}
		prev, leaf = leaf, leaf.next
	}
	if leaf != nil {
		return errors.Wrapf(ErrCorrupted, "leaf chain continues past the last leaf to %d", leaf.id)
	}
	return nil
}

func nodeID[V any](n *node[V]) uint64 {
	if n == nil {
		return 0
	}
	return n.id
}
