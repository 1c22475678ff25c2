package btree

import "slices"

type nodeKind uint8

const (
	leafNode nodeKind = iota
	internalNode
)

func (k nodeKind) String() string {
	switch k {
	case leafNode:
		return "leaf"
	case internalNode:
		return "internal"
	default:
		return "unknown"
	}
}

/*
node is either a leaf or an internal node, told apart by kind.
keys are unique and ascending. vals runs parallel to keys whenever the node
carries payload (every B-Tree node, B+Tree leaves only). An internal node always
owns len(keys)+1 children.
*/
type node[V any] struct {
	id       uint64
	kind     nodeKind
	valued   bool
	keys     []int
	vals     []V
	children []*node[V]

	// B+Tree leaf chain. These links are for iteration only, a leaf is owned by its parent.
	prev, next *node[V]
}

func (n *node[V]) isLeaf() bool {
	return n.kind == leafNode
}

func (n *node[V]) numKeys() int {
	return len(n.keys)
}

/*
If key is found in node n, return its index i.
Else, return the index j where the key would have resided if it was present in the node.
This lower bound coincides with the position of the child pointer, so the descent
can continue there when the returned boolean is false.
*/
func (n *node[V]) search(key int) (int, bool) {
	low, high := 0, len(n.keys)
	for low < high {
		mid := int(uint(low+high) >> 1)
		switch k := n.keys[mid]; {
		case key > k:
			low = mid + 1
		case key < k:
			high = mid
		default:
			return mid, true
		}
	}
	return low, false
}

// route picks the child of a B+Tree internal node: keys equal to a routing key live on its right.
func (n *node[V]) route(key int) int {
	pos, found := n.search(key)
	if found {
		pos++
	}
	return pos
}

func (n *node[V]) value(pos int) V {
	if !n.valued {
		var zero V
		return zero
	}
	return n.vals[pos]
}

// insert an entry at an arbitrary position, shifting the tail right.
func (n *node[V]) insertEntryAt(pos int, key int, val V) {
	n.keys = slices.Insert(n.keys, pos, key)
	if n.valued {
		n.vals = slices.Insert(n.vals, pos, val)
	}
}

func (n *node[V]) removeEntryAt(pos int) (int, V) {
	key, val := n.keys[pos], n.value(pos)
	n.keys = slices.Delete(n.keys, pos, pos+1)
	if n.valued {
		n.vals = slices.Delete(n.vals, pos, pos+1)
	}
	return key, val
}

// removeEntries drops entries [i, j) and left-shifts whatever follows.
func (n *node[V]) removeEntries(i, j int) {
	n.keys = slices.Delete(n.keys, i, j)
	if n.valued {
		n.vals = slices.Delete(n.vals, i, j)
	}
}

func (n *node[V]) setEntry(pos int, key int, val V) {
	n.keys[pos] = key
	if n.valued {
		n.vals[pos] = val
	}
}

func (n *node[V]) appendEntries(keys []int, vals []V) {
	n.keys = append(n.keys, keys...)
	if n.valued {
		n.vals = append(n.vals, vals...)
	}
}

// entries returns the payload slice for [i, j), or nil when the node carries none.
func (n *node[V]) entries(i, j int) []V {
	if !n.valued {
		return nil
	}
	return n.vals[i:j]
}

func (n *node[V]) insertChildAt(pos int, child *node[V]) {
	n.children = slices.Insert(n.children, pos, child)
}

func (n *node[V]) removeChildren(i, j int) {
	n.children = slices.Delete(n.children, i, j)
}

func (n *node[V]) firstChild() *node[V] {
	return n.children[0]
}

func (n *node[V]) lastChild() *node[V] {
	return n.children[len(n.children)-1]
}

// state is the post-mutation snapshot of n carried by events.
func (n *node[V]) state() NodeState[V] {
	s := NodeState[V]{
		ID:   n.id,
		Leaf: n.isLeaf(),
		Keys: slices.Clone(n.keys),
	}
	if n.valued {
		s.Values = slices.Clone(n.vals)
	}
	return s
}
