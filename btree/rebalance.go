package btree

/*
payload captures the only places where the two layouts disagree: how a leaf
splits, lends entries to a sibling and merges. Internal nodes are handled the
same way by both layouts, a B+Tree internal node simply has no values to move.
*/
type payload[V any] interface {
	splitLeaf(t *Tree[V], n *node[V]) *promotion[V]
	// the leaf at parent.children[i] takes k entries from the front of its right sibling
	leafGainsFromRight(t *Tree[V], parent *node[V], i, k int)
	// the leaf at parent.children[i+1] takes k entries from the tail of its left sibling
	leafGainsFromLeft(t *Tree[V], parent *node[V], i, k int)
	// the leaf at parent.children[i] absorbs its right sibling
	mergeLeaves(t *Tree[V], parent *node[V], i int)
}

type classicPayload[V any] struct{}

func (classicPayload[V]) splitLeaf(t *Tree[V], n *node[V]) *promotion[V] {
	return t.splitAtMiddle(n)
}

func (classicPayload[V]) leafGainsFromRight(t *Tree[V], parent *node[V], i, k int) {
	t.rotateFromRight(parent, i, k)
}

func (classicPayload[V]) leafGainsFromLeft(t *Tree[V], parent *node[V], i, k int) {
	t.rotateFromLeft(parent, i, k)
}

func (classicPayload[V]) mergeLeaves(t *Tree[V], parent *node[V], i int) {
	t.mergeThroughDivider(parent, i)
}

/*
mergeAt repairs the child at index i of parent after a structural change beneath it.
It loops while that child is underflowing:
 1. keysNeeded = degree-1 - child.keyCount
 2. the right sibling can spare keysNeeded entries -> batch borrow from its front
 3. else the left sibling can spare them -> batch borrow from its tail
 4. else merge with the right sibling, or with the left one if the child is rightmost.
Borrowing moves all keysNeeded entries in one step.
A merge takes a key away from parent, so parent may underflow in turn; that is
for the caller one level up to repair.
*/
func (t *Tree[V]) mergeAt(parent *node[V], i int) {
	for len(parent.children) > 1 {
		i = min(i, len(parent.children)-1)
		child := parent.children[i]
		if !t.isUnderflow(child) {
			return
		}
		t.emit(EventUnderflow, child)

		needed := t.minKeys() - child.numKeys()
		hasRight := i+1 < len(parent.children)
		switch {
		case hasRight && parent.children[i+1].numKeys()-needed >= t.minKeys():
			t.gainsFromRight(parent, i, needed)
		case i > 0 && parent.children[i-1].numKeys()-needed >= t.minKeys():
			t.gainsFromLeft(parent, i-1, needed)
		case hasRight:
			t.merge(parent, i)
		default:
			t.merge(parent, i-1)
			i--
		}
	}
}

func (t *Tree[V]) gainsFromRight(parent *node[V], i, k int) {
	if parent.children[i].isLeaf() {
		t.payload.leafGainsFromRight(t, parent, i, k)
	} else {
		t.rotateFromRight(parent, i, k)
	}
	t.emitPair(EventShift, parent.children[i], parent.children[i+1])
	t.emit(EventMergeParent, parent)
}

func (t *Tree[V]) gainsFromLeft(parent *node[V], i, k int) {
	if parent.children[i].isLeaf() {
		t.payload.leafGainsFromLeft(t, parent, i, k)
	} else {
		t.rotateFromLeft(parent, i, k)
	}
	t.emitPair(EventShift, parent.children[i+1], parent.children[i])
	t.emit(EventMergeParent, parent)
}

func (t *Tree[V]) merge(parent *node[V], i int) {
	left, right := parent.children[i], parent.children[i+1]
	if left.isLeaf() {
		t.payload.mergeLeaves(t, parent, i)
	} else {
		t.mergeThroughDivider(parent, i)
	}
	t.emitPair(EventMerge, left, right)
	t.emit(EventNodeDeleted, right)
	t.emit(EventMergeParent, parent)
}

/*
rotateFromRight: the left node (children[i]) gains k keys. The divider moves down
to the end of the left node together with the first k-1 keys of the right node, and
the right node's k-th key is promoted to replace the divider. For internal nodes the
first k children of the right node move along.
*/
func (t *Tree[V]) rotateFromRight(parent *node[V], i, k int) {
	left, right := parent.children[i], parent.children[i+1]

	left.appendEntries([]int{parent.keys[i]}, parent.entries(i, i+1))
	left.appendEntries(right.keys[:k-1], right.entries(0, k-1))
	parent.setEntry(i, right.keys[k-1], right.value(k-1))
	right.removeEntries(0, k)

	if !left.isLeaf() {
		left.children = append(left.children, right.children[:k]...)
		right.removeChildren(0, k)
	}
}

/*
rotateFromLeft is the mirror image: the right node (children[i+1]) gains k keys from
the tail of the left node, and the left node's (len-k)-th key becomes the divider.
*/
func (t *Tree[V]) rotateFromLeft(parent *node[V], i, k int) {
	left, right := parent.children[i], parent.children[i+1]
	n := left.numKeys()

	keys := make([]int, 0, k+right.numKeys())
	keys = append(keys, left.keys[n-k+1:]...)
	keys = append(keys, parent.keys[i])
	keys = append(keys, right.keys...)
	if right.valued {
		vals := make([]V, 0, k+right.numKeys())
		vals = append(vals, left.vals[n-k+1:]...)
		vals = append(vals, parent.value(i))
		vals = append(vals, right.vals...)
		right.vals = vals
	}
	right.keys = keys

	parent.setEntry(i, left.keys[n-k], left.value(n-k))
	left.removeEntries(n-k, n)

	if !left.isLeaf() {
		c := len(left.children)
		children := make([]*node[V], 0, k+len(right.children))
		children = append(children, left.children[c-k:]...)
		children = append(children, right.children...)
		right.children = children
		left.removeChildren(c-k, c)
	}
}

/*
mergeThroughDivider: the left node (children[i]) absorbs the divider and every
entry and child of its right sibling. The parent loses the divider and the slot of
the absorbed sibling, and everything after it shifts left.
*/
func (t *Tree[V]) mergeThroughDivider(parent *node[V], i int) {
	left, right := parent.children[i], parent.children[i+1]

	left.appendEntries([]int{parent.keys[i]}, parent.entries(i, i+1))
	left.appendEntries(right.keys, right.entries(0, right.numKeys()))
	left.children = append(left.children, right.children...)

	parent.removeEntryAt(i)
	parent.removeChildren(i+1, i+2)
}
