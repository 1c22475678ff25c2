package btree

/*
plusPayload implements the B+Tree leaf behaviour. Leaves keep every key they own:
a split copies the first key of the new right leaf up as divider instead of moving
it, and a merge drops the divider since it was only ever a copy.
*/
type plusPayload[V any] struct{}

func (plusPayload[V]) splitLeaf(t *Tree[V], n *node[V]) *promotion[V] {
	mid := t.minKeys()
	sib := t.newLeaf()
	sib.appendEntries(n.keys[mid:], n.vals[mid:])
	n.removeEntries(mid, n.numKeys())

	// the new leaf goes right after the one that split
	sib.prev, sib.next = n, n.next
	if n.next != nil {
		n.next.prev = sib
	}
	n.next = sib

	t.emitPair(EventSplit, n, sib)
	return &promotion[V]{key: sib.keys[0], right: sib}
}

func (plusPayload[V]) leafGainsFromRight(t *Tree[V], parent *node[V], i, k int) {
	left, right := parent.children[i], parent.children[i+1]
	left.appendEntries(right.keys[:k], right.vals[:k])
	right.removeEntries(0, k)
	parent.keys[i] = right.keys[0]
}

func (plusPayload[V]) leafGainsFromLeft(t *Tree[V], parent *node[V], i, k int) {
	left, right := parent.children[i], parent.children[i+1]
	n := left.numKeys()

	keys := make([]int, 0, k+right.numKeys())
	keys = append(keys, left.keys[n-k:]...)
	right.keys = append(keys, right.keys...)
	vals := make([]V, 0, k+right.numKeys())
	vals = append(vals, left.vals[n-k:]...)
	right.vals = append(vals, right.vals...)

	left.removeEntries(n-k, n)
	parent.keys[i] = right.keys[0]
}

func (plusPayload[V]) mergeLeaves(t *Tree[V], parent *node[V], i int) {
	left, right := parent.children[i], parent.children[i+1]
	left.appendEntries(right.keys, right.vals)

	left.next = right.next
	if right.next != nil {
		right.next.prev = left
	}
	right.prev, right.next = nil, nil

	parent.removeEntryAt(i)
	parent.removeChildren(i+1, i+2)
}

// leftmostKey returns the smallest key stored in the subtree rooted at n, if any.
func leftmostKey[V any](n *node[V]) (int, bool) {
	for !n.isLeaf() {
		n = n.firstChild()
	}
	if n.numKeys() == 0 {
		return 0, false
	}
	return n.keys[0], true
}

/*
updateKeyValues recomputes every routing key of a B+Tree internal node as the
leftmost key of the subtree on its right. Called around any structural change below n.
A subtree emptied by a delete keeps its stale key until it is repaired.
*/
func (t *Tree[V]) updateKeyValues(n *node[V]) {
	if n.isLeaf() {
		return
	}
	changed := false
	for i := range n.keys {
		if k, ok := leftmostKey(n.children[i+1]); ok && k != n.keys[i] {
			n.keys[i] = k
			changed = true
		}
	}
	if changed {
		t.emit(EventShift, n)
	}
}

func (t *Tree[V]) leftmostLeaf() *node[V] {
	n := t.root
	for !n.isLeaf() {
		n = n.firstChild()
	}
	return n
}

// findLeaf descends a B+Tree to the leaf whose range holds key.
func (t *Tree[V]) findLeaf(key int, record bool) *node[V] {
	n := t.root
	for !n.isLeaf() {
		if record {
			t.emit(EventFound, n)
		}
		n = n.children[n.route(key)]
	}
	return n
}

// searchChain walks the leaf chain from the leaf holding key and collects [key, endKey).
func (t *Tree[V]) searchChain(key, endKey int) []Entry[V] {
	var out []Entry[V]
	leaf := t.findLeaf(key, true)
	pos, _ := leaf.search(key)
	for leaf != nil {
		start := len(out)
		for ; pos < leaf.numKeys(); pos++ {
			if leaf.keys[pos] >= endKey {
				break
			}
			out = append(out, Entry[V]{Key: leaf.keys[pos], Val: leaf.vals[pos]})
		}
		if len(out) > start {
			t.emit(EventFoundRange, leaf)
		}
		if pos < leaf.numKeys() {
			break
		}
		leaf, pos = leaf.next, 0
	}
	return out
}

/*
deleteChain removes [key, endKey) from a B+Tree one key at a time. Once done, the
leaf now bordering the range reports the whole removal with EventDeletedRange.
*/
func (t *Tree[V]) deleteChain(key, endKey int) int {
	doomed := t.searchChain(key, endKey)
	for _, e := range doomed {
		if !t.delete(t.root, e.Key) {
			corrupt("key %d listed by the leaf chain but not found", e.Key)
		}
		t.count--
		t.collapseRoot()
	}
	if len(doomed) > 0 {
		t.emit(EventDeletedRange, t.findLeaf(key, false))
	}
	return len(doomed)
}
