package btree

/*
SearchRange returns every entry with key <= k < endKey in ascending order.
A B-Tree forks its descent into each child overlapping the range; a B+Tree walks
its leaf chain from the leaf holding key.
*/
func (t *Tree[V]) SearchRange(key, endKey int) ([]Entry[V], []Event[V]) {
	t.begin(key)
	if key >= endKey {
		return nil, t.end()
	}
	if t.layout == Plus {
		return t.searchChain(key, endKey), t.end()
	}
	var out []Entry[V]
	t.searchKeys(t.root, key, endKey, &out)
	return out, t.end()
}

func (t *Tree[V]) searchKeys(n *node[V], key, endKey int, out *[]Entry[V]) {
	t.emit(EventFoundRange, n)
	i, _ := n.search(key)
	for ; i <= n.numKeys(); i++ {
		if !n.isLeaf() {
			t.searchKeys(n.children[i], key, endKey, out)
		}
		if i == n.numKeys() || n.keys[i] >= endKey {
			return
		}
		*out = append(*out, Entry[V]{Key: n.keys[i], Val: n.vals[i]})
	}
}

/*
DeleteRange removes every entry with key <= k < endKey and reports how many were removed.

On a B-Tree the descent continues as long as no key of the current node falls inside
the range. At the first node that owns such a key the operation forks: the left
boundary child loses everything from key onwards, the right boundary child loses
everything below endKey, and the children in between are dropped whole. The node
then closes the gap with a single divider (see reduceGap).

Bulk truncation can leave underflowing nodes at any depth along both boundaries,
which a single check per level cannot repair. A restoration pass therefore walks the
two paths bordering the divider and runs mergeAt at every level (see restore).

On a B+Tree the range is collected from the leaf chain and deleted key by key.
*/
func (t *Tree[V]) DeleteRange(key, endKey int) (int, []Event[V]) {
	t.begin(key)
	if key >= endKey || t.count == 0 {
		return 0, t.end()
	}
	if t.layout == Plus {
		return t.deleteChain(key, endKey), t.end()
	}

	g := t.deleteKeysMain(t.root, key, endKey)
	if g.removed == 0 {
		return 0, t.end()
	}
	t.count -= g.removed

	routes := []func(*node[V]) int{lowerRoute[V](key)}
	if g.spliced {
		routes = []func(*node[V]) int{lowerRoute[V](g.divider), upperRoute[V](g.divider)}
	}
	t.restoreAll(routes)
	return g.removed, t.end()
}

// gap describes the outcome of a range truncation.
type gap struct {
	removed int
	divider int  // key placed between the two truncated boundary subtrees
	spliced bool // whether such a divider exists
}

func (t *Tree[V]) deleteKeysMain(n *node[V], key, endKey int) gap {
	i, _ := n.search(key)
	j, _ := n.search(endKey)

	if n.isLeaf() {
		if j > i {
			n.removeEntries(i, j)
			t.emit(EventDeletedRange, n)
		}
		return gap{removed: j - i}
	}
	if i == j {
		// the whole range lies within one child
		t.emit(EventFoundRange, n)
		return t.deleteKeysMain(n.children[i], key, endKey)
	}
	return t.deleteKeysSplit(n, i, j, key, endKey)
}

/*
deleteKeysSplit is the fork: keys[i:j] of n are inside the range, children[i] covers
key and children[j] covers endKey. Both boundary children are truncated, the ones in
between are dropped.
*/
func (t *Tree[V]) deleteKeysSplit(n *node[V], i, j, key, endKey int) gap {
	removed := j - i
	removed += t.deleteKeysLeft(n.children[i], key)
	removed += t.deleteKeysRight(n.children[j], endKey)
	for _, c := range n.children[i+1 : j] {
		removed += t.dropSubtree(c)
	}

	g := t.reduceGap(n, i, j)
	g.removed = removed
	return g
}

// deleteKeysLeft drops every key >= key from the subtree rooted at n.
func (t *Tree[V]) deleteKeysLeft(n *node[V], key int) int {
	i, _ := n.search(key)
	removed := n.numKeys() - i
	if !n.isLeaf() {
		for _, c := range n.children[i+1:] {
			removed += t.dropSubtree(c)
		}
		removed += t.deleteKeysLeft(n.children[i], key)
		n.removeChildren(i+1, len(n.children))
	}
	if n.numKeys() > i {
		n.removeEntries(i, n.numKeys())
		t.emit(EventDeletedRange, n)
	}
	return removed
}

// deleteKeysRight drops every key < endKey from the subtree rooted at n and shifts the rest to index 0.
func (t *Tree[V]) deleteKeysRight(n *node[V], endKey int) int {
	j, _ := n.search(endKey)
	removed := j
	if !n.isLeaf() {
		for _, c := range n.children[:j] {
			removed += t.dropSubtree(c)
		}
		removed += t.deleteKeysRight(n.children[j], endKey)
		n.removeChildren(0, j)
	}
	if j > 0 {
		n.removeEntries(0, j)
		t.emit(EventDeletedRange, n)
	}
	return removed
}

// dropSubtree discards every node under n and returns the number of entries lost.
func (t *Tree[V]) dropSubtree(n *node[V]) int {
	removed := n.numKeys()
	for _, c := range n.children {
		removed += t.dropSubtree(c)
	}
	t.emit(EventNodeDeleted, n)
	return removed
}

/*
reduceGap closes the gap between children[i] and children[j] of n once both are
truncated. The divider is the largest entry left in the left boundary subtree, or the
smallest one of the right boundary subtree when the left one is empty; keys[i:j] are
replaced by it and children[i+1:j] spliced out. With both boundary subtrees empty
there is nothing to divide: the right one is dropped along with keys[i:j].
*/
func (t *Tree[V]) reduceGap(n *node[V], i, j int) gap {
	if k, v, ok := t.forfeitMax(n.children[i]); ok {
		t.spliceGap(n, i, j, k, v)
		return gap{divider: k, spliced: true}
	}
	if k, v, ok := t.forfeitMin(n.children[j]); ok {
		t.spliceGap(n, i, j, k, v)
		return gap{divider: k, spliced: true}
	}
	t.dropSubtree(n.children[j])
	n.removeEntries(i, j)
	n.removeChildren(i+1, j+1)
	t.emit(EventDeletedRange, n)
	return gap{}
}

func (t *Tree[V]) spliceGap(n *node[V], i, j int, key int, val V) {
	n.removeEntries(i+1, j)
	n.setEntry(i, key, val)
	n.removeChildren(i+1, j)
	t.emitPair(EventForfeit, n, n.children[i])
}

/*
forfeitMax removes the rightmost entry of a truncated subtree. Unlike forfeit it does
not repair anything, and it copes with empty subtrees: when the last child holds no
entries at all, the node gives up its own last key and drops that child.
*/
func (t *Tree[V]) forfeitMax(n *node[V]) (int, V, bool) {
	var zero V
	if n.isLeaf() {
		if n.numKeys() == 0 {
			return 0, zero, false
		}
		k, v := n.removeEntryAt(n.numKeys() - 1)
		t.emit(EventForfeit, n)
		return k, v, true
	}
	if k, v, ok := t.forfeitMax(n.lastChild()); ok {
		return k, v, true
	}
	if n.numKeys() == 0 {
		return 0, zero, false
	}
	t.dropSubtree(n.lastChild())
	n.removeChildren(len(n.children)-1, len(n.children))
	k, v := n.removeEntryAt(n.numKeys() - 1)
	t.emit(EventForfeit, n)
	return k, v, true
}

// forfeitMin is the mirror image of forfeitMax.
func (t *Tree[V]) forfeitMin(n *node[V]) (int, V, bool) {
	var zero V
	if n.isLeaf() {
		if n.numKeys() == 0 {
			return 0, zero, false
		}
		k, v := n.removeEntryAt(0)
		t.emit(EventForfeit, n)
		return k, v, true
	}
	if k, v, ok := t.forfeitMin(n.firstChild()); ok {
		return k, v, true
	}
	if n.numKeys() == 0 {
		return 0, zero, false
	}
	t.dropSubtree(n.firstChild())
	n.removeChildren(0, 1)
	k, v := n.removeEntryAt(0)
	t.emit(EventForfeit, n)
	return k, v, true
}

// lowerRoute descends towards the position just left of key.
func lowerRoute[V any](key int) func(*node[V]) int {
	return func(n *node[V]) int {
		i, _ := n.search(key)
		return i
	}
}

// upperRoute descends towards the position just right of key.
func upperRoute[V any](key int) func(*node[V]) int {
	return func(n *node[V]) int {
		i, found := n.search(key)
		if found {
			i++
		}
		return i
	}
}

const maxRestoreRounds = 64

/*
restoreAll repairs every path given by routes, starting from the root. A repair
can leave an empty internal root behind, which is collapsed before the next round.
Each round that still finds an underflowing node on a path has merged at least one
pair of nodes, so this terminates.
*/
func (t *Tree[V]) restoreAll(routes []func(*node[V]) int) {
	for round := 0; ; round++ {
		if round > maxRestoreRounds {
			corrupt("restoration did not settle after %d rounds", round)
		}
		t.collapseRoot()
		for _, route := range routes {
			t.restore(t.root, route)
		}
		t.collapseRoot()
		if !t.underflowOnPaths(routes) {
			return
		}
	}
}

/*
restore repairs the path chosen by route below n. The child on the path is fixed
first so that its own children have siblings to borrow from or merge with, then the
path below it is restored, and finally the child is fixed again since merges below
may have taken keys away from it.
*/
func (t *Tree[V]) restore(n *node[V], route func(*node[V]) int) {
	if n.isLeaf() {
		return
	}
	t.mergeAt(n, route(n))
	t.restore(n.children[route(n)], route)
	t.mergeAt(n, route(n))
	t.emit(EventRestoration, n)
}

func (t *Tree[V]) underflowOnPaths(routes []func(*node[V]) int) bool {
	for _, route := range routes {
		for n := t.root; !n.isLeaf(); {
			n = n.children[route(n)]
			if t.isUnderflow(n) {
				return true
			}
		}
	}
	return false
}
