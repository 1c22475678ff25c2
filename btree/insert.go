package btree

// promotion is what a split hands to the parent: the divider entry and the new right sibling.
type promotion[V any] struct {
	key   int
	val   V
	right *node[V]
}

/*
Insert stores val under key. Returned value is false when the key already exists,
in which case the tree is left untouched.
The insertion descends to a leaf, and every node that becomes full on the way back
up is split. Only a root split grows the height of the tree.
*/
func (t *Tree[V]) Insert(key int, val V) (bool, []Event[V]) {
	t.begin(key)
	p, ok := t.insert(t.root, key, val)
	if !ok {
		return false, t.end()
	}
	if p != nil {
		t.splitRoot(p)
	}
	t.count++
	return true, t.end()
}

func (t *Tree[V]) insert(n *node[V], key int, val V) (*promotion[V], bool) {
	switch n.kind {
	case leafNode:
		pos, found := n.search(key)
		if found {
			return nil, false
		}
		n.insertEntryAt(pos, key, val)
		t.emit(EventInserted, n)
	case internalNode:
		var pos int
		if t.layout == Plus {
			pos = n.route(key)
		} else {
			var found bool
			if pos, found = n.search(key); found {
				return nil, false
			}
		}
		p, ok := t.insert(n.children[pos], key, val)
		if !ok || p == nil {
			return nil, ok
		}
		// link the divider and the new sibling right after the child that split
		n.insertEntryAt(pos, p.key, p.val)
		n.insertChildAt(pos+1, p.right)
		t.emit(EventInserted, n)
	default:
		corrupt("node %d has kind %s", n.id, n.kind)
	}

	if t.isFull(n) {
		return t.split(n), true
	}
	return nil, true
}

func (t *Tree[V]) split(n *node[V]) *promotion[V] {
	if n.isLeaf() {
		return t.payload.splitLeaf(t, n)
	}
	return t.splitAtMiddle(n)
}

/*
splitAtMiddle splits a node of 2*degree-1 keys: the left half keeps degree-1 keys,
the middle key moves up as divider and the right half takes the remaining degree-1.
Used for every internal node and for B-Tree leaves.
*/
func (t *Tree[V]) splitAtMiddle(n *node[V]) *promotion[V] {
	mid := t.minKeys()
	var sib *node[V]
	if n.isLeaf() {
		sib = t.newLeaf()
	} else {
		sib = t.newInternal()
	}

	p := &promotion[V]{key: n.keys[mid], val: n.value(mid), right: sib}
	sib.appendEntries(n.keys[mid+1:], n.entries(mid+1, n.numKeys()))
	n.removeEntries(mid, n.numKeys())
	if !n.isLeaf() {
		sib.children = append(sib.children, n.children[mid+1:]...)
		n.removeChildren(mid+1, len(n.children))
	}

	t.emitPair(EventSplit, n, sib)
	return p
}

/*
Create a new root node.
The existing root then becomes the new root's left child, and the node created by
splitting it becomes the right child.
*/
func (t *Tree[V]) splitRoot(p *promotion[V]) {
	root := t.newInternal()
	root.insertEntryAt(0, p.key, p.val)
	root.children = append(root.children, t.root, p.right)
	t.root = root
	t.emit(EventInserted, root)
}
