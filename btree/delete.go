package btree

/*
Delete removes key from the tree. Returned value is false when the key is absent,
in which case the tree is left untouched.
Every node on the way back up checks the child it descended into for underflow
and repairs it, and an internal root left without keys is replaced by its only child.
*/
func (t *Tree[V]) Delete(key int) (bool, []Event[V]) {
	t.begin(key)
	if !t.delete(t.root, key) {
		return false, t.end()
	}
	t.count--
	t.collapseRoot()
	return true, t.end()
}

func (t *Tree[V]) delete(n *node[V], key int) bool {
	switch n.kind {
	case leafNode:
		pos, found := n.search(key)
		if !found {
			return false
		}
		n.removeEntryAt(pos)
		t.emit(EventDeleted, n)
		return true
	case internalNode:
		if t.layout == Plus {
			pos := n.route(key)
			if !t.delete(n.children[pos], key) {
				return false
			}
			// rotations move routing keys between levels: refresh them on both sides of the repair
			t.updateKeyValues(n)
			t.mergeAt(n, pos)
			t.updateKeyValues(n)
			return true
		}

		pos, found := n.search(key)
		if found {
			// predecessor substitution: the left subtree gives up its rightmost entry
			k, v := t.forfeit(n.children[pos])
			n.setEntry(pos, k, v)
			t.emitPair(EventForfeit, n, n.children[pos])
			t.mergeAt(n, pos)
			return true
		}
		if !t.delete(n.children[pos], key) {
			return false
		}
		t.mergeAt(n, pos)
		return true
	default:
		corrupt("node %d has kind %s", n.id, n.kind)
	}
	return false
}

/*
forfeit removes and returns the rightmost entry of the subtree rooted at n.
An internal node takes it from its last child and then repairs that child, so the
subtree stays valid apart from n itself possibly underflowing.
*/
func (t *Tree[V]) forfeit(n *node[V]) (int, V) {
	if n.isLeaf() {
		if n.numKeys() == 0 {
			corrupt("forfeit from empty leaf %d", n.id)
		}
		k, v := n.removeEntryAt(n.numKeys() - 1)
		t.emit(EventForfeit, n)
		return k, v
	}
	last := len(n.children) - 1
	k, v := t.forfeit(n.children[last])
	t.mergeAt(n, last)
	return k, v
}
