package btree

// SnapshotNode is one node of a tree snapshot together with its children.
type SnapshotNode[V any] struct {
	NodeState[V]
	Children []*SnapshotNode[V]
}

// Snapshot is a deep copy of the tree's structure, for external rendering only.
type Snapshot[V any] struct {
	Layout Layout
	Degree int
	Len    int
	Root   *SnapshotNode[V]
}

// Traverse copies the whole tree. It records no events.
func (t *Tree[V]) Traverse() Snapshot[V] {
	return Snapshot[V]{
		Layout: t.layout,
		Degree: t.degree,
		Len:    t.count,
		Root:   snapshot(t.root),
	}
}

func snapshot[V any](n *node[V]) *SnapshotNode[V] {
	s := &SnapshotNode[V]{NodeState: n.state()}
	for _, c := range n.children {
		s.Children = append(s.Children, snapshot(c))
	}
	return s
}

// Height is the number of levels below the root, 0 for a lone leaf.
func (s Snapshot[V]) Height() int {
	h := 0
	for n := s.Root; n != nil && len(n.Children) > 0; n = n.Children[0] {
		h++
	}
	return h
}

// Walk visits every node depth first, passing its depth.
func (s Snapshot[V]) Walk(fn func(n *SnapshotNode[V], depth int)) {
	var walk func(n *SnapshotNode[V], depth int)
	walk = func(n *SnapshotNode[V], depth int) {
		fn(n, depth)
		for _, c := range n.Children {
			walk(c, depth+1)
		}
	}
	if s.Root != nil {
		walk(s.Root, 0)
	}
}
