package btree

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrCorrupted marks a structural invariant violation. Tree operations panic with an
	// error wrapping it; the executor recovers and reports it for the failed command.
	ErrCorrupted = errors.New("btree: structural invariant violated")

	ErrInvalidDegree = errors.New("btree: degree must be at least 2")
	ErrInvalidLayout = errors.New("btree: unknown layout")
)

// Layout selects how a tree carries its payload.
type Layout uint8

const (
	// Classic is a B-Tree: keys and values live together at every level.
	Classic Layout = iota
	// Plus is a B+Tree: values live in leaves only, leaves are chained.
	Plus
)

func (l Layout) String() string {
	switch l {
	case Classic:
		return "btree"
	case Plus:
		return "bplustree"
	default:
		return fmt.Sprintf("layout(%d)", uint8(l))
	}
}

// ParseLayout accepts the names printed by Layout.String.
func ParseLayout(s string) (Layout, error) {
	switch s {
	case "btree", "b", "classic":
		return Classic, nil
	case "bplustree", "b+", "bplus", "plus":
		return Plus, nil
	}
	return 0, errors.Wrapf(ErrInvalidLayout, "%q", s)
}

/*
Tree owns the root node. A tree is made up of nodes, each node contains entries.
The root is replaced, never rebuilt in place, when it splits or collapses.
Tree is not safe for concurrent use; the executor serializes access to it.
*/
type Tree[V any] struct {
	root    *node[V]
	degree  int
	layout  Layout
	payload payload[V]
	nextID  uint64
	count   int

	// events of the operation in progress
	trace []Event[V]
	opKey int
}

func New[V any](degree int, layout Layout) (*Tree[V], error) {
	if degree < 2 {
		return nil, errors.Wrapf(ErrInvalidDegree, "got %d", degree)
	}
	t := &Tree[V]{degree: degree, layout: layout}
	switch layout {
	case Classic:
		t.payload = classicPayload[V]{}
	case Plus:
		t.payload = plusPayload[V]{}
	default:
		return nil, errors.Wrapf(ErrInvalidLayout, "%d", layout)
	}
	t.root = t.newLeaf()
	return t, nil
}

func (t *Tree[V]) Degree() int    { return t.degree }
func (t *Tree[V]) Layout() Layout { return t.layout }

// Len reports the number of entries stored.
func (t *Tree[V]) Len() int { return t.count }

// a node holding maxKeys keys is full and splits right away
func (t *Tree[V]) maxKeys() int { return 2*t.degree - 1 }

// every node but the root holds at least minKeys keys
func (t *Tree[V]) minKeys() int { return t.degree - 1 }

func (t *Tree[V]) isFull(n *node[V]) bool {
	return n.numKeys() >= t.maxKeys()
}

func (t *Tree[V]) isUnderflow(n *node[V]) bool {
	return n.numKeys() < t.minKeys()
}

func (t *Tree[V]) newLeaf() *node[V] {
	t.nextID++
	return &node[V]{id: t.nextID, kind: leafNode, valued: true}
}

func (t *Tree[V]) newInternal() *node[V] {
	t.nextID++
	return &node[V]{id: t.nextID, kind: internalNode, valued: t.layout == Classic}
}

func corrupt(format string, args ...any) {
	panic(errors.Wrapf(ErrCorrupted, format, args...))
}

// Search returns the value stored under key.
func (t *Tree[V]) Search(key int) (V, bool, []Event[V]) {
	t.begin(key)
	var zero V
	for n := t.root; ; {
		t.emit(EventFound, n)
		switch n.kind {
		case leafNode:
			pos, found := n.search(key)
			if !found {
				return zero, false, t.end()
			}
			return n.vals[pos], true, t.end()
		case internalNode:
			if t.layout == Plus {
				n = n.children[n.route(key)]
				continue
			}
			pos, found := n.search(key)
			if found {
				return n.vals[pos], true, t.end()
			}
			n = n.children[pos]
		default:
			corrupt("node %d has kind %s", n.id, n.kind)
		}
	}
}

// Get is Search without the event trace.
func (t *Tree[V]) Get(key int) (V, bool) {
	v, ok, _ := t.Search(key)
	return v, ok
}

/*
Ascend calls fn for every entry in ascending key order until fn returns false.
It records no events.
*/
func (t *Tree[V]) Ascend(fn func(key int, val V) bool) {
	if t.layout == Plus {
		for leaf := t.leftmostLeaf(); leaf != nil; leaf = leaf.next {
			for i, k := range leaf.keys {
				if !fn(k, leaf.vals[i]) {
					return
				}
			}
		}
		return
	}
	ascend(t.root, fn)
}

func ascend[V any](n *node[V], fn func(int, V) bool) bool {
	for i := 0; i <= n.numKeys(); i++ {
		if !n.isLeaf() && !ascend(n.children[i], fn) {
			return false
		}
		if i < n.numKeys() && !fn(n.keys[i], n.vals[i]) {
			return false
		}
	}
	return true
}

// Keys lists every stored key in ascending order.
func (t *Tree[V]) Keys() []int {
	keys := make([]int, 0, t.count)
	t.Ascend(func(k int, _ V) bool {
		keys = append(keys, k)
		return true
	})
	return keys
}

/*
Replace the root by its only child as long as it is an internal node without keys.
This is the only place where the tree loses height.
*/
func (t *Tree[V]) collapseRoot() {
	for t.root.kind == internalNode && t.root.numKeys() == 0 {
		if len(t.root.children) != 1 {
			corrupt("empty root %d has %d children", t.root.id, len(t.root.children))
		}
		old := t.root
		t.root = old.firstChild()
		t.emit(EventNodeDeleted, old)
	}
}
