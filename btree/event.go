package btree

// EventKind tags a structural-change notification.
type EventKind uint8

const (
	EventInserted EventKind = iota + 1
	EventSplit
	EventDeleted
	EventForfeit
	EventMerge
	EventMergeParent
	EventUnderflow
	EventShift
	EventFound
	EventFoundRange
	EventDeletedRange
	EventNodeDeleted
	EventRestoration
	EventClose
)

var eventNames = map[EventKind]string{
	EventInserted:     "inserted",
	EventSplit:        "split",
	EventDeleted:      "deleted",
	EventForfeit:      "forfeit",
	EventMerge:        "merge",
	EventMergeParent:  "merge-parent",
	EventUnderflow:    "underflow",
	EventShift:        "shift",
	EventFound:        "found",
	EventFoundRange:   "found-range",
	EventDeletedRange: "deleted-range",
	EventNodeDeleted:  "node-deleted",
	EventRestoration:  "restoration",
	EventClose:        "close",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// NodeState is a copy of one node's keys and values taken right after a mutation.
type NodeState[V any] struct {
	ID     uint64
	Leaf   bool
	Keys   []int
	Values []V // nil for B+Tree internal nodes
}

/*
Event describes one structural change. Two-node operations (split, merge, borrow)
also carry the counterpart node in Peer. Key is the key the operation was issued for.
*/
type Event[V any] struct {
	Kind EventKind
	Key  int
	Node NodeState[V]
	Peer *NodeState[V]
}

func (t *Tree[V]) emit(kind EventKind, n *node[V]) {
	t.trace = append(t.trace, Event[V]{Kind: kind, Key: t.opKey, Node: n.state()})
}

func (t *Tree[V]) emitPair(kind EventKind, n, peer *node[V]) {
	p := peer.state()
	t.trace = append(t.trace, Event[V]{Kind: kind, Key: t.opKey, Node: n.state(), Peer: &p})
}

// begin starts collecting the events of one operation on key.
func (t *Tree[V]) begin(key int) {
	t.trace = nil
	t.opKey = key
}

// end hands the collected events to the caller.
func (t *Tree[V]) end() []Event[V] {
	events := t.trace
	t.trace = nil
	return events
}
