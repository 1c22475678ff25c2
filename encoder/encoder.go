package encoder

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"treeindex/btree"
)

var ErrMalformed = errors.New("encoder: malformed event")

// ValueCodec turns tree values into bytes and back.
type ValueCodec[V any] interface {
	Encode(v V) []byte
	Decode(b []byte) (V, error)
}

type StringCodec struct{}

func (StringCodec) Encode(v string) []byte           { return []byte(v) }
func (StringCodec) Decode(b []byte) (string, error) { return string(b), nil }

type BytesCodec struct{}

func (BytesCodec) Encode(v []byte) []byte { return v }
func (BytesCodec) Decode(b []byte) ([]byte, error) {
	return append([]byte(nil), b...), nil
}

const (
	flagLeaf   = 1 << 0
	flagValues = 1 << 1
)

/*
Encoder serializes events as

	kind(1) key(varint) node [peer-present(1) node]

and every node as

	id(uvarint) flags(1) nkeys(uvarint) keys(varint...) [len(uvarint) value...]

Values are only written when the node carries them.
*/
type Encoder[V any] struct {
	values ValueCodec[V]
}

func NewEncoder[V any](values ValueCodec[V]) *Encoder[V] {
	return &Encoder[V]{values: values}
}

func (e *Encoder[V]) Encode(ev btree.Event[V]) []byte {
	buf := make([]byte, 0, 64)
	buf = append(buf, byte(ev.Kind))
	buf = binary.AppendVarint(buf, int64(ev.Key))
	buf = e.appendNode(buf, ev.Node)
	if ev.Peer == nil {
		return append(buf, 0)
	}
	buf = append(buf, 1)
	return e.appendNode(buf, *ev.Peer)
}

func (e *Encoder[V]) appendNode(buf []byte, s btree.NodeState[V]) []byte {
	buf = binary.AppendUvarint(buf, s.ID)
	var flags byte
	if s.Leaf {
		flags |= flagLeaf
	}
	if s.Values != nil {
		flags |= flagValues
	}
	buf = append(buf, flags)
	buf = binary.AppendUvarint(buf, uint64(len(s.Keys)))
	for _, k := range s.Keys {
		buf = binary.AppendVarint(buf, int64(k))
	}
	for _, v := range s.Values {
		raw := e.values.Encode(v)
		buf = binary.AppendUvarint(buf, uint64(len(raw)))
		buf = append(buf, raw...)
	}
	return buf
}

func (e *Encoder[V]) Parse(buf []byte) (btree.Event[V], error) {
	var ev btree.Event[V]
	d := decoder{buf: buf}

	ev.Kind = btree.EventKind(d.readByte())
	ev.Key = int(d.readVarint())
	node, err := e.parseNode(&d)
	if err != nil {
		return ev, err
	}
	ev.Node = node
	if d.readByte() == 1 {
		peer, err := e.parseNode(&d)
		if err != nil {
			return ev, err
		}
		ev.Peer = &peer
	}
	if d.err != nil {
		return ev, d.err
	}
	if len(d.buf) != 0 {
		return ev, errors.Wrapf(ErrMalformed, "%d trailing bytes", len(d.buf))
	}
	return ev, nil
}

func (e *Encoder[V]) parseNode(d *decoder) (btree.NodeState[V], error) {
	var s btree.NodeState[V]
	s.ID = d.readUvarint()
	flags := d.readByte()
	s.Leaf = flags&flagLeaf != 0

	n := d.readUvarint()
	if d.err != nil {
		return s, d.err
	}
	// every key takes at least one byte
	if n > uint64(len(d.buf)) {
		return s, errors.Wrapf(ErrMalformed, "node %d claims %d keys", s.ID, n)
	}
	s.Keys = make([]int, n)
	for i := range s.Keys {
		s.Keys[i] = int(d.readVarint())
	}
	if flags&flagValues != 0 {
		s.Values = make([]V, n)
		for i := range s.Values {
			v, err := e.values.Decode(d.readBytes())
			if err != nil {
				return s, errors.Wrapf(err, "node %d value %d", s.ID, i)
			}
			s.Values[i] = v
		}
	}
	return s, d.err
}

// decoder consumes buf front to back and remembers the first failure.
type decoder struct {
	buf []byte
	err error
}

func (d *decoder) fail(what string) {
	if d.err == nil {
		d.err = errors.Wrapf(ErrMalformed, "truncated %s", what)
	}
	d.buf = nil
}

func (d *decoder) readByte() byte {
	if len(d.buf) < 1 {
		d.fail("byte")
		return 0
	}
	b := d.buf[0]
	d.buf = d.buf[1:]
	return b
}

func (d *decoder) readVarint() int64 {
	v, n := binary.Varint(d.buf)
	if n <= 0 {
		d.fail("varint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) readUvarint() uint64 {
	v, n := binary.Uvarint(d.buf)
	if n <= 0 {
		d.fail("uvarint")
		return 0
	}
	d.buf = d.buf[n:]
	return v
}

func (d *decoder) readBytes() []byte {
	n := d.readUvarint()
	if n > uint64(len(d.buf)) {
		d.fail("value")
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}
