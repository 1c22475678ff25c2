package journal

import (
	"encoding/binary"
	"io"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"treeindex/btree"
	"treeindex/encoder"
)

const headerSize = 3

const (
	chunkTypeFull   = 1
	chunkTypeFirst  = 2
	chunkTypeMiddle = 3
	chunkTypeLast   = 4
)

const blockSize = 4 << 10 // 4 KiB

// the first record of every journal
const magic = "treeindex-journal/1 "

var (
	ErrCorrupted = errors.New("journal: corrupted")
	ErrClosed    = errors.New("journal: writer closed")
)

type block struct {
	buf    [blockSize]byte // scratch space for the block being written or read
	offset int             // position within buf of the next chunk
	len    int             // bytes of buf holding data, < blockSize for a torn last block
}

type syncWriteCloser interface {
	io.WriteCloser
	Sync() error
}

/*
Writer appends events to a journal file. Each event is encoded, compressed with
snappy, and split into chunks that never straddle a 4 KiB block boundary:

	chunk := length(uint16 LE) type(1) data

A block whose remaining room cannot hold a chunk header is zero padded.
*/
type Writer[V any] struct {
	block   *block
	file    syncWriteCloser
	encoder *encoder.Encoder[V]
}

// NewWriter starts a journal for the given session.
func NewWriter[V any](logFile syncWriteCloser, session string, values encoder.ValueCodec[V]) (*Writer[V], error) {
	w := &Writer[V]{
		block:   &block{},
		file:    logFile,
		encoder: encoder.NewEncoder(values),
	}
	if err := w.record([]byte(magic + session)); err != nil {
		return nil, errors.Wrap(err, "write journal header")
	}
	return w, nil
}

// sealBlock zero pads the rest of the current block and starts a new one.
func (w *Writer[V]) sealBlock() error {
	b := w.block
	clear(b.buf[b.offset:])
	if _, err := w.file.Write(b.buf[b.offset:]); err != nil {
		return err
	}
	b.offset = 0
	return nil
}

func (w *Writer[V]) record(raw []byte) error {
	scratch := snappy.Encode(nil, raw)

	for chunk := 0; len(scratch) > 0; chunk++ {
		b := w.block
		if b.offset+headerSize >= blockSize {
			if err := w.sealBlock(); err != nil {
				return err
			}
		}
		buf := b.buf[b.offset:]
		dataLen := copy(buf[headerSize:], scratch)
		binary.LittleEndian.PutUint16(buf, uint16(dataLen))
		scratch = scratch[dataLen:]
		b.offset += dataLen + headerSize

		first, last := chunk == 0, len(scratch) == 0
		switch {
		case first && last:
			buf[2] = chunkTypeFull
		case first:
			buf[2] = chunkTypeFirst
		case last:
			buf[2] = chunkTypeLast
		default:
			buf[2] = chunkTypeMiddle
		}

		if _, err := w.file.Write(buf[:dataLen+headerSize]); err != nil {
			return err
		}
	}
	return w.file.Sync()
}

// Record appends one event and syncs the file.
func (w *Writer[V]) Record(ev btree.Event[V]) error {
	if w.file == nil {
		return errors.Wrap(ErrClosed, "record")
	}
	return errors.Wrapf(w.record(w.encoder.Encode(ev)), "record %s event", ev.Kind)
}

func (w *Writer[V]) Close() (err error) {
	if w.file == nil {
		return ErrClosed
	}
	if err = w.sealBlock(); err != nil {
		return errors.Wrap(err, "seal last block")
	}
	err = w.file.Close()
	w.file = nil
	return errors.Wrap(err, "close journal")
}
