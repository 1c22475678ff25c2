package journal

import (
	"bytes"
	"encoding/binary"
	"io"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"

	"treeindex/btree"
	"treeindex/encoder"
)

// Reader retrieves events from a journal, one block at a time.
type Reader[V any] struct {
	file     io.Reader
	blockNum int // -1 until the first block is loaded
	block    *block
	encoder  *encoder.Encoder[V]
	buf      *bytes.Buffer
	session  string
}

// NewReader reads the journal header and returns a reader positioned on the first event.
func NewReader[V any](logFile io.Reader, values encoder.ValueCodec[V]) (*Reader[V], error) {
	r := &Reader[V]{
		file:     logFile,
		blockNum: -1,
		block:    &block{},
		encoder:  encoder.NewEncoder(values),
		buf:      &bytes.Buffer{},
	}
	head, err := r.nextRecord()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, errors.Wrap(err, "read journal header")
	}
	s := string(head)
	if !strings.HasPrefix(s, magic) {
		return nil, errors.Wrap(ErrCorrupted, "missing journal header")
	}
	r.session = strings.TrimPrefix(s, magic)
	return r, nil
}

// Session is the id of the executor session that wrote the journal.
func (r *Reader[V]) Session() string { return r.session }

/*
loadNextBlock reads the next block. The last block may be shorter than
blockSize when the writer stopped without sealing it, so io.ErrUnexpectedEOF is
expected there.
*/
func (r *Reader[V]) loadNextBlock() (err error) {
	b := r.block
	b.len, err = io.ReadFull(r.file, b.buf[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return err
	}
	b.offset = 0
	r.blockNum++
	return nil
}

// nextRecord reassembles the chunks of one record and decompresses it.
func (r *Reader[V]) nextRecord() ([]byte, error) {
	r.buf.Reset()
	for {
		b := r.block
		if r.blockNum == -1 || b.len-b.offset <= headerSize {
			if err := r.loadNextBlock(); err != nil {
				if errors.Is(err, io.EOF) && r.buf.Len() > 0 {
					err = io.ErrUnexpectedEOF
				}
				return nil, err
			}
			continue
		}

		start := b.offset
		dataLen := int(binary.LittleEndian.Uint16(b.buf[start : start+2]))
		chunkType := b.buf[start+2]
		if chunkType == 0 {
			// zero padding up to the end of a sealed block
			b.offset = b.len
			continue
		}
		end := start + headerSize + dataLen
		if end > b.len || chunkType > chunkTypeLast {
			return nil, errors.Wrapf(ErrCorrupted, "block %d offset %d", r.blockNum, start)
		}
		r.buf.Write(b.buf[start+headerSize : end])
		b.offset = end

		if chunkType == chunkTypeFull || chunkType == chunkTypeLast {
			break
		}
	}

	raw, err := snappy.Decode(nil, r.buf.Bytes())
	if err != nil {
		return nil, errors.Wrapf(ErrCorrupted, "block %d: %v", r.blockNum, err)
	}
	return raw, nil
}

// Next returns the next event, or io.EOF after the last one.
func (r *Reader[V]) Next() (btree.Event[V], error) {
	raw, err := r.nextRecord()
	if err != nil {
		var zero btree.Event[V]
		return zero, err
	}
	ev, err := r.encoder.Parse(raw)
	return ev, errors.Wrapf(err, "block %d", r.blockNum)
}

// ReadAll collects every remaining event.
func (r *Reader[V]) ReadAll() ([]btree.Event[V], error) {
	var events []btree.Event[V]
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}
