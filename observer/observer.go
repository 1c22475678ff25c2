package observer

import (
	"maps"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"treeindex/btree"
	"treeindex/journal"
)

// Sink consumes the events of an executor.
type Sink[V any] interface {
	Observe(ev btree.Event[V]) error
}

/*
Run drains events into every sink until the channel is closed. A sink that
fails is logged and skipped from then on, the channel is still drained so the
executor never stalls. Run returns the first sink error.
*/
func Run[V any](events <-chan btree.Event[V], log *logrus.Entry, sinks ...Sink[V]) error {
	var first error
	failed := make([]bool, len(sinks))
	for ev := range events {
		for i, s := range sinks {
			if failed[i] {
				continue
			}
			if err := s.Observe(ev); err != nil {
				log.WithError(err).WithField("event", ev.Kind.String()).Error("sink failed")
				failed[i] = true
				if first == nil {
					first = err
				}
			}
		}
	}
	return first
}

// LogSink writes one line per event.
type LogSink[V any] struct {
	log *logrus.Entry
}

func NewLogSink[V any](log *logrus.Entry) *LogSink[V] {
	return &LogSink[V]{log: log}
}

func (s *LogSink[V]) Observe(ev btree.Event[V]) error {
	if ev.Kind == btree.EventClose {
		s.log.Info("executor closed")
		return nil
	}
	fields := logrus.Fields{
		"event": ev.Kind.String(),
		"key":   ev.Key,
		"node":  ev.Node.ID,
		"keys":  ev.Node.Keys,
	}
	if ev.Peer != nil {
		fields["peer"] = ev.Peer.ID
		fields["peer_keys"] = ev.Peer.Keys
	}
	s.log.WithFields(fields).Debug("event")
	return nil
}

// JournalSink records every event and closes the journal on EventClose.
type JournalSink[V any] struct {
	w *journal.Writer[V]
}

func NewJournalSink[V any](w *journal.Writer[V]) *JournalSink[V] {
	return &JournalSink[V]{w: w}
}

func (s *JournalSink[V]) Observe(ev btree.Event[V]) error {
	if err := s.w.Record(ev); err != nil {
		return err
	}
	if ev.Kind == btree.EventClose {
		return errors.Wrap(s.w.Close(), "journal sink")
	}
	return nil
}

// Counter tallies events per kind. Safe to read while Run is feeding it.
type Counter[V any] struct {
	mu     sync.Mutex
	counts map[btree.EventKind]int
}

func NewCounter[V any]() *Counter[V] {
	return &Counter[V]{counts: map[btree.EventKind]int{}}
}

func (c *Counter[V]) Observe(ev btree.Event[V]) error {
	c.mu.Lock()
	c.counts[ev.Kind]++
	c.mu.Unlock()
	return nil
}

func (c *Counter[V]) Count(kind btree.EventKind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[kind]
}

// Counts returns a copy of the tallies.
func (c *Counter[V]) Counts() map[btree.EventKind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Clone(c.counts)
}
