package executor

import (
	"sync"

	uuid "github.com/hashicorp/go-uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"treeindex/btree"
)

var ErrClosed = errors.New("executor: closed")

type Config struct {
	// QueueSize bounds the commands waiting for the executor goroutine.
	QueueSize int
	// EventBuffer bounds the events waiting for the observer.
	EventBuffer int
	// Session names this executor in logs and journals. Generated when empty.
	Session string
	Logger  *logrus.Entry
}

func DefaultConfig() Config {
	return Config{
		QueueSize:   64,
		EventBuffer: 1024,
	}
}

type command[V any] struct {
	op    string
	key   int
	run   func(t *btree.Tree[V]) []btree.Event[V]
	reply chan error
}

/*
Executor owns a tree and applies commands to it one at a time on its own
goroutine. Callers block until their command is applied. The events of every
command are pushed, in order, on the channel returned by Events before the
command is answered; a full event channel stalls the executor until the
observer catches up.
*/
type Executor[V any] struct {
	tree     *btree.Tree[V]
	commands chan command[V]
	events   chan btree.Event[V]
	log      *logrus.Entry
	session  string

	// set once a command trips over a corrupted tree, every later command fails with it
	broken error

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

func New[V any](tree *btree.Tree[V], cfg Config) (*Executor[V], error) {
	session := cfg.Session
	if session == "" {
		id, err := uuid.GenerateUUID()
		if err != nil {
			return nil, errors.Wrap(err, "generate session id")
		}
		session = id
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	e := &Executor[V]{
		tree:     tree,
		commands: make(chan command[V], max(cfg.QueueSize, 0)),
		events:   make(chan btree.Event[V], max(cfg.EventBuffer, 0)),
		session:  session,
		log: log.WithFields(logrus.Fields{
			"session": session,
			"degree":  tree.Degree(),
			"layout":  tree.Layout().String(),
		}),
		done: make(chan struct{}),
	}
	go e.loop()
	e.log.Debug("executor started")
	return e, nil
}

func (e *Executor[V]) Session() string { return e.session }

// Events delivers the structural changes of every command. It is closed after EventClose.
func (e *Executor[V]) Events() <-chan btree.Event[V] { return e.events }

func (e *Executor[V]) loop() {
	defer close(e.done)
	for cmd := range e.commands {
		cmd.reply <- e.apply(cmd)
	}
	e.log.Debug("executor stopped")
	e.events <- btree.Event[V]{Kind: btree.EventClose}
	close(e.events)
}

func (e *Executor[V]) apply(cmd command[V]) (err error) {
	if e.broken != nil {
		return e.broken
	}
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		rerr, ok := r.(error)
		if !ok || !errors.Is(rerr, btree.ErrCorrupted) {
			panic(r)
		}
		e.log.WithError(rerr).WithFields(logrus.Fields{"op": cmd.op, "key": cmd.key}).Error("tree corrupted")
		e.broken = rerr
		err = rerr
	}()

	events := cmd.run(e.tree)
	e.log.WithFields(logrus.Fields{
		"op":     cmd.op,
		"key":    cmd.key,
		"events": len(events),
	}).Debug("applied")
	for _, ev := range events {
		e.events <- ev
	}
	return nil
}

// submit queues a command and waits for its answer.
func (e *Executor[V]) submit(op string, key int, run func(t *btree.Tree[V]) []btree.Event[V]) error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrClosed
	}
	cmd := command[V]{op: op, key: key, run: run, reply: make(chan error, 1)}
	e.commands <- cmd
	e.mu.RUnlock()
	return <-cmd.reply
}

// Close applies every command queued so far, emits EventClose and closes the event channel.
func (e *Executor[V]) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.closed = true
	close(e.commands)
	e.mu.Unlock()

	<-e.done
	return nil
}

// Insert returns false when key is already present.
func (e *Executor[V]) Insert(key int, value V) (bool, error) {
	var inserted bool
	err := e.submit("insert", key, func(t *btree.Tree[V]) (events []btree.Event[V]) {
		inserted, events = t.Insert(key, value)
		return events
	})
	return inserted, err
}

// Delete returns false when key is absent.
func (e *Executor[V]) Delete(key int) (bool, error) {
	var deleted bool
	err := e.submit("delete", key, func(t *btree.Tree[V]) (events []btree.Event[V]) {
		deleted, events = t.Delete(key)
		return events
	})
	return deleted, err
}

func (e *Executor[V]) Search(key int) (V, bool, error) {
	var (
		val   V
		found bool
	)
	err := e.submit("search", key, func(t *btree.Tree[V]) (events []btree.Event[V]) {
		val, found, events = t.Search(key)
		return events
	})
	return val, found, err
}

// SearchRange returns the entries with key <= k < endKey in ascending order.
func (e *Executor[V]) SearchRange(key, endKey int) ([]btree.Entry[V], error) {
	var entries []btree.Entry[V]
	err := e.submit("search-range", key, func(t *btree.Tree[V]) (events []btree.Event[V]) {
		entries, events = t.SearchRange(key, endKey)
		return events
	})
	return entries, err
}

// DeleteRange removes the entries with key <= k < endKey and returns how many it removed.
func (e *Executor[V]) DeleteRange(key, endKey int) (int, error) {
	var removed int
	err := e.submit("delete-range", key, func(t *btree.Tree[V]) (events []btree.Event[V]) {
		removed, events = t.DeleteRange(key, endKey)
		return events
	})
	return removed, err
}

func (e *Executor[V]) Traverse() (btree.Snapshot[V], error) {
	var snap btree.Snapshot[V]
	err := e.submit("traverse", 0, func(t *btree.Tree[V]) []btree.Event[V] {
		snap = t.Traverse()
		return nil
	})
	return snap, err
}

// Validate runs the tree's invariant checks on the executor goroutine.
func (e *Executor[V]) Validate() error {
	var verr error
	err := e.submit("validate", 0, func(t *btree.Tree[V]) []btree.Event[V] {
		verr = t.Validate()
		return nil
	})
	if err != nil {
		return err
	}
	return verr
}
