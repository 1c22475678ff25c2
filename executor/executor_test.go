package executor

import (
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"treeindex/btree"
)

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// start returns an executor over an empty tree and a channel yielding every event it emitted once closed.
func start(t *testing.T, degree int, layout btree.Layout) (*Executor[string], <-chan []btree.Event[string]) {
	t.Helper()
	tr, err := btree.New[string](degree, layout)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	e, err := New(tr, cfg)
	require.NoError(t, err)

	all := make(chan []btree.Event[string], 1)
	go func() {
		var events []btree.Event[string]
		for ev := range e.Events() {
			events = append(events, ev)
		}
		all <- events
	}()
	return e, all
}

func TestCommands(t *testing.T) {
	for _, layout := range []btree.Layout{btree.Classic, btree.Plus} {
		t.Run(layout.String(), func(t *testing.T) {
			e, all := start(t, 3, layout)

			for k := 0; k < 100; k++ {
				ok, err := e.Insert(k, fmt.Sprint(k))
				require.NoError(t, err)
				require.True(t, ok, "Insert(%d)", k)
			}
			ok, err := e.Insert(5, "again")
			require.NoError(t, err)
			require.False(t, ok, "duplicate insert accepted")

			v, ok, err := e.Search(42)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, "42", v)

			ok, err = e.Delete(42)
			require.NoError(t, err)
			require.True(t, ok)
			ok, err = e.Delete(42)
			require.NoError(t, err)
			require.False(t, ok, "second Delete(42) succeeded")

			entries, err := e.SearchRange(10, 15)
			require.NoError(t, err)
			require.Len(t, entries, 5)
			require.Equal(t, 10, entries[0].Key)

			n, err := e.DeleteRange(20, 60)
			require.NoError(t, err)
			require.Equal(t, 39, n)

			snap, err := e.Traverse()
			require.NoError(t, err)
			require.Equal(t, 60, snap.Len)
			require.NoError(t, e.Validate())

			require.NoError(t, e.Close())
			events := <-all
			require.NotEmpty(t, events)
			require.Equal(t, btree.EventClose, events[len(events)-1].Kind, "event stream does not end with close")
			for _, ev := range events[:len(events)-1] {
				require.NotEqual(t, btree.EventClose, ev.Kind, "close emitted before the end")
			}
		})
	}
}

func TestEventsFollowCommandOrder(t *testing.T) {
	e, all := start(t, 2, btree.Classic)
	for k := 1; k <= 3; k++ {
		e.Insert(k, faker.Word())
	}
	e.Search(2)
	e.Close()

	var got []btree.EventKind
	for _, ev := range <-all {
		got = append(got, ev.Kind)
	}
	want := []btree.EventKind{
		btree.EventInserted,
		btree.EventInserted,
		btree.EventInserted, btree.EventSplit, btree.EventInserted,
		btree.EventFound,
		btree.EventClose,
	}
	require.Equal(t, want, got)
}

func TestConcurrentSearchesAfterWrites(t *testing.T) {
	e, all := start(t, 4, btree.Plus)
	values := map[int]string{}
	for k := 0; k < 500; k++ {
		values[k] = faker.Word()
		e.Insert(k, values[k])
	}

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for k := w; k < 500; k += 8 {
				v, ok, err := e.Search(k)
				if err != nil || !ok || v != values[k] {
					errs <- errors.Errorf("Search(%d) = %q, %v, %v", k, v, ok, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	e.Close()
	<-all
}

func TestClosedExecutorRejectsCommands(t *testing.T) {
	e, all := start(t, 3, btree.Classic)
	e.Insert(1, "a")
	require.NoError(t, e.Close())
	<-all

	_, err := e.Insert(2, "b")
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = e.Search(1)
	require.ErrorIs(t, err, ErrClosed)
	_, err = e.Traverse()
	require.ErrorIs(t, err, ErrClosed)
	require.ErrorIs(t, e.Close(), ErrClosed)
}

func TestCloseDrainsQueuedCommands(t *testing.T) {
	e, all := start(t, 3, btree.Classic)

	var wg sync.WaitGroup
	for k := 0; k < 200; k++ {
		wg.Add(1)
		go func(k int) {
			defer wg.Done()
			e.Insert(k, fmt.Sprint(k))
		}(k)
	}
	wg.Wait()
	e.Close()

	inserted := 0
	for _, ev := range <-all {
		if ev.Kind == btree.EventInserted && ev.Node.Leaf {
			inserted++
		}
	}
	require.GreaterOrEqual(t, inserted, 200)
}

func TestCorruptionIsRecovered(t *testing.T) {
	e, all := start(t, 3, btree.Classic)
	e.Insert(1, "a")

	err := e.submit("poison", 0, func(*btree.Tree[string]) []btree.Event[string] {
		panic(errors.Wrap(btree.ErrCorrupted, "poisoned"))
	})
	require.ErrorIs(t, err, btree.ErrCorrupted)
	_, _, err = e.Search(1)
	require.ErrorIs(t, err, btree.ErrCorrupted, "command after corruption")
	require.NoError(t, e.Close())
	<-all
}
