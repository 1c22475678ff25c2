package btree

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/go-faker/faker/v4"
	"github.com/stretchr/testify/require"
)

var layouts = []Layout{Classic, Plus}

func newTree(t *testing.T, degree int, layout Layout) *Tree[string] {
	t.Helper()
	tr, err := New[string](degree, layout)
	require.NoError(t, err, "New(%d, %s)", degree, layout)
	return tr
}

func assertValid(t *testing.T, tr *Tree[string]) {
	t.Helper()
	require.NoError(t, tr.Validate(), "%s", tr)
}

func assertFound(t *testing.T, tr *Tree[string], key int, want string) {
	t.Helper()
	got, ok := tr.Get(key)
	require.True(t, ok, "key %d not found", key)
	require.Equal(t, want, got, "value of key %d", key)
}

func assertNotFound(t *testing.T, tr *Tree[string], key int) {
	t.Helper()
	v, ok := tr.Get(key)
	require.False(t, ok, "key %d unexpectedly found with %q", key, v)
}

func kinds(events []Event[string]) []EventKind {
	out := make([]EventKind, len(events))
	for i, e := range events {
		out[i] = e.Kind
	}
	return out
}

func TestNewRejectsBadArguments(t *testing.T) {
	_, err := New[string](1, Classic)
	require.ErrorIs(t, err, ErrInvalidDegree)
	_, err = New[string](3, Layout(9))
	require.ErrorIs(t, err, ErrInvalidLayout)
	_, err = ParseLayout("avl")
	require.ErrorIs(t, err, ErrInvalidLayout)

	for _, l := range layouts {
		got, err := ParseLayout(l.String())
		require.NoError(t, err)
		require.Equal(t, l, got)
	}
}

func TestInsertAscendingSplitsRoot(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			tr := newTree(t, 3, layout)
			splits := 0
			for k := 0; k < 10; k++ {
				ok, events := tr.Insert(k, fmt.Sprintf("v%d", k))
				require.True(t, ok, "insert %d rejected", k)
				for _, e := range events {
					if e.Kind == EventSplit {
						splits++
					}
				}
			}
			require.NotZero(t, splits, "root never split")
			_, hi := tr.Height()
			require.GreaterOrEqual(t, hi, 1)
			assertFound(t, tr, 5, "v5")
			require.True(t, tr.IsBalanced())
			assertValid(t, tr)
			require.Equal(t, 10, tr.Len())
		})
	}
}

func TestInsertRejectsDuplicates(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			tr := newTree(t, 2, layout)
			for k := 0; k < 20; k++ {
				tr.Insert(k, "first")
			}
			for k := 0; k < 20; k++ {
				ok, events := tr.Insert(k, "second")
				require.False(t, ok, "duplicate %d accepted", k)
				require.Empty(t, events, "duplicate %d emitted events", k)
				assertFound(t, tr, k, "first")
			}
			require.Equal(t, 20, tr.Len())
			assertValid(t, tr)
		})
	}
}

func TestKeyZeroIsOrdinary(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			tr := newTree(t, 2, layout)
			for _, k := range []int{0, -5, 5, -1, 1} {
				ok, _ := tr.Insert(k, fmt.Sprint(k))
				require.True(t, ok, "insert %d rejected", k)
			}
			assertFound(t, tr, 0, "0")
			ok, _ := tr.Delete(0)
			require.True(t, ok)
			assertNotFound(t, tr, 0)
			ok, _ = tr.Insert(0, "again")
			require.True(t, ok)
			assertFound(t, tr, 0, "again")
			require.Equal(t, []int{-5, -1, 0, 1, 5}, tr.Keys())
			assertValid(t, tr)
		})
	}
}

func TestSplitEvents(t *testing.T) {
	tr := newTree(t, 2, Classic)
	tr.Insert(1, "a")
	tr.Insert(2, "b")
	_, events := tr.Insert(3, "c")

	require.Equal(t, []EventKind{EventInserted, EventSplit, EventInserted}, kinds(events))
	split := events[1]
	require.NotNil(t, split.Peer)
	require.Equal(t, []int{1}, split.Node.Keys)
	require.Equal(t, []int{3}, split.Peer.Keys)

	root := events[2].Node
	require.False(t, root.Leaf)
	require.Equal(t, []int{2}, root.Keys)
	require.Equal(t, []string{"b"}, root.Values)
	for _, e := range events {
		require.Equal(t, 3, e.Key, "event %s", e.Kind)
	}
}

func TestPlusSplitCopiesDivider(t *testing.T) {
	tr := newTree(t, 2, Plus)
	tr.Insert(1, "a")
	tr.Insert(2, "b")
	_, events := tr.Insert(3, "c")

	split := events[1]
	require.Equal(t, EventSplit, split.Kind)
	require.Equal(t, []int{1}, split.Node.Keys)
	require.Equal(t, []int{2, 3}, split.Peer.Keys)

	root := events[2].Node
	require.Equal(t, []int{2}, root.Keys)
	require.Nil(t, root.Values)
	assertFound(t, tr, 2, "b")
	assertValid(t, tr)
}

func TestRandomInsertThenDeleteHalf(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			rnd := rand.New(rand.NewSource(7))
			tr := newTree(t, 3, layout)

			keys := rnd.Perm(10000)[:100]
			vals := make(map[int]string, len(keys))
			for _, k := range keys {
				vals[k] = faker.Word()
				ok, _ := tr.Insert(k, vals[k])
				require.True(t, ok, "insert %d rejected", k)
			}
			assertValid(t, tr)

			rnd.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
			deleted, kept := keys[:50], keys[50:]
			for _, k := range deleted {
				ok, _ := tr.Delete(k)
				require.True(t, ok, "delete %d failed", k)
				assertValid(t, tr)
			}
			for _, k := range deleted {
				assertNotFound(t, tr, k)
			}
			for _, k := range kept {
				assertFound(t, tr, k, vals[k])
			}
			require.True(t, tr.IsBalanced())
		})
	}
}

func TestDeleteAbsentLeavesTreeUnchanged(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			tr := newTree(t, 3, layout)
			for k := 0; k < 50; k += 2 {
				tr.Insert(k, faker.Word())
			}
			before := tr.Traverse()
			for _, k := range []int{-1, 1, 25, 49, 1000} {
				ok, events := tr.Delete(k)
				require.False(t, ok, "delete of absent %d", k)
				require.Empty(t, events)
			}
			require.Equal(t, before, tr.Traverse())
		})
	}
}

func TestDeleteEverything(t *testing.T) {
	for _, layout := range layouts {
		for degree := 2; degree <= 6; degree++ {
			t.Run(fmt.Sprintf("%s/%d", layout, degree), func(t *testing.T) {
				rnd := rand.New(rand.NewSource(int64(degree)))
				tr := newTree(t, degree, layout)
				keys := rnd.Perm(300)
				for _, k := range keys {
					tr.Insert(k, fmt.Sprint(k))
				}
				assertValid(t, tr)
				rnd.Shuffle(len(keys), func(i, j int) { keys[i], keys[j] = keys[j], keys[i] })
				for i, k := range keys {
					ok, _ := tr.Delete(k)
					require.True(t, ok, "delete %d failed", k)
					if i%17 == 0 {
						assertValid(t, tr)
					}
				}
				assertValid(t, tr)
				require.Zero(t, tr.Len())
				_, hi := tr.Height()
				require.Zero(t, hi, "empty tree height")
			})
		}
	}
}

// TestAgainstMap runs a long random mix of operations and compares the tree with a plain map.
func TestAgainstMap(t *testing.T) {
	for _, layout := range layouts {
		for degree := 2; degree <= 5; degree++ {
			t.Run(fmt.Sprintf("%s/%d", layout, degree), func(t *testing.T) {
				rnd := rand.New(rand.NewSource(int64(100 + degree)))
				tr := newTree(t, degree, layout)
				model := map[int]string{}

				for op := 0; op < 3000; op++ {
					k := rnd.Intn(500)
					_, exists := model[k]
					switch rnd.Intn(3) {
					case 0, 1:
						v := fmt.Sprintf("%d-%d", k, op)
						ok, _ := tr.Insert(k, v)
						require.NotEqual(t, exists, ok, "op %d: insert %d", op, k)
						if ok {
							model[k] = v
						}
					case 2:
						ok, _ := tr.Delete(k)
						require.Equal(t, exists, ok, "op %d: delete %d", op, k)
						delete(model, k)
					}
					if op%250 == 0 {
						assertValid(t, tr)
					}
				}
				assertValid(t, tr)

				want := make([]int, 0, len(model))
				for k := range model {
					want = append(want, k)
				}
				sort.Ints(want)
				require.Equal(t, want, tr.Keys())
				for k, v := range model {
					assertFound(t, tr, k, v)
				}
			})
		}
	}
}

func TestSearchEventsFollowTheDescent(t *testing.T) {
	for _, layout := range layouts {
		t.Run(layout.String(), func(t *testing.T) {
			tr := newTree(t, 2, layout)
			for k := 0; k < 30; k++ {
				tr.Insert(k, fmt.Sprint(k))
			}
			_, hi := tr.Height()
			_, ok, events := tr.Search(29)
			require.True(t, ok)
			require.NotEmpty(t, events)
			require.LessOrEqual(t, len(events), hi+1)
			for _, e := range events {
				require.Equal(t, EventFound, e.Kind)
			}
			if layout == Plus {
				require.Len(t, events, hi+1, "B+Tree search stopped above the leaves")
			}
		})
	}
}

func TestPlusLeafChainVisitsAllKeys(t *testing.T) {
	tr := newTree(t, 3, Plus)
	rnd := rand.New(rand.NewSource(3))
	for _, k := range rnd.Perm(200) {
		tr.Insert(k, fmt.Sprint(k))
	}
	for k := 0; k < 200; k += 3 {
		tr.Delete(k)
	}
	assertValid(t, tr)

	var chained []int
	for leaf := tr.leftmostLeaf(); leaf != nil; leaf = leaf.next {
		chained = append(chained, leaf.keys...)
	}
	require.Equal(t, tr.Keys(), chained)
	require.True(t, sort.IntsAreSorted(chained))
}

func TestTraverseSnapshot(t *testing.T) {
	tr := newTree(t, 2, Classic)
	for k := 1; k <= 7; k++ {
		tr.Insert(k, fmt.Sprint(k))
	}
	s := tr.Traverse()
	require.Equal(t, 7, s.Len)
	require.Equal(t, 2, s.Degree)
	require.Equal(t, Classic, s.Layout)
	require.Equal(t, 2, s.Height())

	nodes := 0
	s.Walk(func(n *SnapshotNode[string], depth int) {
		nodes++
		require.Equal(t, len(n.Children) == 0, n.Leaf, "leaf flag of node %d", n.ID)
	})
	require.Equal(t, 7, nodes)
	require.Equal(t, []int{4}, s.Root.Keys)
}
