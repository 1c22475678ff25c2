package btree

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	internalColor = color.New(color.FgCyan, color.Bold)
	leafColor     = color.New(color.FgGreen)
	idColor       = color.New(color.Faint)
)

/*
Visualizer draws a snapshot as an indented tree, one node per line:

	[10 20]  #7
	├── [3 6]  #1
	└── ...

Internal nodes and leaves get different colours unless color.NoColor is set.
*/
type Visualizer[V any] struct {
	Snapshot   Snapshot[V]
	ShowValues bool
}

func (v *Visualizer[V]) Visualize() string {
	var sb strings.Builder
	s := v.Snapshot
	fmt.Fprintf(&sb, "%s degree=%d entries=%d height=%d\n", s.Layout, s.Degree, s.Len, s.Height())
	if s.Root == nil {
		return sb.String()
	}
	v.draw(&sb, s.Root, "", "")
	return sb.String()
}

func (v *Visualizer[V]) draw(sb *strings.Builder, n *SnapshotNode[V], head, tail string) {
	c := internalColor
	if n.Leaf {
		c = leafColor
	}
	sb.WriteString(head)
	sb.WriteString(c.Sprint(v.label(n.NodeState)))
	sb.WriteString("  ")
	sb.WriteString(idColor.Sprintf("#%d", n.ID))
	sb.WriteByte('\n')

	for i, child := range n.Children {
		if i == len(n.Children)-1 {
			v.draw(sb, child, tail+"└── ", tail+"    ")
		} else {
			v.draw(sb, child, tail+"├── ", tail+"│   ")
		}
	}
}

func (v *Visualizer[V]) label(s NodeState[V]) string {
	parts := make([]string, len(s.Keys))
	for i, k := range s.Keys {
		if v.ShowValues && s.Values != nil {
			parts[i] = fmt.Sprintf("%d:%v", k, s.Values[i])
		} else {
			parts[i] = fmt.Sprint(k)
		}
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// String draws the tree without values.
func (t *Tree[V]) String() string {
	v := &Visualizer[V]{Snapshot: t.Traverse()}
	return v.Visualize()
}
