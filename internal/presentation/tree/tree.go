// Package tree renders an execution lineage as a Markdown outline.
package tree

import (
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/chronicle/pkg/domain"
)

// Node is one execution with its children in traversal order.
type Node struct {
	Execution *domain.Execution
	Children  []*Node
}

// Build nests descendants under root by their parent ids, keeping the order
// of the descendants slice among siblings. A descendant whose parent is not in
// the set hangs directly under root.
func Build(root *domain.Execution, descendants []*domain.Execution) *Node {
	nodes := make(map[string]*Node, len(descendants)+1)
	top := &Node{Execution: root}
	nodes[root.ID] = top
	for _, d := range descendants {
		if d.ID != root.ID {
			nodes[d.ID] = &Node{Execution: d}
		}
	}
	for _, d := range descendants {
		if d.ID == root.ID {
			continue
		}
		parent, ok := nodes[d.Parent]
		if !ok {
			parent = top
		}
		parent.Children = append(parent.Children, nodes[d.ID])
	}
	return top
}

// Size counts the nodes below n.
func (n *Node) Size() int {
	total := 0
	for _, c := range n.Children {
		total += 1 + c.Size()
	}
	return total
}

// Markdown renders the tree as a nested list.
func Markdown(root *Node) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Lineage of %s\n\n", root.Execution.ID)
	writeNode(&sb, root, 0)

	size := root.Size()
	noun := "descendants"
	if size == 1 {
		noun = "descendant"
	}
	fmt.Fprintf(&sb, "\n%d %s\n", size, noun)
	return sb.String()
}

func writeNode(sb *strings.Builder, n *Node, depth int) {
	fmt.Fprintf(sb, "%s- %s\n", strings.Repeat("  ", depth), Label(n.Execution))
	for _, c := range n.Children {
		writeNode(sb, c, depth+1)
	}
}

// Label is the one-line Markdown summary of an execution.
func Label(e *domain.Execution) string {
	var sb strings.Builder
	sb.WriteString("**" + e.ID + "**")
	if e.LiveAction.Action != "" {
		sb.WriteString(" `" + e.LiveAction.Action + "`")
	}
	if e.Status != "" {
		sb.WriteString(" _" + string(e.Status) + "_")
	}
	if !e.StartTimestamp.IsZero() {
		sb.WriteString(" " + e.StartTimestamp.UTC().Format(time.RFC3339))
	}
	return sb.String()
}
