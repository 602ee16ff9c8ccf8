package domain

import "sort"

// DescendantOrder selects how a lineage traversal result is arranged.
// The set is closed; unknown keys fall back to OrderDefault.
type DescendantOrder int

const (
	// OrderDefault keeps the pre-order visitation sequence.
	OrderDefault DescendantOrder = iota
	// OrderSorted re-sorts the whole visited set ascending by start timestamp.
	OrderSorted
)

// Unbounded is the max-depth sentinel for a traversal without depth limit.
const Unbounded = -1

// ParseDescendantOrder maps an ordering key to its variant.
func ParseDescendantOrder(key string) DescendantOrder {
	switch key {
	case "sorted":
		return OrderSorted
	default:
		return OrderDefault
	}
}

func (o DescendantOrder) String() string {
	switch o {
	case OrderSorted:
		return "sorted"
	default:
		return "default"
	}
}

// Arrange returns the visited executions in this order's view.
// The input slice is never modified.
func (o DescendantOrder) Arrange(visited []*Execution) []*Execution {
	switch o {
	case OrderSorted:
		out := append([]*Execution{}, visited...)
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].StartTimestamp.Before(out[j].StartTimestamp)
		})
		return out
	default:
		return visited
	}
}
