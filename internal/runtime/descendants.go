package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

type workItem struct {
	exec  *domain.Execution
	depth int
}

// GetDescendants walks the tree below rootID.
//
// The walk is pre-order depth-first with siblings ascending by start timestamp:
// a node's children are inserted at the front of the work list. Direct children
// are depth 1; a node is expanded only while its depth is below maxDepth, and a
// negative maxDepth (domain.Unbounded) means no limit. Leaves are never queried.
// The result is arranged by order and is never nil.
func (e *Engine) GetDescendants(ctx context.Context, rootID string, maxDepth int, order domain.DescendantOrder) ([]*domain.Execution, error) {
	queries := 0
	children := func(parentID string) ([]*domain.Execution, error) {
		queries++
		res, err := e.repo.Query(ctx, ports.ExecutionFilter{Parent: parentID}, ports.ByStartTimestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to query children of %s: %w", parentID, err)
		}
		return res, nil
	}

	seed, err := children(rootID)
	if err != nil {
		return nil, err
	}
	work := make([]workItem, 0, len(seed))
	for _, c := range seed {
		work = append(work, workItem{exec: c, depth: 1})
	}

	visited := make([]*domain.Execution, 0, len(seed))
	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		current := work[0]
		work = work[1:]
		visited = append(visited, current.exec)

		if !current.exec.HasChildren() {
			continue
		}
		if maxDepth >= 0 && current.depth >= maxDepth {
			continue
		}

		kids, err := children(current.exec.ID)
		if err != nil {
			return nil, err
		}
		next := make([]workItem, 0, len(kids)+len(work))
		for _, k := range kids {
			next = append(next, workItem{exec: k, depth: current.depth + 1})
		}
		work = append(next, work...)
	}

	e.logger.Debug("Descendants resolved",
		"execution_id", rootID,
		"max_depth", maxDepth,
		"order", order.String(),
		"visited", len(visited),
		"queries", queries,
	)
	e.emitTraversal(ctx, &domain.TraversalEvent{
		RootID:   rootID,
		MaxDepth: maxDepth,
		Order:    order,
		Visited:  len(visited),
		Queries:  queries,
	})
	return order.Arrange(visited), nil
}
