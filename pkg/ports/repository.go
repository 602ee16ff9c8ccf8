package ports

import (
	"context"
	"sort"

	"github.com/aretw0/chronicle/pkg/domain"
)

// ExecutionFilter selects execution records. Empty fields match everything.
type ExecutionFilter struct {
	// LiveActionID matches the nested liveaction.id.
	LiveActionID string
	// Parent matches the parent execution id.
	Parent string
}

// Matches reports whether e satisfies every non-empty field of the filter.
func (f ExecutionFilter) Matches(e *domain.Execution) bool {
	if f.LiveActionID != "" && e.LiveAction.ID != f.LiveActionID {
		return false
	}
	if f.Parent != "" && e.Parent != f.Parent {
		return false
	}
	return true
}

// String renders the filter for error messages.
func (f ExecutionFilter) String() string {
	switch {
	case f.LiveActionID != "" && f.Parent != "":
		return "liveaction=" + f.LiveActionID + ",parent=" + f.Parent
	case f.LiveActionID != "":
		return "liveaction=" + f.LiveActionID
	case f.Parent != "":
		return "parent=" + f.Parent
	default:
		return "*"
	}
}

// SortField names a field an execution query can be ordered by.
type SortField string

const SortByStartTimestamp SortField = "start_timestamp"

// OrderBy is one ordering clause of a query.
type OrderBy struct {
	Field      SortField
	Descending bool
}

// ByStartTimestamp orders ascending by start timestamp.
var ByStartTimestamp = OrderBy{Field: SortByStartTimestamp}

// ExecutionRepository defines the interface for persisting execution records.
type ExecutionRepository interface {
	// Get retrieves a record by id.
	// Returns a *domain.NotFoundError if the record does not exist.
	Get(ctx context.Context, id string) (*domain.Execution, error)

	// GetFirst retrieves the first record matching the filter.
	// Returns a *domain.NotFoundError if nothing matches.
	GetFirst(ctx context.Context, filter ExecutionFilter) (*domain.Execution, error)

	// Query returns every record matching the filter, ordered by the given clauses.
	// An empty result is a non-nil empty slice.
	Query(ctx context.Context, filter ExecutionFilter, order ...OrderBy) ([]*domain.Execution, error)

	// Upsert inserts or replaces the record keyed by exec.ID and returns the stored copy.
	// Lineage is never lost: the stored parent and children are merged into the
	// write (see domain.Execution.KeepLineage) within the same critical section.
	// When publish is true a domain.ChangeEvent is emitted after the write.
	Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error)
}

// ChildAppender is implemented by repositories that can append a child id to a
// parent record atomically. It reports whether the children list changed.
type ChildAppender interface {
	AppendChild(ctx context.Context, parentID, childID string, publish bool) (bool, error)
}

// SortExecutions orders execs in place by the given clauses.
// Ties keep their relative order, and are finally broken by id.
func SortExecutions(execs []*domain.Execution, order ...OrderBy) {
	if len(order) == 0 {
		return
	}
	sort.SliceStable(execs, func(i, j int) bool {
		a, b := execs[i], execs[j]
		for _, o := range order {
			var cmp int
			switch o.Field {
			case SortByStartTimestamp:
				cmp = a.StartTimestamp.Compare(b.StartTimestamp)
			}
			if o.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return a.ID < b.ID
	})
}
