package domain

import (
	"reflect"
	"time"
)

// ExecutionDiff represents the changes between two versions of an execution.
// It is designed to be serialized to JSON for partial updates on a client.
type ExecutionDiff struct {
	// ExecutionID is always present to identify the target.
	ExecutionID string `json:"execution_id"`

	Status *LiveActionStatus `json:"status,omitempty"`

	// Result and Context contain only changed, added or deleted keys.
	// For deletions, the key is present with a nil value.
	Result  map[string]any `json:"result,omitempty"`
	Context map[string]any `json:"context,omitempty"`

	EndTimestamp *string `json:"end_timestamp,omitempty"`

	// ChildrenAppended lists ids linked since the old version.
	ChildrenAppended []string `json:"children_appended,omitempty"`
}

// Diff calculates the difference between oldExec and newExec.
// If oldExec is nil, it returns a diff representing the entire newExec (initial load).
// It returns nil when nothing changed.
func Diff(oldExec, newExec *Execution) *ExecutionDiff {
	if newExec == nil {
		return nil
	}

	diff := &ExecutionDiff{
		ExecutionID: newExec.ID,
	}

	if oldExec == nil || oldExec.Status != newExec.Status {
		diff.Status = &newExec.Status
	}

	var oldResult, oldContext map[string]any
	if oldExec != nil {
		oldResult, oldContext = oldExec.Result, oldExec.Context
	}
	diff.Result = diffMap(oldResult, newExec.Result, oldExec == nil)
	diff.Context = diffMap(oldContext, newExec.Context, oldExec == nil)

	if newExec.EndTimestamp != nil && (oldExec == nil || oldExec.EndTimestamp == nil || !oldExec.EndTimestamp.Equal(*newExec.EndTimestamp)) {
		ts := newExec.EndTimestamp.UTC().Format(time.RFC3339Nano)
		diff.EndTimestamp = &ts
	}

	diff.ChildrenAppended = diffChildren(oldExec, newExec)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffMap(old, new map[string]any, initial bool) map[string]any {
	delta := make(map[string]any)

	if initial {
		for k, v := range new {
			delta[k] = v
		}
		if len(delta) == 0 {
			return nil
		}
		return delta
	}

	// Added or Modified
	for k, newVal := range new {
		oldVal, exists := old[k]
		if !exists || !reflect.DeepEqual(oldVal, newVal) {
			delta[k] = newVal
		}
	}

	// Deletions
	for k := range old {
		if _, exists := new[k]; !exists {
			delta[k] = nil
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

// diffChildren relies on children being append-only.
func diffChildren(old, new *Execution) []string {
	if len(new.Children) == 0 {
		return nil
	}
	if old == nil {
		return new.Children
	}
	if len(new.Children) > len(old.Children) {
		return new.Children[len(old.Children):]
	}
	return nil
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *ExecutionDiff) IsEmpty() bool {
	return d.Status == nil &&
		d.EndTimestamp == nil &&
		len(d.Result) == 0 &&
		len(d.Context) == 0 &&
		len(d.ChildrenAppended) == 0
}
