package domain

import "time"

// LiveActionStatus is the run state reported by the action runner.
type LiveActionStatus string

const (
	LiveActionStatusRequested LiveActionStatus = "requested"
	LiveActionStatusScheduled LiveActionStatus = "scheduled"
	LiveActionStatusRunning   LiveActionStatus = "running"
	LiveActionStatusSucceeded LiveActionStatus = "succeeded"
	LiveActionStatusFailed    LiveActionStatus = "failed"
	LiveActionStatusCanceled  LiveActionStatus = "canceled"
)

// Context keys a runner may set on a LiveAction to describe what caused it.
const (
	ContextKeyRule          = "rule"
	ContextKeyEventInstance = "event_instance"
	ContextKeyParent        = "parent"
)

// LiveAction is the ephemeral snapshot of one in-flight or completed action invocation.
// It is produced by the runner and treated as read-only input.
type LiveAction struct {
	ID             string           `json:"id"`
	Status         LiveActionStatus `json:"status"`
	Action         string           `json:"action"` // Resource reference, "pack.name"
	Parameters     map[string]any   `json:"parameters,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	Result         map[string]any   `json:"result,omitempty"`
	StartTimestamp time.Time        `json:"start_timestamp"`
	EndTimestamp   *time.Time       `json:"end_timestamp,omitempty"`
	Callback       map[string]any   `json:"callback,omitempty"`
	RunnerInfo     map[string]any   `json:"runner_info,omitempty"`
}

// LiveActionAPI is the external projection of a LiveAction.
// Maps are detached from the source so the projection can be stored without aliasing.
type LiveActionAPI struct {
	ID             string           `json:"id"`
	Status         LiveActionStatus `json:"status"`
	Action         string           `json:"action"`
	Parameters     map[string]any   `json:"parameters,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	Result         map[string]any   `json:"result,omitempty"`
	StartTimestamp string           `json:"start_timestamp,omitempty"`
	EndTimestamp   string           `json:"end_timestamp,omitempty"`
	Callback       map[string]any   `json:"callback,omitempty"`
	RunnerInfo     map[string]any   `json:"runner_info,omitempty"`
}

// API returns the external projection of the live action.
func (l *LiveAction) API() LiveActionAPI {
	api := LiveActionAPI{
		ID:         l.ID,
		Status:     l.Status,
		Action:     l.Action,
		Parameters: CopyMap(l.Parameters),
		Context:    CopyMap(l.Context),
		Result:     CopyMap(l.Result),
		Callback:   CopyMap(l.Callback),
		RunnerInfo: CopyMap(l.RunnerInfo),
	}
	if !l.StartTimestamp.IsZero() {
		api.StartTimestamp = l.StartTimestamp.UTC().Format(time.RFC3339Nano)
	}
	if l.EndTimestamp != nil {
		api.EndTimestamp = l.EndTimestamp.UTC().Format(time.RFC3339Nano)
	}
	return api
}

// CopyMap returns a deep copy of nested maps and slices. Scalars are shared.
// A nil map stays nil.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
