package domain

import "time"

// DecompositionVersion identifies the field split below. Bump it whenever
// SkippedFields or PromotedFields change.
const DecompositionVersion = 1

// SkippedFields are the live-action fields kept out of the top level of an execution.
// They are stored, from the API projection, in the nested "liveaction" sub-document.
var SkippedFields = []string{"id", "callback", "action", "runner_info"}

// PromotedFields are copied from the raw live action onto the execution's top level.
var PromotedFields = []string{"status", "parameters", "context", "result", "start_timestamp", "end_timestamp"}

// ExecutionFields holds the promoted live-action fields.
type ExecutionFields struct {
	Status         LiveActionStatus
	Parameters     map[string]any
	Context        map[string]any
	Result         map[string]any
	StartTimestamp time.Time
	EndTimestamp   *time.Time
}

// Decomposition is the split of a live action into execution parts.
type Decomposition struct {
	Fields     ExecutionFields
	LiveAction LiveActionRef
}

// Decompose splits a live action. Top-level fields keep the raw values for querying;
// the nested sub-document is built from the API projection.
func Decompose(l *LiveAction) Decomposition {
	api := l.API()
	return Decomposition{
		Fields: ExecutionFields{
			Status:         l.Status,
			Parameters:     l.Parameters,
			Context:        l.Context,
			Result:         l.Result,
			StartTimestamp: l.StartTimestamp,
			EndTimestamp:   l.EndTimestamp,
		},
		LiveAction: LiveActionRef{
			ID:         api.ID,
			Action:     api.Action,
			Callback:   api.Callback,
			RunnerInfo: api.RunnerInfo,
		},
	}
}

// Apply overwrites every decomposed field on e, each as a full replacement.
// Lineage, enrichment and definition snapshots are left untouched.
func (d Decomposition) Apply(e *Execution) {
	e.Status = d.Fields.Status
	e.Parameters = d.Fields.Parameters
	e.Context = d.Fields.Context
	e.Result = d.Fields.Result
	e.StartTimestamp = d.Fields.StartTimestamp
	e.EndTimestamp = d.Fields.EndTimestamp
	e.LiveAction = d.LiveAction
}
