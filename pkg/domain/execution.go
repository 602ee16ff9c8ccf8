package domain

import (
	"slices"
	"time"
)

// LiveActionRef is the nested "liveaction" sub-document of an execution.
// It holds the display/denormalization fields of the live action it was built from.
type LiveActionRef struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Callback   map[string]any `json:"callback,omitempty"`
	RunnerInfo map[string]any `json:"runner_info,omitempty"`
}

// Execution is the durable historical record of one action invocation.
type Execution struct {
	// ID is assigned at creation and never changes.
	ID string `json:"id"`

	// Action and Runner are snapshots taken at creation; updates never re-resolve them.
	Action Action `json:"action"`
	Runner Runner `json:"runner"`

	// LiveAction is the nested sub-document (skip-set fields of the live action).
	LiveAction LiveActionRef `json:"liveaction"`

	// Promoted live-action fields. Rewritten on every update.
	Status         LiveActionStatus `json:"status"`
	Parameters     map[string]any   `json:"parameters,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	Result         map[string]any   `json:"result,omitempty"`
	StartTimestamp time.Time        `json:"start_timestamp"`
	EndTimestamp   *time.Time       `json:"end_timestamp,omitempty"`

	// Parent is the id of the parent execution. Write-once.
	Parent string `json:"parent,omitempty"`

	// Children lists child execution ids in link order. Append-only, no duplicates.
	Children []string `json:"children"`

	// Enrichment snapshots, present only when resolved at creation.
	Rule          *Rule          `json:"rule,omitempty"`
	Event         *Event         `json:"event,omitempty"`
	EventInstance *EventInstance `json:"event_instance,omitempty"`
	EventType     *EventType     `json:"event_type,omitempty"`
}

// HasChildren reports whether the execution has at least one linked child.
func (e *Execution) HasChildren() bool {
	return len(e.Children) > 0
}

// HasChild reports whether id is already linked as a child.
func (e *Execution) HasChild(id string) bool {
	return slices.Contains(e.Children, id)
}

// AddChild appends id unless it is already present. It reports whether the list changed.
func (e *Execution) AddChild(id string) bool {
	if e.HasChild(id) {
		return false
	}
	e.Children = append(e.Children, id)
	return true
}

// KeepLineage carries the lineage of the stored version into e before e
// replaces it: a parent already set on stored wins, and children linked on
// stored but missing from e are kept in their stored order ahead of any new ids.
// A write built from a stale read therefore never drops a child.
func (e *Execution) KeepLineage(stored *Execution) {
	if stored == nil {
		return
	}
	if stored.Parent != "" {
		e.Parent = stored.Parent
	}
	merged := append(make([]string, 0, len(stored.Children)+len(e.Children)), stored.Children...)
	for _, id := range e.Children {
		if !slices.Contains(merged, id) {
			merged = append(merged, id)
		}
	}
	e.Children = merged
}

// IsCanceled reports whether the stored status is the canceled status.
func (e *Execution) IsCanceled() bool {
	return e.Status == LiveActionStatusCanceled
}

// Clone returns a deep copy, so stores can hand out records without aliasing.
func (e *Execution) Clone() *Execution {
	if e == nil {
		return nil
	}
	c := *e
	c.Action.Parameters = CopyMap(e.Action.Parameters)
	c.Runner.RunnerParameters = CopyMap(e.Runner.RunnerParameters)
	c.LiveAction.Callback = CopyMap(e.LiveAction.Callback)
	c.LiveAction.RunnerInfo = CopyMap(e.LiveAction.RunnerInfo)
	c.Parameters = CopyMap(e.Parameters)
	c.Context = CopyMap(e.Context)
	c.Result = CopyMap(e.Result)
	if e.EndTimestamp != nil {
		t := *e.EndTimestamp
		c.EndTimestamp = &t
	}
	c.Children = append([]string{}, e.Children...)
	if e.Rule != nil {
		r := *e.Rule
		r.Criteria = CopyMap(e.Rule.Criteria)
		c.Rule = &r
	}
	if e.Event != nil {
		ev := *e.Event
		ev.Parameters = CopyMap(e.Event.Parameters)
		c.Event = &ev
	}
	if e.EventInstance != nil {
		inst := *e.EventInstance
		inst.Payload = CopyMap(e.EventInstance.Payload)
		c.EventInstance = &inst
	}
	if e.EventType != nil {
		et := *e.EventType
		et.PayloadSchema = CopyMap(e.EventType.PayloadSchema)
		et.ParametersSchema = CopyMap(e.EventType.ParametersSchema)
		c.EventType = &et
	}
	return &c
}
