package domain

import (
	"context"
	"time"
)

// ChangeKind defines what happened to a persisted execution.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
)

// ChangeEvent is the notification a repository publishes after a write.
type ChangeEvent struct {
	Kind        ChangeKind     `json:"kind"`
	ExecutionID string         `json:"execution_id"`
	Execution   *Execution     `json:"execution"`
	Diff        *ExecutionDiff `json:"diff,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// Enrichment names an optional enrichment step of execution creation.
type Enrichment string

const (
	EnrichmentRule       Enrichment = "rule"
	EnrichmentEventChain Enrichment = "event"
	EnrichmentParent     Enrichment = "parent"
)

// ExecutionEvent reports a created or updated execution.
type ExecutionEvent struct {
	Timestamp    time.Time
	ExecutionID  string
	LiveActionID string
	Action       string
	Status       LiveActionStatus
	ParentID     string
	Diff         *ExecutionDiff
}

// EnrichmentEvent reports a tolerated miss while enriching a new execution.
type EnrichmentEvent struct {
	Timestamp    time.Time
	LiveActionID string
	Enrichment   Enrichment
	Reference    string
	Err          error
}

// TraversalEvent reports a finished descendant walk.
type TraversalEvent struct {
	Timestamp time.Time
	RootID    string
	MaxDepth  int
	Order     DescendantOrder
	Visited   int
	Queries   int
}

// LifecycleHooks defines callbacks for observability. Nil hooks are skipped.
type LifecycleHooks struct {
	OnExecutionCreated    func(context.Context, *ExecutionEvent)
	OnExecutionUpdated    func(context.Context, *ExecutionEvent)
	OnEnrichmentSkipped   func(context.Context, *EnrichmentEvent)
	OnDescendantsResolved func(context.Context, *TraversalEvent)
}

// NewChangeEvent describes the transition from old to updated.
// A nil old record means the write created the execution.
func NewChangeEvent(old, updated *Execution) ChangeEvent {
	kind := ChangeUpdated
	if old == nil {
		kind = ChangeCreated
	}
	snapshot := updated.Clone()
	return ChangeEvent{
		Kind:        kind,
		ExecutionID: snapshot.ID,
		Execution:   snapshot,
		Diff:        Diff(old, snapshot),
		Timestamp:   time.Now(),
	}
}
