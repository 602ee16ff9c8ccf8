package ports

import (
	"context"

	"github.com/aretw0/chronicle/pkg/domain"
)

// Lookup resolves definitions of one kind.
// Both methods return a *domain.NotFoundError on a miss.
type Lookup[T domain.Definition] interface {
	GetByID(ctx context.Context, id string) (*T, error)
	GetByRef(ctx context.Context, ref domain.ResourceRef) (*T, error)
}

// Catalog groups the definition lookups needed to enrich an execution.
type Catalog interface {
	Actions() Lookup[domain.Action]
	Runners() Lookup[domain.Runner]
	Rules() Lookup[domain.Rule]
	Events() Lookup[domain.Event]
	EventInstances() Lookup[domain.EventInstance]
	EventTypes() Lookup[domain.EventType]
}
