package memory

import (
	"context"
	"sync"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// Lookup implements ports.Lookup for one definition kind.
// Safe for concurrent use.
type Lookup[T domain.Definition] struct {
	kind  string
	mu    sync.RWMutex
	byID  map[string]T
	byRef map[domain.ResourceRef]string
}

// NewLookup creates a lookup seeded with defs. kind names the entity in not-found errors.
func NewLookup[T domain.Definition](kind string, defs ...T) *Lookup[T] {
	l := &Lookup[T]{
		kind:  kind,
		byID:  make(map[string]T),
		byRef: make(map[domain.ResourceRef]string),
	}
	for _, d := range defs {
		l.Put(d)
	}
	return l
}

// Put adds or replaces a definition. Definitions with an empty reference are
// only addressable by id.
func (l *Lookup[T]) Put(def T) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID[def.DefinitionID()] = def
	if ref := def.DefinitionRef(); ref.Name != "" {
		l.byRef[ref] = def.DefinitionID()
	}
}

// GetByID returns a copy of the definition with the given id.
func (l *Lookup[T]) GetByID(ctx context.Context, id string) (*T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	def, ok := l.byID[id]
	if !ok {
		return nil, domain.NewNotFound(l.kind, id)
	}
	return &def, nil
}

// GetByRef returns a copy of the definition with the given reference.
func (l *Lookup[T]) GetByRef(ctx context.Context, ref domain.ResourceRef) (*T, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.byRef[ref]
	if !ok {
		return nil, domain.NewNotFound(l.kind, ref.String())
	}
	def := l.byID[id]
	return &def, nil
}

// Len returns the number of definitions.
func (l *Lookup[T]) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byID)
}

// Catalog implements ports.Catalog with in-memory lookups.
type Catalog struct {
	ActionLookup        *Lookup[domain.Action]
	RunnerLookup        *Lookup[domain.Runner]
	RuleLookup          *Lookup[domain.Rule]
	EventLookup         *Lookup[domain.Event]
	EventInstanceLookup *Lookup[domain.EventInstance]
	EventTypeLookup     *Lookup[domain.EventType]
}

var _ ports.Catalog = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		ActionLookup:        NewLookup[domain.Action]("action"),
		RunnerLookup:        NewLookup[domain.Runner]("runner"),
		RuleLookup:          NewLookup[domain.Rule]("rule"),
		EventLookup:         NewLookup[domain.Event]("event"),
		EventInstanceLookup: NewLookup[domain.EventInstance]("event instance"),
		EventTypeLookup:     NewLookup[domain.EventType]("event type"),
	}
}

func (c *Catalog) Actions() ports.Lookup[domain.Action]               { return c.ActionLookup }
func (c *Catalog) Runners() ports.Lookup[domain.Runner]               { return c.RunnerLookup }
func (c *Catalog) Rules() ports.Lookup[domain.Rule]                   { return c.RuleLookup }
func (c *Catalog) Events() ports.Lookup[domain.Event]                 { return c.EventLookup }
func (c *Catalog) EventInstances() ports.Lookup[domain.EventInstance] { return c.EventInstanceLookup }
func (c *Catalog) EventTypes() ports.Lookup[domain.EventType]         { return c.EventTypeLookup }

// AddActions registers action definitions.
func (c *Catalog) AddActions(defs ...domain.Action) *Catalog {
	for _, d := range defs {
		c.ActionLookup.Put(d)
	}
	return c
}

// AddRunners registers runner definitions.
func (c *Catalog) AddRunners(defs ...domain.Runner) *Catalog {
	for _, d := range defs {
		c.RunnerLookup.Put(d)
	}
	return c
}

// AddRules registers rule definitions.
func (c *Catalog) AddRules(defs ...domain.Rule) *Catalog {
	for _, d := range defs {
		c.RuleLookup.Put(d)
	}
	return c
}

// AddEvents registers event definitions.
func (c *Catalog) AddEvents(defs ...domain.Event) *Catalog {
	for _, d := range defs {
		c.EventLookup.Put(d)
	}
	return c
}

// AddEventInstances registers event occurrences.
func (c *Catalog) AddEventInstances(defs ...domain.EventInstance) *Catalog {
	for _, d := range defs {
		c.EventInstanceLookup.Put(d)
	}
	return c
}

// AddEventTypes registers event type definitions.
func (c *Catalog) AddEventTypes(defs ...domain.EventType) *Catalog {
	for _, d := range defs {
		c.EventTypeLookup.Put(d)
	}
	return c
}
