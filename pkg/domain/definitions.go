package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResourceRef identifies a packaged definition as "pack.name".
// Runners are not packaged and use an empty Pack.
type ResourceRef struct {
	Pack string `json:"pack,omitempty" yaml:"pack,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// String renders the reference in its canonical "pack.name" form.
func (r ResourceRef) String() string {
	if r.Pack == "" {
		return r.Name
	}
	return r.Pack + "." + r.Name
}

// ParseResourceRef splits "pack.name" at the first dot.
// Names may themselves contain dots ("core.http.get" is pack "core", name "http.get").
func ParseResourceRef(s string) (ResourceRef, error) {
	pack, name, ok := strings.Cut(s, ".")
	if !ok || pack == "" || name == "" {
		return ResourceRef{}, fmt.Errorf("%w: %q", ErrInvalidReference, s)
	}
	return ResourceRef{Pack: pack, Name: name}, nil
}

// Reference is the denormalized reference payload a runner stores in a live action's
// context. Either ID or the Pack/Name pair is enough to resolve it.
type Reference struct {
	ID   string `json:"id,omitempty" mapstructure:"id"`
	Name string `json:"name,omitempty" mapstructure:"name"`
	Pack string `json:"pack,omitempty" mapstructure:"pack"`
	Ref  string `json:"ref,omitempty" mapstructure:"ref"`
}

// ResourceRef returns the pack/name form of the payload, if it carries one.
func (r Reference) ResourceRef() (ResourceRef, bool) {
	if r.Name != "" {
		return ResourceRef{Pack: r.Pack, Name: r.Name}, true
	}
	if r.Ref != "" {
		ref, err := ParseResourceRef(r.Ref)
		if err != nil {
			return ResourceRef{}, false
		}
		return ref, true
	}
	return ResourceRef{}, false
}

// IsZero reports whether the payload carries nothing to resolve.
func (r Reference) IsZero() bool {
	return r.ID == "" && r.Name == "" && r.Ref == ""
}

// Definition is implemented by every entity that can be looked up by id or reference.
type Definition interface {
	DefinitionID() string
	DefinitionRef() ResourceRef
}

// Action is the definition of a runnable action.
type Action struct {
	ID          string         `json:"id" yaml:"id"`
	Pack        string         `json:"pack" yaml:"pack"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	RunnerType  string         `json:"runner_type" yaml:"runner_type"`
	EntryPoint  string         `json:"entry_point,omitempty" yaml:"entry_point,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (a Action) DefinitionID() string       { return a.ID }
func (a Action) DefinitionRef() ResourceRef { return ResourceRef{Pack: a.Pack, Name: a.Name} }

// Runner is the definition of the runner type that executes actions.
type Runner struct {
	ID               string         `json:"id" yaml:"id"`
	Name             string         `json:"name" yaml:"name"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled          bool           `json:"enabled" yaml:"enabled"`
	RunnerModule     string         `json:"runner_module,omitempty" yaml:"runner_module,omitempty"`
	RunnerParameters map[string]any `json:"runner_parameters,omitempty" yaml:"runner_parameters,omitempty"`
}

func (r Runner) DefinitionID() string       { return r.ID }
func (r Runner) DefinitionRef() ResourceRef { return ResourceRef{Name: r.Name} }

// Rule maps an event to an action.
type Rule struct {
	ID          string         `json:"id" yaml:"id"`
	Pack        string         `json:"pack" yaml:"pack"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled     bool           `json:"enabled" yaml:"enabled"`
	Event       string         `json:"event,omitempty" yaml:"event,omitempty"`
	Action      string         `json:"action,omitempty" yaml:"action,omitempty"`
	Criteria    map[string]any `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

func (r Rule) DefinitionID() string       { return r.ID }
func (r Rule) DefinitionRef() ResourceRef { return ResourceRef{Pack: r.Pack, Name: r.Name} }

// Event describes a class of external occurrence a rule can match.
type Event struct {
	ID         string         `json:"id" yaml:"id"`
	Pack       string         `json:"pack" yaml:"pack"`
	Name       string         `json:"name" yaml:"name"`
	Type       string         `json:"type" yaml:"type"` // EventType reference, "pack.name"
	Parameters map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

func (e Event) DefinitionID() string       { return e.ID }
func (e Event) DefinitionRef() ResourceRef { return ResourceRef{Pack: e.Pack, Name: e.Name} }

// EventInstance is one concrete occurrence of an Event.
type EventInstance struct {
	ID             string         `json:"id" yaml:"id"`
	Event          string         `json:"event" yaml:"event"` // Event reference, "pack.name"
	Payload        map[string]any `json:"payload,omitempty" yaml:"payload,omitempty"`
	OccurrenceTime time.Time      `json:"occurrence_time" yaml:"occurrence_time"`
}

func (e EventInstance) DefinitionID() string { return e.ID }

// DefinitionRef is empty: instances are only addressable by id.
func (e EventInstance) DefinitionRef() ResourceRef { return ResourceRef{} }

// EventType describes the schema of a family of events.
type EventType struct {
	ID               string         `json:"id" yaml:"id"`
	Pack             string         `json:"pack" yaml:"pack"`
	Name             string         `json:"name" yaml:"name"`
	Description      string         `json:"description,omitempty" yaml:"description,omitempty"`
	PayloadSchema    map[string]any `json:"payload_schema,omitempty" yaml:"payload_schema,omitempty"`
	ParametersSchema map[string]any `json:"parameters_schema,omitempty" yaml:"parameters_schema,omitempty"`
}

func (t EventType) DefinitionID() string       { return t.ID }
func (t EventType) DefinitionRef() ResourceRef { return ResourceRef{Pack: t.Pack, Name: t.Name} }
