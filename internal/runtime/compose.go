package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/aretw0/chronicle/pkg/reference"
)

// CreateExecution builds a record for a new live action, enriches it with the
// context that caused it and persists it.
//
// Action and runner must resolve, otherwise a not-found error is returned and
// nothing is written. Rule, event chain and parent are best-effort. When a parent
// is found, the new record is linked into its children after being persisted; if
// that link fails the persisted record is returned along with the error, and
// LinkChild can be retried.
func (e *Engine) CreateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error) {
	if live == nil {
		return nil, fmt.Errorf("%w: nil live action", domain.ErrInvalidExecution)
	}

	action, runner, err := e.resolveDefinitions(ctx, live)
	if err != nil {
		return nil, err
	}

	exec := &domain.Execution{
		ID:       e.ids.NewID(),
		Action:   *action,
		Runner:   *runner,
		Children: []string{},
	}
	domain.Decompose(live).Apply(exec)

	e.enrichRule(ctx, live, exec)
	e.enrichEvent(ctx, live, exec)
	parent := e.resolveParent(ctx, live)
	if parent != nil {
		exec.Parent = parent.ID
	}

	stored, err := e.repo.Upsert(ctx, exec, publish)
	if err != nil {
		return nil, fmt.Errorf("failed to persist execution: %w", err)
	}
	e.logger.Debug("Execution created",
		"execution_id", stored.ID,
		"liveaction_id", live.ID,
		"parent_id", stored.Parent,
	)
	e.emitCreated(ctx, stored)

	if parent != nil {
		if _, err := e.linker.Link(ctx, parent.ID, stored.ID, publish); err != nil {
			return stored, fmt.Errorf("failed to link execution %s to parent %s: %w", stored.ID, parent.ID, err)
		}
	}
	return stored, nil
}

// LinkChild appends childID to the children of parentID. It is idempotent.
func (e *Engine) LinkChild(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	return e.linker.Link(ctx, parentID, childID, publish)
}

func (e *Engine) resolveDefinitions(ctx context.Context, live *domain.LiveAction) (*domain.Action, *domain.Runner, error) {
	ref, err := domain.ParseResourceRef(live.Action)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve action: %w: %w", domain.NewNotFound("action", live.Action), err)
	}
	action, err := e.catalog.Actions().GetByRef(ctx, ref)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve action: %w", err)
	}
	runner, err := e.catalog.Runners().GetByRef(ctx, domain.ResourceRef{Name: action.RunnerType})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve runner for action %s: %w", ref, err)
	}
	return action, runner, nil
}

func (e *Engine) enrichRule(ctx context.Context, live *domain.LiveAction, exec *domain.Execution) {
	payload, present, err := decodeReference(live.Context, domain.ContextKeyRule)
	if !present {
		return
	}
	if err != nil {
		e.emitSkipped(ctx, live.ID, domain.EnrichmentRule, "", err)
		return
	}
	rule, ok := reference.ResolveByRef(ctx, e.catalog.Rules(), payload)
	if !ok {
		ref := describeReference(payload)
		e.emitSkipped(ctx, live.ID, domain.EnrichmentRule, ref, domain.NewNotFound("rule", ref))
		return
	}
	exec.Rule = rule
}

// enrichEvent follows instance -> event -> event type. The chain is embedded
// only when every link resolves.
func (e *Engine) enrichEvent(ctx context.Context, live *domain.LiveAction, exec *domain.Execution) {
	payload, present, err := decodeReference(live.Context, domain.ContextKeyEventInstance)
	if !present {
		return
	}
	if err != nil {
		e.emitSkipped(ctx, live.ID, domain.EnrichmentEventChain, "", err)
		return
	}

	instance, ok := reference.ResolveByRef(ctx, e.catalog.EventInstances(), payload)
	if !ok {
		ref := describeReference(payload)
		e.emitSkipped(ctx, live.ID, domain.EnrichmentEventChain, ref, domain.NewNotFound("event instance", ref))
		return
	}
	event, ok := reference.ResolveByResourceRef(ctx, e.catalog.Events(), instance.Event)
	if !ok {
		e.emitSkipped(ctx, live.ID, domain.EnrichmentEventChain, instance.Event, domain.NewNotFound("event", instance.Event))
		return
	}
	eventType, ok := reference.ResolveByResourceRef(ctx, e.catalog.EventTypes(), event.Type)
	if !ok {
		e.emitSkipped(ctx, live.ID, domain.EnrichmentEventChain, event.Type, domain.NewNotFound("event type", event.Type))
		return
	}

	exec.EventInstance = instance
	exec.Event = event
	exec.EventType = eventType
}

func (e *Engine) resolveParent(ctx context.Context, live *domain.LiveAction) *domain.Execution {
	parentLiveID, present, err := parentLiveActionID(live.Context)
	if !present {
		return nil
	}
	if err != nil || parentLiveID == "" {
		if err == nil {
			err = fmt.Errorf("%w: parent reference carries no id", domain.ErrInvalidReference)
		}
		e.emitSkipped(ctx, live.ID, domain.EnrichmentParent, "", err)
		return nil
	}

	parent, err := e.repo.GetFirst(ctx, ports.ExecutionFilter{LiveActionID: parentLiveID})
	if err != nil {
		e.emitSkipped(ctx, live.ID, domain.EnrichmentParent, parentLiveID, err)
		return nil
	}
	return parent
}
