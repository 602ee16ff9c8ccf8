package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// UpdateExecution re-applies a live action onto the record built from it.
// Every decomposed field is replaced as a whole. Lineage, enrichment and the
// action/runner snapshots are left as they were. A missing record is a
// not-found error; it is never created here.
//
// The read-modify-write runs under the record's lineage lock so a child linked
// concurrently is not overwritten.
func (e *Engine) UpdateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error) {
	if live == nil {
		return nil, fmt.Errorf("%w: nil live action", domain.ErrInvalidExecution)
	}

	found, err := e.repo.GetFirst(ctx, ports.ExecutionFilter{LiveActionID: live.ID})
	if err != nil {
		return nil, fmt.Errorf("failed to find execution for live action %s: %w", live.ID, err)
	}

	var before, stored *domain.Execution
	err = e.linker.WithLock(ctx, found.ID, func(ctx context.Context) error {
		current, err := e.repo.Get(ctx, found.ID)
		if err != nil {
			return fmt.Errorf("failed to reload execution: %w", err)
		}
		before = current.Clone()
		domain.Decompose(live).Apply(current)

		stored, err = e.repo.Upsert(ctx, current, publish)
		if err != nil {
			return fmt.Errorf("failed to persist execution: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Debug("Execution updated",
		"execution_id", stored.ID,
		"liveaction_id", live.ID,
		"status", string(stored.Status),
	)
	e.emitUpdated(ctx, before, stored)
	return stored, nil
}
