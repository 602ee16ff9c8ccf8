package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/chronicle/pkg/domain"
)

// IsExecutionCanceled reports whether the stored status is canceled.
// Any failure, including a missing record, reads as false.
func (e *Engine) IsExecutionCanceled(ctx context.Context, id string) bool {
	return e.ExecutionCancelState(ctx, id).Canceled()
}

// ExecutionCancelState is the tri-state form of IsExecutionCanceled: a failed
// lookup is CancelStateUnknown rather than "not canceled". It never panics.
func (e *Engine) ExecutionCancelState(ctx context.Context, id string) (state domain.CancelState) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("Cancellation check panicked",
				"execution_id", id,
				"err", fmt.Errorf("%v", r),
			)
			state = domain.CancelStateUnknown
		}
	}()

	exec, err := e.repo.Get(ctx, id)
	if err != nil {
		e.logger.Debug("Cancellation check failed",
			"execution_id", id,
			"err", err,
		)
		return domain.CancelStateUnknown
	}
	if exec.IsCanceled() {
		return domain.CancelStateCanceled
	}
	return domain.CancelStateNotCanceled
}
