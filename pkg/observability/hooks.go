package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/chronicle/pkg/domain"
)

// CombineHooks returns hooks that call every non-nil hook of each set, in order.
func CombineHooks(sets ...domain.LifecycleHooks) domain.LifecycleHooks {
	var created, updated []func(context.Context, *domain.ExecutionEvent)
	var skipped []func(context.Context, *domain.EnrichmentEvent)
	var resolved []func(context.Context, *domain.TraversalEvent)
	for _, s := range sets {
		if s.OnExecutionCreated != nil {
			created = append(created, s.OnExecutionCreated)
		}
		if s.OnExecutionUpdated != nil {
			updated = append(updated, s.OnExecutionUpdated)
		}
		if s.OnEnrichmentSkipped != nil {
			skipped = append(skipped, s.OnEnrichmentSkipped)
		}
		if s.OnDescendantsResolved != nil {
			resolved = append(resolved, s.OnDescendantsResolved)
		}
	}

	var out domain.LifecycleHooks
	if len(created) > 0 {
		out.OnExecutionCreated = fanOut(created)
	}
	if len(updated) > 0 {
		out.OnExecutionUpdated = fanOut(updated)
	}
	if len(skipped) > 0 {
		out.OnEnrichmentSkipped = fanOut(skipped)
	}
	if len(resolved) > 0 {
		out.OnDescendantsResolved = fanOut(resolved)
	}
	return out
}

func fanOut[E any](fns []func(context.Context, *E)) func(context.Context, *E) {
	return func(ctx context.Context, e *E) {
		for _, fn := range fns {
			fn(ctx, e)
		}
	}
}

// LoggingHooks logs every lifecycle event at debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnExecutionCreated: func(ctx context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Execution Created",
				"execution_id", e.ExecutionID,
				"liveaction_id", e.LiveActionID,
				"action", e.Action,
				"parent_id", e.ParentID,
			)
		},
		OnExecutionUpdated: func(ctx context.Context, e *domain.ExecutionEvent) {
			logger.Debug("Execution Updated",
				"execution_id", e.ExecutionID,
				"liveaction_id", e.LiveActionID,
				"status", e.Status,
			)
		},
		OnEnrichmentSkipped: func(ctx context.Context, e *domain.EnrichmentEvent) {
			logger.Debug("Enrichment Skipped",
				"liveaction_id", e.LiveActionID,
				"enrichment", e.Enrichment,
				"reference", e.Reference,
				"err", e.Err,
			)
		},
		OnDescendantsResolved: func(ctx context.Context, e *domain.TraversalEvent) {
			logger.Debug("Descendants Resolved",
				"execution_id", e.RootID,
				"depth", e.MaxDepth,
				"order", e.Order,
				"visited", e.Visited,
				"queries", e.Queries,
			)
		},
	}
}
