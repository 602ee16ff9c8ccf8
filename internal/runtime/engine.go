package runtime

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ids"
	"github.com/aretw0/chronicle/pkg/lineage"
	"github.com/aretw0/chronicle/pkg/ports"
)

// Engine composes execution records from live actions and walks their lineage.
type Engine struct {
	repo    ports.ExecutionRepository
	catalog ports.Catalog
	linker  *lineage.Linker
	ids     ports.IDGenerator
	hooks   domain.LifecycleHooks
	logger  *slog.Logger
	now     func() time.Time
}

var _ ports.ExecutionService = (*Engine)(nil)

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) EngineOption {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithIDGenerator sets the execution id source (default: UUIDv7).
func WithIDGenerator(gen ports.IDGenerator) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.ids = gen
		}
	}
}

// WithLinker replaces the default lineage linker, e.g. with one holding a distributed locker.
func WithLinker(l *lineage.Linker) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.linker = l
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// NewEngine creates a new engine over a repository and a definition catalog.
func NewEngine(repo ports.ExecutionRepository, catalog ports.Catalog, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:    repo,
		catalog: catalog,
		ids:     ids.UUIDv7Generator{},
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.linker == nil {
		e.linker = lineage.NewLinker(repo, lineage.WithLogger(e.logger))
	}
	return e
}

// Repository returns the underlying execution repository.
func (e *Engine) Repository() ports.ExecutionRepository {
	return e.repo
}

// GetExecution retrieves a record by id.
func (e *Engine) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	return e.repo.Get(ctx, id)
}

func (e *Engine) emitCreated(ctx context.Context, exec *domain.Execution) {
	if e.hooks.OnExecutionCreated == nil {
		return
	}
	e.hooks.OnExecutionCreated(ctx, &domain.ExecutionEvent{
		Timestamp:    e.now(),
		ExecutionID:  exec.ID,
		LiveActionID: exec.LiveAction.ID,
		Action:       exec.LiveAction.Action,
		Status:       exec.Status,
		ParentID:     exec.Parent,
		Diff:         domain.Diff(nil, exec),
	})
}

func (e *Engine) emitUpdated(ctx context.Context, before, after *domain.Execution) {
	if e.hooks.OnExecutionUpdated == nil {
		return
	}
	e.hooks.OnExecutionUpdated(ctx, &domain.ExecutionEvent{
		Timestamp:    e.now(),
		ExecutionID:  after.ID,
		LiveActionID: after.LiveAction.ID,
		Action:       after.LiveAction.Action,
		Status:       after.Status,
		ParentID:     after.Parent,
		Diff:         domain.Diff(before, after),
	})
}

func (e *Engine) emitSkipped(ctx context.Context, liveID string, step domain.Enrichment, ref string, err error) {
	e.logger.Debug("Enrichment skipped",
		"liveaction_id", liveID,
		"enrichment", string(step),
		"reference", ref,
		"err", err,
	)
	if e.hooks.OnEnrichmentSkipped == nil {
		return
	}
	e.hooks.OnEnrichmentSkipped(ctx, &domain.EnrichmentEvent{
		Timestamp:    e.now(),
		LiveActionID: liveID,
		Enrichment:   step,
		Reference:    ref,
		Err:          err,
	})
}

func (e *Engine) emitTraversal(ctx context.Context, ev *domain.TraversalEvent) {
	if e.hooks.OnDescendantsResolved == nil {
		return
	}
	ev.Timestamp = e.now()
	e.hooks.OnDescendantsResolved(ctx, ev)
}
