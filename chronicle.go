package chronicle

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/internal/runtime"
	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/lineage"
	"github.com/aretw0/chronicle/pkg/persistence/middleware"
	"github.com/aretw0/chronicle/pkg/ports"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/aretw0/chronicle"

// Service is the high-level entry point for the chronicle library.
// It wraps the internal runtime and traces every operation.
type Service struct {
	runtime *runtime.Engine

	repo        ports.ExecutionRepository
	catalog     ports.Catalog
	middlewares []middleware.Middleware
	locker      ports.DistributedLocker
	lockTTL     time.Duration
	ids         ports.IDGenerator
	hooks       domain.LifecycleHooks
	logger      *slog.Logger
	tracer      trace.Tracer
}

var _ ports.ExecutionService = (*Service)(nil)

// Option defines a functional option for configuring the Service.
type Option func(*Service)

// WithRepository sets the execution store (default: in-memory).
func WithRepository(repo ports.ExecutionRepository) Option {
	return func(s *Service) {
		s.repo = repo
	}
}

// WithCatalog sets the definition catalog (default: empty in-memory catalog).
func WithCatalog(catalog ports.Catalog) Option {
	return func(s *Service) {
		s.catalog = catalog
	}
}

// WithMiddleware wraps the repository, first middleware outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(s *Service) {
		s.middlewares = append(s.middlewares, mws...)
	}
}

// WithDistributedLocker serializes child links across replicas.
// A zero ttl keeps lineage.DefaultLockTTL.
func WithDistributedLocker(locker ports.DistributedLocker, ttl time.Duration) Option {
	return func(s *Service) {
		s.locker = locker
		s.lockTTL = ttl
	}
}

// WithIDGenerator sets the execution id source (default: UUIDv7).
func WithIDGenerator(gen ports.IDGenerator) Option {
	return func(s *Service) {
		s.ids = gen
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(s *Service) {
		s.hooks = hooks
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracerProvider sets where spans go (default: the global otel provider).
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))
	}
}

// New initializes a Service.
func New(opts ...Option) *Service {
	s := &Service{}
	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logging.NewNop()
	}
	if s.repo == nil {
		s.repo = memory.NewRepository(memory.WithLogger(s.logger))
	}
	if s.catalog == nil {
		s.catalog = memory.NewCatalog()
	}
	if s.tracer == nil {
		s.tracer = otel.GetTracerProvider().Tracer(tracerName, trace.WithInstrumentationVersion(Version))
	}
	s.repo = middleware.Chain(s.repo, s.middlewares...)

	linkerOpts := []lineage.Option{lineage.WithLogger(s.logger)}
	if s.locker != nil {
		linkerOpts = append(linkerOpts, lineage.WithLocker(s.locker))
	}
	if s.lockTTL > 0 {
		linkerOpts = append(linkerOpts, lineage.WithLockTTL(s.lockTTL))
	}

	s.runtime = runtime.NewEngine(s.repo, s.catalog,
		runtime.WithLogger(s.logger),
		runtime.WithLifecycleHooks(s.hooks),
		runtime.WithIDGenerator(s.ids),
		runtime.WithLinker(lineage.NewLinker(s.repo, linkerOpts...)),
	)
	return s
}

// Repository returns the (middleware-wrapped) execution repository.
func (s *Service) Repository() ports.ExecutionRepository {
	return s.repo
}

// Catalog returns the definition catalog.
func (s *Service) Catalog() ports.Catalog {
	return s.catalog
}

// CreateExecution persists a new record for a live action, enriched from its
// context. If the record was stored but linking it to its parent failed, the
// record is returned together with the error; LinkChild can retry the link.
func (s *Service) CreateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error) {
	var attrs []attribute.KeyValue
	if live != nil {
		attrs = append(attrs,
			attribute.String("chronicle.liveaction.id", live.ID),
			attribute.String("chronicle.action", live.Action),
		)
	}
	ctx, span := s.tracer.Start(ctx, "chronicle.CreateExecution", trace.WithAttributes(attrs...))
	defer span.End()

	exec, err := s.runtime.CreateExecution(ctx, live, publish)
	if exec != nil {
		span.SetAttributes(attribute.String("chronicle.execution.id", exec.ID))
	}
	return exec, recordError(span, err)
}

// UpdateExecution re-applies a live action onto its existing record.
func (s *Service) UpdateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error) {
	var attrs []attribute.KeyValue
	if live != nil {
		attrs = append(attrs,
			attribute.String("chronicle.liveaction.id", live.ID),
			attribute.String("chronicle.status", string(live.Status)),
		)
	}
	ctx, span := s.tracer.Start(ctx, "chronicle.UpdateExecution", trace.WithAttributes(attrs...))
	defer span.End()

	exec, err := s.runtime.UpdateExecution(ctx, live, publish)
	return exec, recordError(span, err)
}

// LinkChild appends childID to the parent's children. It is idempotent.
func (s *Service) LinkChild(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	ctx, span := s.tracer.Start(ctx, "chronicle.LinkChild", trace.WithAttributes(
		attribute.String("chronicle.parent.id", parentID),
		attribute.String("chronicle.execution.id", childID),
	))
	defer span.End()

	changed, err := s.runtime.LinkChild(ctx, parentID, childID, publish)
	return changed, recordError(span, err)
}

// GetExecution retrieves a record by id.
func (s *Service) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	ctx, span := s.tracer.Start(ctx, "chronicle.GetExecution", trace.WithAttributes(
		attribute.String("chronicle.execution.id", id),
	))
	defer span.End()

	exec, err := s.runtime.GetExecution(ctx, id)
	return exec, recordError(span, err)
}

// GetDescendants walks the lineage tree below rootID. A negative maxDepth
// is unbounded.
func (s *Service) GetDescendants(ctx context.Context, rootID string, maxDepth int, order domain.DescendantOrder) ([]*domain.Execution, error) {
	ctx, span := s.tracer.Start(ctx, "chronicle.GetDescendants", trace.WithAttributes(
		attribute.String("chronicle.execution.id", rootID),
		attribute.Int("chronicle.depth", maxDepth),
		attribute.String("chronicle.order", order.String()),
	))
	defer span.End()

	res, err := s.runtime.GetDescendants(ctx, rootID, maxDepth, order)
	span.SetAttributes(attribute.Int("chronicle.descendants", len(res)))
	return res, recordError(span, err)
}

// IsExecutionCanceled reports a confirmed cancellation. Lookup failures read as false.
func (s *Service) IsExecutionCanceled(ctx context.Context, id string) bool {
	return s.ExecutionCancelState(ctx, id).Canceled()
}

// ExecutionCancelState distinguishes a failed lookup from "not canceled".
func (s *Service) ExecutionCancelState(ctx context.Context, id string) domain.CancelState {
	ctx, span := s.tracer.Start(ctx, "chronicle.ExecutionCancelState", trace.WithAttributes(
		attribute.String("chronicle.execution.id", id),
	))
	defer span.End()

	state := s.runtime.ExecutionCancelState(ctx, id)
	span.SetAttributes(attribute.String("chronicle.cancel_state", string(state)))
	return state
}

func recordError(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}
