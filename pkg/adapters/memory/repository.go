package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// Repository implements ports.ExecutionRepository and ports.ChildAppender in memory.
// Safe for concurrent use.
type Repository struct {
	mu    sync.RWMutex
	data  map[string]*domain.Execution
	order []string // insertion order, so filter scans are deterministic

	publisher ports.Publisher
	logger    *slog.Logger
}

// Option configures the Repository.
type Option func(*Repository)

// WithPublisher emits change events for writes made with publish=true.
func WithPublisher(p ports.Publisher) Option {
	return func(r *Repository) {
		r.publisher = p
	}
}

// WithLogger configures a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = logger
	}
}

// NewRepository creates a new in-memory repository.
func NewRepository(opts ...Option) *Repository {
	r := &Repository{
		data:   make(map[string]*domain.Execution),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get retrieves a copy of the record.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exec, ok := r.data[id]
	if !ok {
		return nil, domain.NewNotFound("execution", id)
	}
	// Copy on read so callers can't mutate store state through the pointer
	return exec.Clone(), nil
}

// GetFirst returns the earliest inserted record matching filter.
func (r *Repository) GetFirst(ctx context.Context, filter ports.ExecutionFilter) (*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		if exec := r.data[id]; filter.Matches(exec) {
			return exec.Clone(), nil
		}
	}
	return nil, domain.NewNotFound("execution", filter.String())
}

// Query returns copies of every matching record.
func (r *Repository) Query(ctx context.Context, filter ports.ExecutionFilter, order ...ports.OrderBy) ([]*domain.Execution, error) {
	r.mu.RLock()
	res := make([]*domain.Execution, 0)
	for _, id := range r.order {
		if exec := r.data[id]; filter.Matches(exec) {
			res = append(res, exec.Clone())
		}
	}
	r.mu.RUnlock()

	ports.SortExecutions(res, order...)
	return res, nil
}

// Upsert stores a copy of exec.
func (r *Repository) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil || exec.ID == "" {
		return nil, domain.ErrInvalidExecution
	}
	stored := exec.Clone()
	if stored.Children == nil {
		stored.Children = []string{}
	}

	r.mu.Lock()
	old, exists := r.data[stored.ID]
	if exists {
		old = old.Clone()
		stored.KeepLineage(old)
	} else {
		r.order = append(r.order, stored.ID)
	}
	r.data[stored.ID] = stored
	r.mu.Unlock()

	if publish {
		r.publish(ctx, old, stored)
	}
	return stored.Clone(), nil
}

// AppendChild links childID under parentID while holding the write lock.
func (r *Repository) AppendChild(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	r.mu.Lock()
	parent, ok := r.data[parentID]
	if !ok {
		r.mu.Unlock()
		return false, domain.NewNotFound("execution", parentID)
	}
	old := parent.Clone()
	changed := parent.AddChild(childID)
	updated := parent.Clone()
	r.mu.Unlock()

	if changed && publish {
		r.publish(ctx, old, updated)
	}
	return changed, nil
}

// Len returns the number of stored records.
func (r *Repository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}

func (r *Repository) publish(ctx context.Context, old, updated *domain.Execution) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, domain.NewChangeEvent(old, updated)); err != nil {
		r.logger.Warn("Failed to publish execution change",
			"execution_id", updated.ID,
			"err", err,
		)
	}
}
