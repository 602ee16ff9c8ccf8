package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// Repository implements ports.ExecutionRepository using the local filesystem.
// It stores each execution as a JSON file in a configured directory.
//
// Queries scan the directory, so it suits local tooling rather than large histories.
// It does not implement ports.ChildAppender; writers in one process are
// serialized by the lineage.Linker.
type Repository struct {
	BasePath string

	mu        sync.RWMutex
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

// NewRepository creates a Repository rooted at basePath.
// If basePath is empty, it defaults to ".chronicle/executions".
func NewRepository(basePath string, opts ...Option) *Repository {
	if basePath == "" {
		basePath = filepath.Join(".chronicle", "executions")
	}
	r := &Repository{BasePath: basePath, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Get loads a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.load(id)
}

// GetFirst returns the matching record with the earliest start timestamp.
// A directory has no insertion order, so ties are broken by id.
func (r *Repository) GetFirst(ctx context.Context, filter ports.ExecutionFilter) (*domain.Execution, error) {
	res, err := r.Query(ctx, filter, ports.ByStartTimestamp)
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, domain.NewNotFound("execution", filter.String())
	}
	return res[0], nil
}

// Query scans every record and returns the matching ones.
func (r *Repository) Query(ctx context.Context, filter ports.ExecutionFilter, order ...ports.OrderBy) ([]*domain.Execution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.BasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.Execution{}, nil
		}
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}

	res := make([]*domain.Execution, 0)
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		exec, err := r.load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			if domain.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if filter.Matches(exec) {
			res = append(res, exec)
		}
	}
	if len(order) == 0 {
		order = []ports.OrderBy{ports.ByStartTimestamp}
	}
	ports.SortExecutions(res, order...)
	return res, nil
}

// Upsert writes the record atomically.
func (r *Repository) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil || exec.ID == "" || strings.ContainsAny(exec.ID, `/\`) {
		return nil, domain.ErrInvalidExecution
	}
	stored := exec.Clone()

	r.mu.Lock()
	old, err := r.load(stored.ID)
	if err != nil && !domain.IsNotFound(err) {
		r.mu.Unlock()
		return nil, err
	}
	stored.KeepLineage(old)
	err = r.save(stored)
	r.mu.Unlock()
	if err != nil {
		return nil, err
	}

	if publish && r.publisher != nil {
		if err := r.publisher.Publish(ctx, domain.NewChangeEvent(old, stored)); err != nil {
			r.logger.Warn("Failed to publish execution change",
				"execution_id", stored.ID,
				"err", err,
			)
		}
	}
	return stored.Clone(), nil
}

func (r *Repository) path(id string) string {
	return filepath.Join(r.BasePath, id+".json")
}

func (r *Repository) load(id string) (*domain.Execution, error) {
	data, err := os.ReadFile(r.path(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.NewNotFound("execution", id)
		}
		return nil, fmt.Errorf("failed to read execution file: %w", err)
	}

	var exec domain.Execution
	if err := json.Unmarshal(data, &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution %s: %w", id, err)
	}
	if exec.Children == nil {
		exec.Children = []string{}
	}
	return &exec, nil
}

// save writes to a temporary file in the same directory, syncs it, and renames
// it over the destination.
func (r *Repository) save(exec *domain.Execution) error {
	if err := os.MkdirAll(r.BasePath, 0755); err != nil {
		return fmt.Errorf("failed to ensure execution directory: %w", err)
	}

	data, err := json.MarshalIndent(exec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}

	tmpFile, err := os.CreateTemp(r.BasePath, "tmp-"+exec.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath) // gone after a successful rename
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}
	// Windows cannot rename an open file.
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path(exec.ID)); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
