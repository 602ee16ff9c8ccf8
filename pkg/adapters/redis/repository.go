package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by this package.
const DefaultPrefix = "chronicle:"

// Repository implements ports.ExecutionRepository using Redis.
//
// Each record is a JSON blob. Three indexes back the lookups:
//   - <prefix>index: ZSET of every execution id, scored by start time (ms)
//   - <prefix>liveaction: HASH live-action id -> first execution id built from it
//   - <prefix>children:<parent>: ZSET of child ids, scored by start time (ms)
//
// It does not implement ports.ChildAppender; concurrent parent updates are
// serialized by lineage.Linker, optionally with the Redis Locker.
type Repository struct {
	client    *backend.Client
	prefix    string
	publisher ports.Publisher
	logger    *slog.Logger
}

// Option configures the Repository.
type Option func(*Repository)

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(r *Repository) {
		r.prefix = prefix
	}
}

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

// New creates a new Redis repository with options.
func New(address, password string, db int, opts ...Option) *Repository {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis repository from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *Repository {
	r := &Repository{
		client: client,
		prefix: DefaultPrefix,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Client returns the underlying client, for sharing with a Locker or Publisher.
func (r *Repository) Client() *backend.Client {
	return r.client
}

func (r *Repository) key(id string) string {
	return r.prefix + "execution:" + id
}

func (r *Repository) indexKey() string {
	return r.prefix + "index"
}

func (r *Repository) liveActionKey() string {
	return r.prefix + "liveaction"
}

func (r *Repository) childrenKey(parentID string) string {
	return r.prefix + "children:" + parentID
}

// Get retrieves a record by id.
func (r *Repository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.NewNotFound("execution", id)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}
	return decode(val)
}

// GetFirst resolves the filter through the indexes.
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

// Query returns every record matching the filter.
func (r *Repository) Query(ctx context.Context, filter ports.ExecutionFilter, order ...ports.OrderBy) ([]*domain.Execution, error) {
	var ids []string
	switch {
	case filter.LiveActionID != "":
		id, err := r.client.HGet(ctx, r.liveActionKey(), filter.LiveActionID).Result()
		if err != nil && !errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("failed to read liveaction index: %w", err)
		}
		if id != "" {
			ids = []string{id}
		}
	case filter.Parent != "":
		members, err := r.client.ZRange(ctx, r.childrenKey(filter.Parent), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read children index: %w", err)
		}
		ids = members
	default:
		members, err := r.client.ZRange(ctx, r.indexKey(), 0, -1).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read index: %w", err)
		}
		ids = members
	}

	res := make([]*domain.Execution, 0, len(ids))
	if len(ids) == 0 {
		return res, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.key(id)
	}
	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load executions: %w", err)
	}
	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue // index entry outlived its record
		}
		exec, err := decode(s)
		if err != nil {
			return nil, err
		}
		if filter.Matches(exec) {
			res = append(res, exec)
		}
	}

	ports.SortExecutions(res, order...)
	return res, nil
}

// Upsert writes the record and its index entries in one transaction.
func (r *Repository) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil || exec.ID == "" {
		return nil, domain.ErrInvalidExecution
	}
	stored := exec.Clone()
	if stored.Children == nil {
		stored.Children = []string{}
	}

	// Not atomic with the write; cross-process callers hold the Locker.
	old, err := r.Get(ctx, stored.ID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}
	stored.KeepLineage(old)

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution: %w", err)
	}

	score := float64(stored.StartTimestamp.UnixMilli())
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(stored.ID), data, 0)
	pipe.ZAdd(ctx, r.indexKey(), backend.Z{Score: score, Member: stored.ID})
	if stored.LiveAction.ID != "" {
		pipe.HSetNX(ctx, r.liveActionKey(), stored.LiveAction.ID, stored.ID)
	}
	if stored.Parent != "" {
		pipe.ZAdd(ctx, r.childrenKey(stored.Parent), backend.Z{Score: score, Member: stored.ID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save to redis: %w", err)
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

// Close closes the redis client.
func (r *Repository) Close() error {
	return r.client.Close()
}

func decode(val string) (*domain.Execution, error) {
	var exec domain.Execution
	if err := json.Unmarshal([]byte(val), &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	if exec.Children == nil {
		exec.Children = []string{}
	}
	return &exec, nil
}
