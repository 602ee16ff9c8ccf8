// Package lineage maintains the parent/child links between execution records.
package lineage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/ports"
)

// ErrLockAcquire is returned when the distributed lock for a parent cannot be acquired.
var ErrLockAcquire = errors.New("failed to acquire distributed lock")

// DefaultLockTTL bounds how long a crashed holder can block a parent.
const DefaultLockTTL = 30 * time.Second

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Linker appends child ids to parent records exactly once.
//
// Repositories implementing ports.ChildAppender perform the append themselves.
// For the others the Linker serializes the read-modify-write per parent id: a
// local mutex covers this process and an optional DistributedLocker covers replicas.
// Unused local locks are garbage collected by reference counting.
type Linker struct {
	repo ports.ExecutionRepository

	mu    sync.Mutex
	locks map[string]*lockEntry

	locker ports.DistributedLocker
	ttl    time.Duration
	logger *slog.Logger
}

// Option configures the Linker.
type Option func(*Linker)

// WithLocker enables distributed locking.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(l *Linker) {
		l.locker = locker
	}
}

// WithLockTTL sets the distributed lock expiry.
func WithLockTTL(ttl time.Duration) Option {
	return func(l *Linker) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithLogger configures a logger for the Linker.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linker) {
		l.logger = logger
	}
}

// NewLinker creates a Linker over repo.
func NewLinker(repo ports.ExecutionRepository, opts ...Option) *Linker {
	l := &Linker{
		repo:   repo,
		locks:  make(map[string]*lockEntry),
		ttl:    DefaultLockTTL,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Link appends childID to the children of parentID unless already present.
// It reports whether the parent changed. Calling it again with the same pair is a no-op.
//
// The append runs under the parent's lock even when the repository appends
// atomically, so it serializes with other writers using WithLock on the same id.
func (l *Linker) Link(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	var changed bool
	err := l.WithLock(ctx, parentID, func(ctx context.Context) error {
		var err error
		changed, err = l.append(ctx, parentID, childID, publish)
		return err
	})
	return changed, err
}

func (l *Linker) append(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	if appender, ok := l.repo.(ports.ChildAppender); ok {
		return appender.AppendChild(ctx, parentID, childID, publish)
	}

	parent, err := l.repo.Get(ctx, parentID)
	if err != nil {
		return false, fmt.Errorf("failed to load parent: %w", err)
	}
	if !parent.AddChild(childID) {
		return false, nil
	}
	if _, err := l.repo.Upsert(ctx, parent, publish); err != nil {
		return false, fmt.Errorf("failed to save parent: %w", err)
	}
	return true, nil
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller MUST Lock the entry.mu, and then call release(key) after unlocking.
func (l *Linker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		entry = &lockEntry{}
		l.locks[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry if it reaches zero.
func (l *Linker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.locks[key]
	if !exists {
		return
	}
	entry.refs--
	if entry.refs <= 0 {
		delete(l.locks, key)
	}
}

// ActiveLocks returns the number of parents currently locked or awaited.
func (l *Linker) ActiveLocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// WithLock executes fn while holding the lock for key.
func (l *Linker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := l.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(key)
	}()

	if l.locker != nil {
		unlock, err := l.locker.Lock(ctx, key, l.ttl)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrLockAcquire, err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				l.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"parent_id", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
