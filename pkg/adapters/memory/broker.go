package memory

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
)

// Broker implements ports.Publisher and ports.Subscriber in process.
// Delivery is non-blocking: a subscriber whose buffer is full misses the event.
type Broker struct {
	mu          sync.RWMutex
	subscribers map[chan domain.ChangeEvent]struct{}
	buffer      int
	logger      *slog.Logger
}

// BrokerOption configures the Broker.
type BrokerOption func(*Broker)

// WithBuffer sets the per-subscriber channel capacity.
func WithBuffer(n int) BrokerOption {
	return func(b *Broker) {
		b.buffer = n
	}
}

// WithBrokerLogger configures a logger for dropped events.
func WithBrokerLogger(logger *slog.Logger) BrokerOption {
	return func(b *Broker) {
		b.logger = logger
	}
}

// NewBroker creates a new in-process broker.
func NewBroker(opts ...BrokerOption) *Broker {
	b := &Broker{
		subscribers: make(map[chan domain.ChangeEvent]struct{}),
		buffer:      16,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers event to every current subscriber.
func (b *Broker) Publish(ctx context.Context, event domain.ChangeEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop if the subscriber is not keeping up
			b.logger.Warn("Subscriber buffer full, dropping change event",
				"execution_id", event.ExecutionID,
				"kind", event.Kind,
			)
		}
	}
	return nil
}

// Subscribe registers a subscriber until ctx is done.
func (b *Broker) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	ch := make(chan domain.ChangeEvent, b.buffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subscribers, ch)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, nil
}

// Subscribers returns the number of active subscriptions.
func (b *Broker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
