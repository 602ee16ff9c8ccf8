package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Publisher implements ports.Publisher and ports.Subscriber over Redis pub/sub.
type Publisher struct {
	client  *backend.Client
	channel string
	logger  *slog.Logger
}

// NewPublisher creates a publisher on <prefix>events.
func NewPublisher(client *backend.Client, prefix string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		client:  client,
		channel: prefix + "events",
		logger:  logger,
	}
}

// Channel returns the pub/sub channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish sends the event as JSON.
func (p *Publisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to redis: %w", err)
	}
	return nil
}

// Subscribe streams decoded events until ctx is done.
// Messages that fail to decode are logged and skipped.
func (p *Publisher) Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error) {
	sub := p.client.Subscribe(ctx, p.channel)
	// Wait for the confirmation so no event published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan domain.ChangeEvent)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					p.logger.Warn("Dropping undecodable change event", "err", err)
					continue
				}
				select {
				case out <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
