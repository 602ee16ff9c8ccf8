package ports

import (
	"context"

	"github.com/aretw0/chronicle/pkg/domain"
)

// Publisher broadcasts repository change notifications.
type Publisher interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
}

// Subscriber delivers change notifications until ctx is done.
// The returned channel is closed when the subscription ends.
type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan domain.ChangeEvent, error)
}

// IDGenerator assigns ids to new execution records.
type IDGenerator interface {
	NewID() string
}
