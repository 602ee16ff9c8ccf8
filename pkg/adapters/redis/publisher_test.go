package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chronicle/pkg/adapters/redis"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisPublisher_RoundTrip(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pub := redis.NewPublisher(client, "test:", nil)
	assert.Equal(t, "test:events", pub.Channel())

	events, err := pub.Subscribe(ctx)
	require.NoError(t, err)

	repo := redis.NewFromClient(client, redis.WithPrefix("test:"), redis.WithPublisher(pub))
	_, err = repo.Upsert(ctx, &domain.Execution{ID: "ex-1", Status: domain.LiveActionStatusRunning}, true)
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, &domain.Execution{ID: "ex-1", Status: domain.LiveActionStatusSucceeded}, true)
	require.NoError(t, err)

	var got []domain.ChangeEvent
	for len(got) < 2 {
		select {
		case ev := <-events:
			got = append(got, ev)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for events, got %d", len(got))
		}
	}

	assert.Equal(t, domain.ChangeCreated, got[0].Kind)
	assert.Equal(t, domain.ChangeUpdated, got[1].Kind)
	require.NotNil(t, got[1].Diff)
	assert.Equal(t, domain.LiveActionStatusSucceeded, *got[1].Diff.Status)
	assert.Equal(t, "ex-1", got[1].Execution.ID)
}

func TestRedisPublisher_ClosesOnCancel(t *testing.T) {
	_, client := newClient(t)
	ctx, cancel := context.WithCancel(context.Background())

	events, err := redis.NewPublisher(client, "test:", nil).Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-events:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription did not close")
	}
}
