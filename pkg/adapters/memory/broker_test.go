package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroker_FanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.NewBroker()
	a, err := b.Subscribe(ctx)
	require.NoError(t, err)
	c, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.ChangeEvent{ExecutionID: "ex-1"}))

	assert.Equal(t, "ex-1", drain(t, a, 1)[0].ExecutionID)
	assert.Equal(t, "ex-1", drain(t, c, 1)[0].ExecutionID)
}

func TestBroker_DropsWhenFull(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := memory.NewBroker(memory.WithBuffer(1))
	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, domain.ChangeEvent{ExecutionID: "first"}))
	require.NoError(t, b.Publish(ctx, domain.ChangeEvent{ExecutionID: "second"}))

	assert.Equal(t, "first", drain(t, ch, 1)[0].ExecutionID)
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %s", ev.ExecutionID)
	default:
	}
}

func TestBroker_UnsubscribeOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := memory.NewBroker()

	ch, err := b.Subscribe(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "channel closes after cancel")
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Equal(t, 0, b.Subscribers())
}
