package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRepository_Contract(t *testing.T) {
	repo := memory.NewRepository()
	ports.RunExecutionRepositoryContract(t, repo)
}

func TestMemoryRepository_PublishesChanges(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.NewBroker()
	events, err := broker.Subscribe(ctx)
	require.NoError(t, err)

	repo := memory.NewRepository(memory.WithPublisher(broker))

	exec := &domain.Execution{ID: "ex-1", Status: domain.LiveActionStatusRunning}
	_, err = repo.Upsert(ctx, exec, true)
	require.NoError(t, err)

	exec.Status = domain.LiveActionStatusSucceeded
	_, err = repo.Upsert(ctx, exec, true)
	require.NoError(t, err)

	// publish=false is silent
	_, err = repo.Upsert(ctx, exec, false)
	require.NoError(t, err)

	changed, err := repo.AppendChild(ctx, "ex-1", "ex-2", true)
	require.NoError(t, err)
	require.True(t, changed)

	got := drain(t, events, 3)
	assert.Equal(t, domain.ChangeCreated, got[0].Kind)
	assert.Equal(t, domain.ChangeUpdated, got[1].Kind)
	require.NotNil(t, got[1].Diff)
	assert.Equal(t, domain.LiveActionStatusSucceeded, *got[1].Diff.Status)
	assert.Equal(t, []string{"ex-2"}, got[2].Diff.ChildrenAppended)

	select {
	case extra := <-events:
		t.Fatalf("unexpected event: %+v", extra)
	default:
	}
}

func TestMemoryRepository_RejectsMissingID(t *testing.T) {
	repo := memory.NewRepository()
	_, err := repo.Upsert(context.Background(), &domain.Execution{}, false)
	assert.ErrorIs(t, err, domain.ErrInvalidExecution)
}

func drain(t *testing.T, ch <-chan domain.ChangeEvent, n int) []domain.ChangeEvent {
	t.Helper()
	out := make([]domain.ChangeEvent, 0, n)
	for len(out) < n {
		select {
		case ev := <-ch:
			out = append(out, ev)
		case <-time.After(time.Second):
			t.Fatalf("timed out after %d of %d events", len(out), n)
		}
	}
	return out
}
