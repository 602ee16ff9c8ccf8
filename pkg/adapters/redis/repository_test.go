package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/chronicle/pkg/adapters/redis"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisRepository_Contract(t *testing.T) {
	_, client := newClient(t)

	repo := redis.NewFromClient(client)
	ports.RunExecutionRepositoryContract(t, repo)
}

func TestRedisRepository_Keys(t *testing.T) {
	mr, client := newClient(t)
	repo := redis.NewFromClient(client, redis.WithPrefix("test:"))
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &domain.Execution{
		ID:             "ex-1",
		Parent:         "ex-0",
		LiveAction:     domain.LiveActionRef{ID: "la-1"},
		StartTimestamp: time.UnixMilli(1700000000000),
	}, false)
	require.NoError(t, err)

	assert.True(t, mr.Exists("test:execution:ex-1"))
	assert.Equal(t, "ex-1", mr.HGet("test:liveaction", "la-1"))

	members, err := mr.ZMembers("test:children:ex-0")
	require.NoError(t, err)
	assert.Equal(t, []string{"ex-1"}, members)

	score, err := mr.ZScore("test:index", "ex-1")
	require.NoError(t, err)
	assert.Equal(t, float64(1700000000000), score)
}

func TestRedisRepository_FirstLiveActionWins(t *testing.T) {
	_, client := newClient(t)
	repo := redis.NewFromClient(client)
	ctx := context.Background()

	for _, id := range []string{"ex-first", "ex-second"} {
		_, err := repo.Upsert(ctx, &domain.Execution{ID: id, LiveAction: domain.LiveActionRef{ID: "la-dup"}}, false)
		require.NoError(t, err)
	}

	found, err := repo.GetFirst(ctx, ports.ExecutionFilter{LiveActionID: "la-dup"})
	require.NoError(t, err)
	assert.Equal(t, "ex-first", found.ID)
}

func TestRedisRepository_SkipsDanglingIndexEntries(t *testing.T) {
	mr, client := newClient(t)
	repo := redis.NewFromClient(client)
	ctx := context.Background()

	_, err := repo.Upsert(ctx, &domain.Execution{ID: "ex-1", Parent: "p"}, false)
	require.NoError(t, err)
	mr.Del("chronicle:execution:ex-1")

	res, err := repo.Query(ctx, ports.ExecutionFilter{Parent: "p"})
	require.NoError(t, err)
	assert.Empty(t, res)
}
