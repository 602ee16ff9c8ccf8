package ports

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunExecutionRepositoryContract runs a suite of tests to verify that an ExecutionRepository
// implementation adheres to the defined interface contract.
// If the repository also implements ChildAppender, the append contract is checked too.
func RunExecutionRepositoryContract(t *testing.T, repo ExecutionRepository) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405.000000000")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	newExec := func(suffix, parent string, offset time.Duration) *domain.Execution {
		return &domain.Execution{
			ID:             prefix + "-" + suffix,
			Status:         domain.LiveActionStatusRunning,
			LiveAction:     domain.LiveActionRef{ID: prefix + "-la-" + suffix, Action: "core.local"},
			Parameters:     map[string]any{"cmd": "echo " + suffix},
			StartTimestamp: base.Add(offset),
			Parent:         parent,
			Children:       []string{},
		}
	}

	t.Run("Upsert and Get", func(t *testing.T) {
		exec := newExec("get", "", 0)
		exec.Result = map[string]any{"stdout": "ok"}

		stored, err := repo.Upsert(ctx, exec, false)
		require.NoError(t, err, "Upsert should not return error")
		assert.Equal(t, exec.ID, stored.ID)

		loaded, err := repo.Get(ctx, exec.ID)
		require.NoError(t, err, "Get should not return error")
		assert.Equal(t, exec.LiveAction.ID, loaded.LiveAction.ID)
		assert.Equal(t, domain.LiveActionStatusRunning, loaded.Status)
		assert.Equal(t, "ok", loaded.Result["stdout"])
		assert.True(t, exec.StartTimestamp.Equal(loaded.StartTimestamp))
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := repo.Get(ctx, prefix+"-missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Upsert Replaces", func(t *testing.T) {
		exec := newExec("replace", "", 0)
		_, err := repo.Upsert(ctx, exec, false)
		require.NoError(t, err)

		exec.Status = domain.LiveActionStatusSucceeded
		_, err = repo.Upsert(ctx, exec, false)
		require.NoError(t, err)

		loaded, err := repo.Get(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.LiveActionStatusSucceeded, loaded.Status)
	})

	t.Run("Upsert Keeps Stored Lineage", func(t *testing.T) {
		exec := newExec("lineage", prefix+"-owner", 0)
		exec.Children = []string{"c1", "c2"}
		_, err := repo.Upsert(ctx, exec, false)
		require.NoError(t, err)

		stale := newExec("lineage", "", 0)
		stale.Children = []string{"c3"}
		stale.Status = domain.LiveActionStatusSucceeded
		_, err = repo.Upsert(ctx, stale, false)
		require.NoError(t, err)

		loaded, err := repo.Get(ctx, exec.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1", "c2", "c3"}, loaded.Children)
		assert.Equal(t, prefix+"-owner", loaded.Parent)
		assert.Equal(t, domain.LiveActionStatusSucceeded, loaded.Status)
	})

	t.Run("Returned Records Are Detached", func(t *testing.T) {
		exec := newExec("detached", "", 0)
		_, err := repo.Upsert(ctx, exec, false)
		require.NoError(t, err)

		loaded, err := repo.Get(ctx, exec.ID)
		require.NoError(t, err)
		loaded.Children = append(loaded.Children, "mutated")
		loaded.Parameters["cmd"] = "mutated"

		again, err := repo.Get(ctx, exec.ID)
		require.NoError(t, err)
		assert.Empty(t, again.Children)
		assert.Equal(t, "echo detached", again.Parameters["cmd"])
	})

	t.Run("GetFirst By LiveAction", func(t *testing.T) {
		exec := newExec("first", "", 0)
		_, err := repo.Upsert(ctx, exec, false)
		require.NoError(t, err)

		found, err := repo.GetFirst(ctx, ExecutionFilter{LiveActionID: exec.LiveAction.ID})
		require.NoError(t, err)
		assert.Equal(t, exec.ID, found.ID)

		_, err = repo.GetFirst(ctx, ExecutionFilter{LiveActionID: prefix + "-la-missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Query By Parent Ordered", func(t *testing.T) {
		parent := prefix + "-parent"
		late := newExec("late", parent, 3*time.Second)
		early := newExec("early", parent, 1*time.Second)
		mid := newExec("mid", parent, 2*time.Second)
		other := newExec("other", prefix+"-other-parent", 0)
		for _, e := range []*domain.Execution{late, early, mid, other} {
			_, err := repo.Upsert(ctx, e, false)
			require.NoError(t, err)
		}

		children, err := repo.Query(ctx, ExecutionFilter{Parent: parent}, ByStartTimestamp)
		require.NoError(t, err)
		require.Len(t, children, 3)
		assert.Equal(t, []string{early.ID, mid.ID, late.ID},
			[]string{children[0].ID, children[1].ID, children[2].ID})

		desc, err := repo.Query(ctx, ExecutionFilter{Parent: parent}, OrderBy{Field: SortByStartTimestamp, Descending: true})
		require.NoError(t, err)
		require.Len(t, desc, 3)
		assert.Equal(t, late.ID, desc[0].ID)
	})

	t.Run("Query Empty", func(t *testing.T) {
		res, err := repo.Query(ctx, ExecutionFilter{Parent: prefix + "-nobody"}, ByStartTimestamp)
		require.NoError(t, err)
		assert.NotNil(t, res)
		assert.Empty(t, res)
	})

	appender, ok := repo.(ChildAppender)
	if !ok {
		return
	}

	t.Run("AppendChild Idempotent", func(t *testing.T) {
		parent := newExec("append-parent", "", 0)
		_, err := repo.Upsert(ctx, parent, false)
		require.NoError(t, err)

		changed, err := appender.AppendChild(ctx, parent.ID, "c1", false)
		require.NoError(t, err)
		assert.True(t, changed)

		changed, err = appender.AppendChild(ctx, parent.ID, "c1", false)
		require.NoError(t, err)
		assert.False(t, changed, "second append of the same child is a no-op")

		loaded, err := repo.Get(ctx, parent.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{"c1"}, loaded.Children)
	})

	t.Run("AppendChild Missing Parent", func(t *testing.T) {
		_, err := appender.AppendChild(ctx, prefix+"-ghost", "c1", false)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("AppendChild Concurrent", func(t *testing.T) {
		parent := newExec("append-concurrent", "", 0)
		_, err := repo.Upsert(ctx, parent, false)
		require.NoError(t, err)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := range n {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if _, err := appender.AppendChild(ctx, parent.ID, fmt.Sprintf("child-%02d", i), false); err != nil {
					errs <- err
				}
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		loaded, err := repo.Get(ctx, parent.ID)
		require.NoError(t, err)
		assert.Len(t, loaded.Children, n, "no append may be lost")
	})
}
