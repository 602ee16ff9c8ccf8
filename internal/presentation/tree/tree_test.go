package tree_test

import (
	"testing"
	"time"

	"github.com/aretw0/chronicle/internal/presentation/tree"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func exec(id, parent, action string, status domain.LiveActionStatus, offset time.Duration) *domain.Execution {
	return &domain.Execution{
		ID:             id,
		Parent:         parent,
		LiveAction:     domain.LiveActionRef{ID: "la-" + id, Action: action},
		Status:         status,
		StartTimestamp: t0.Add(offset),
	}
}

func fixture() (*domain.Execution, []*domain.Execution) {
	root := exec("R", "", "core.local", domain.LiveActionStatusSucceeded, 0)
	return root, []*domain.Execution{
		exec("C1", "R", "core.http", domain.LiveActionStatusFailed, time.Second),
		exec("G1", "C1", "core.local", domain.LiveActionStatusCanceled, 3*time.Second),
		exec("C2", "R", "core.noop", domain.LiveActionStatusRunning, 2*time.Second),
	}
}

func TestBuild(t *testing.T) {
	root, descendants := fixture()
	top := tree.Build(root, descendants)

	require.Len(t, top.Children, 2)
	assert.Equal(t, "C1", top.Children[0].Execution.ID)
	assert.Equal(t, "C2", top.Children[1].Execution.ID)
	require.Len(t, top.Children[0].Children, 1)
	assert.Equal(t, "G1", top.Children[0].Children[0].Execution.ID)
	assert.Equal(t, 3, top.Size())
}

func TestBuild_SortedInput(t *testing.T) {
	root, descendants := fixture()
	sorted := domain.OrderSorted.Arrange(descendants)

	top := tree.Build(root, sorted)
	require.Len(t, top.Children, 2)
	assert.Equal(t, "G1", top.Children[0].Children[0].Execution.ID, "nesting follows parent ids, not input order")
}

func TestBuild_OrphanHangsUnderRoot(t *testing.T) {
	root := exec("R", "", "", "", 0)
	top := tree.Build(root, []*domain.Execution{exec("X", "elsewhere", "", "", 0)})
	require.Len(t, top.Children, 1)
	assert.Equal(t, "X", top.Children[0].Execution.ID)
}

func TestMarkdown(t *testing.T) {
	root, descendants := fixture()
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, "lineage", []byte(tree.Markdown(tree.Build(root, descendants))))
}

func TestMarkdown_Leaf(t *testing.T) {
	out := tree.Markdown(tree.Build(exec("L", "", "", "", 0), nil))
	assert.Contains(t, out, "- **L** 2024-03-01T09:00:00Z\n")
	assert.Contains(t, out, "0 descendants")
}
