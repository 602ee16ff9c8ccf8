package runtime_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/aretw0/chronicle/internal/runtime"
	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateExecution_Plain(t *testing.T) {
	repo := memory.NewRepository()
	engine := newEngine(t, repo)

	exec := mustCreate(t, engine, newLive("la-1", nil))

	assert.Equal(t, "exec-1", exec.ID)
	assert.Equal(t, "act-local", exec.Action.ID)
	assert.Equal(t, "run-local", exec.Runner.ID)
	assert.Equal(t, domain.LiveActionStatusRunning, exec.Status)
	assert.Equal(t, "uptime", exec.Parameters["cmd"])
	assert.Equal(t, domain.LiveActionRef{
		ID:         "la-1",
		Action:     "core.local",
		Callback:   map[string]any{"source": "workflow"},
		RunnerInfo: map[string]any{"hostname": "worker-1"},
	}, exec.LiveAction)

	assert.Empty(t, exec.Parent)
	assert.Empty(t, exec.Children)
	assert.Nil(t, exec.Rule)
	assert.Nil(t, exec.Event)
	assert.Nil(t, exec.EventInstance)
	assert.Nil(t, exec.EventType)

	stored := mustGet(t, repo, exec.ID)
	assert.Equal(t, exec, stored)
}

func TestCreateExecution_FatalMisses(t *testing.T) {
	tests := []struct {
		name   string
		action string
		kind   string
	}{
		{name: "Unknown Action", action: "core.nope", kind: "action"},
		{name: "Malformed Action Ref", action: "nodot", kind: "action"},
		{name: "Unknown Runner", action: "core.orphan", kind: "runner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := memory.NewRepository()
			engine := newEngine(t, repo)
			live := newLive("la-1", nil)
			live.Action = tt.action

			exec, err := engine.CreateExecution(context.Background(), live, false)
			require.Error(t, err)
			assert.Nil(t, exec)
			assert.True(t, domain.IsNotFound(err))

			var nf *domain.NotFoundError
			require.ErrorAs(t, err, &nf)
			assert.Equal(t, tt.kind, nf.Kind)
			assert.Equal(t, 0, repo.Len(), "nothing may be persisted")
		})
	}
}

func TestCreateExecution_NilLiveAction(t *testing.T) {
	_, err := newEngine(t, nil).CreateExecution(context.Background(), nil, false)
	assert.ErrorIs(t, err, domain.ErrInvalidExecution)
}

func TestCreateExecution_RuleEnrichment(t *testing.T) {
	tests := []struct {
		name    string
		payload any
		want    string
	}{
		{name: "By ID", payload: map[string]any{"id": "rule-restart"}, want: "rule-restart"},
		{name: "By Pack And Name", payload: map[string]any{"pack": "ops", "name": "restart"}, want: "rule-restart"},
		{name: "By Ref String", payload: "ops.restart", want: "rule-restart"},
		{name: "Missing Rule Tolerated", payload: map[string]any{"id": "rule-gone"}},
		{name: "Undecodable Payload Tolerated", payload: []any{"not", "a", "ref"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var skipped []*domain.EnrichmentEvent
			engine := newEngine(t, nil, runtime.WithLifecycleHooks(domain.LifecycleHooks{
				OnEnrichmentSkipped: func(_ context.Context, ev *domain.EnrichmentEvent) {
					skipped = append(skipped, ev)
				},
			}))

			exec := mustCreate(t, engine, newLive("la-1", map[string]any{domain.ContextKeyRule: tt.payload}))

			if tt.want == "" {
				assert.Nil(t, exec.Rule)
				require.Len(t, skipped, 1)
				assert.Equal(t, domain.EnrichmentRule, skipped[0].Enrichment)
				assert.Error(t, skipped[0].Err)
				return
			}
			require.NotNil(t, exec.Rule)
			assert.Equal(t, tt.want, exec.Rule.ID)
			assert.Empty(t, skipped)
		})
	}
}

func TestCreateExecution_EventChain(t *testing.T) {
	tests := []struct {
		name     string
		instance string
		complete bool
		missing  string
	}{
		{name: "Complete Chain", instance: "inst-1", complete: true},
		{name: "Unknown Instance", instance: "inst-gone", missing: "inst-gone"},
		{name: "Instance Without Event", instance: "inst-no-event", missing: "core.deleted"},
		{name: "Event Without Type", instance: "inst-no-type", missing: "core.gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var skipped []*domain.EnrichmentEvent
			engine := newEngine(t, nil, runtime.WithLifecycleHooks(domain.LifecycleHooks{
				OnEnrichmentSkipped: func(_ context.Context, ev *domain.EnrichmentEvent) {
					skipped = append(skipped, ev)
				},
			}))
			live := newLive("la-1", map[string]any{
				domain.ContextKeyEventInstance: map[string]any{"id": tt.instance},
			})

			exec := mustCreate(t, engine, live)

			if tt.complete {
				require.NotNil(t, exec.EventInstance)
				assert.Equal(t, "inst-1", exec.EventInstance.ID)
				assert.Equal(t, "ev-webhook", exec.Event.ID)
				assert.Equal(t, "et-http", exec.EventType.ID)
				assert.Empty(t, skipped)
				return
			}
			assert.Nil(t, exec.EventInstance, "partial chains are never embedded")
			assert.Nil(t, exec.Event)
			assert.Nil(t, exec.EventType)
			require.Len(t, skipped, 1)
			assert.Equal(t, domain.EnrichmentEventChain, skipped[0].Enrichment)
			assert.Equal(t, tt.missing, skipped[0].Reference)
		})
	}
}

func TestCreateExecution_ParentLinking(t *testing.T) {
	repo := memory.NewRepository()
	engine := newEngine(t, repo)

	parent := mustCreate(t, engine, newLive("la-parent", nil))
	child := mustCreate(t, engine, newLive("la-child", map[string]any{domain.ContextKeyParent: "la-parent"}))

	assert.Equal(t, parent.ID, child.Parent)
	assert.Equal(t, []string{child.ID}, mustGet(t, repo, parent.ID).Children)
}

func TestCreateExecution_ParentPayloadMap(t *testing.T) {
	repo := memory.NewRepository()
	engine := newEngine(t, repo)

	parent := mustCreate(t, engine, newLive("la-parent", nil))
	child := mustCreate(t, engine, newLive("la-child", map[string]any{
		domain.ContextKeyParent: map[string]any{"id": "la-parent"},
	}))

	assert.Equal(t, parent.ID, child.Parent)
}

func TestCreateExecution_MissingParentTolerated(t *testing.T) {
	var skipped []*domain.EnrichmentEvent
	engine := newEngine(t, nil, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnEnrichmentSkipped: func(_ context.Context, ev *domain.EnrichmentEvent) {
			skipped = append(skipped, ev)
		},
	}))

	exec := mustCreate(t, engine, newLive("la-child", map[string]any{domain.ContextKeyParent: "la-ghost"}))

	assert.Empty(t, exec.Parent)
	require.Len(t, skipped, 1)
	assert.Equal(t, domain.EnrichmentParent, skipped[0].Enrichment)
	assert.True(t, domain.IsNotFound(skipped[0].Err))
}

func TestCreateExecution_SequentialChildrenKeepOrder(t *testing.T) {
	repo := memory.NewRepository()
	engine := newEngine(t, repo)

	parent := mustCreate(t, engine, newLive("la-p", nil))
	c1 := mustCreate(t, engine, newLive("la-c1", map[string]any{"parent": "la-p"}))
	c2 := mustCreate(t, engine, newLive("la-c2", map[string]any{"parent": "la-p"}))

	assert.Equal(t, []string{c1.ID, c2.ID}, mustGet(t, repo, parent.ID).Children)
}

func TestCreateExecution_ConcurrentChildren(t *testing.T) {
	for name, repo := range map[string]ports.ExecutionRepository{
		"Atomic Appender": memory.NewRepository(),
		"Locked Path":     plainRepo{memory.NewRepository()},
	} {
		t.Run(name, func(t *testing.T) {
			engine := newEngine(t, repo)
			parent := mustCreate(t, engine, newLive("la-p", nil))

			const n = 25
			created := make(chan string, n)
			var wg sync.WaitGroup
			for i := range n {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					exec, err := engine.CreateExecution(context.Background(),
						newLive(fmt.Sprintf("la-c%d", i), map[string]any{"parent": "la-p"}), false)
					if assert.NoError(t, err) {
						created <- exec.ID
					}
				}(i)
			}
			wg.Wait()
			close(created)

			var want []string
			for id := range created {
				want = append(want, id)
			}
			assert.ElementsMatch(t, want, mustGet(t, repo, parent.ID).Children)
		})
	}
}

func TestCreateExecution_RepeatedChildIDLinkedOnce(t *testing.T) {
	for name, repo := range map[string]ports.ExecutionRepository{
		"Atomic Appender": memory.NewRepository(),
		"Locked Path":     plainRepo{memory.NewRepository()},
	} {
		t.Run(name, func(t *testing.T) {
			engine := newEngine(t, repo, runtime.WithIDGenerator(&fixedIDs{ids: []string{"exec-parent", "exec-child"}}))
			parent := mustCreate(t, engine, newLive("la-p", nil))

			first := mustCreate(t, engine, newLive("la-c", map[string]any{"parent": "la-p"}))
			second := mustCreate(t, engine, newLive("la-c", map[string]any{"parent": "la-p"}))

			assert.Equal(t, "exec-child", first.ID)
			assert.Equal(t, first.ID, second.ID)
			assert.Equal(t, parent.ID, second.Parent)
			assert.Equal(t, []string{"exec-child"}, mustGet(t, repo, parent.ID).Children)
		})
	}
}

func TestLinkChild_Idempotent(t *testing.T) {
	repo := memory.NewRepository()
	engine := newEngine(t, repo)
	ctx := context.Background()

	parent := mustCreate(t, engine, newLive("la-p", nil))
	child := mustCreate(t, engine, newLive("la-c", map[string]any{"parent": "la-p"}))

	changed, err := engine.LinkChild(ctx, parent.ID, child.ID, false)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, []string{child.ID}, mustGet(t, repo, parent.ID).Children)
}

func TestCreateExecution_PublishFollowsCaller(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	broker := memory.NewBroker()
	events, err := broker.Subscribe(ctx)
	require.NoError(t, err)
	repo := memory.NewRepository(memory.WithPublisher(broker))
	engine := newEngine(t, repo)

	_, err = engine.CreateExecution(ctx, newLive("la-p", nil), true)
	require.NoError(t, err)
	_, err = engine.CreateExecution(ctx, newLive("la-c", map[string]any{"parent": "la-p"}), true)
	require.NoError(t, err)
	_, err = engine.CreateExecution(ctx, newLive("la-quiet", map[string]any{"parent": "la-p"}), false)
	require.NoError(t, err)

	var kinds []domain.ChangeKind
	for range 3 {
		ev := <-events
		kinds = append(kinds, ev.Kind)
	}
	// parent created, child created, parent updated with the new child
	assert.Equal(t, []domain.ChangeKind{domain.ChangeCreated, domain.ChangeCreated, domain.ChangeUpdated}, kinds)

	select {
	case ev := <-events:
		t.Fatalf("unpublished write leaked an event: %+v", ev)
	default:
	}
}

func TestCreateExecution_CreatedHook(t *testing.T) {
	var got []*domain.ExecutionEvent
	engine := newEngine(t, nil, runtime.WithLifecycleHooks(domain.LifecycleHooks{
		OnExecutionCreated: func(_ context.Context, ev *domain.ExecutionEvent) {
			got = append(got, ev)
		},
	}))

	mustCreate(t, engine, newLive("la-p", nil))
	mustCreate(t, engine, newLive("la-c", map[string]any{"parent": "la-p"}))

	require.Len(t, got, 2)
	assert.Equal(t, "la-c", got[1].LiveActionID)
	assert.Equal(t, "exec-1", got[1].ParentID)
	require.NotNil(t, got[1].Diff)
	assert.Equal(t, domain.LiveActionStatusRunning, *got[1].Diff.Status)
}
