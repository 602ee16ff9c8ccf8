package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/chronicle/internal/runtime"
	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ids"
	"github.com/aretw0/chronicle/pkg/ports"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// plainRepo hides the ChildAppender capability of the wrapped repository.
type plainRepo struct {
	ports.ExecutionRepository
}

// fixedIDs hands out the listed ids in order, repeating the last one.
type fixedIDs struct {
	mu  sync.Mutex
	ids []string
}

func (f *fixedIDs) NewID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.ids[0]
	if len(f.ids) > 1 {
		f.ids = f.ids[1:]
	}
	return id
}

func newCatalog() *memory.Catalog {
	return memory.NewCatalog().
		AddActions(
			domain.Action{ID: "act-local", Pack: "core", Name: "local", RunnerType: "local-shell-cmd", Enabled: true},
			domain.Action{ID: "act-orphan", Pack: "core", Name: "orphan", RunnerType: "retired-runner"},
		).
		AddRunners(domain.Runner{ID: "run-local", Name: "local-shell-cmd", Enabled: true}).
		AddRules(domain.Rule{ID: "rule-restart", Pack: "ops", Name: "restart", Event: "core.webhook", Action: "core.local"}).
		AddEvents(
			domain.Event{ID: "ev-webhook", Pack: "core", Name: "webhook", Type: "core.http_request"},
			domain.Event{ID: "ev-untyped", Pack: "core", Name: "untyped", Type: "core.gone"},
		).
		AddEventTypes(domain.EventType{ID: "et-http", Pack: "core", Name: "http_request"}).
		AddEventInstances(
			domain.EventInstance{ID: "inst-1", Event: "core.webhook", Payload: map[string]any{"path": "/hook"}},
			domain.EventInstance{ID: "inst-no-event", Event: "core.deleted"},
			domain.EventInstance{ID: "inst-no-type", Event: "core.untyped"},
		)
}

func newEngine(t *testing.T, repo ports.ExecutionRepository, opts ...runtime.EngineOption) *runtime.Engine {
	t.Helper()
	if repo == nil {
		repo = memory.NewRepository()
	}
	opts = append([]runtime.EngineOption{runtime.WithIDGenerator(ids.NewSequenceGenerator("exec"))}, opts...)
	return runtime.NewEngine(repo, newCatalog(), opts...)
}

func newLive(id string, context map[string]any) *domain.LiveAction {
	return &domain.LiveAction{
		ID:             id,
		Status:         domain.LiveActionStatusRunning,
		Action:         "core.local",
		Parameters:     map[string]any{"cmd": "uptime"},
		Context:        context,
		StartTimestamp: t0,
		Callback:       map[string]any{"source": "workflow"},
		RunnerInfo:     map[string]any{"hostname": "worker-1"},
	}
}

func mustCreate(t *testing.T, e *runtime.Engine, live *domain.LiveAction) *domain.Execution {
	t.Helper()
	exec, err := e.CreateExecution(context.Background(), live, false)
	require.NoError(t, err)
	return exec
}

func mustGet(t *testing.T, repo ports.ExecutionRepository, id string) *domain.Execution {
	t.Helper()
	exec, err := repo.Get(context.Background(), id)
	require.NoError(t, err)
	return exec
}
