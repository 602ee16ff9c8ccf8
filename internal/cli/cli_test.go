package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/chronicle/internal/config"
	"github.com/aretw0/chronicle/internal/logging"
	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/persistence/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func baseConfig() config.Config {
	return config.Config{
		Backend:     config.BackendMemory,
		RedisPrefix: "chronicle:",
		LockTTL:     time.Second,
		Catalog:     filepath.Join("..", "..", "pkg", "adapters", "file", "testdata", "catalog.yaml"),
	}
}

func liveAction(id, parentLiveID string, offset time.Duration) *domain.LiveAction {
	live := &domain.LiveAction{
		ID:             id,
		Action:         "core.local",
		Status:         domain.LiveActionStatusRunning,
		StartTimestamp: t0.Add(offset),
	}
	if parentLiveID != "" {
		live.Context = map[string]any{domain.ContextKeyParent: parentLiveID}
	}
	return live
}

func TestBuildRuntime_Backends(t *testing.T) {
	mr := miniredis.RunT(t)

	cases := map[string]func(*config.Config){
		config.BackendMemory: func(*config.Config) {},
		config.BackendFile: func(c *config.Config) {
			c.FileDir = filepath.Join(t.TempDir(), "executions")
		},
		config.BackendSQLite: func(c *config.Config) {
			c.SQLitePath = filepath.Join(t.TempDir(), "chronicle.db")
		},
		config.BackendRedis: func(c *config.Config) {
			c.RedisAddr = mr.Addr()
		},
	}

	for backend, tweak := range cases {
		t.Run(backend, func(t *testing.T) {
			cfg := baseConfig()
			cfg.Backend = backend
			tweak(&cfg)

			rt, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
			require.NoError(t, err)
			defer rt.Close()

			ctx := context.Background()
			root, err := rt.Service.CreateExecution(ctx, liveAction("la-root", "", 0), true)
			require.NoError(t, err)
			child, err := rt.Service.CreateExecution(ctx, liveAction("la-child", "la-root", time.Second), true)
			require.NoError(t, err)

			descendants, err := rt.Service.GetDescendants(ctx, root.ID, domain.Unbounded, domain.OrderDefault)
			require.NoError(t, err)
			require.Len(t, descendants, 1)
			assert.Equal(t, child.ID, descendants[0].ID)
			assert.NotNil(t, rt.Subscriber)
		})
	}
}

func TestBuildRuntime_Errors(t *testing.T) {
	t.Run("Invalid config", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Backend = "mongo"
		_, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
		assert.ErrorContains(t, err, "unknown backend")
	})

	t.Run("Missing catalog", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Catalog = filepath.Join(t.TempDir(), "nope.yaml")
		_, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
		assert.ErrorContains(t, err, "load catalog")
	})

	t.Run("Unreachable redis", func(t *testing.T) {
		cfg := baseConfig()
		cfg.Backend = config.BackendRedis
		cfg.RedisAddr = "127.0.0.1:1"
		_, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
		assert.ErrorContains(t, err, "connect redis")
	})

	t.Run("Bad mask pattern", func(t *testing.T) {
		cfg := baseConfig()
		cfg.MaskPatterns = []string{"("}
		_, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
		assert.ErrorContains(t, err, "masking middleware")
	})
}

func TestBuildRuntime_MaskThenEncrypt(t *testing.T) {
	cfg := baseConfig()
	cfg.MaskPatterns = []string{"password"}
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString(make([]byte, 32))

	rt, err := BuildRuntime(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	live := liveAction("la-secret", "", 0)
	live.Parameters = map[string]any{"password": "hunter2", "host": "db"}
	exec, err := rt.Service.CreateExecution(context.Background(), live, false)
	require.NoError(t, err)

	got, err := rt.Service.GetExecution(context.Background(), exec.ID)
	require.NoError(t, err)
	assert.Equal(t, middleware.MaskedValue, got.Parameters["password"])
	assert.Equal(t, "db", got.Parameters["host"])
}

func TestBuildRuntime_Catalog(t *testing.T) {
	rt, err := BuildRuntime(context.Background(), baseConfig(), logging.NewNop())
	require.NoError(t, err)

	action, err := rt.Service.Catalog().Actions().GetByRef(context.Background(), domain.ResourceRef{Pack: "core", Name: "local"})
	require.NoError(t, err)
	assert.Equal(t, "action-local", action.ID)

	exec, err := rt.Service.CreateExecution(context.Background(), liveAction("la-1", "", 0), false)
	require.NoError(t, err)
	assert.Equal(t, "local-shell-cmd", exec.Runner.Name)
}

func TestRecord(t *testing.T) {
	rt, err := BuildRuntime(context.Background(), baseConfig(), logging.NewNop())
	require.NoError(t, err)
	ctx := context.Background()

	input := `[
		{"id": "la-1", "action": "core.local", "status": "running", "start_timestamp": "2024-03-01T09:00:00Z"},
		{"id": "la-2", "action": "core.local", "status": "running", "start_timestamp": "2024-03-01T09:00:01Z"}
	]`
	lives, err := ReadLiveActions(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, lives, 2)

	results, err := Record(ctx, rt.Service, lives, ModeAuto, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeCreated, results[0].Change)
	assert.Equal(t, domain.ChangeCreated, results[1].Change)

	done, err := ReadLiveActions(strings.NewReader(`{"id": "la-1", "action": "core.local", "status": "succeeded"}`))
	require.NoError(t, err)
	results, err = Record(ctx, rt.Service, done, ModeAuto, true)
	require.NoError(t, err)
	assert.Equal(t, domain.ChangeUpdated, results[0].Change)
	assert.False(t, rt.Service.IsExecutionCanceled(ctx, results[0].ExecutionID))

	t.Run("Update of unknown live action fails", func(t *testing.T) {
		missing := []*domain.LiveAction{{ID: "la-missing", Action: "core.local"}}
		results, err := Record(ctx, rt.Service, missing, ModeUpdate, false)
		assert.ErrorContains(t, err, "1 of 1 live actions failed")
		assert.NotEmpty(t, results[0].Error)
	})

	t.Run("Unknown mode", func(t *testing.T) {
		_, err := Record(ctx, rt.Service, lives, "upsert", false)
		assert.Error(t, err)
	})
}

func TestReadLiveActions_Invalid(t *testing.T) {
	_, err := ReadLiveActions(strings.NewReader("   "))
	assert.ErrorContains(t, err, "empty input")

	_, err = ReadLiveActions(strings.NewReader("{not json"))
	assert.Error(t, err)
}

func TestWatch(t *testing.T) {
	broker := memory.NewBroker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buf := &syncBuffer{}
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, broker, buf, WatchOptions{ExecutionID: "exec-1", Kinds: []domain.ChangeKind{domain.ChangeUpdated}})
	}()
	require.Eventually(t, func() bool { return broker.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	before := &domain.Execution{ID: "exec-1", Status: domain.LiveActionStatusRunning}
	after := before.Clone()
	after.Status = domain.LiveActionStatusSucceeded
	after.Children = []string{"exec-2"}

	require.NoError(t, broker.Publish(ctx, domain.NewChangeEvent(nil, before)))
	require.NoError(t, broker.Publish(ctx, domain.NewChangeEvent(nil, &domain.Execution{ID: "exec-9"})))
	require.NoError(t, broker.Publish(ctx, domain.NewChangeEvent(before, after)))
	require.Eventually(t, func() bool { return strings.Contains(buf.String(), "exec-1") }, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	out := buf.String()
	assert.NotContains(t, out, "exec-9")
	assert.NotContains(t, out, "created")
	assert.Contains(t, out, "status->succeeded")
	assert.Contains(t, out, "+children=exec-2")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestParseKinds(t *testing.T) {
	kinds, err := ParseKinds("created, updated")
	require.NoError(t, err)
	assert.Equal(t, []domain.ChangeKind{domain.ChangeCreated, domain.ChangeUpdated}, kinds)

	kinds, err = ParseKinds("")
	require.NoError(t, err)
	assert.Nil(t, kinds)

	_, err = ParseKinds("deleted")
	assert.Error(t, err)
}

func TestWriteLineage(t *testing.T) {
	root := &domain.Execution{ID: "R", StartTimestamp: t0}
	child := &domain.Execution{ID: "C", Parent: "R", StartTimestamp: t0.Add(time.Second), Children: []string{}}

	var buf bytes.Buffer
	require.NoError(t, WriteLineage(&buf, FormatMermaid, root, []*domain.Execution{child}, nil))
	assert.Contains(t, buf.String(), "R --> C")

	buf.Reset()
	require.NoError(t, WriteLineage(&buf, FormatTree, root, []*domain.Execution{child}, func(md string) (string, error) {
		return strings.ToUpper(md), nil
	}))
	assert.Contains(t, buf.String(), "# LINEAGE OF R")

	buf.Reset()
	require.NoError(t, WriteLineage(&buf, FormatJSON, root, []*domain.Execution{child}, nil))
	assert.Contains(t, buf.String(), `"id": "C"`)

	_, err := ParseFormat("dot")
	assert.Error(t, err)
}
