package reference_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/chronicle/pkg/adapters/memory"
	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingLookup struct{}

func (failingLookup) GetByID(context.Context, string) (*domain.Rule, error) {
	return nil, errors.New("backend down")
}

func (failingLookup) GetByRef(context.Context, domain.ResourceRef) (*domain.Rule, error) {
	return nil, errors.New("backend down")
}

func TestResolveByRef(t *testing.T) {
	ctx := context.Background()
	rules := memory.NewLookup("rule",
		domain.Rule{ID: "rule-1", Pack: "ops", Name: "restart"},
		domain.Rule{ID: "rule-2", Pack: "ops", Name: "notify"},
	)

	tests := []struct {
		name    string
		payload domain.Reference
		wantID  string
	}{
		{name: "By ID", payload: domain.Reference{ID: "rule-1"}, wantID: "rule-1"},
		{name: "By Pack And Name", payload: domain.Reference{Pack: "ops", Name: "notify"}, wantID: "rule-2"},
		{name: "By Ref String", payload: domain.Reference{Ref: "ops.restart"}, wantID: "rule-1"},
		{name: "Stale ID Falls Back To Name", payload: domain.Reference{ID: "gone", Pack: "ops", Name: "notify"}, wantID: "rule-2"},
		{name: "ID Wins Over Name", payload: domain.Reference{ID: "rule-1", Pack: "ops", Name: "notify"}, wantID: "rule-1"},
		{name: "Unknown", payload: domain.Reference{Pack: "ops", Name: "missing"}},
		{name: "Empty", payload: domain.Reference{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := reference.ResolveByRef[domain.Rule](ctx, rules, tt.payload)
			if tt.wantID == "" {
				assert.False(t, ok)
				assert.Nil(t, got)
				return
			}
			require.True(t, ok)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestResolveByRef_SwallowsBackendErrors(t *testing.T) {
	got, ok := reference.ResolveByRef[domain.Rule](context.Background(), failingLookup{}, domain.Reference{ID: "x", Pack: "p", Name: "n"})
	assert.False(t, ok)
	assert.Nil(t, got)
}

func TestResolveByResourceRef(t *testing.T) {
	ctx := context.Background()
	events := memory.NewLookup("event", domain.Event{ID: "ev-1", Pack: "core", Name: "st2.webhook"})

	got, ok := reference.ResolveByResourceRef[domain.Event](ctx, events, "core.st2.webhook")
	require.True(t, ok)
	assert.Equal(t, "ev-1", got.ID)

	_, ok = reference.ResolveByResourceRef[domain.Event](ctx, events, "malformed")
	assert.False(t, ok)
}
