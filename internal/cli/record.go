package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// Record modes.
const (
	ModeCreate = "create"
	ModeUpdate = "update"
	// ModeAuto updates the record of a known live action and creates one otherwise.
	ModeAuto = "auto"
)

// RecordResult reports what happened to one live action.
type RecordResult struct {
	LiveActionID string            `json:"liveaction_id"`
	ExecutionID  string            `json:"execution_id,omitempty"`
	Change       domain.ChangeKind `json:"change,omitempty"`
	Error        string            `json:"error,omitempty"`
}

// ReadLiveActions decodes a single live action object or an array of them.
func ReadLiveActions(r io.Reader) ([]*domain.LiveAction, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read live actions: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("read live actions: empty input")
	}

	if data[0] == '[' {
		var lives []*domain.LiveAction
		if err := json.Unmarshal(data, &lives); err != nil {
			return nil, fmt.Errorf("decode live actions: %w", err)
		}
		return lives, nil
	}
	var live domain.LiveAction
	if err := json.Unmarshal(data, &live); err != nil {
		return nil, fmt.Errorf("decode live action: %w", err)
	}
	return []*domain.LiveAction{&live}, nil
}

// Record applies each live action in order and reports per-item outcomes.
// A failed item does not stop the rest; the returned error counts failures.
func Record(ctx context.Context, svc ports.ExecutionService, lives []*domain.LiveAction, mode string, publish bool) ([]RecordResult, error) {
	switch mode {
	case ModeCreate, ModeUpdate, ModeAuto:
	default:
		return nil, fmt.Errorf("unknown record mode %q", mode)
	}

	results := make([]RecordResult, 0, len(lives))
	failed := 0
	for _, live := range lives {
		res := RecordResult{LiveActionID: live.ID}
		exec, change, err := recordOne(ctx, svc, live, mode, publish)
		if exec != nil {
			res.ExecutionID = exec.ID
			res.Change = change
		}
		if err != nil {
			res.Error = err.Error()
			failed++
		}
		results = append(results, res)
	}
	if failed > 0 {
		return results, fmt.Errorf("%d of %d live actions failed", failed, len(lives))
	}
	return results, nil
}

func recordOne(ctx context.Context, svc ports.ExecutionService, live *domain.LiveAction, mode string, publish bool) (*domain.Execution, domain.ChangeKind, error) {
	if mode != ModeCreate {
		exec, err := svc.UpdateExecution(ctx, live, publish)
		if err == nil || mode == ModeUpdate || !domain.IsNotFound(err) {
			return exec, domain.ChangeUpdated, err
		}
	}
	exec, err := svc.CreateExecution(ctx, live, publish)
	return exec, domain.ChangeCreated, err
}
