package domain

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDiff(t *testing.T) {
	running := LiveActionStatusRunning
	succeeded := LiveActionStatusSucceeded

	tests := []struct {
		name     string
		old      *Execution
		new      *Execution
		wantDiff *ExecutionDiff // nil means we expect no diff
	}{
		{
			name: "Initial Load (Old is Nil)",
			old:  nil,
			new: &Execution{
				ID:       "ex-1",
				Status:   LiveActionStatusRunning,
				Context:  map[string]any{"a": 1},
				Children: []string{"ex-2"},
			},
			wantDiff: &ExecutionDiff{
				ExecutionID:      "ex-1",
				Status:           &running,
				Context:          map[string]any{"a": 1},
				ChildrenAppended: []string{"ex-2"},
			},
		},
		{
			name: "No Changes",
			old: &Execution{
				ID:      "ex-1",
				Status:  LiveActionStatusRunning,
				Context: map[string]any{"a": 1},
			},
			new: &Execution{
				ID:      "ex-1",
				Status:  LiveActionStatusRunning,
				Context: map[string]any{"a": 1},
			},
			wantDiff: nil,
		},
		{
			name: "Status and Result Change",
			old: &Execution{
				ID:     "ex-1",
				Status: LiveActionStatusRunning,
				Result: map[string]any{"stdout": "", "stale": true},
			},
			new: &Execution{
				ID:     "ex-1",
				Status: LiveActionStatusSucceeded,
				Result: map[string]any{"stdout": "ok"},
			},
			wantDiff: &ExecutionDiff{
				ExecutionID: "ex-1",
				Status:      &succeeded,
				Result:      map[string]any{"stdout": "ok", "stale": nil},
			},
		},
		{
			name: "Child Appended",
			old: &Execution{
				ID:       "ex-1",
				Status:   LiveActionStatusRunning,
				Children: []string{"c1"},
			},
			new: &Execution{
				ID:       "ex-1",
				Status:   LiveActionStatusRunning,
				Children: []string{"c1", "c2"},
			},
			wantDiff: &ExecutionDiff{
				ExecutionID:      "ex-1",
				ChildrenAppended: []string{"c2"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Diff(tt.old, tt.new)
			if !reflect.DeepEqual(got, tt.wantDiff) {
				gotJSON, _ := json.Marshal(got)
				wantJSON, _ := json.Marshal(tt.wantDiff)
				t.Errorf("Diff() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}
}

func TestDiff_EndTimestamp(t *testing.T) {
	end := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	old := &Execution{ID: "ex-1", Status: LiveActionStatusSucceeded}
	new := &Execution{ID: "ex-1", Status: LiveActionStatusSucceeded, EndTimestamp: &end}

	diff := Diff(old, new)
	if diff == nil || diff.EndTimestamp == nil {
		t.Fatalf("expected end timestamp in diff, got %+v", diff)
	}
	if *diff.EndTimestamp != "2024-05-01T10:00:00Z" {
		t.Errorf("unexpected end timestamp %q", *diff.EndTimestamp)
	}
}

func TestDiffJSONSerialization(t *testing.T) {
	status := LiveActionStatusFailed
	diff := &ExecutionDiff{
		ExecutionID: "ex-1",
		Status:      &status,
	}

	data, err := json.Marshal(diff)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"status":"failed"`) {
		t.Errorf("expected status in JSON, got %s", s)
	}
	if strings.Contains(s, "result") || strings.Contains(s, "children_appended") {
		t.Errorf("expected empty fields to be omitted, got %s", s)
	}
}
