package ports

import (
	"context"

	"github.com/aretw0/chronicle/pkg/domain"
)

// ExecutionService defines the execution operations exposed to transport adapters (HTTP, MCP).
type ExecutionService interface {
	// CreateExecution builds, enriches and persists a record for a new live action.
	CreateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error)

	// UpdateExecution re-applies a live action onto its existing record.
	UpdateExecution(ctx context.Context, live *domain.LiveAction, publish bool) (*domain.Execution, error)

	// GetExecution retrieves a record by id.
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)

	// GetDescendants walks the lineage tree below rootID.
	GetDescendants(ctx context.Context, rootID string, maxDepth int, order domain.DescendantOrder) ([]*domain.Execution, error)

	// IsExecutionCanceled reports a confirmed cancellation. Lookup failures read as false.
	IsExecutionCanceled(ctx context.Context, id string) bool

	// ExecutionCancelState distinguishes a failed lookup from "not canceled".
	ExecutionCancelState(ctx context.Context, id string) domain.CancelState
}
