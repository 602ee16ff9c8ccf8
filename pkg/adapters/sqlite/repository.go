package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/chronicle/pkg/domain"
	"github.com/aretw0/chronicle/pkg/ports"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const upsertSQL = `
INSERT INTO executions (id, liveaction_id, parent, status, start_timestamp, doc)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
    liveaction_id = excluded.liveaction_id,
    parent = excluded.parent,
    status = excluded.status,
    start_timestamp = excluded.start_timestamp,
    doc = excluded.doc`

// Get retrieves a record by id.
func (s *Store) Get(ctx context.Context, id string) (*domain.Execution, error) {
	return get(ctx, s.db, id)
}

// GetFirst returns the earliest inserted record matching the filter.
func (s *Store) GetFirst(ctx context.Context, filter ports.ExecutionFilter) (*domain.Execution, error) {
	where, args := whereClause(filter)
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT doc FROM executions"+where+" ORDER BY rowid LIMIT 1", args...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("execution", filter.String())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query execution: %w", err)
	}
	return decode(doc)
}

// Query returns every record matching the filter.
func (s *Store) Query(ctx context.Context, filter ports.ExecutionFilter, order ...ports.OrderBy) ([]*domain.Execution, error) {
	where, args := whereClause(filter)
	rows, err := s.db.QueryContext(ctx, "SELECT doc FROM executions"+where+orderClause(order), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	res := make([]*domain.Execution, 0)
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		exec, err := decode(doc)
		if err != nil {
			return nil, err
		}
		res = append(res, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate executions: %w", err)
	}
	return res, nil
}

// Upsert inserts or replaces the record. The stored lineage is merged in inside
// the same immediate transaction, so a child appended by another process
// between a caller's read and this write survives.
func (s *Store) Upsert(ctx context.Context, exec *domain.Execution, publish bool) (*domain.Execution, error) {
	if exec == nil || exec.ID == "" {
		return nil, domain.ErrInvalidExecution
	}
	stored := exec.Clone()
	if stored.Children == nil {
		stored.Children = []string{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	old, err := get(ctx, tx, stored.ID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}
	stored.KeepLineage(old)
	if err := put(ctx, tx, stored); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if publish {
		s.publish(ctx, old, stored)
	}
	return stored.Clone(), nil
}

// AppendChild links childID under parentID in a single transaction.
func (s *Store) AppendChild(ctx context.Context, parentID, childID string, publish bool) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	parent, err := get(ctx, tx, parentID)
	if err != nil {
		return false, err
	}
	old := parent.Clone()
	if !parent.AddChild(childID) {
		return false, nil
	}
	if err := put(ctx, tx, parent); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit transaction: %w", err)
	}

	if publish {
		s.publish(ctx, old, parent)
	}
	return true, nil
}

func (s *Store) publish(ctx context.Context, old, updated *domain.Execution) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, domain.NewChangeEvent(old, updated)); err != nil {
		s.logger.Warn("Failed to publish execution change",
			"execution_id", updated.ID,
			"err", err,
		)
	}
}

func get(ctx context.Context, q queryer, id string) (*domain.Execution, error) {
	var doc string
	err := q.QueryRowContext(ctx, "SELECT doc FROM executions WHERE id = ?", id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFound("execution", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get execution: %w", err)
	}
	return decode(doc)
}

func put(ctx context.Context, q queryer, exec *domain.Execution) error {
	doc, err := json.Marshal(exec)
	if err != nil {
		return fmt.Errorf("failed to marshal execution: %w", err)
	}
	_, err = q.ExecContext(ctx, upsertSQL,
		exec.ID,
		exec.LiveAction.ID,
		exec.Parent,
		string(exec.Status),
		exec.StartTimestamp.UnixNano(),
		string(doc),
	)
	if err != nil {
		return fmt.Errorf("failed to write execution: %w", err)
	}
	return nil
}

func decode(doc string) (*domain.Execution, error) {
	var exec domain.Execution
	if err := json.Unmarshal([]byte(doc), &exec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution: %w", err)
	}
	if exec.Children == nil {
		exec.Children = []string{}
	}
	return &exec, nil
}

func whereClause(f ports.ExecutionFilter) (string, []any) {
	var conds []string
	var args []any
	if f.LiveActionID != "" {
		conds = append(conds, "liveaction_id = ?")
		args = append(args, f.LiveActionID)
	}
	if f.Parent != "" {
		conds = append(conds, "parent = ?")
		args = append(args, f.Parent)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderClause(order []ports.OrderBy) string {
	var parts []string
	for _, o := range order {
		switch o.Field {
		case ports.SortByStartTimestamp:
			dir := "ASC"
			if o.Descending {
				dir = "DESC"
			}
			parts = append(parts, "start_timestamp "+dir)
		}
	}
	if len(parts) == 0 {
		return " ORDER BY rowid"
	}
	return " ORDER BY " + strings.Join(parts, ", ") + ", id"
}
