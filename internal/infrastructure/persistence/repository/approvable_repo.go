package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// ApprovableRepository implements port.EntityRepository on the approvables table
type ApprovableRepository struct {
	db     *sqlite.DB
	fields map[string][]string
	logger *zap.Logger
}

// NewApprovableRepository creates a new approvable repository. fields lists
// the optional fields each entity type may carry.
func NewApprovableRepository(db *sqlite.DB, fields map[string][]string, logger *zap.Logger) *ApprovableRepository {
	if fields == nil {
		fields = make(map[string][]string)
	}
	return &ApprovableRepository{
		db:     db,
		fields: fields,
		logger: logger,
	}
}

// Create inserts a new entity
func (r *ApprovableRepository) Create(ctx context.Context, e *entity.Approvable) error {
	fieldsJSON, err := marshalFields(e.Fields)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `
		INSERT INTO approvables (entity_type, entity_id, status, fields, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		e.Type,
		e.ID,
		stateArg(e.State),
		fieldsJSON,
		e.CreatedAt.UTC(),
		e.UpdatedAt,
	)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return fmt.Errorf("%w: %s", workflow.ErrEntityExists, e.Ref)
	}
	if err != nil {
		r.logger.Error("Failed to create approvable", zap.String("entity", e.Ref.String()), zap.Error(err))
		return fmt.Errorf("failed to create approvable: %w", err)
	}

	return nil
}

// Read retrieves an entity by ref
func (r *ApprovableRepository) Read(ctx context.Context, ref entity.Ref) (*entity.Approvable, error) {
	query := `
		SELECT entity_type, entity_id, status, fields, created_at, updated_at
		FROM approvables
		WHERE entity_type = ? AND entity_id = ?
	`

	e, err := scanApprovable(r.db.Executor(ctx).QueryRowContext(ctx, query, ref.Type, ref.ID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrEntityNotFound, ref)
	}
	if err != nil {
		r.logger.Error("Failed to read approvable", zap.String("entity", ref.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to read approvable: %w", err)
	}
	return e, nil
}

// CompareAndSetState updates status only where it still equals expected.
// It runs in an immediate transaction, so the conflict read and the re-read
// see the row as this writer left it.
func (r *ApprovableRepository) CompareAndSetState(ctx context.Context, ref entity.Ref, expected workflow.State, next workflow.StateCode, fields map[string]string) (*entity.Approvable, error) {
	patch, err := marshalFields(fields)
	if err != nil {
		return nil, err
	}

	var updated *entity.Approvable
	err = r.db.WithImmediateTransaction(ctx, func(txCtx context.Context) error {
		exec := r.db.Executor(txCtx)

		result, err := exec.ExecContext(txCtx, `
			UPDATE approvables
			SET status = ?, fields = json_patch(fields, ?), updated_at = ?
			WHERE entity_type = ? AND entity_id = ? AND status IS ?
		`, string(next), patch, time.Now().UTC(), ref.Type, ref.ID, stateArg(expected))
		if err != nil {
			return fmt.Errorf("failed to update approvable status: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}

		if n == 0 {
			current, err := r.Read(txCtx, ref)
			if err != nil {
				return err
			}
			return fmt.Errorf("%w: %s expected %q, found %q", workflow.ErrConcurrentModification, ref, expected, current.State)
		}

		updated, err = r.Read(txCtx, ref)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Approvable status updated",
		zap.String("entity", ref.String()),
		zap.String("from", expected.String()),
		zap.String("to", next.String()))

	return updated, nil
}

// SupportedFields returns the optional fields configured for the type
func (r *ApprovableRepository) SupportedFields(entityType string) []string {
	return append([]string(nil), r.fields[entityType]...)
}

// List returns entities matching the filter, oldest first
func (r *ApprovableRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.Approvable, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.EntityType != "" {
		conds = append(conds, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.State.IsSet() {
		conds = append(conds, "status = ?")
		args = append(args, filter.State.String())
	}

	query := `SELECT entity_type, entity_id, status, fields, created_at, updated_at FROM approvables`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC, entity_type ASC, entity_id ASC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list approvables", zap.Error(err))
		return nil, fmt.Errorf("failed to list approvables: %w", err)
	}
	defer rows.Close()

	out := []*entity.Approvable{}
	for rows.Next() {
		e, err := scanApprovable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approvable: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}

// scanner covers *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanApprovable(s scanner) (*entity.Approvable, error) {
	var (
		e          entity.Approvable
		status     sql.NullString
		fieldsJSON string
	)

	if err := s.Scan(&e.Type, &e.ID, &status, &fieldsJSON, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}

	if status.Valid {
		e.State = workflow.StateOf(workflow.StateCode(status.String))
	}

	e.Fields = make(map[string]string)
	if fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &e.Fields); err != nil {
			return nil, fmt.Errorf("failed to decode fields: %w", err)
		}
	}

	return &e, nil
}

func marshalFields(fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields: %w", err)
	}
	return string(data), nil
}

// stateArg maps NoState to NULL
func stateArg(s workflow.State) interface{} {
	if code, ok := s.Code(); ok {
		return string(code)
	}
	return nil
}

// Verify interface compliance
var _ port.EntityRepository = (*ApprovableRepository)(nil)
