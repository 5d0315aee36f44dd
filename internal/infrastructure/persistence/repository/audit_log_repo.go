package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"go.uber.org/zap"
)

// AuditLogRepository implements port.AuditLogStore on the approval_logs table
type AuditLogRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewAuditLogRepository creates a new audit log repository
func NewAuditLogRepository(db *sqlite.DB, logger *zap.Logger) *AuditLogRepository {
	return &AuditLogRepository{
		db:     db,
		logger: logger,
	}
}

// Append inserts one audit entry
func (r *AuditLogRepository) Append(ctx context.Context, entry *entity.AuditLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode audit metadata: %w", err)
	}

	query := `
		INSERT INTO approval_logs (
			id, approvable_type, approvable_id, user_id, action,
			previous_status, new_status, comment, metadata,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	createdAt := entry.CreatedAt.UTC()
	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		entry.ID,
		entry.EntityType,
		entry.EntityID,
		entry.ActorID,
		string(entry.Action),
		entry.PreviousState,
		entry.NewState,
		entry.Comment,
		string(metadata),
		createdAt,
		createdAt,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("entity", entry.Ref().String()),
			zap.String("action", string(entry.Action)),
			zap.Error(err))
		return fmt.Errorf("failed to append audit entry: %w", err)
	}

	return nil
}

// CountByEntityAndAction counts entries for the entity with the action
func (r *AuditLogRepository) CountByEntityAndAction(ctx context.Context, ref entity.Ref, action entity.Action) (int, error) {
	query := `
		SELECT COUNT(*) FROM approval_logs
		WHERE approvable_type = ? AND approvable_id = ? AND action = ?
	`

	var n int
	if err := r.db.Executor(ctx).QueryRowContext(ctx, query, ref.Type, ref.ID, string(action)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count audit entries: %w", err)
	}
	return n, nil
}

// ListByEntity returns the entity's entries, newest first
func (r *AuditLogRepository) ListByEntity(ctx context.Context, ref entity.Ref) ([]*entity.AuditLogEntry, error) {
	query := `
		SELECT id, approvable_type, approvable_id, user_id, action,
			previous_status, new_status, comment, metadata, created_at
		FROM approval_logs
		WHERE approvable_type = ? AND approvable_id = ?
		ORDER BY created_at DESC, rowid DESC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, ref.Type, ref.ID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("entity", ref.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []*entity.AuditLogEntry{}
	for rows.Next() {
		var (
			entry    entity.AuditLogEntry
			actorID  sql.NullString
			comment  sql.NullString
			action   string
			metadata string
		)

		err := rows.Scan(
			&entry.ID,
			&entry.EntityType,
			&entry.EntityID,
			&actorID,
			&action,
			&entry.PreviousState,
			&entry.NewState,
			&comment,
			&metadata,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		entry.Action = entity.Action(action)
		if actorID.Valid {
			entry.ActorID = &actorID.String
		}
		if comment.Valid {
			entry.Comment = &comment.String
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode audit metadata: %w", err)
		}

		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditLogStore = (*AuditLogRepository)(nil)
