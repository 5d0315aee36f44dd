package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/port"
	"go.uber.org/zap"
)

type contextKey string

const execKey contextKey = "executor"

// Executor covers *sql.DB, *sql.Tx and the *sql.Conn holding an immediate transaction
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB wraps sql.DB and implements TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// WithTransaction runs fn in a deferred transaction. A transaction already
// carried by ctx is reused.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	return db.run(ctx, tx, fn, tx.Commit, tx.Rollback)
}

// WithImmediateTransaction runs fn in a BEGIN IMMEDIATE transaction, so the
// write lock is held before fn reads anything. State writers use it: two
// approvals racing on one row serialize on the lock instead of failing with
// a busy snapshot at commit.
func (db *DB) WithImmediateTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if inTransaction(ctx) {
		return fn(ctx)
	}

	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		db.logger.Error("Failed to begin immediate transaction", zap.Error(err))
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// commit and rollback must reach the connection even if ctx is cancelled
	endCtx := context.WithoutCancel(ctx)
	commit := func() error {
		if _, err := conn.ExecContext(endCtx, "COMMIT"); err != nil {
			// a failed COMMIT leaves the transaction open
			_, _ = conn.ExecContext(endCtx, "ROLLBACK")
			return err
		}
		return nil
	}
	rollback := func() error {
		_, err := conn.ExecContext(endCtx, "ROLLBACK")
		return err
	}

	return db.run(ctx, conn, fn, commit, rollback)
}

func (db *DB) run(ctx context.Context, exec Executor, fn func(ctx context.Context) error, commit, rollback func() error) error {
	txCtx := context.WithValue(ctx, execKey, exec)

	defer func() {
		if p := recover(); p != nil {
			_ = rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

func inTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(execKey).(Executor)
	return ok
}

// Executor returns the transaction carried by ctx, or the database
func (db *DB) Executor(ctx context.Context) Executor {
	if exec, ok := ctx.Value(execKey).(Executor); ok {
		return exec
	}
	return db.DB
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
