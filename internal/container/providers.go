// Package container provides dependency injection and lifecycle management
// for the approval workflow engine following Clean Architecture principles.
package container

import (
	"context"
	"fmt"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/registry"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/config"
	"github.com/garyjia/approval-flow/internal/domain/entity"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/authz"
	"github.com/garyjia/approval-flow/internal/infrastructure/notify"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-flow/internal/observability"
	"github.com/garyjia/approval-flow/pkg/database"
	"github.com/garyjia/approval-flow/pkg/utils"
	"go.uber.org/zap"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	Database       *database.DB
	TransactionMgr *sqlite.DB
}

// ProvideDatabase opens the database and applies the embedded migrations.
func ProvideDatabase(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(database.Config{
		Path:            cfg.Path,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		BusyTimeout:     cfg.BusyTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).Up(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		Database:       db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates the sqlite repositories. Every entity type
// carries the approval comment and rejection note fields.
func ProvideRepositories(db *sqlite.DB, defs []workflow.Definition, logger *zap.Logger) (*RepositoryBundle, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}

	fields := make(map[string][]string, len(defs))
	for _, d := range defs {
		fields[d.EntityType] = []string{entity.FieldApprovalComment, entity.FieldRejectionNote}
	}

	return &RepositoryBundle{
		Approvables: repository.NewApprovableRepository(db, fields, logger),
		AuditLogs:   repository.NewAuditLogRepository(db, logger),
	}, nil
}

// ProvideRegistry builds and registers a topology for every definition.
// An invalid definition fails startup.
func ProvideRegistry(defs []workflow.Definition, store port.EntityStore, logger *zap.Logger) (*registry.Registry, error) {
	reg := registry.New()

	for _, d := range defs {
		topology, err := d.Topology()
		if err != nil {
			return nil, err
		}
		if _, err := reg.RegisterTopology(topology, store); err != nil {
			return nil, err
		}
		logger.Info("Workflow registered",
			zap.String("entity_type", d.EntityType),
			zap.Int("steps", len(topology.Steps())),
			zap.String("completed", string(topology.Completed())))
	}

	return reg, nil
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger, observer dispatcher.Observer) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	opts := []dispatcher.Option{dispatcher.WithLogger(utils.NewKVLogger(logger))}
	if observer != nil {
		opts = append(opts, dispatcher.WithObserver(observer))
	}

	return dispatcher.NewDispatcher(opts...), nil
}

// ServiceDeps holds dependencies required for creating services.
type ServiceDeps struct {
	Config     *config.ApprovalFlowConfig
	Grants     []authz.Grant
	Repos      *RepositoryBundle
	Registry   *registry.Registry
	Dispatcher dispatcher.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// ProvideServices creates the application services and subscribes the
// audit and notification listeners.
func ProvideServices(deps *ServiceDeps) (*ServiceBundle, error) {
	if deps == nil {
		return nil, fmt.Errorf("service dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("approval flow config is required")
	}
	if deps.Registry == nil || deps.Dispatcher == nil {
		return nil, fmt.Errorf("registry and dispatcher are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	serviceLogger := utils.NewKVLogger(deps.Logger)
	loggingEnabled := deps.Config.Logging.Enabled

	auditLogger := service.NewAuditLogger(deps.Repos.AuditLogs, loggingEnabled, serviceLogger)
	auditLogger.Register(deps.Dispatcher)

	notifications := service.NewNotificationListener(
		notify.NewLogNotifier(deps.Logger.Named("notifier")),
		deps.Config.Notifications.Enabled,
		serviceLogger,
	)
	notifications.Register(deps.Dispatcher)

	opts := []service.WorkflowOption{service.WithAuditStore(deps.Repos.AuditLogs, loggingEnabled)}
	var bulkRecorder service.BulkRecorder
	if deps.Metrics != nil {
		opts = append(opts, service.WithTransitionRecorder(deps.Metrics))
		bulkRecorder = deps.Metrics
	}

	wf := service.NewWorkflowService(
		deps.Registry,
		authz.NewRoleChecker(deps.Grants, deps.Logger),
		deps.Dispatcher,
		serviceLogger,
		opts...,
	)

	return &ServiceBundle{
		Workflow:      wf,
		Bulk:          service.NewBulkService(wf, bulkRecorder, serviceLogger),
		AuditLogger:   auditLogger,
		Notifications: notifications,
	}, nil
}
