package container

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/garyjia/approval-flow/internal/application/dispatcher"
	"github.com/garyjia/approval-flow/internal/application/port"
	"github.com/garyjia/approval-flow/internal/application/registry"
	"github.com/garyjia/approval-flow/internal/application/service"
	"github.com/garyjia/approval-flow/internal/config"
	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/repository"
	"github.com/garyjia/approval-flow/internal/infrastructure/persistence/sqlite"
	"github.com/garyjia/approval-flow/internal/observability"
	"github.com/garyjia/approval-flow/pkg/database"
	"go.uber.org/zap"
)

// Container manages all application dependencies and lifecycle.
// It follows Clean Architecture principles with ordered initialization
// and reverse-order teardown.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	database     *database.DB
	db           *sqlite.DB
	repositories *RepositoryBundle

	// Observability
	metrics *observability.Metrics

	// Application
	registry   *registry.Registry
	dispatcher dispatcher.Dispatcher
	services   *ServiceBundle

	// Lifecycle
	mu     sync.RWMutex
	ready  atomic.Bool
	closed atomic.Bool
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Approvables *repository.ApprovableRepository
	AuditLogs   *repository.AuditLogRepository
}

// ServiceBundle groups all application services.
type ServiceBundle struct {
	Workflow      service.WorkflowService
	Bulk          *service.BulkService
	AuditLogger   *service.AuditLogger
	Notifications *service.NotificationListener
}

// HealthStatus represents the health of all components.
type HealthStatus struct {
	Overall    bool                       `json:"overall"`
	Components map[string]ComponentHealth `json:"components"`
}

// ComponentHealth represents health of a single component.
type ComponentHealth struct {
	Healthy bool   `json:"healthy"`
	Message string `json:"message,omitempty"`
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components.
// Components are initialized in dependency order:
// 1. Database, migrations and repositories
// 2. Workflow registry
// 3. Metrics and event dispatcher
// 4. Application services and listeners
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}

	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.logger.Info("Starting container initialization")

	defs, err := c.config.Definitions()
	if err != nil {
		return fmt.Errorf("failed to load workflow definitions: %w", err)
	}

	// Step 1: Initialize database and repositories
	if err := c.initDatabase(ctx, defs); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	// Step 2: Register workflows
	reg, err := ProvideRegistry(defs, c.repositories.Approvables, c.logger)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to register workflows: %w", err)
	}
	c.registry = reg
	c.logger.Info("Workflows registered", zap.Strings("entity_types", reg.Types()))

	// Step 3: Initialize metrics and dispatcher
	c.metrics = observability.NewMetrics()
	disp, err := ProvideDispatcher(c.logger, c.metrics)
	if err != nil {
		c.closeDatabase()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.dispatcher = disp
	c.logger.Info("Dispatcher initialized")

	// Step 4: Initialize application services
	services, err := ProvideServices(&ServiceDeps{
		Config:     &c.config.ApprovalFlow,
		Grants:     c.config.Authorization.Grants,
		Repos:      c.repositories,
		Registry:   c.registry,
		Dispatcher: c.dispatcher,
		Metrics:    c.metrics,
		Logger:     c.logger,
	})
	if err != nil {
		_ = c.dispatcher.Close()
		c.closeDatabase()
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	c.services = services
	c.logger.Info("Application services initialized",
		zap.Bool("audit_logging", c.config.ApprovalFlow.Logging.Enabled),
		zap.Bool("notifications", c.config.ApprovalFlow.Notifications.Enabled))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")

	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")

	var errs []error

	// Step 1: Close dispatcher, waiting for async handlers
	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		} else {
			c.logger.Info("Dispatcher closed")
		}
	}

	// Step 2: Close database
	if c.database != nil {
		if err := c.database.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors", len(errs))
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns health status of all components.
func (c *Container) Health(ctx context.Context) *HealthStatus {
	status := &HealthStatus{
		Overall:    true,
		Components: make(map[string]ComponentHealth),
	}

	// Check database
	if c.database != nil {
		if err := c.database.Health(ctx); err != nil {
			status.Components["database"] = ComponentHealth{
				Healthy: false,
				Message: fmt.Sprintf("ping failed: %v", err),
			}
			status.Overall = false
		} else {
			status.Components["database"] = ComponentHealth{Healthy: true}
		}
	} else {
		status.Components["database"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check registry
	if c.registry != nil {
		status.Components["workflows"] = ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("registered types: %d", len(c.registry.Types())),
		}
	} else {
		status.Components["workflows"] = ComponentHealth{
			Healthy: false,
			Message: "not initialized",
		}
		status.Overall = false
	}

	// Check dispatcher
	if c.dispatcher != nil && !c.closed.Load() {
		status.Components["dispatcher"] = ComponentHealth{Healthy: true}
	} else {
		status.Components["dispatcher"] = ComponentHealth{
			Healthy: false,
			Message: "not running",
		}
		status.Overall = false
	}

	return status
}

// initDatabase opens the database and creates the repositories.
func (c *Container) initDatabase(ctx context.Context, defs []workflow.Definition) error {
	dbBundle, err := ProvideDatabase(ctx, &c.config.Database, c.logger)
	if err != nil {
		return err
	}

	c.database = dbBundle.Database
	c.db = dbBundle.TransactionMgr

	repos, err := ProvideRepositories(c.db, defs, c.logger)
	if err != nil {
		c.closeDatabase()
		return err
	}

	c.repositories = repos
	return nil
}

func (c *Container) closeDatabase() {
	if c.database != nil {
		_ = c.database.Close()
		c.database = nil
	}
}

// Getters for accessing container components

// DB returns the transaction manager.
func (c *Container) DB() port.TransactionManager {
	return c.db
}

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Registry returns the workflow registry.
func (c *Container) Registry() *registry.Registry {
	return c.registry
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// Metrics returns the metrics collector.
func (c *Container) Metrics() *observability.Metrics {
	return c.metrics
}

// Services returns all application services.
func (c *Container) Services() *ServiceBundle {
	return c.services
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}
