package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyjia/approval-flow/internal/config"
	"github.com/garyjia/approval-flow/internal/container"
	"github.com/garyjia/approval-flow/internal/infrastructure/authz"
	httpserver "github.com/garyjia/approval-flow/internal/interfaces/http"
	"github.com/garyjia/approval-flow/pkg/utils"
	"github.com/gin-gonic/gin"
	"github.com/subosito/gotenv"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Local overrides; a missing .env is fine
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
		os.Exit(1)
	}

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Server exited with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Starting approval workflow server",
		zap.String("version", "1.0.0"),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg, logger)
	if err != nil {
		return err
	}
	if err := c.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Failed to close container", zap.Error(err))
		}
	}()

	mode := cfg.Server.Mode
	if cfg.Logger.Level == "debug" {
		mode = gin.DebugMode
	}

	services := c.Services()
	server := httpserver.NewServer(httpserver.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Mode:            mode,
		TrustRoleHeader: cfg.Authorization.TrustRoleHeader,
	}, httpserver.Deps{
		Workflow: services.Workflow,
		Bulk:     services.Bulk,
		Entities: c.Repositories().Approvables,
		Registry: c.Registry(),
		Roles:    authz.NewDirectory(cfg.Authorization.Actors),
		Health: func(ctx context.Context) (bool, interface{}) {
			status := c.Health(ctx)
			return status.Overall, status.Components
		},
		Metrics: c.Metrics().Handler(),
		Logger:  utils.NewKVLogger(logger),
	})

	// Blocks until a signal arrives or the listener fails
	if err := server.Start(ctx); err != nil {
		return err
	}

	logger.Info("Server exited successfully")
	return nil
}
