package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/garyjia/approval-flow/internal/domain/workflow"
	"github.com/garyjia/approval-flow/internal/infrastructure/authz"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig          `mapstructure:"server"`
	Database      DatabaseConfig        `mapstructure:"database"`
	Logger        LoggerConfig          `mapstructure:"logger"`
	ApprovalFlow  ApprovalFlowConfig    `mapstructure:"approval_flow"`
	Authorization AuthorizationConfig   `mapstructure:"authorization"`
	Workflows     []workflow.Definition `mapstructure:"workflows"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	BusyTimeout     time.Duration `mapstructure:"busy_timeout"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// ApprovalFlowConfig holds workflow behaviour switches
type ApprovalFlowConfig struct {
	Logging        ToggleConfig `mapstructure:"logging"`
	Notifications  ToggleConfig `mapstructure:"notifications"`
	DefinitionsDir string       `mapstructure:"definitions_dir"`
}

// ToggleConfig is a feature switch
type ToggleConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthorizationConfig maps roles to permissions and actors to roles.
// TrustRoleHeader takes roles from the X-Actor-Roles header instead of
// Actors; enable it only behind a proxy that sets that header itself.
type AuthorizationConfig struct {
	Grants          []authz.Grant      `mapstructure:"grants"`
	Actors          []authz.Assignment `mapstructure:"actors"`
	TrustRoleHeader bool               `mapstructure:"trust_role_header"`
}

// Load loads configuration from file and environment variables.
// An empty path loads defaults and environment only.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Override with environment variables
	if err := bindEnvVars(v); err != nil {
		return nil, fmt.Errorf("failed to bind environment: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.mode", "release")

	// Database defaults
	v.SetDefault("database.path", "data/approvals.db")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	v.SetDefault("database.busy_timeout", 5*time.Second)

	// Logger defaults
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	// Workflow defaults
	v.SetDefault("approval_flow.logging.enabled", true)
	v.SetDefault("approval_flow.notifications.enabled", false)
	v.SetDefault("approval_flow.definitions_dir", "")

	// Authorization defaults
	v.SetDefault("authorization.trust_role_header", false)
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"approval_flow.logging.enabled":       "APPROVAL_FLOW_LOG_ENABLED",
		"approval_flow.notifications.enabled": "APPROVAL_FLOW_NOTIFICATIONS_ENABLED",
		"approval_flow.definitions_dir":       "APPROVAL_FLOW_DEFINITIONS_DIR",
		"database.path":                       "DATABASE_PATH",
		"server.port":                         "SERVER_PORT",
		"logger.level":                        "LOG_LEVEL",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	for i, g := range c.Authorization.Grants {
		if g.Role == "" {
			return fmt.Errorf("authorization.grants[%d].role is required", i)
		}
	}

	actors := make(map[string]bool)
	for i, a := range c.Authorization.Actors {
		if a.ActorID == "" {
			return fmt.Errorf("authorization.actors[%d].actor_id is required", i)
		}
		if actors[a.ActorID] {
			return fmt.Errorf("authorization.actors[%d]: duplicate actor_id %q", i, a.ActorID)
		}
		actors[a.ActorID] = true
	}

	seen := make(map[string]bool)
	for i, w := range c.Workflows {
		if w.EntityType == "" {
			return fmt.Errorf("workflows[%d].entity_type is required", i)
		}
		if seen[w.EntityType] {
			return fmt.Errorf("workflows[%d]: duplicate entity_type %q", i, w.EntityType)
		}
		seen[w.EntityType] = true
	}

	return nil
}

// Definitions returns the inline workflows followed by every *.yaml or
// *.yml file in approval_flow.definitions_dir, in file name order.
func (c *Config) Definitions() ([]workflow.Definition, error) {
	defs := append([]workflow.Definition(nil), c.Workflows...)

	dir := c.ApprovalFlow.DefinitionsDir
	if dir == "" {
		return defs, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read definitions dir: %w", err)
	}

	var files []string
	for _, entry := range entries {
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)

	for _, f := range files {
		d, err := workflow.LoadDefinitionFile(f)
		if err != nil {
			return nil, err
		}
		defs = append(defs, *d)
	}

	return defs, nil
}
