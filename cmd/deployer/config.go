package main

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/prestamos/deployer/internal/core/compose"
	"github.com/prestamos/deployer/internal/core/monitoring"
	"github.com/prestamos/deployer/internal/shell/backup"
	"github.com/prestamos/deployer/internal/shell/deploy"
	"github.com/prestamos/deployer/internal/shell/preflight"
	"github.com/prestamos/deployer/internal/shell/runner"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all deployer configuration.
type Config struct {
	Project    ProjectConfig    `mapstructure:"project"`
	Compose    ComposeConfig    `mapstructure:"compose"`
	App        AppConfig        `mapstructure:"app"`
	Health     HealthConfig     `mapstructure:"health"`
	Logs       LogsConfig       `mapstructure:"logs"`
	Backup     BackupConfig     `mapstructure:"backup"`
	Deploy     DeployConfig     `mapstructure:"deploy"`
	Production ProductionConfig `mapstructure:"production"`
	Docker     DockerConfig     `mapstructure:"docker"`
	Log        LogConfig        `mapstructure:"log"`
}

// ProjectConfig describes the application checkout being deployed.
type ProjectConfig struct {
	Dir           string   `mapstructure:"dir"`
	RequiredFiles []string `mapstructure:"required_files"`
	DataDir       string   `mapstructure:"data_dir"`
}

// ComposeConfig selects the compose front end and definition files.
type ComposeConfig struct {
	// Command is the compose front end, "docker compose" or "docker-compose".
	Command        string        `mapstructure:"command"`
	DevFile        string        `mapstructure:"dev_file"`
	ProdFile       string        `mapstructure:"prod_file"`
	CommandTimeout time.Duration `mapstructure:"command_timeout"`
}

// AppConfig describes the application container.
type AppConfig struct {
	Service           string `mapstructure:"service"`
	Container         string `mapstructure:"container"`
	Image             string `mapstructure:"image"`
	Port              int    `mapstructure:"port"`
	Database          string `mapstructure:"database"`
	ContainerDatabase string `mapstructure:"container_database"`
	ContainerDataDir  string `mapstructure:"container_data_dir"`
	HealthPath        string `mapstructure:"health_path"`
}

// HealthConfig controls the post-start health probe.
type HealthConfig struct {
	Host      string        `mapstructure:"host"`
	DevGrace  time.Duration `mapstructure:"dev_grace"`
	ProdGrace time.Duration `mapstructure:"prod_grace"`
	// Attempts of 1 probes once after the grace period.
	Attempts int           `mapstructure:"attempts"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Deadline time.Duration `mapstructure:"deadline"`
}

// LogsConfig sets how many log lines are shown.
type LogsConfig struct {
	FailureTail int `mapstructure:"failure_tail"`
	StatusTail  int `mapstructure:"status_tail"`
}

// BackupConfig controls where backups go.
type BackupConfig struct {
	Dir    string `mapstructure:"dir"`
	Prefix string `mapstructure:"prefix"`
	Verify bool   `mapstructure:"verify"`
}

// DeployConfig holds deploy policy switches.
type DeployConfig struct {
	RollbackOnFailure bool `mapstructure:"rollback_on_failure"`
	AssumeYes         bool `mapstructure:"assume_yes"`
}

// ProductionConfig holds production-only inputs.
type ProductionConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// DockerConfig holds Docker client configuration.
type DockerConfig struct {
	Host string `mapstructure:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// =============================================================================
// Config Loading
// =============================================================================

// flagKeys maps command-line flags to the config keys they override.
var flagKeys = map[string]string{
	"base-url":  "production.base_url",
	"yes":       "deploy.assume_yes",
	"log-level": "log.level",
}

// LoadConfig loads configuration from defaults, an optional file, the
// environment (DEPLOYER_*) and flags, in increasing order of precedence.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("project.dir", ".")
	v.SetDefault("project.required_files", []string{"app.py", "requirements.txt", "Dockerfile", "docker-compose.yml"})
	v.SetDefault("project.data_dir", "data")
	v.SetDefault("compose.command", "docker compose")
	v.SetDefault("compose.dev_file", "docker-compose.yml")
	v.SetDefault("compose.prod_file", "docker-compose.prod.yml")
	v.SetDefault("compose.command_timeout", "0s") // builds can take long
	v.SetDefault("app.service", "prestamos-equipos")
	v.SetDefault("app.container", "prestamos-equipos")
	v.SetDefault("app.image", "prestamos-equipos:latest")
	v.SetDefault("app.port", 8501)
	v.SetDefault("app.database", "equipos.db")
	v.SetDefault("app.container_database", "/app/equipos.db")
	v.SetDefault("app.container_data_dir", "/app/data")
	v.SetDefault("app.health_path", "/_stcore/health")
	v.SetDefault("health.host", "localhost")
	v.SetDefault("health.dev_grace", "10s")
	v.SetDefault("health.prod_grace", "20s")
	v.SetDefault("health.attempts", 1)
	v.SetDefault("health.interval", "5s")
	v.SetDefault("health.timeout", "5s")
	v.SetDefault("health.deadline", "0s")
	v.SetDefault("logs.failure_tail", 50)
	v.SetDefault("logs.status_tail", 20)
	v.SetDefault("backup.dir", ".")
	v.SetDefault("backup.prefix", "equipos")
	v.SetDefault("backup.verify", true)
	v.SetDefault("deploy.rollback_on_failure", false)
	v.SetDefault("deploy.assume_yes", false)
	v.SetDefault("production.base_url", "")
	v.SetDefault("docker.host", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	// Enable environment variable overrides
	v.SetEnvPrefix("DEPLOYER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Flags win over everything else, but only when given
	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values no operation can work with.
func (c *Config) Validate() error {
	if len(runner.ParseComposeCommand(c.Compose.Command)) == 0 {
		return fmt.Errorf("compose.command must not be empty")
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		return fmt.Errorf("app.port %d out of range", c.App.Port)
	}
	if c.Compose.DevFile == "" || c.Compose.ProdFile == "" {
		return fmt.Errorf("compose.dev_file and compose.prod_file must be set")
	}
	if filepath.Clean(c.Compose.DevFile) == filepath.Clean(c.Compose.ProdFile) {
		return fmt.Errorf("compose.prod_file must differ from compose.dev_file")
	}
	if c.Logs.FailureTail < 0 || c.Logs.StatusTail < 0 {
		return fmt.Errorf("log tails cannot be negative")
	}
	return nil
}

// =============================================================================
// Component Settings
// =============================================================================

// DeploySettings builds the immutable settings the orchestrator reads.
func (c *Config) DeploySettings() deploy.Settings {
	return deploy.Settings{
		Dir:        c.Project.Dir,
		DevFile:    c.Compose.DevFile,
		ProdFile:   c.Compose.ProdFile,
		Container:  c.App.Container,
		Image:      c.App.Image,
		HealthHost: c.Health.Host,
		HostPort:   c.App.Port,
		HealthPath: c.App.HealthPath,
		DevProbe:   c.probePlan(c.Health.DevGrace),
		ProdProbe:  c.probePlan(c.Health.ProdGrace),

		FailureTail:       c.Logs.FailureTail,
		StatusTail:        c.Logs.StatusTail,
		RollbackOnFailure: c.Deploy.RollbackOnFailure,

		Production: compose.ProductionParams{
			ServiceName:       c.App.Service,
			Image:             c.App.Image,
			BuildContext:      ".",
			Dockerfile:        "Dockerfile",
			HostPort:          c.App.Port,
			ContainerPort:     c.App.Port,
			DataDir:           c.Project.DataDir,
			ContainerDataDir:  c.App.ContainerDataDir,
			Database:          c.App.Database,
			ContainerDatabase: c.App.ContainerDatabase,
			HealthPath:        c.App.HealthPath,
			HealthCheck:       compose.DefaultHealthCheckTiming(),
		},
	}
}

func (c *Config) probePlan(grace time.Duration) monitoring.ProbePlan {
	return monitoring.ProbePlan{
		Grace:    grace,
		Attempts: c.Health.Attempts,
		Interval: c.Health.Interval,
		Timeout:  c.Health.Timeout,
		Deadline: c.Health.Deadline,
	}.Normalize()
}

// PreflightSettings lists the files and directory preflight checks.
func (c *Config) PreflightSettings() preflight.Settings {
	return preflight.Settings{
		Dir:           c.Project.Dir,
		RequiredFiles: c.Project.RequiredFiles,
		DataDir:       c.Project.DataDir,
	}
}

// BackupSettings resolves backup paths against the project directory.
func (c *Config) BackupSettings() backup.Settings {
	return backup.Settings{
		Container:     c.App.Container,
		ContainerPath: c.App.ContainerDatabase,
		LocalPath:     c.projectPath(c.App.Database),
		Dir:           c.projectPath(c.Backup.Dir),
		Prefix:        c.Backup.Prefix,
		Verify:        c.Backup.Verify,
	}
}

// RunnerOptions configures the compose runner.
func (c *Config) RunnerOptions(stdout, stderr io.Writer, logger *slog.Logger) runner.Options {
	return runner.Options{
		Compose: runner.ParseComposeCommand(c.Compose.Command),
		Engine:  "docker",
		Dir:     c.Project.Dir,
		Timeout: c.Compose.CommandTimeout,
		Stdout:  stdout,
		Stderr:  stderr,
		Logger:  logger,
	}
}

func (c *Config) projectPath(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Project.Dir, p)
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format.
// Logs go to w (stderr) so the operator-facing report on stdout stays readable.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
