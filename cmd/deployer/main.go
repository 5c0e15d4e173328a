// Command deployer builds, starts, checks, backs up and removes the
// equipment loan tracker's containers.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/prestamos/deployer/internal/shell/backup"
	"github.com/prestamos/deployer/internal/shell/deploy"
	"github.com/prestamos/deployer/internal/shell/docker"
	"github.com/prestamos/deployer/internal/shell/health"
	"github.com/prestamos/deployer/internal/shell/preflight"
	"github.com/prestamos/deployer/internal/shell/prompt"
	"github.com/prestamos/deployer/internal/shell/runner"
)

// Version information (set by build)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitFailure = 1
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	// Parse command line flags
	flags := pflag.NewFlagSet("deployer", pflag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = func() {
		fmt.Fprint(stderr, usage)
		flags.PrintDefaults()
	}
	configPath := flags.String("config", "", "Path to config file")
	flags.String("base-url", "", "Public base URL for production deploys")
	flags.Bool("yes", false, "Answer yes to the cleanup confirmation")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	showVersion := flags.Bool("version", false, "Print version and exit")

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return ExitSuccess
		}
		return ExitFailure
	}

	// Handle version flag
	if *showVersion {
		fmt.Fprintf(stdout, "deployer %s (built %s)\n", Version, BuildTime)
		return ExitSuccess
	}

	// Resolve the command before touching anything
	cmd, err := parseCommand(flags.Args())
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		flags.Usage()
		return ExitFailure
	}

	// Load configuration
	cfg, err := LoadConfig(*configPath, flags)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return ExitFailure
	}

	// Setup logger
	logger := SetupLogger(cfg, stderr).With("run_id", uuid.NewString())
	slog.SetDefault(logger)
	logger.Debug("starting deployer", "version", Version, "command", cmd, "config", *configPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli, closeFn := newCLI(ctx, cfg, logger, stdin, stdout, stderr)
	defer closeFn()

	return cli.Execute(ctx, cmd)
}

// newCLI wires the orchestrator and its collaborators from cfg.
func newCLI(ctx context.Context, cfg *Config, logger *slog.Logger, stdin io.Reader, stdout, stderr io.Writer) (*CLI, func()) {
	terminal := prompt.NewTerminal(stdin, stdout)
	compose := runner.New(cfg.RunnerOptions(stdout, stderr, logger))

	var (
		engine  deploy.Engine
		source  backup.ContainerSource
		closeFn = func() {}
	)
	dc, err := connectEngine(ctx, cfg.Docker.Host)
	if err != nil {
		logger.Warn("docker engine API unavailable; status details and image removal are limited", "error", err)
	} else {
		engine, source = dc, dc
		closeFn = func() { _ = dc.Close() }
	}

	orch := deploy.New(cfg.DeploySettings(), deploy.Dependencies{
		Preflight: preflight.NewChecker(compose, cfg.PreflightSettings(), logger),
		Compose:   compose,
		Prober:    health.NewProber(logger),
		Backup:    backup.NewCreator(cfg.BackupSettings(), source, logger),
		Engine:    engine,
		Decisions: prompt.Preset{
			URL:       cfg.Production.BaseURL,
			AssumeYes: cfg.Deploy.AssumeYes,
			Fallback:  terminal,
		},
		Out:    stdout,
		Logger: logger,
	})

	return &CLI{
		ops:    orch,
		input:  terminal,
		out:    stdout,
		errOut: stderr,
		logger: logger,
	}, closeFn
}

// engineProbeTimeout bounds the start-up reachability check of the Engine API.
const engineProbeTimeout = 3 * time.Second

// connectEngine opens an Engine API client and checks that the daemon answers.
func connectEngine(ctx context.Context, host string) (docker.Client, error) {
	dc, err := docker.NewDockerClient(host)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, engineProbeTimeout)
	defer cancel()
	if err := dc.Ping(pingCtx); err != nil {
		_ = dc.Close()
		return nil, err
	}
	return dc, nil
}
