package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/prestamos/deployer/internal/core/domain"
)

// Options configures a Runner.
type Options struct {
	// Compose is the compose front end, e.g. ["docker", "compose"] or ["docker-compose"].
	Compose []string
	// Engine is the container engine binary used for the reachability check.
	Engine string
	// Dir is the project directory every command runs in.
	Dir string
	// Timeout bounds each command. Zero means no timeout.
	Timeout time.Duration
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
}

// Runner runs compose commands against one project directory.
type Runner struct {
	compose []string
	engine  string
	dir     string
	timeout time.Duration
	stdout  io.Writer
	stderr  io.Writer
	logger  *slog.Logger
	exec    ExecFunc
}

// New creates a Runner. Unset options fall back to `docker compose` in the
// current directory with output on the process's stdout and stderr.
func New(opts Options) *Runner {
	if len(opts.Compose) == 0 {
		opts.Compose = []string{"docker", "compose"}
	}
	if opts.Engine == "" {
		opts.Engine = "docker"
	}
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		compose: opts.Compose,
		engine:  opts.Engine,
		dir:     opts.Dir,
		timeout: opts.Timeout,
		stdout:  opts.Stdout,
		stderr:  opts.Stderr,
		logger:  opts.Logger.With("component", "compose_runner"),
		exec:    execCommand,
	}
}

// ParseComposeCommand splits a configured front end such as "docker compose".
func ParseComposeCommand(s string) []string {
	return strings.Fields(s)
}

// =============================================================================
// Tool Checks
// =============================================================================

// CheckEngine verifies the container engine answers `docker version`.
func (r *Runner) CheckEngine(ctx context.Context) error {
	c := Command{Name: r.engine, Args: []string{"version"}, Dir: r.dir, Stdout: io.Discard, Stderr: io.Discard}
	if err := r.run(ctx, c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrEngineUnavailable, err)
	}
	return nil
}

// CheckCompose verifies the compose front end answers `version`.
func (r *Runner) CheckCompose(ctx context.Context) error {
	c := r.composeCommand("", "version")
	c.Stdout, c.Stderr = io.Discard, io.Discard
	if err := r.run(ctx, c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrComposeUnavailable, err)
	}
	return nil
}

// =============================================================================
// Lifecycle
// =============================================================================

// Build builds the images of file. noCache forces a full rebuild.
func (r *Runner) Build(ctx context.Context, file string, noCache bool) error {
	args := []string{"build"}
	if noCache {
		args = append(args, "--no-cache")
	}
	return r.run(ctx, r.composeCommand(file, args...))
}

// Up starts (or recreates) the services of file in the background.
func (r *Runner) Up(ctx context.Context, file string) error {
	return r.run(ctx, r.composeCommand(file, "up", "-d"))
}

// Stop stops the services of file without removing them.
func (r *Runner) Stop(ctx context.Context, file string) error {
	return r.run(ctx, r.composeCommand(file, "stop"))
}

// Ps lists the services of file.
func (r *Runner) Ps(ctx context.Context, file string) error {
	return r.run(ctx, r.composeCommand(file, "ps"))
}

// Logs prints the last tail lines of the service logs of file.
func (r *Runner) Logs(ctx context.Context, file string, tail int) error {
	return r.run(ctx, r.composeCommand(file, "logs", "--tail", strconv.Itoa(tail)))
}

// Down removes the services of file together with their anonymous volumes.
// A definition that was never written, or that has no containers, is
// reported as already absent.
func (r *Runner) Down(ctx context.Context, file string) domain.TeardownResult {
	if _, err := os.Stat(r.path(file)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			r.logger.Debug("definition not found, nothing to tear down", "file", file)
			return domain.AlreadyAbsent(file)
		}
		return domain.TeardownError(file, err)
	}

	var ids bytes.Buffer
	ps := r.composeCommand(file, "ps", "-a", "-q")
	ps.Stdout = &ids
	if err := r.run(ctx, ps); err != nil {
		return domain.TeardownError(file, err)
	}

	if err := r.run(ctx, r.composeCommand(file, "down", "-v", "--remove-orphans")); err != nil {
		return domain.TeardownError(file, err)
	}

	if strings.TrimSpace(ids.String()) == "" {
		return domain.AlreadyAbsent(file)
	}
	return domain.TornDown(file)
}

// =============================================================================
// Helpers
// =============================================================================

func (r *Runner) composeCommand(file string, args ...string) Command {
	all := append([]string{}, r.compose[1:]...)
	if file != "" {
		all = append(all, "-f", file)
	}
	all = append(all, args...)
	return Command{
		Name:   r.compose[0],
		Args:   all,
		Dir:    r.dir,
		Stdout: r.stdout,
		Stderr: r.stderr,
	}
}

func (r *Runner) run(ctx context.Context, c Command) error {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	r.logger.Debug("running command", "command", c.String(), "dir", c.Dir)
	return resultError(c, r.exec(ctx, c))
}

func (r *Runner) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(r.dir, file)
}
