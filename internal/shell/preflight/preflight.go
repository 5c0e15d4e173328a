// Package preflight verifies that the tooling and project files a deployment
// needs are in place.
package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/prestamos/deployer/internal/core/domain"
)

// Toolchain reports whether the container engine and compose front end answer.
type Toolchain interface {
	CheckEngine(ctx context.Context) error
	CheckCompose(ctx context.Context) error
}

// Settings lists what must be present in the project directory.
type Settings struct {
	Dir           string
	RequiredFiles []string
	DataDir       string
}

// Checker runs the preflight checks.
type Checker struct {
	tools    Toolchain
	settings Settings
	logger   *slog.Logger
}

// NewChecker creates a preflight checker.
func NewChecker(tools Toolchain, settings Settings, logger *slog.Logger) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Dir == "" {
		settings.Dir = "."
	}
	return &Checker{
		tools:    tools,
		settings: settings,
		logger:   logger.With("component", "preflight"),
	}
}

// Run checks the engine, the compose front end and every required file, in
// that order, stopping at the first failure. Only when all pass is the data
// directory created.
func (c *Checker) Run(ctx context.Context) error {
	if err := c.tools.CheckEngine(ctx); err != nil {
		return err
	}
	if err := c.tools.CheckCompose(ctx); err != nil {
		return err
	}

	for _, name := range c.settings.RequiredFiles {
		if err := c.checkFile(name); err != nil {
			return err
		}
	}

	if c.settings.DataDir != "" {
		if err := c.ensureDataDir(); err != nil {
			return err
		}
	}

	c.logger.Debug("preflight checks passed", "dir", c.settings.Dir)
	return nil
}

func (c *Checker) checkFile(name string) error {
	fi, err := os.Stat(c.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.MissingFileError{Path: name}
		}
		return fmt.Errorf("check %s: %w", name, err)
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory: %w", name, &domain.MissingFileError{Path: name})
	}
	return nil
}

func (c *Checker) ensureDataDir() error {
	path := c.path(c.settings.DataDir)
	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.IsDir():
		return nil
	case err == nil:
		return fmt.Errorf("data directory %s exists but is not a directory", c.settings.DataDir)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("check data directory: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}
	c.logger.Info("created data directory", "path", path)
	return nil
}

func (c *Checker) path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.settings.Dir, name)
}
