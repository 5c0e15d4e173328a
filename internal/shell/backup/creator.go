// Package backup copies the application database to timestamped backup files.
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prestamos/deployer/internal/core/domain"
	"github.com/prestamos/deployer/internal/shell/docker"
)

// ContainerSource is the part of the Docker client a backup needs.
type ContainerSource interface {
	InspectContainer(ctx context.Context, nameOrID string) (*docker.ContainerInfo, error)
	CopyFileFromContainer(ctx context.Context, nameOrID, srcPath string, dst io.Writer) (int64, error)
}

// Settings configures where backups are read from and written to.
type Settings struct {
	// Container is the name of the application container.
	Container string
	// ContainerPath is the database path inside the container.
	ContainerPath string
	// LocalPath is the database on the host, used when the container is not running.
	LocalPath string
	// Dir receives the backup files.
	Dir string
	// Prefix is embedded in the file name: backup-<prefix>-<timestamp>.db.
	Prefix string
	// Verify opens the copy as SQLite and checks it after writing.
	Verify bool
}

// Creator writes database backups.
type Creator struct {
	settings Settings
	source   ContainerSource
	verifier *Verifier
	logger   *slog.Logger
	now      func() time.Time
}

// NewCreator creates a backup creator. source may be nil when the Docker
// Engine API is unreachable; backups then come from the local file only.
func NewCreator(settings Settings, source ContainerSource, logger *slog.Logger) *Creator {
	if logger == nil {
		logger = slog.Default()
	}
	if settings.Dir == "" {
		settings.Dir = "."
	}
	settings.Prefix = domain.SanitizePrefix(settings.Prefix)
	if settings.Prefix == "" {
		settings.Prefix = "equipos"
	}
	return &Creator{
		settings: settings,
		source:   source,
		verifier: NewVerifier(),
		logger:   logger.With("component", "backup"),
		now:      time.Now,
	}
}

// Create copies the database out of the running container, or from the local
// file when the container is not running. It never overwrites an existing file.
func (c *Creator) Create(ctx context.Context) (*domain.BackupArtifact, error) {
	source, err := c.pickSource(ctx)
	if err != nil {
		return nil, err
	}

	createdAt := c.now()
	name := domain.BackupFileName(c.settings.Prefix, createdAt)
	path := filepath.Join(c.settings.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return nil, collision(path, name)
		}
		return nil, fmt.Errorf("create backup file: %w", err)
	}

	size, err := c.copy(ctx, source, f)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("write backup %s: %w", path, err)
	}

	artifact := &domain.BackupArtifact{
		Path:      path,
		Source:    source,
		Size:      size,
		CreatedAt: createdAt,
	}
	c.logger.Info("backup written", "path", path, "source", source, "bytes", size)

	if c.settings.Verify {
		v, err := c.verifier.Verify(ctx, path)
		if err != nil {
			c.logger.Warn("backup verification failed", "path", path, "error", err)
		} else {
			if !v.Healthy() {
				c.logger.Warn("backup integrity check reported problems", "path", path, "integrity", v.Integrity)
			}
			artifact.Verification = v
		}
	}

	return artifact, nil
}

// pickSource decides where the copy comes from before anything is written.
func (c *Creator) pickSource(ctx context.Context) (domain.BackupSource, error) {
	if c.source != nil {
		info, err := c.source.InspectContainer(ctx, c.settings.Container)
		switch {
		case err == nil && info.Running():
			return domain.BackupSourceContainer, nil
		case err == nil:
			c.logger.Info("container is not running, using local database", "container", c.settings.Container, "status", info.Status)
		case errors.Is(err, docker.ErrContainerNotFound):
			c.logger.Info("container not found, using local database", "container", c.settings.Container)
		default:
			c.logger.Warn("could not inspect container, using local database", "container", c.settings.Container, "error", err)
		}
	}

	fi, err := os.Stat(c.settings.LocalPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: container %q is not running and %s does not exist",
				domain.ErrNothingToBackup, c.settings.Container, c.settings.LocalPath)
		}
		return "", fmt.Errorf("stat local database: %w", err)
	}
	if !fi.Mode().IsRegular() {
		return "", fmt.Errorf("%w: %s is not a regular file", domain.ErrNothingToBackup, c.settings.LocalPath)
	}
	return domain.BackupSourceLocal, nil
}

func (c *Creator) copy(ctx context.Context, source domain.BackupSource, dst io.Writer) (int64, error) {
	if source == domain.BackupSourceContainer {
		return c.source.CopyFileFromContainer(ctx, c.settings.Container, c.settings.ContainerPath, dst)
	}

	src, err := os.Open(c.settings.LocalPath)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	return io.Copy(dst, src)
}

// collision reports a backup name that is already taken. Names have
// one-second resolution, so two backups in the same second collide.
func collision(path, name string) error {
	if _, at, ok := domain.ParseBackupFileName(name); ok {
		return fmt.Errorf("%w: %s (a backup was already taken at %s; retry in a second)",
			domain.ErrBackupExists, path, at.Format(time.DateTime))
	}
	return fmt.Errorf("%w: %s", domain.ErrBackupExists, path)
}
