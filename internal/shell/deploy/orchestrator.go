// Package deploy sequences the deployment operations of the application:
// preflight, development and production deploys, status, backup and cleanup.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/sys/atomicwriter"

	"github.com/prestamos/deployer/internal/core/compose"
	"github.com/prestamos/deployer/internal/core/domain"
	"github.com/prestamos/deployer/internal/core/monitoring"
	"github.com/prestamos/deployer/internal/shell/docker"
)

// =============================================================================
// Collaborators
// =============================================================================

// Compose drives the compose front end for one definition file at a time.
type Compose interface {
	Build(ctx context.Context, file string, noCache bool) error
	Up(ctx context.Context, file string) error
	Stop(ctx context.Context, file string) error
	Ps(ctx context.Context, file string) error
	Logs(ctx context.Context, file string, tail int) error
	Down(ctx context.Context, file string) domain.TeardownResult
}

// Preflight verifies tooling and project files.
type Preflight interface {
	Run(ctx context.Context) error
}

// Prober waits for a started service to answer its health endpoint.
type Prober interface {
	WaitHealthy(ctx context.Context, url string, plan monitoring.ProbePlan) error
}

// BackupCreator writes a database backup.
type BackupCreator interface {
	Create(ctx context.Context) (*domain.BackupArtifact, error)
}

// Engine is the part of the Docker Engine API the orchestrator reads and removes through.
type Engine interface {
	InspectContainer(ctx context.Context, nameOrID string) (*docker.ContainerInfo, error)
	RemoveImage(ctx context.Context, image string) error
}

// Decisions supplies operator input.
type Decisions interface {
	BaseURL(ctx context.Context) (string, error)
	Confirm(ctx context.Context, question string) (bool, error)
}

// Dependencies groups the collaborators of an Orchestrator.
// Engine may be nil when the Docker Engine API is unreachable.
type Dependencies struct {
	Preflight Preflight
	Compose   Compose
	Prober    Prober
	Backup    BackupCreator
	Engine    Engine
	Decisions Decisions
	Out       io.Writer
	Logger    *slog.Logger
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator runs one deployment operation at a time.
type Orchestrator struct {
	settings  Settings
	preflight Preflight
	compose   Compose
	prober    Prober
	backup    BackupCreator
	engine    Engine
	decisions Decisions
	out       io.Writer
	logger    *slog.Logger
}

// New creates an orchestrator. settings is copied and never changed afterwards.
func New(settings Settings, deps Dependencies) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return &Orchestrator{
		settings:  settings,
		preflight: deps.Preflight,
		compose:   deps.Compose,
		prober:    deps.Prober,
		backup:    deps.Backup,
		engine:    deps.Engine,
		decisions: deps.Decisions,
		out:       deps.Out,
		logger:    deps.Logger.With("component", "orchestrator"),
	}
}

// Preflight runs the preflight checks on their own.
func (o *Orchestrator) Preflight(ctx context.Context) error {
	if err := o.runPreflight(ctx); err != nil {
		return err
	}
	o.report("All preflight checks passed")
	return nil
}

// =============================================================================
// Deploy
// =============================================================================

// Deploy runs the deploy operation of mode.
func (o *Orchestrator) Deploy(ctx context.Context, mode domain.Mode) error {
	switch mode {
	case domain.ModeDevelopment:
		return o.DeployDevelopment(ctx)
	case domain.ModeProduction:
		return o.DeployProduction(ctx)
	default:
		return fmt.Errorf("unknown deployment mode %q", mode)
	}
}

// DeployDevelopment builds with the layer cache, starts the services of the
// base definition and checks that the application answers. Running it again
// rebuilds and recreates the same service.
func (o *Orchestrator) DeployDevelopment(ctx context.Context) error {
	mode := domain.ModeDevelopment
	file := o.settings.DevFile

	if err := o.runPreflight(ctx); err != nil {
		return err
	}
	o.logger.Info("deploying", "mode", mode, "file", file)

	if err := o.buildAndStart(ctx, mode, file); err != nil {
		return err
	}
	if err := o.verify(ctx, mode, file, o.settings.DevProbe); err != nil {
		return err
	}

	o.report("Application running at %s", monitoring.AccessURL(o.settings.HealthHost, o.settings.HostPort))
	return nil
}

// DeployProduction obtains the public base URL, writes a freshly rendered
// production definition, rebuilds without cache, starts and verifies.
func (o *Orchestrator) DeployProduction(ctx context.Context) error {
	mode := domain.ModeProduction
	file := o.settings.ProdFile

	// 1. Preconditions
	if err := o.runPreflight(ctx); err != nil {
		return err
	}

	// 2. Base URL; nothing is written until it is valid
	raw, err := o.decisions.BaseURL(ctx)
	if err != nil {
		return fmt.Errorf("failed to read base URL: %w", err)
	}
	baseURL, err := domain.NormalizeBaseURL(raw)
	if err != nil {
		return err
	}
	o.logger.Info("deploying", "mode", mode, "file", file, "base_url", baseURL)

	// 3. Render and validate the definition
	params := o.settings.Production
	params.BaseURL = baseURL
	data, err := compose.RenderProduction(params)
	if err != nil {
		return fmt.Errorf("failed to render production definition: %w", err)
	}
	if _, err := compose.ParseDefinition(string(data)); err != nil {
		return fmt.Errorf("rendered production definition is invalid: %w", err)
	}

	// 4. Make sure the database bind mount points at a file
	if err := o.ensureLocalDatabase(); err != nil {
		return err
	}

	// 5. Replace the definition as a whole
	if err := atomicwriter.WriteFile(o.path(file), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", file, err)
	}
	o.report("Wrote %s", file)

	// 6. Build, start, verify
	if err := o.buildAndStart(ctx, mode, file); err != nil {
		return err
	}
	if err := o.verify(ctx, mode, file, o.settings.ProdProbe); err != nil {
		return err
	}

	o.report("Application running at %s", baseURL)
	o.report("Reminder: configure the reverse proxy and TLS for %s yourself; the deployer does not set them up", baseURL)
	return nil
}

func (o *Orchestrator) buildAndStart(ctx context.Context, mode domain.Mode, file string) error {
	if mode.NoCache() {
		o.report("Building image without cache (%s)", mode)
	} else {
		o.report("Building image (%s)", mode)
	}
	if err := o.compose.Build(ctx, file, mode.NoCache()); err != nil {
		return fmt.Errorf("failed to build %s: %w", mode, err)
	}

	o.report("Starting services")
	if err := o.compose.Up(ctx, file); err != nil {
		return fmt.Errorf("failed to start %s: %w", mode, err)
	}
	return nil
}

// verify probes the health endpoint. On failure the log tail of the scope is
// shown and, when configured, the scope is stopped again.
func (o *Orchestrator) verify(ctx context.Context, mode domain.Mode, file string, plan monitoring.ProbePlan) error {
	url := monitoring.HealthURL(o.settings.HealthHost, o.settings.HostPort, o.settings.HealthPath)
	o.report("Waiting %s for the application to start", plan.Grace)

	err := o.prober.WaitHealthy(ctx, url, plan)
	if err == nil {
		o.report("Health check passed")
		return nil
	}
	if !errors.Is(err, domain.ErrHealthCheckFailed) {
		return err
	}

	o.logger.Error("health check failed", "mode", mode, "url", url, "error", err)
	o.report("Health check failed; last %d log lines:", o.settings.FailureTail)
	if logErr := o.compose.Logs(ctx, file, o.settings.FailureTail); logErr != nil {
		o.logger.Warn("failed to read logs", "file", file, "error", logErr)
	}

	if o.settings.RollbackOnFailure {
		o.report("Stopping the %s services", mode)
		if stopErr := o.compose.Stop(ctx, file); stopErr != nil {
			o.logger.Warn("failed to stop services after failed deploy", "file", file, "error", stopErr)
		}
	}
	return err
}

func (o *Orchestrator) ensureLocalDatabase() error {
	db := o.settings.Production.Database
	if db == "" {
		return nil
	}
	path := o.path(db)

	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.Mode().IsRegular():
		return nil
	case err == nil:
		return fmt.Errorf("%s exists but is not a regular file", db)
	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("failed to check %s: %w", db, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", db, err)
	}
	o.logger.Info("created empty database file for bind mount", "path", path)
	return f.Close()
}

// =============================================================================
// Status
// =============================================================================

// Status shows the services of the active scope and their recent logs.
// Only a failed preflight is returned; everything else is reported and ignored.
func (o *Orchestrator) Status(ctx context.Context) error {
	if err := o.runPreflight(ctx); err != nil {
		return err
	}

	mode, info := o.activeScope(ctx)
	file := o.fileFor(mode)
	o.report("Active scope: %s (%s)", mode, file)

	if info != nil {
		o.report("Container %s: %s", info.Name, describeContainer(info))
	}

	if err := o.compose.Ps(ctx, file); err != nil {
		o.logger.Warn("failed to list services", "file", file, "error", err)
	}
	o.report("Last %d log lines:", o.settings.StatusTail)
	if err := o.compose.Logs(ctx, file, o.settings.StatusTail); err != nil {
		o.logger.Warn("failed to read logs", "file", file, "error", err)
	}
	return nil
}

// activeScope is production when the running container was created from the
// production definition, development otherwise.
func (o *Orchestrator) activeScope(ctx context.Context) (domain.Mode, *docker.ContainerInfo) {
	if o.engine == nil {
		return domain.ModeDevelopment, nil
	}
	info, err := o.engine.InspectContainer(ctx, o.settings.Container)
	if err != nil {
		if !errors.Is(err, docker.ErrContainerNotFound) {
			o.logger.Warn("failed to inspect container", "container", o.settings.Container, "error", err)
		}
		return domain.ModeDevelopment, nil
	}

	prod := filepath.Base(o.settings.ProdFile)
	for _, f := range strings.Split(info.ComposeConfigFiles(), ",") {
		if filepath.Base(strings.TrimSpace(f)) == prod {
			return domain.ModeProduction, info
		}
	}
	return domain.ModeDevelopment, info
}

func describeContainer(info *docker.ContainerInfo) string {
	parts := []string{string(info.Status)}
	if info.Health != "" {
		parts = append(parts, info.Health)
	}
	for _, p := range info.Ports {
		parts = append(parts, p.String())
	}
	if project := info.Labels[docker.LabelComposeProject]; project != "" {
		parts = append(parts, "project "+project)
	}
	return strings.Join(parts, ", ")
}

// =============================================================================
// Backup
// =============================================================================

// Backup writes a timestamped copy of the database.
func (o *Orchestrator) Backup(ctx context.Context) (*domain.BackupArtifact, error) {
	if err := o.runPreflight(ctx); err != nil {
		return nil, err
	}

	artifact, err := o.backup.Create(ctx)
	if err != nil {
		return nil, err
	}

	o.report("Backup written to %s (%d bytes, from %s)", artifact.Path, artifact.Size, artifact.Source)
	if v := artifact.Verification; v != nil {
		if v.Healthy() {
			o.report("Integrity check ok; %s", formatTables(v.Tables))
		} else {
			o.report("Integrity check reported: %s", v.Integrity)
		}
	}
	return artifact, nil
}

func formatTables(tables map[string]int64) string {
	if len(tables) == 0 {
		return "no tables"
	}
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", name, tables[name]))
	}
	return strings.Join(parts, " ")
}

// =============================================================================
// Cleanup
// =============================================================================

// Cleanup tears down both scopes and removes the image after the operator
// confirms. Declining is not an error. All three teardowns are attempted;
// their failures are returned together.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	if err := o.runPreflight(ctx); err != nil {
		return err
	}

	ok, err := o.decisions.Confirm(ctx, fmt.Sprintf(
		"This removes the development and production services, their volumes and the image %s. Continue?",
		o.settings.Image))
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !ok {
		o.logger.Info("cleanup cancelled by operator")
		o.report("Cleanup cancelled")
		return nil
	}

	results := []domain.TeardownResult{
		o.compose.Down(ctx, o.settings.DevFile),
		o.compose.Down(ctx, o.settings.ProdFile),
		o.removeImage(ctx),
	}

	var errs []error
	for _, r := range results {
		o.report("%s: %s", r.Target, r.Outcome)
		if !r.OK() {
			o.logger.Error("teardown failed", "target", r.Target, "error", r.Err)
			errs = append(errs, r.Error())
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) removeImage(ctx context.Context) domain.TeardownResult {
	target := "image " + o.settings.Image
	if o.engine == nil {
		return domain.TeardownError(target, docker.ErrConnectionFailed)
	}

	err := o.engine.RemoveImage(ctx, o.settings.Image)
	switch {
	case err == nil:
		return domain.TornDown(target)
	case errors.Is(err, docker.ErrImageNotFound):
		return domain.AlreadyAbsent(target)
	default:
		return domain.TeardownError(target, err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (o *Orchestrator) runPreflight(ctx context.Context) error {
	if err := o.preflight.Run(ctx); err != nil {
		o.logger.Error("preflight failed", "error", err)
		return fmt.Errorf("preflight: %w", err)
	}
	return nil
}

func (o *Orchestrator) fileFor(mode domain.Mode) string {
	if mode == domain.ModeProduction {
		return o.settings.ProdFile
	}
	return o.settings.DevFile
}

func (o *Orchestrator) path(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(o.settings.Dir, file)
}

func (o *Orchestrator) report(format string, args ...any) {
	fmt.Fprintf(o.out, "==> "+format+"\n", args...)
}
