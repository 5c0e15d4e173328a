package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prestamos/deployer/internal/core/domain"
)

// =============================================================================
// Commands
// =============================================================================

type command string

const (
	cmdMenu        command = "menu"
	cmdDevelopment command = "development"
	cmdProduction  command = "production"
	cmdStatus      command = "status"
	cmdBackup      command = "backup"
	cmdClean       command = "clean"
	cmdCheck       command = "check"
)

const usage = `Usage: deployer [flags] [command]

Commands:
  desarrollo, dev    build and start the development deployment
  produccion, prod   generate the production definition, rebuild and start
  status             show services and recent logs
  backup             copy the database to backup-<prefix>-<timestamp>.db
  clean              remove services, volumes and the image (asks first)
  check              run the preflight checks only

Without a command an interactive menu is shown.

Flags:
`

// errUsage marks an unrecognized command line.
var errUsage = errors.New("unrecognized command")

// parseCommand maps the first positional argument, case-insensitively.
// Anything after it is ignored.
func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return cmdMenu, nil
	}

	arg := strings.ToLower(strings.TrimSpace(args[0]))
	if mode, err := domain.ParseMode(arg); err == nil {
		if mode == domain.ModeProduction {
			return cmdProduction, nil
		}
		return cmdDevelopment, nil
	}

	switch command(arg) {
	case cmdStatus, cmdBackup, cmdClean, cmdCheck:
		return command(arg), nil
	}
	return "", fmt.Errorf("%w: %q", errUsage, args[0])
}

// =============================================================================
// CLI
// =============================================================================

// operations is what the command line and menu dispatch to.
type operations interface {
	Preflight(ctx context.Context) error
	DeployDevelopment(ctx context.Context) error
	DeployProduction(ctx context.Context) error
	Status(ctx context.Context) error
	Backup(ctx context.Context) (*domain.BackupArtifact, error)
	Cleanup(ctx context.Context) error
}

// menuInput reads menu choices and acknowledgments.
type menuInput interface {
	ReadLine(label string) (string, error)
	Acknowledge() error
}

// CLI runs commands against the orchestrator and reports outcomes.
type CLI struct {
	ops    operations
	input  menuInput
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

// Execute runs cmd and returns the process exit code.
func (c *CLI) Execute(ctx context.Context, cmd command) int {
	if cmd == cmdMenu {
		return c.Menu(ctx)
	}
	if err := c.runOperation(ctx, cmd); err != nil {
		c.reportError(cmd, err)
		return ExitFailure
	}
	return ExitSuccess
}

func (c *CLI) runOperation(ctx context.Context, cmd command) error {
	c.logger.Debug("running operation", "operation", cmd)
	switch cmd {
	case cmdDevelopment:
		return c.ops.DeployDevelopment(ctx)
	case cmdProduction:
		return c.ops.DeployProduction(ctx)
	case cmdStatus:
		return c.ops.Status(ctx)
	case cmdBackup:
		_, err := c.ops.Backup(ctx)
		return err
	case cmdClean:
		return c.ops.Cleanup(ctx)
	case cmdCheck:
		return c.ops.Preflight(ctx)
	default:
		return fmt.Errorf("%w: %q", errUsage, cmd)
	}
}

func (c *CLI) reportError(cmd command, err error) {
	c.logger.Error("operation failed", "operation", cmd, "error", err)
	fmt.Fprintf(c.errOut, "Error: %v\n", err)
}

// =============================================================================
// Interactive Menu
// =============================================================================

var menuChoices = map[string]command{
	"1": cmdDevelopment,
	"2": cmdProduction,
	"3": cmdStatus,
	"4": cmdBackup,
	"5": cmdClean,
}

const menuText = `
Equipment loan tracker deployment
  1) Deploy development
  2) Deploy production
  3) Status
  4) Backup database
  5) Clean up
  6) Exit
`

// Menu loops until the operator exits or input ends. A failed operation is
// reported and the menu is shown again.
func (c *CLI) Menu(ctx context.Context) int {
	for {
		if ctx.Err() != nil {
			return ExitFailure
		}
		fmt.Fprint(c.out, menuText)

		choice, err := c.input.ReadLine("Select an option [1-6]: ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(c.out)
				return ExitSuccess
			}
			c.logger.Error("failed to read menu choice", "error", err)
			return ExitFailure
		}

		choice = strings.TrimSpace(choice)
		if choice == "6" {
			return ExitSuccess
		}
		cmd, ok := menuChoices[choice]
		if !ok {
			fmt.Fprintf(c.out, "Invalid option %q\n", choice)
			continue
		}

		if err := c.runOperation(ctx, cmd); err != nil {
			c.reportError(cmd, err)
		}
		if err := c.input.Acknowledge(); err != nil {
			return ExitSuccess
		}
	}
}
