package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
)

// Command is a single process invocation.
type Command struct {
	Name   string
	Args   []string
	Dir    string
	Stdout io.Writer
	Stderr io.Writer
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Result is the outcome of running a Command.
type Result struct {
	Code int
	Err  error
}

// ExecFunc runs a command. It is swapped out in tests.
type ExecFunc func(ctx context.Context, c Command) Result

func execCommand(ctx context.Context, c Command) Result {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Stdout = c.Stdout
	cmd.Stderr = c.Stderr
	err := cmd.Run()
	code := 0
	if err != nil {
		var ee *exec.ExitError
		if errors.As(err, &ee) {
			code = ee.ExitCode()
		} else if ctx.Err() == context.DeadlineExceeded {
			code = 124
		} else {
			code = 1
		}
	}
	return Result{Code: code, Err: err}
}

// CommandError reports a command that exited non-zero.
type CommandError struct {
	Command string
	Code    int
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: exit code %d: %v", e.Command, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: exit code %d", e.Command, e.Code)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

func resultError(c Command, res Result) error {
	if res.Code == 0 && res.Err == nil {
		return nil
	}
	return &CommandError{Command: c.String(), Code: res.Code, Err: res.Err}
}
