// Package prompt reads operator decisions from a terminal or from values
// supplied up front.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Source supplies the operator input that deployments and cleanup ask for.
type Source interface {
	BaseURL(ctx context.Context) (string, error)
	Confirm(ctx context.Context, question string) (bool, error)
}

// =============================================================================
// Terminal
// =============================================================================

// Terminal asks the operator on an interactive stream.
type Terminal struct {
	in    *bufio.Reader
	out   io.Writer
	fd    int
	isTTY bool
}

// NewTerminal creates a terminal prompt over in and out. Raw single-key
// acknowledgment is used only when in is a TTY.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	t := &Terminal{
		in:  bufio.NewReader(in),
		out: out,
		fd:  -1,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		t.fd = int(f.Fd())
		t.isTTY = true
	}
	return t
}

// ReadLine prints label and returns the next input line without its line
// ending. io.EOF is returned only when the input ended before any text.
func (t *Terminal) ReadLine(label string) (string, error) {
	if label != "" {
		fmt.Fprint(t.out, label)
	}
	line, err := t.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// BaseURL asks for the public URL the production service will be reached at.
func (t *Terminal) BaseURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := t.ReadLine("Public base URL (e.g. https://prestamos.example.org): ")
	if errors.Is(err, io.EOF) {
		return "", nil
	}
	return strings.TrimSpace(line), err
}

// Confirm asks a yes/no question. Anything but an explicit yes, including end
// of input, is a no.
func (t *Terminal) Confirm(ctx context.Context, question string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	line, err := t.ReadLine(question + " [y/N]: ")
	if errors.Is(err, io.EOF) {
		fmt.Fprintln(t.out)
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return IsYes(line), nil
}

// Acknowledge waits for the operator before the menu is redrawn: any single
// key on a TTY, a full line otherwise.
func (t *Terminal) Acknowledge() error {
	fmt.Fprint(t.out, "Press any key to continue...")
	defer fmt.Fprintln(t.out)

	if t.isTTY {
		state, err := term.MakeRaw(t.fd)
		if err == nil {
			defer term.Restore(t.fd, state)
			_, err = t.in.ReadByte()
			return err
		}
	}

	_, err := t.in.ReadString('\n')
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// IsYes reports whether answer is an affirmative reply.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "s", "si", "sí":
		return true
	}
	return false
}

// =============================================================================
// Preset
// =============================================================================

// Preset answers from values given on the command line or in configuration
// and defers to Fallback for anything not supplied.
type Preset struct {
	URL       string
	AssumeYes bool
	Fallback  Source
}

// BaseURL returns the preset URL, or asks the fallback.
func (p Preset) BaseURL(ctx context.Context) (string, error) {
	if url := strings.TrimSpace(p.URL); url != "" {
		return url, nil
	}
	if p.Fallback == nil {
		return "", nil
	}
	return p.Fallback.BaseURL(ctx)
}

// Confirm returns true when AssumeYes is set, or asks the fallback. With no
// fallback the answer is no.
func (p Preset) Confirm(ctx context.Context, question string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	if p.Fallback == nil {
		return false, nil
	}
	return p.Fallback.Confirm(ctx, question)
}
