// Package domain holds the value types shared by the deployer.
// Everything here is pure: no I/O, no side effects.
package domain

import (
	"fmt"
	"strings"
)

// Mode selects which service definition and build policy apply.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

func (m Mode) String() string {
	return string(m)
}

// NoCache reports whether images for this mode are rebuilt without layer cache.
func (m Mode) NoCache() bool {
	return m == ModeProduction
}

// ParseMode accepts the command-line names of a mode, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "desarrollo", "dev":
		return ModeDevelopment, nil
	case "produccion", "prod":
		return ModeProduction, nil
	default:
		return "", fmt.Errorf("unknown deployment mode %q", s)
	}
}
