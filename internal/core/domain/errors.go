package domain

import (
	"errors"
	"fmt"
)

// =============================================================================
// Orchestration Errors
// =============================================================================

var (
	// Precondition errors
	ErrEngineUnavailable   = errors.New("container engine is not available")
	ErrComposeUnavailable  = errors.New("compose front end is not available")
	ErrRequiredFileMissing = errors.New("required file is missing")

	// Input validation errors
	ErrBaseURLRequired = errors.New("public base URL is required")
	ErrInvalidBaseURL  = errors.New("public base URL must be an absolute http(s) URL")

	// Deployment errors
	ErrHealthCheckFailed = errors.New("service did not pass its health check")

	// Backup errors
	ErrNothingToBackup = errors.New("nothing to back up: service is not running and no local database exists")
	ErrBackupExists    = errors.New("backup file already exists")
)

// MissingFileError names the prerequisite file that was not found.
type MissingFileError struct {
	Path string
}

func (e *MissingFileError) Error() string {
	return fmt.Sprintf("required file %q not found", e.Path)
}

func (e *MissingFileError) Unwrap() error {
	return ErrRequiredFileMissing
}
