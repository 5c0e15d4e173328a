package docker

import (
	"errors"
	"strings"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	ErrContainerNotFound = errors.New("container not found")
	ErrPathNotFound      = errors.New("path not found in container")
	ErrImageNotFound     = errors.New("image not found")
	ErrImageInUse        = errors.New("image is in use by a container")
	ErrConnectionFailed  = errors.New("docker connection failed")
)

// DockerError records which Engine API call failed and on what.
type DockerError struct {
	Op      string // client method, e.g. "RemoveImage"
	Entity  string // "container" or "image"
	ID      string // name, tag or ID
	Message string
	Err     error
}

func (e *DockerError) Error() string {
	subject := strings.TrimSpace(e.Op + " " + e.Entity + " " + e.ID)
	return subject + ": " + e.Message
}

func (e *DockerError) Unwrap() error {
	return e.Err
}

// NewDockerError creates a DockerError.
func NewDockerError(op, entity, id, message string, err error) *DockerError {
	return &DockerError{Op: op, Entity: entity, ID: id, Message: message, Err: err}
}
