// Package compose renders and validates the service definitions the deployer
// hands to `docker compose`. Everything here is pure: no I/O.
package compose

import "errors"

var (
	ErrEmptyInput      = errors.New("compose definition is empty")
	ErrMissingBaseURL  = errors.New("production definition requires a base URL")
	ErrMissingService  = errors.New("production definition requires a service name")
	ErrInvalidPort     = errors.New("invalid port configuration")
	ErrInvalidDuration = errors.New("invalid health check timing")
	ErrInvalidYAML     = errors.New("invalid YAML syntax")
	ErrNoServices      = errors.New("compose definition must define at least one service")
	ErrServiceNoImage  = errors.New("service must have image or build")
)

// DefinitionError points at the part of a definition that was rejected.
// Path is a dotted location such as "services.app.ports[0]"; it is empty when
// the problem concerns the document as a whole.
type DefinitionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *DefinitionError) Error() string {
	if e.Path == "" {
		return e.Reason
	}
	return e.Path + ": " + e.Reason
}

func (e *DefinitionError) Unwrap() error { return e.Err }

func invalidAt(path, reason string, err error) *DefinitionError {
	return &DefinitionError{Path: path, Reason: reason, Err: err}
}
