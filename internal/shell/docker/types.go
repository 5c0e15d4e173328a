// Package docker talks to the Docker Engine API for the parts of a deployment
// the compose CLI does not cover: looking a container up by name, copying a
// file out of it, and removing the built image.
package docker

import (
	"context"
	"fmt"
	"io"
	"time"
)

// =============================================================================
// Container Info
// =============================================================================

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// PortBinding is a published container port.
type PortBinding struct {
	ContainerPort int
	HostPort      int
	Protocol      string
	HostIP        string
}

func (p PortBinding) String() string {
	host := p.HostIP
	if host == "" {
		host = "0.0.0.0"
	}
	return fmt.Sprintf("%s:%d->%d/%s", host, p.HostPort, p.ContainerPort, p.Protocol)
}

// ContainerInfo contains information about a container.
type ContainerInfo struct {
	ID        string
	Name      string
	Image     string
	Status    ContainerStatus
	Health    string // "healthy", "unhealthy", "starting", ""
	StartedAt *time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// Running reports whether the container is up.
func (c *ContainerInfo) Running() bool {
	return c != nil && c.Status == ContainerStatusRunning
}

// ComposeConfigFiles returns the compose files the container was created from,
// as recorded by compose in the container labels.
func (c *ContainerInfo) ComposeConfigFiles() string {
	if c == nil {
		return ""
	}
	return c.Labels[LabelComposeConfigFiles]
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the Docker client interface.
type Client interface {
	InspectContainer(ctx context.Context, nameOrID string) (*ContainerInfo, error)
	CopyFileFromContainer(ctx context.Context, nameOrID, srcPath string, dst io.Writer) (int64, error)
	RemoveImage(ctx context.Context, image string) error

	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

const (
	LabelComposeProject     = "com.docker.compose.project"
	LabelComposeConfigFiles = "com.docker.compose.project.config_files"
)
