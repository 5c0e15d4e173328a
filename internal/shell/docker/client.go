package docker

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

// probeTimeout bounds the ping used to pick a socket.
const probeTimeout = 3 * time.Second

// DockerClient implements Client on top of the Docker Engine SDK.
type DockerClient struct {
	cli *client.Client
}

// NewDockerClient connects to host, or to the environment's default daemon
// when host is empty. If the default socket does not answer, the per-user
// Docker Desktop socket is tried before giving up on it.
func NewDockerClient(host string) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", err.Error(), ErrConnectionFailed)
	}
	if host != "" || reachable(cli) {
		return &DockerClient{cli: cli}, nil
	}

	if socket := desktopSocket(); socket != "" {
		alt, err := client.NewClientWithOpts(client.WithHost(socket), client.WithAPIVersionNegotiation())
		if err == nil && reachable(alt) {
			_ = cli.Close()
			return &DockerClient{cli: alt}, nil
		}
		if alt != nil {
			_ = alt.Close()
		}
	}
	return &DockerClient{cli: cli}, nil
}

func reachable(cli *client.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()
	_, err := cli.Ping(ctx)
	return err == nil
}

func desktopSocket() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return "unix://" + filepath.Join(home, ".docker", "run", "docker.sock")
}

// Ping checks that the daemon answers.
func (d *DockerClient) Ping(ctx context.Context) error {
	if _, err := d.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close releases the underlying connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Container Operations
// =============================================================================

// InspectContainer looks a container up by name or ID.
func (d *DockerClient) InspectContainer(ctx context.Context, nameOrID string) (*ContainerInfo, error) {
	resp, err := d.cli.ContainerInspect(ctx, nameOrID)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil, NewDockerError("InspectContainer", "container", nameOrID, "no such container", ErrContainerNotFound)
		}
		return nil, NewDockerError("InspectContainer", "container", nameOrID, err.Error(), err)
	}
	return containerInfo(resp), nil
}

func containerInfo(resp container.InspectResponse) *ContainerInfo {
	info := &ContainerInfo{}
	if resp.ContainerJSONBase != nil {
		info.ID = resp.ID
		info.Name = strings.TrimPrefix(resp.Name, "/")
		if st := resp.State; st != nil {
			info.Status = ContainerStatus(st.Status)
			if st.Health != nil {
				info.Health = st.Health.Status
			}
			if started, err := time.Parse(time.RFC3339Nano, st.StartedAt); err == nil && !started.IsZero() {
				info.StartedAt = &started
			}
		}
	}
	if resp.Config != nil {
		info.Image = resp.Config.Image
		info.Labels = resp.Config.Labels
	}
	if resp.NetworkSettings != nil {
		info.Ports = convertPortMap(resp.NetworkSettings.Ports)
	}
	return info
}

// CopyFileFromContainer streams one regular file out of a container into dst
// and returns the number of bytes written.
func (d *DockerClient) CopyFileFromContainer(ctx context.Context, nameOrID, srcPath string, dst io.Writer) (int64, error) {
	const op = "CopyFileFromContainer"

	rc, _, err := d.cli.CopyFromContainer(ctx, nameOrID, srcPath)
	switch {
	case err == nil:
	case errdefs.IsNotFound(err) && strings.Contains(err.Error(), "No such container"):
		return 0, NewDockerError(op, "container", nameOrID, "no such container", ErrContainerNotFound)
	case errdefs.IsNotFound(err):
		return 0, NewDockerError(op, "container", nameOrID, srcPath+" does not exist", ErrPathNotFound)
	default:
		return 0, NewDockerError(op, "container", nameOrID, err.Error(), err)
	}
	defer rc.Close()

	n, err := extractSingleFile(rc, dst)
	if err != nil {
		return n, NewDockerError(op, "container", nameOrID, err.Error(), err)
	}
	return n, nil
}

// =============================================================================
// Image Operations
// =============================================================================

// RemoveImage deletes an image by reference, pruning untagged parents.
func (d *DockerClient) RemoveImage(ctx context.Context, ref string) error {
	_, err := d.cli.ImageRemove(ctx, ref, image.RemoveOptions{PruneChildren: true})
	switch {
	case err == nil:
		return nil
	case errdefs.IsNotFound(err):
		return NewDockerError("RemoveImage", "image", ref, "no such image", ErrImageNotFound)
	case errdefs.IsConflict(err):
		return NewDockerError("RemoveImage", "image", ref, err.Error(), ErrImageInUse)
	default:
		return NewDockerError("RemoveImage", "image", ref, err.Error(), err)
	}
}

// =============================================================================
// Helpers
// =============================================================================

// extractSingleFile copies the first regular file of a tar stream into dst.
func extractSingleFile(r io.Reader, dst io.Writer) (int64, error) {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return 0, ErrPathNotFound
		}
		if err != nil {
			return 0, fmt.Errorf("read archive: %w", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		n, err := io.Copy(dst, tr)
		if err != nil {
			return n, fmt.Errorf("copy %s: %w", hdr.Name, err)
		}
		return n, nil
	}
}

// convertPortMap flattens the published ports, ordered by container port
// then host address.
func convertPortMap(portMap nat.PortMap) []PortBinding {
	var ports []PortBinding
	for port, bindings := range portMap {
		for _, b := range bindings {
			hostPort, _ := nat.ParsePort(b.HostPort)
			ports = append(ports, PortBinding{
				ContainerPort: port.Int(),
				HostPort:      hostPort,
				Protocol:      port.Proto(),
				HostIP:        b.HostIP,
			})
		}
	}
	sort.Slice(ports, func(i, j int) bool {
		if ports[i].ContainerPort != ports[j].ContainerPort {
			return ports[i].ContainerPort < ports[j].ContainerPort
		}
		return ports[i].HostIP < ports[j].HostIP
	})
	return ports
}
