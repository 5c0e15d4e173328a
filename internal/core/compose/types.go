package compose

import "time"

// =============================================================================
// Rendered Definition (what we write)
// =============================================================================

// Definition is the subset of the compose file format the deployer writes.
// Field order matches the order keys appear in the generated file.
type Definition struct {
	Services map[string]ServiceDefinition `yaml:"services"`
}

// ServiceDefinition describes one service of a generated definition.
type ServiceDefinition struct {
	Build         BuildDefinition        `yaml:"build"`
	Image         string                 `yaml:"image,omitempty"`
	ContainerName string                 `yaml:"container_name,omitempty"`
	Ports         []string               `yaml:"ports,omitempty"`
	Volumes       []string               `yaml:"volumes,omitempty"`
	Environment   map[string]string      `yaml:"environment,omitempty"`
	Restart       string                 `yaml:"restart,omitempty"`
	HealthCheck   *HealthCheckDefinition `yaml:"healthcheck,omitempty"`
}

// BuildDefinition is the build section of a service.
type BuildDefinition struct {
	Context    string `yaml:"context"`
	Dockerfile string `yaml:"dockerfile,omitempty"`
}

// HealthCheckDefinition is the declarative health check of a service.
type HealthCheckDefinition struct {
	Test        []string `yaml:"test,flow"`
	Interval    string   `yaml:"interval"`
	Timeout     string   `yaml:"timeout"`
	Retries     int      `yaml:"retries"`
	StartPeriod string   `yaml:"start_period"`
}

// HealthCheckTiming holds the health check parameters before rendering.
type HealthCheckTiming struct {
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}

// DefaultHealthCheckTiming returns the production health check parameters:
// every 30s, 10s timeout, 3 retries, 40s start grace.
func DefaultHealthCheckTiming() HealthCheckTiming {
	return HealthCheckTiming{
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		Retries:     3,
		StartPeriod: 40 * time.Second,
	}
}

// =============================================================================
// Parsed Definition (what compose-go reads back)
// =============================================================================

// Project is a parsed compose definition, decoupled from compose-go types.
// Services are sorted by name.
type Project struct {
	Services []Service
}

// Service returns the service with the given name.
func (p *Project) Service(name string) (Service, bool) {
	for _, svc := range p.Services {
		if svc.Name == name {
			return svc, true
		}
	}
	return Service{}, false
}

// Service represents a single parsed service.
type Service struct {
	Name          string
	ContainerName string
	Image         string
	Build         *BuildConfig
	Ports         []Port
	Environment   map[string]string
	Volumes       []VolumeMount
	Restart       RestartPolicy
	HealthCheck   *HealthCheck
}

// BuildConfig represents build configuration.
type BuildConfig struct {
	Context    string
	Dockerfile string
}

// Port represents a port mapping.
type Port struct {
	Target    uint32 // Container port
	Published uint32 // Host port (0 = dynamic)
	Protocol  string
	HostIP    string
}

// VolumeMount represents a volume mount in a service.
type VolumeMount struct {
	Type     VolumeMountType
	Source   string
	Target   string
	ReadOnly bool
}

// VolumeMountType represents the type of volume mount.
type VolumeMountType string

const (
	VolumeMountTypeBind   VolumeMountType = "bind"
	VolumeMountTypeVolume VolumeMountType = "volume"
	VolumeMountTypeTmpfs  VolumeMountType = "tmpfs"
)

// RestartPolicy represents the container restart policy.
type RestartPolicy string

const (
	RestartNo            RestartPolicy = "no"
	RestartAlways        RestartPolicy = "always"
	RestartOnFailure     RestartPolicy = "on-failure"
	RestartUnlessStopped RestartPolicy = "unless-stopped"
)

// HealthCheck represents a parsed health check.
type HealthCheck struct {
	Test        []string
	Interval    time.Duration
	Timeout     time.Duration
	Retries     int
	StartPeriod time.Duration
}
