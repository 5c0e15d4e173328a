package compose

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by the application.
const (
	EnvBaseURL    = "BASE_URL"
	EnvEnableCORS = "STREAMLIT_SERVER_ENABLE_CORS"
	EnvEnableXSRF = "STREAMLIT_SERVER_ENABLE_XSRF_PROTECTION"
)

const generatedHeader = "# Generated by deployer on every production deploy.\n" +
	"# Manual edits are overwritten. TLS and the reverse proxy are configured outside this file.\n"

// ProductionParams holds everything needed to synthesize the production definition.
type ProductionParams struct {
	ServiceName       string
	Image             string
	BuildContext      string
	Dockerfile        string
	HostPort          int
	ContainerPort     int
	DataDir           string // host path, relative to the project directory
	ContainerDataDir  string
	Database          string // host path, relative to the project directory
	ContainerDatabase string
	BaseURL           string
	HealthPath        string
	HealthCheck       HealthCheckTiming
}

// =============================================================================
// Rendering
// =============================================================================

// RenderProduction returns the YAML of the production definition for p.
// The result is a fresh snapshot; nothing from a previous render is merged in.
func RenderProduction(p ProductionParams) ([]byte, error) {
	def, err := BuildProductionDefinition(p)
	if err != nil {
		return nil, err
	}
	return Marshal(def)
}

// BuildProductionDefinition assembles the production definition for p.
// CORS and XSRF protection are switched off at the application server; the
// reverse proxy in front of it is expected to enforce them.
func BuildProductionDefinition(p ProductionParams) (*Definition, error) {
	baseURL := strings.TrimSpace(p.BaseURL)
	if baseURL == "" {
		return nil, ErrMissingBaseURL
	}
	if strings.TrimSpace(p.ServiceName) == "" {
		return nil, ErrMissingService
	}
	if !validPort(p.HostPort) {
		return nil, invalidAt("ports", fmt.Sprintf("host port %d out of range", p.HostPort), ErrInvalidPort)
	}
	if !validPort(p.ContainerPort) {
		return nil, invalidAt("ports", fmt.Sprintf("container port %d out of range", p.ContainerPort), ErrInvalidPort)
	}
	if err := validateTiming(p.HealthCheck); err != nil {
		return nil, err
	}

	buildContext := p.BuildContext
	if buildContext == "" {
		buildContext = "."
	}

	healthPath := p.HealthPath
	if !strings.HasPrefix(healthPath, "/") {
		healthPath = "/" + healthPath
	}
	probeURL := fmt.Sprintf("http://localhost:%d%s", p.ContainerPort, healthPath)

	svc := ServiceDefinition{
		Build: BuildDefinition{
			Context:    buildContext,
			Dockerfile: p.Dockerfile,
		},
		Image:         p.Image,
		ContainerName: p.ServiceName,
		Ports:         []string{fmt.Sprintf("%d:%d", p.HostPort, p.ContainerPort)},
		Volumes: []string{
			bindSource(p.DataDir) + ":" + p.ContainerDataDir,
			bindSource(p.Database) + ":" + p.ContainerDatabase,
		},
		Environment: map[string]string{
			EnvBaseURL:    escapeInterpolation(baseURL),
			EnvEnableCORS: "false",
			EnvEnableXSRF: "false",
		},
		Restart: string(RestartUnlessStopped),
		HealthCheck: &HealthCheckDefinition{
			Test:        []string{"CMD", "curl", "--fail", probeURL},
			Interval:    formatDuration(p.HealthCheck.Interval),
			Timeout:     formatDuration(p.HealthCheck.Timeout),
			Retries:     p.HealthCheck.Retries,
			StartPeriod: formatDuration(p.HealthCheck.StartPeriod),
		},
	}
	return &Definition{
		Services: map[string]ServiceDefinition{p.ServiceName: svc},
	}, nil
}

// Marshal encodes def as YAML with a generated-file header.
func Marshal(def *Definition) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(generatedHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	return buf.Bytes(), nil
}

// =============================================================================
// Helpers
// =============================================================================

func validPort(p int) bool {
	return p > 0 && p <= 65535
}

func validateTiming(t HealthCheckTiming) error {
	if t.Interval <= 0 || t.Timeout <= 0 {
		return invalidAt("healthcheck", "interval and timeout must be positive", ErrInvalidDuration)
	}
	if t.Retries < 0 || t.StartPeriod < 0 {
		return invalidAt("healthcheck", "retries and start_period cannot be negative", ErrInvalidDuration)
	}
	return nil
}

// formatDuration renders d the way compose files are usually written ("30s", "2m").
func formatDuration(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// bindSource turns a host path into a compose bind-mount source.
// Relative paths get a "./" prefix so compose does not read them as volume names.
func bindSource(path string) string {
	if filepath.IsAbs(path) {
		return filepath.ToSlash(path)
	}
	clean := filepath.ToSlash(filepath.Clean(path))
	if strings.HasPrefix(clean, "../") {
		return clean
	}
	return "./" + clean
}

// escapeInterpolation keeps compose from treating "$" in operator input as a variable.
func escapeInterpolation(s string) string {
	return strings.ReplaceAll(s, "$", "$$")
}
