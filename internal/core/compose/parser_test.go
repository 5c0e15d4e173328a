package compose

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Fixtures
// =============================================================================

const minimalDefinition = `
services:
  app:
    image: nginx:latest
`

const baseDefinition = `
services:
  prestamos-equipos:
    build: .
    container_name: prestamos-equipos
    ports:
      - "8501:8501"
    volumes:
      - ./data:/app/data
      - ./equipos.db:/app/equipos.db
    environment:
      - BASE_URL=http://localhost:8501
`

const healthCheckDefinition = `
services:
  web:
    image: nginx:latest
    healthcheck:
      test: ["CMD", "curl", "-f", "http://localhost"]
      interval: 30s
      timeout: 10s
      retries: 3
      start_period: 5s
`

// =============================================================================
// Input Validation Tests
// =============================================================================

func TestParseDefinition_EmptyInput(t *testing.T) {
	_, err := ParseDefinition("")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseDefinition_WhitespaceOnly(t *testing.T) {
	_, err := ParseDefinition("   \n\t ")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestParseDefinition_InvalidYAML(t *testing.T) {
	_, err := ParseDefinition("services: [unclosed")
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestParseDefinition_NoServicesKey(t *testing.T) {
	_, err := ParseDefinition("version: '3'\n")
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestParseDefinition_ServiceNoImageOrBuild(t *testing.T) {
	yaml := `
services:
  app:
    ports:
      - "80:80"
`
	_, err := ParseDefinition(yaml)
	assert.ErrorIs(t, err, ErrServiceNoImage)
}

// =============================================================================
// Service Parsing Tests
// =============================================================================

func TestParseDefinition_MinimalValid(t *testing.T) {
	def, err := ParseDefinition(minimalDefinition)
	require.NoError(t, err)
	require.Len(t, def.Services, 1)
	assert.Equal(t, "app", def.Services[0].Name)
	assert.Equal(t, "nginx:latest", def.Services[0].Image)
}

func TestParseDefinition_BaseDefinition(t *testing.T) {
	def, err := ParseDefinition(baseDefinition)
	require.NoError(t, err)

	svc, ok := def.Service("prestamos-equipos")
	require.True(t, ok)
	assert.Equal(t, "prestamos-equipos", svc.ContainerName)
	require.NotNil(t, svc.Build)

	require.Len(t, svc.Ports, 1)
	assert.Equal(t, uint32(8501), svc.Ports[0].Target)
	assert.Equal(t, uint32(8501), svc.Ports[0].Published)

	require.Len(t, svc.Volumes, 2)
	assert.Equal(t, VolumeMountTypeBind, svc.Volumes[0].Type)
	assert.Equal(t, "/app/data", svc.Volumes[0].Target)
	assert.Equal(t, "/app/equipos.db", svc.Volumes[1].Target)

	assert.Equal(t, "http://localhost:8501", svc.Environment["BASE_URL"])
}

func TestParseDefinition_ServicesSortedByName(t *testing.T) {
	yaml := `
services:
  zeta:
    image: busybox
  alpha:
    image: busybox
`
	def, err := ParseDefinition(yaml)
	require.NoError(t, err)
	require.Len(t, def.Services, 2)
	assert.Equal(t, "alpha", def.Services[0].Name)
	assert.Equal(t, "zeta", def.Services[1].Name)

	_, ok := def.Service("missing")
	assert.False(t, ok)
}

func TestParseDefinition_HealthCheck(t *testing.T) {
	def, err := ParseDefinition(healthCheckDefinition)
	require.NoError(t, err)

	hc := def.Services[0].HealthCheck
	require.NotNil(t, hc)
	assert.Equal(t, []string{"CMD", "curl", "-f", "http://localhost"}, hc.Test)
	assert.Equal(t, "30s", hc.Interval.String())
	assert.Equal(t, "10s", hc.Timeout.String())
	assert.Equal(t, 3, hc.Retries)
	assert.Equal(t, "5s", hc.StartPeriod.String())
}

func TestParseDefinition_HealthCheckDisabled(t *testing.T) {
	yaml := `
services:
  web:
    image: nginx:latest
    healthcheck:
      disable: true
`
	def, err := ParseDefinition(yaml)
	require.NoError(t, err)
	assert.Nil(t, def.Services[0].HealthCheck)
}

func TestParseDefinition_RestartPolicies(t *testing.T) {
	tests := []struct {
		restart  string
		expected RestartPolicy
	}{
		{"always", RestartAlways},
		{"on-failure", RestartOnFailure},
		{"unless-stopped", RestartUnlessStopped},
		{"no", RestartNo},
	}

	for _, tt := range tests {
		t.Run(tt.restart, func(t *testing.T) {
			yaml := "services:\n  app:\n    image: nginx\n    restart: \"" + tt.restart + "\"\n"
			def, err := ParseDefinition(yaml)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, def.Services[0].Restart)
		})
	}
}

func TestDefinitionError(t *testing.T) {
	err := invalidAt("services.app.ports[0]", "bad port", ErrInvalidPort)
	assert.True(t, errors.Is(err, ErrInvalidPort))
	assert.Equal(t, "services.app.ports[0]: bad port", err.Error())

	noField := invalidAt("", "just a message", ErrInvalidYAML)
	assert.Equal(t, "just a message", noField.Error())
}
