package compose

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"github.com/docker/go-connections/nat"
	"gopkg.in/yaml.v3"
)

// validationProject names the throwaway project compose-go loads into.
const validationProject = "deployer-validate"

// ParseDefinition loads compose YAML with compose-go and returns the parts
// the deployer checks. Every rendered production definition goes through it
// before it is written, so compose never sees a file it would reject.
func ParseDefinition(yamlContent string) (*Project, error) {
	if strings.TrimSpace(yamlContent) == "" {
		return nil, ErrEmptyInput
	}

	project, err := loadDefinition(yamlContent)
	if err != nil {
		return nil, err
	}
	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	names := make([]string, 0, len(project.Services))
	for name := range project.Services {
		names = append(names, name)
	}
	sort.Strings(names)

	parsed := &Project{Services: make([]Service, 0, len(names))}
	for _, name := range names {
		svc, err := convertService(project.Services[name])
		if err != nil {
			return nil, err
		}
		parsed.Services = append(parsed.Services, svc)
	}
	return parsed, nil
}

// loadDefinition runs compose-go's loader on in-memory YAML. Interpolation and
// schema validation stay on; path normalization and extends are skipped.
func loadDefinition(yamlContent string) (*types.Project, error) {
	var dict map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &dict); err != nil || dict == nil {
		return nil, invalidAt("", "not a YAML mapping", ErrInvalidYAML)
	}
	if _, ok := dict["services"]; !ok {
		return nil, ErrNoServices
	}

	details := types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{{Content: []byte(yamlContent), Config: dict}},
	}
	project, err := loader.LoadWithContext(context.Background(), details, func(opts *loader.Options) {
		opts.SetProjectName(validationProject, false)
		opts.SkipNormalization = true
		opts.SkipExtends = true
	})
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "image") && strings.Contains(msg, "build") {
			return nil, invalidAt("", msg, ErrServiceNoImage)
		}
		return nil, invalidAt("", msg, ErrInvalidYAML)
	}
	return project, nil
}

func convertService(svc types.ServiceConfig) (Service, error) {
	field := "services." + svc.Name

	out := Service{
		Name:          svc.Name,
		ContainerName: svc.ContainerName,
		Image:         svc.Image,
		Restart:       RestartPolicy(svc.Restart),
		Environment:   map[string]string{},
		HealthCheck:   convertHealthCheck(svc.HealthCheck),
	}
	if svc.Build != nil {
		out.Build = &BuildConfig{Context: svc.Build.Context, Dockerfile: svc.Build.Dockerfile}
	}
	if out.Image == "" && out.Build == nil {
		return Service{}, invalidAt(field, "neither image nor build is set", ErrServiceNoImage)
	}

	ports, err := convertPorts(field, svc.Ports)
	if err != nil {
		return Service{}, err
	}
	out.Ports = ports

	for key, value := range svc.Environment {
		if value != nil {
			out.Environment[key] = *value
		}
	}
	for _, v := range svc.Volumes {
		out.Volumes = append(out.Volumes, VolumeMount{
			Type:     mountType(v),
			Source:   v.Source,
			Target:   v.Target,
			ReadOnly: v.ReadOnly,
		})
	}
	return out, nil
}

// convertPorts requires a single published port per mapping; ranges are
// not something the deployer ever renders.
func convertPorts(field string, ports []types.ServicePortConfig) ([]Port, error) {
	var out []Port
	for i, p := range ports {
		port := Port{Target: p.Target, Protocol: p.Protocol, HostIP: p.HostIP}
		if p.Published != "" {
			published, err := nat.ParsePort(p.Published)
			if err != nil || published <= 0 {
				return nil, invalidAt(fmt.Sprintf("%s.ports[%d]", field, i),
					"published port must be a single number", ErrInvalidPort)
			}
			port.Published = uint32(published)
		}
		out = append(out, port)
	}
	return out, nil
}

func mountType(v types.ServiceVolumeConfig) VolumeMountType {
	switch v.Type {
	case types.VolumeTypeBind:
		return VolumeMountTypeBind
	case types.VolumeTypeVolume:
		return VolumeMountTypeVolume
	case types.VolumeTypeTmpfs:
		return VolumeMountTypeTmpfs
	}
	if strings.HasPrefix(v.Source, ".") || strings.HasPrefix(v.Source, "/") || strings.HasPrefix(v.Source, "~") {
		return VolumeMountTypeBind
	}
	return VolumeMountTypeVolume
}

func convertHealthCheck(hc *types.HealthCheckConfig) *HealthCheck {
	if hc == nil || hc.Disable {
		return nil
	}
	out := &HealthCheck{
		Test:        hc.Test,
		Interval:    durationOf(hc.Interval),
		Timeout:     durationOf(hc.Timeout),
		StartPeriod: durationOf(hc.StartPeriod),
	}
	if hc.Retries != nil {
		out.Retries = int(*hc.Retries)
	}
	return out
}

func durationOf(d *types.Duration) time.Duration {
	if d == nil {
		return 0
	}
	return time.Duration(*d)
}
