package deploy

import (
	"github.com/prestamos/deployer/internal/core/compose"
	"github.com/prestamos/deployer/internal/core/monitoring"
)

// Settings is the configuration every operation reads. It is built once at
// startup and not modified afterwards.
type Settings struct {
	// Dir is the project directory.
	Dir string
	// DevFile is the base compose definition used for development.
	DevFile string
	// ProdFile is the generated production definition.
	ProdFile string

	Container string
	Image     string

	// HealthHost, HostPort and HealthPath address the health endpoint from the host.
	HealthHost string
	HostPort   int
	HealthPath string

	DevProbe  monitoring.ProbePlan
	ProdProbe monitoring.ProbePlan

	// FailureTail is how many log lines are shown after a failed health check.
	FailureTail int
	// StatusTail is how many log lines the status report shows.
	StatusTail int

	// RollbackOnFailure stops the just-started services when the health check fails.
	RollbackOnFailure bool

	// Production holds every rendering input except the base URL.
	Production compose.ProductionParams
}
