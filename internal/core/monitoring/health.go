// Package monitoring provides pure functions for deciding whether a freshly
// started service is ready. It contains no I/O.
package monitoring

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// Probe Plan
// =============================================================================

// ProbePlan describes how a just-started service is checked.
//
// The service is given Grace to start, then probed up to Attempts times,
// Interval apart. Attempts of 1 is a single probe after the grace period.
// A non-zero Deadline bounds the whole probing phase (grace excluded).
type ProbePlan struct {
	Grace    time.Duration
	Attempts int
	Interval time.Duration
	Timeout  time.Duration
	Deadline time.Duration
}

// Normalize fills in defaults for unset fields.
func (p ProbePlan) Normalize() ProbePlan {
	if p.Attempts < 1 {
		p.Attempts = 1
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Second
	}
	if p.Interval < 0 {
		p.Interval = 0
	}
	if p.Grace < 0 {
		p.Grace = 0
	}
	return p
}

// SingleProbe reports whether the plan reduces to one check after the grace period.
func (p ProbePlan) SingleProbe() bool {
	return p.Normalize().Attempts == 1
}

// MaxDuration is the longest the probing phase can take without a deadline,
// counting the grace period.
func (p ProbePlan) MaxDuration() time.Duration {
	n := p.Normalize()
	total := n.Grace + time.Duration(n.Attempts)*n.Timeout + time.Duration(n.Attempts-1)*n.Interval
	if n.Deadline > 0 && n.Grace+n.Deadline < total {
		return n.Grace + n.Deadline
	}
	return total
}

// =============================================================================
// Probe Target and Result
// =============================================================================

// HealthURL builds the URL of the health endpoint on host:port.
func HealthURL(host string, port int, path string) string {
	if host == "" {
		host = "localhost"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return fmt.Sprintf("http://%s:%d%s", host, port, path)
}

// AccessURL is the address operators open in a browser for a local deployment.
func AccessURL(host string, port int) string {
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%d", host, port)
}

// IsHealthyStatus reports whether an HTTP status code means the service is ready.
func IsHealthyStatus(code int) bool {
	return code >= 200 && code < 300
}
