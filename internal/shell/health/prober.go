// Package health probes the HTTP health endpoint of a freshly started service.
package health

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/prestamos/deployer/internal/core/domain"
	"github.com/prestamos/deployer/internal/core/monitoring"
)

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Prober waits out a start-up grace period and then probes a health URL.
type Prober struct {
	logger *slog.Logger
	sleep  SleepFunc
}

// NewProber creates a prober.
func NewProber(logger *slog.Logger) *Prober {
	if logger == nil {
		logger = slog.Default()
	}
	return &Prober{
		logger: logger.With("component", "health_prober"),
		sleep:  Sleep,
	}
}

// WaitHealthy sleeps for plan.Grace, then probes url until it answers 2xx,
// the attempts run out, or the plan's deadline passes.
func (p *Prober) WaitHealthy(ctx context.Context, url string, plan monitoring.ProbePlan) error {
	plan = plan.Normalize()

	p.logger.Info("waiting for service to start",
		"url", url,
		"grace", plan.Grace,
		"attempts", plan.Attempts,
		"max_wait", plan.MaxDuration(),
	)
	if err := p.sleep(ctx, plan.Grace); err != nil {
		return err
	}

	probeCtx := ctx
	if plan.Deadline > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, plan.Deadline)
		defer cancel()
	}

	req, err := retryablehttp.NewRequestWithContext(probeCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}

	resp, err := p.client(plan).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrHealthCheckFailed, url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if !monitoring.IsHealthyStatus(resp.StatusCode) {
		return fmt.Errorf("%w: %s answered %d", domain.ErrHealthCheckFailed, url, resp.StatusCode)
	}

	p.logger.Info("service is healthy", "url", url)
	return nil
}

// client builds a retrying HTTP client for one probing phase.
// Attempts-1 retries, a constant Interval between them.
func (p *Prober) client(plan monitoring.ProbePlan) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.HTTPClient.Timeout = plan.Timeout
	c.RetryMax = plan.Attempts - 1
	c.RetryWaitMin = plan.Interval
	c.RetryWaitMax = plan.Interval
	c.Backoff = func(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
		return min
	}
	c.CheckRetry = retryUntilHealthy
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	c.Logger = p.logger
	return c
}

// retryUntilHealthy retries on transport errors and on every non-2xx answer;
// a starting application may answer 404 or 503 before it is ready.
func retryUntilHealthy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		return true, nil
	}
	return !monitoring.IsHealthyStatus(resp.StatusCode), nil
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
