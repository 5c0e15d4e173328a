package health

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prestamos/deployer/internal/core/domain"
	"github.com/prestamos/deployer/internal/core/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

// countingServer answers with the status codes in order, repeating the last one.
func countingServer(t *testing.T, codes ...int) (*httptest.Server, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&hits, 1)
		idx := int(n) - 1
		if idx >= len(codes) {
			idx = len(codes) - 1
		}
		w.WriteHeader(codes[idx])
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func testProber(slept *[]time.Duration) *Prober {
	p := NewProber(nil)
	p.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return p
}

// =============================================================================
// Probe Tests
// =============================================================================

func TestWaitHealthy_LogsWorstCaseWait(t *testing.T) {
	srv, _ := countingServer(t, http.StatusOK)
	var logs bytes.Buffer
	p := NewProber(slog.New(slog.NewTextHandler(&logs, nil)))
	p.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }

	plan := monitoring.ProbePlan{Grace: 10 * time.Second, Attempts: 1, Timeout: 5 * time.Second}
	require.NoError(t, p.WaitHealthy(context.Background(), srv.URL, plan))
	assert.Contains(t, logs.String(), "max_wait=15s")
}

func TestWaitHealthy_SingleProbeSuccess(t *testing.T) {
	srv, hits := countingServer(t, http.StatusOK)
	var slept []time.Duration
	p := testProber(&slept)

	err := p.WaitHealthy(context.Background(), srv.URL+"/_stcore/health", monitoring.ProbePlan{Grace: 10 * time.Second})
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
	assert.Equal(t, []time.Duration{10 * time.Second}, slept)
}

func TestWaitHealthy_SingleProbeFailureIsTerminal(t *testing.T) {
	srv, hits := countingServer(t, http.StatusServiceUnavailable, http.StatusOK)
	var slept []time.Duration
	p := testProber(&slept)

	err := p.WaitHealthy(context.Background(), srv.URL, monitoring.ProbePlan{Attempts: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHealthCheckFailed)
	assert.Contains(t, err.Error(), "503")
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestWaitHealthy_RetriesUntilHealthy(t *testing.T) {
	srv, hits := countingServer(t, http.StatusServiceUnavailable, http.StatusNotFound, http.StatusOK)
	var slept []time.Duration
	p := testProber(&slept)

	plan := monitoring.ProbePlan{Attempts: 5, Interval: time.Millisecond, Timeout: time.Second}
	require.NoError(t, p.WaitHealthy(context.Background(), srv.URL, plan))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestWaitHealthy_AttemptsExhausted(t *testing.T) {
	srv, hits := countingServer(t, http.StatusInternalServerError)
	var slept []time.Duration
	p := testProber(&slept)

	plan := monitoring.ProbePlan{Attempts: 3, Interval: time.Millisecond, Timeout: time.Second}
	err := p.WaitHealthy(context.Background(), srv.URL, plan)
	assert.ErrorIs(t, err, domain.ErrHealthCheckFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
}

func TestWaitHealthy_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	var slept []time.Duration
	p := testProber(&slept)

	err := p.WaitHealthy(context.Background(), url, monitoring.ProbePlan{Timeout: time.Second})
	assert.ErrorIs(t, err, domain.ErrHealthCheckFailed)
}

func TestWaitHealthy_DeadlineStopsRetrying(t *testing.T) {
	srv, hits := countingServer(t, http.StatusServiceUnavailable)
	var slept []time.Duration
	p := testProber(&slept)

	plan := monitoring.ProbePlan{Attempts: 1000, Interval: 20 * time.Millisecond, Timeout: time.Second, Deadline: 100 * time.Millisecond}
	err := p.WaitHealthy(context.Background(), srv.URL, plan)
	require.Error(t, err)
	assert.Less(t, atomic.LoadInt32(hits), int32(1000))
}

func TestWaitHealthy_CancelledDuringGrace(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewProber(nil)
	err := p.WaitHealthy(ctx, "http://127.0.0.1:1", monitoring.ProbePlan{Grace: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}

// =============================================================================
// Sleep Tests
// =============================================================================

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), 0))
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}
