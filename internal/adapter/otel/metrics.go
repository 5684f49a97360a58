package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/strob0t/sprintsync/internal/ratelimit"
)

const meterName = "sprintsync"

// Metrics holds every sprintsync metric instrument: sync session lifecycle
// counters, commit throughput, and session duration.
type Metrics struct {
	SessionsStarted   metric.Int64Counter
	SessionsCompleted metric.Int64Counter
	SessionsFailed    metric.Int64Counter
	CommitsProcessed  metric.Int64Counter
	SessionDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.SessionsStarted, err = meter.Int64Counter("sprintsync.sessions.started",
		metric.WithDescription("Number of sync sessions marked running"))
	if err != nil {
		return nil, err
	}

	m.SessionsCompleted, err = meter.Int64Counter("sprintsync.sessions.completed",
		metric.WithDescription("Number of sync sessions completed"))
	if err != nil {
		return nil, err
	}

	m.SessionsFailed, err = meter.Int64Counter("sprintsync.sessions.failed",
		metric.WithDescription("Number of sync sessions failed"))
	if err != nil {
		return nil, err
	}

	m.CommitsProcessed, err = meter.Int64Counter("sprintsync.commits.processed",
		metric.WithDescription("Number of commits processed across all sessions"))
	if err != nil {
		return nil, err
	}

	m.SessionDuration, err = meter.Float64Histogram("sprintsync.session.duration_seconds",
		metric.WithDescription("Sync session wall-clock duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RegisterRateLimiterGauge attaches an observable gauge that reports the
// shared limiter's utilization percentage on every collection tick.
func RegisterRateLimiterGauge(limiter *ratelimit.Limiter) error {
	meter := otel.Meter(meterName)
	_, err := meter.Float64ObservableGauge("sprintsync.ratelimiter.utilization_percent",
		metric.WithDescription("Percentage of the outbound rate limit bucket currently in use"),
		metric.WithFloat64Callback(func(_ context.Context, o metric.Float64Observer) error {
			o.Observe(limiter.Status().UtilizationPercent)
			return nil
		}),
	)
	return err
}

// RecordSessionStarted increments the sessions-started counter.
func (m *Metrics) RecordSessionStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsStarted.Add(ctx, 1)
}

// RecordSessionCompleted increments the sessions-completed counter and
// records the session's wall-clock duration.
func (m *Metrics) RecordSessionCompleted(ctx context.Context, seconds float64) {
	if m == nil {
		return
	}
	m.SessionsCompleted.Add(ctx, 1)
	m.SessionDuration.Record(ctx, seconds)
}

// RecordSessionFailed increments the sessions-failed counter.
func (m *Metrics) RecordSessionFailed(ctx context.Context) {
	if m == nil {
		return
	}
	m.SessionsFailed.Add(ctx, 1)
}

// RecordCommitsProcessed adds n to the commits-processed counter.
func (m *Metrics) RecordCommitsProcessed(ctx context.Context, n int) {
	if m == nil || n == 0 {
		return
	}
	m.CommitsProcessed.Add(ctx, int64(n))
}
