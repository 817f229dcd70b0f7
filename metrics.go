package resilientclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// clientMetrics holds the OTel instruments recording attempt duration
// and outcome, adapted from the corpus's own metrics registration
// pattern (one histogram plus counters, explicit bucket boundaries).
type clientMetrics struct {
	attemptDuration metric.Float64Histogram
	attempts        metric.Int64Counter
}

func newClientMetrics(meter metric.Meter) *clientMetrics {
	duration, _ := meter.Float64Histogram(
		"resilientclient.attempt.duration",
		metric.WithDescription("Duration of a single HTTP attempt."),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000),
	)
	attempts, _ := meter.Int64Counter(
		"resilientclient.attempt.count",
		metric.WithDescription("Number of HTTP attempts, labeled by outcome."),
	)
	return &clientMetrics{attemptDuration: duration, attempts: attempts}
}

func (m *clientMetrics) observeAttempt(ctx context.Context, d time.Duration, success bool) {
	if m == nil {
		return
	}
	attr := attribute.Bool("success", success)
	m.attemptDuration.Record(ctx, float64(d.Milliseconds()), metric.WithAttributes(attr))
	m.attempts.Add(ctx, 1, metric.WithAttributes(attr))
}
