package observability

import (
	"context"
	"time"

	"gatekeeper/internal/models"
	"gatekeeper/internal/tracker"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentedTracker wraps a tracker.Service with OpenTelemetry metrics and
// tracing: violation and block counters, blocked-request counters, and
// decision latency histograms.
type InstrumentedTracker struct {
	inner      tracker.Service
	tracer     trace.Tracer
	violations metric.Int64Counter
	blocks     metric.Int64Counter
	rejected   metric.Int64Counter
	duration   metric.Float64Histogram
}

var _ tracker.Service = (*InstrumentedTracker)(nil)

// NewInstrumentedTracker creates a tracker wrapper that records a span and
// latency sample for every decision.
func NewInstrumentedTracker(inner tracker.Service) (*InstrumentedTracker, error) {
	tracer := otel.Tracer("gatekeeper/tracker")
	meter := otel.Meter("gatekeeper/tracker")

	violations, err := meter.Int64Counter(
		"security.violations",
		metric.WithDescription("Number of classified violations recorded"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, err
	}

	blocks, err := meter.Int64Counter(
		"security.blocks",
		metric.WithDescription("Number of blocks placed on clients"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"security.blocked_requests",
		metric.WithDescription("Number of requests rejected because the client was blocked"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"security.decision.duration",
		metric.WithDescription("Duration of tracker decisions in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &InstrumentedTracker{
		inner:      inner,
		tracer:     tracer,
		violations: violations,
		blocks:     blocks,
		rejected:   rejected,
		duration:   duration,
	}, nil
}

// RecordViolation records the violation and its outcome.
func (t *InstrumentedTracker) RecordViolation(client, label string) bool {
	ctx, span := t.tracer.Start(context.Background(), "tracker.RecordViolation",
		trace.WithAttributes(attribute.String("violation.label", label)),
	)
	start := time.Now()

	blocked := t.inner.RecordViolation(client, label)

	attrs := metric.WithAttributes(attribute.String("operation", "record_violation"))
	t.duration.Record(ctx, time.Since(start).Seconds(), attrs)
	t.violations.Add(ctx, 1, metric.WithAttributes(attribute.String("label", label)))
	if blocked {
		t.blocks.Add(ctx, 1, metric.WithAttributes(attribute.String("type", "temporary")))
		span.SetAttributes(attribute.Bool("client.blocked", true))
	}
	span.End()
	return blocked
}

// IsBlocked measures the fast-path decision.
func (t *InstrumentedTracker) IsBlocked(client string) bool {
	start := time.Now()
	blocked := t.inner.IsBlocked(client)

	ctx := context.Background()
	t.duration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", "is_blocked")))
	if blocked {
		t.rejected.Add(ctx, 1)
	}
	return blocked
}

// AddPermanentBlock counts administrative blocks.
func (t *InstrumentedTracker) AddPermanentBlock(client string) {
	t.inner.AddPermanentBlock(client)
	t.blocks.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("type", "permanent")))
}

// Stats delegates to the wrapped tracker.
func (t *InstrumentedTracker) Stats() models.SecurityStatsResponse {
	return t.inner.Stats()
}

// Close delegates to the wrapped tracker.
func (t *InstrumentedTracker) Close() {
	t.inner.Close()
}
