package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	apperrors "github.com/allisson/escrow/internal/errors"
)

// Operation status labels. Denials are split out from failures so that an alert on
// denied retrievals does not fire on database errors and vice versa.
const (
	StatusSuccess   = "success"
	StatusDenied    = "denied"
	StatusNotFound  = "not_found"
	StatusInvalid   = "invalid"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// DurationBuckets are the histogram boundaries in seconds. Keyset operations finish in
// the low milliseconds; the upper buckets exist for KMS round trips.
var DurationBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// StatusFromError maps an operation result to its status label.
func StatusFromError(err error) string {
	if err == nil {
		return StatusSuccess
	}
	switch apperrors.Kind(err) {
	case apperrors.ErrForbidden, apperrors.ErrUnauthorized, apperrors.ErrLocked:
		return StatusDenied
	case apperrors.ErrNotFound:
		return StatusNotFound
	case apperrors.ErrDuplicate:
		return StatusDuplicate
	case apperrors.ErrInvalidInput:
		return StatusInvalid
	default:
		return StatusError
	}
}

// BusinessMetrics records use case outcomes. Domain is the bounded context ("auth",
// "escrow", "audit"), operation names the call within it ("secret_retrieve") and
// status is one of the Status* labels.
type BusinessMetrics interface {
	RecordOperation(ctx context.Context, domain, operation, status string)
	RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string)
}

type businessMetrics struct {
	operations metric.Int64Counter
	durations  metric.Float64Histogram
}

// NewBusinessMetrics registers <namespace>_operations_total and
// <namespace>_operation_duration_seconds on meterProvider.
func NewBusinessMetrics(meterProvider metric.MeterProvider, namespace string) (BusinessMetrics, error) {
	meter := meterProvider.Meter(namespace)

	operations, err := meter.Int64Counter(
		namespace+"_operations_total",
		metric.WithDescription("Use case calls by domain, operation and outcome"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	durations, err := meter.Float64Histogram(
		namespace+"_operation_duration_seconds",
		metric.WithDescription("Use case latency by domain, operation and outcome"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DurationBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &businessMetrics{operations: operations, durations: durations}, nil
}

func operationAttributes(domain, operation, status string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String("domain", domain),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
}

func (b *businessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	b.operations.Add(ctx, 1, operationAttributes(domain, operation, status))
}

func (b *businessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	b.durations.Record(ctx, duration.Seconds(), operationAttributes(domain, operation, status))
}

type noopBusinessMetrics struct{}

// NewNoOpBusinessMetrics returns a recorder that discards everything. Used when
// METRICS_ENABLED is false.
func NewNoOpBusinessMetrics() BusinessMetrics {
	return noopBusinessMetrics{}
}

func (noopBusinessMetrics) RecordOperation(context.Context, string, string, string) {}

func (noopBusinessMetrics) RecordDuration(context.Context, string, string, time.Duration, string) {}
