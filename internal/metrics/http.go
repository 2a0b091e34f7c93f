package metrics

import (
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	secretTypeNone  = "none"
	secretTypeOther = "other"
)

// HTTPMetricsMiddleware returns a Gin middleware that records request counts and durations.
//
// Labels are method, route pattern, status code and secret type. The secret type comes
// from the ":type" route parameter and is collapsed to "other" unless it is one of
// secretTypes, so arbitrary URLs cannot create new series.
func HTTPMetricsMiddleware(meterProvider metric.MeterProvider, namespace string, secretTypes []string) gin.HandlerFunc {
	meter := meterProvider.Meter(namespace)

	requestCounter, err := meter.Int64Counter(
		fmt.Sprintf("%s_http_requests_total", namespace),
		metric.WithDescription("Total number of HTTP requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	durationHisto, err := meter.Float64Histogram(
		fmt.Sprintf("%s_http_request_duration_seconds", namespace),
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := metric.WithAttributes(
			attribute.String("method", c.Request.Method),
			attribute.String("path", sanitizePath(c.FullPath())),
			attribute.String("status_code", strconv.Itoa(c.Writer.Status())),
			attribute.String("secret_type", secretTypeLabel(c.Param("type"), secretTypes)),
		)

		requestCounter.Add(c.Request.Context(), 1, attrs)
		durationHisto.Record(c.Request.Context(), time.Since(start).Seconds(), attrs)
	}
}

// sanitizePath returns the matched route pattern, or "unknown" for unmatched requests.
func sanitizePath(fullPath string) string {
	if fullPath == "" {
		return "unknown"
	}
	return fullPath
}

func secretTypeLabel(value string, known []string) string {
	switch {
	case value == "":
		return secretTypeNone
	case slices.Contains(known, value):
		return value
	default:
		return secretTypeOther
	}
}
