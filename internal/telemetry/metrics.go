package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "docqa"

// Metrics holds the application's instruments. Export follows the global meter provider.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	degraded        metric.Int64Counter
	breakerChanges  metric.Int64Counter
	httpRequests    metric.Int64Counter
	httpDuration    metric.Float64Histogram
}

// NewMetrics creates every instrument on the global meter.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)

	requests, err := meter.Int64Counter("rag.requests",
		metric.WithDescription("Chat operations by operation and outcome"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rag.requests: %w", err)
	}
	requestDuration, err := meter.Float64Histogram("rag.request.duration",
		metric.WithDescription("Chat operation duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rag.request.duration: %w", err)
	}
	degraded, err := meter.Int64Counter("rag.rowstore.degraded",
		metric.WithDescription("Retrievals served from index metadata because the row store failed"))
	if err != nil {
		return nil, fmt.Errorf("failed to create rag.rowstore.degraded: %w", err)
	}
	breakerChanges, err := meter.Int64Counter("llm.breaker.state_changes",
		metric.WithDescription("LLM circuit breaker state transitions"))
	if err != nil {
		return nil, fmt.Errorf("failed to create llm.breaker.state_changes: %w", err)
	}
	httpRequests, err := meter.Int64Counter("http.requests",
		metric.WithDescription("HTTP requests by route and status"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http.requests: %w", err)
	}
	httpDuration, err := meter.Float64Histogram("http.request.duration",
		metric.WithDescription("HTTP request duration"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create http.request.duration: %w", err)
	}

	return &Metrics{
		requests:        requests,
		requestDuration: requestDuration,
		degraded:        degraded,
		breakerChanges:  breakerChanges,
		httpRequests:    httpRequests,
		httpDuration:    httpDuration,
	}, nil
}

// RecordRequest counts one chat operation and its latency.
func (m *Metrics) RecordRequest(ctx context.Context, operation, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RowStoreDegraded counts a retrieval that fell back to index metadata.
func (m *Metrics) RowStoreDegraded(ctx context.Context) {
	m.degraded.Add(ctx, 1)
}

// BreakerStateChange counts a circuit breaker transition.
func (m *Metrics) BreakerStateChange(from, to string) {
	m.breakerChanges.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
	))
}

// RecordHTTP counts one HTTP request. route is the matched pattern, not the raw path.
func (m *Metrics) RecordHTTP(ctx context.Context, method, route string, status int, elapsed time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", status),
	)
	m.httpRequests.Add(ctx, 1, attrs)
	m.httpDuration.Record(ctx, elapsed.Seconds(), attrs)
}
