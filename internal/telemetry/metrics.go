package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Tool call outcomes recorded against the call counter.
const (
	ToolCallOutcomeSuccess = "success"
	ToolCallOutcomeError   = "error"
	ToolCallOutcomeTimeout = "timeout"
)

// CustomMetrics records gateway-specific measurements.
// A no-op implementation is used when telemetry is disabled, so callers never
// need to check whether metrics are enabled.
type CustomMetrics interface {
	// RecordToolCall records one dispatched tool call and its latency.
	RecordToolCall(ctx context.Context, backend, tool, outcome string, latency time.Duration)

	// RecordRegistryConflict records a prefixed-name collision observed during refresh.
	RecordRegistryConflict(ctx context.Context, backend, prefixedName string)
}

type noopCustomMetrics struct{}

// NewNoopCustomMetrics returns a CustomMetrics that records nothing.
func NewNoopCustomMetrics() CustomMetrics {
	return &noopCustomMetrics{}
}

func (noopCustomMetrics) RecordToolCall(context.Context, string, string, string, time.Duration) {}
func (noopCustomMetrics) RecordRegistryConflict(context.Context, string, string)               {}

type otelCustomMetrics struct {
	toolCalls         metric.Int64Counter
	toolCallLatency   metric.Float64Histogram
	registryConflicts metric.Int64Counter
}

// NewOtelCustomMetrics creates the real CustomMetrics backed by an otel meter.
func NewOtelCustomMetrics(meter metric.Meter) (CustomMetrics, error) {
	toolCalls, err := meter.Int64Counter(
		"armory_tool_calls_total",
		metric.WithDescription("Total number of tool calls dispatched through the gateway"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call counter: %w", err)
	}

	toolCallLatency, err := meter.Float64Histogram(
		"armory_tool_call_duration_seconds",
		metric.WithDescription("Latency of tool calls dispatched through the gateway"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool call latency histogram: %w", err)
	}

	registryConflicts, err := meter.Int64Counter(
		"armory_registry_conflicts_total",
		metric.WithDescription("Number of prefixed tool name collisions observed during refresh"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry conflict counter: %w", err)
	}

	return &otelCustomMetrics{
		toolCalls:         toolCalls,
		toolCallLatency:   toolCallLatency,
		registryConflicts: registryConflicts,
	}, nil
}

func (m *otelCustomMetrics) RecordToolCall(ctx context.Context, backend, tool, outcome string, latency time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("tool", tool),
		attribute.String("outcome", outcome),
	)
	m.toolCalls.Add(ctx, 1, attrs)
	m.toolCallLatency.Record(ctx, latency.Seconds(), attrs)
}

func (m *otelCustomMetrics) RecordRegistryConflict(ctx context.Context, backend, prefixedName string) {
	m.registryConflicts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("prefixed_name", prefixedName),
	))
}
