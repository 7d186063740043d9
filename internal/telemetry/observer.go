// Package telemetry bridges tool dispatch to OpenTelemetry traces and metrics.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/raphaelgruber/chroma-mcp/internal/tools"
)

// Instrument names.
const (
	MetricDispatches = "chroma_mcp.tool.dispatches"
	MetricLatency    = "chroma_mcp.tool.latency"
)

// ToolObserver records one span, one counter increment and one latency sample per dispatch.
type ToolObserver struct {
	tracer trace.Tracer

	dispatches metric.Int64Counter
	latency    metric.Float64Histogram
}

// NewToolObserver creates an observer bound to the provided meter and tracer.
func NewToolObserver(meter metric.Meter, tracer trace.Tracer) (*ToolObserver, error) {
	dispatches, err := meter.Int64Counter(
		MetricDispatches,
		metric.WithDescription("Number of tool dispatches"),
	)
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram(
		MetricLatency,
		metric.WithDescription("Tool dispatch latency in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return &ToolObserver{tracer: tracer, dispatches: dispatches, latency: latency}, nil
}

// StartDispatch opens the dispatch span. The returned func ends it and records the outcome.
func (o *ToolObserver) StartDispatch(ctx context.Context, tool string) (context.Context, func(tools.DispatchObservation)) {
	var span trace.Span
	if o.tracer != nil {
		ctx, span = o.tracer.Start(ctx, "tool.dispatch "+tool,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(attribute.String("tool_name", tool)),
		)
	}

	return ctx, func(obs tools.DispatchObservation) {
		attrs := []attribute.KeyValue{
			attribute.String("tool_name", obs.Tool),
			attribute.Bool("success", obs.Success),
		}
		if obs.ErrorKind != "" {
			attrs = append(attrs, attribute.String("error_kind", obs.ErrorKind))
		}

		options := metric.WithAttributes(attrs...)
		o.dispatches.Add(ctx, 1, options)
		o.latency.Record(ctx, obs.Duration.Seconds(), options)

		if span == nil {
			return
		}
		span.SetAttributes(attrs...)
		if obs.Success {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, obs.ErrorKind)
		}
		span.End()
	}
}

var _ tools.Observer = (*ToolObserver)(nil)
