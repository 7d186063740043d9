package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstrumentationName is the tracer and meter scope name.
const InstrumentationName = "github.com/raphaelgruber/chroma-mcp"

// ShutdownFunc flushes and stops the exporters installed by Setup.
type ShutdownFunc func(context.Context) error

// Setup installs OTLP/HTTP trace and metric exporters as the global providers when
// endpoint is set. With an empty endpoint the global no-op providers stay in place and
// dispatch statistics are only kept by metrics.Collector.
func Setup(ctx context.Context, endpoint string, log *slog.Logger) (ShutdownFunc, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	target, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracehttp.New(ctx, target.traceOptions()...)
	if err != nil {
		return nil, err
	}
	metricExporter, err := otlpmetrichttp.New(ctx, target.metricOptions()...)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExporter))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	log.Info("telemetry enabled", "endpoint", endpoint)

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}

// NewObserver builds a ToolObserver from the global providers.
func NewObserver() (*ToolObserver, error) {
	return NewToolObserver(
		otel.GetMeterProvider().Meter(InstrumentationName),
		otel.GetTracerProvider().Tracer(InstrumentationName),
	)
}

// otlpEndpoint is a collector address. A URL path is a base that signal paths
// (/v1/traces, /v1/metrics) are appended to.
type otlpEndpoint struct {
	host     string
	insecure bool
	basePath string
}

// parseEndpoint accepts either a bare host:port (plain HTTP) or a full URL.
func parseEndpoint(endpoint string) (otlpEndpoint, error) {
	if !strings.Contains(endpoint, "://") {
		return otlpEndpoint{host: endpoint, insecure: true}, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return otlpEndpoint{}, err
	}
	if u.Host == "" {
		return otlpEndpoint{}, errors.New("otlp endpoint has no host: " + endpoint)
	}
	return otlpEndpoint{
		host:     u.Host,
		insecure: u.Scheme == "http",
		basePath: strings.TrimSuffix(u.Path, "/"),
	}, nil
}

func (e otlpEndpoint) traceOptions() []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(e.host)}
	if e.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if e.basePath != "" {
		opts = append(opts, otlptracehttp.WithURLPath(e.basePath+"/v1/traces"))
	}
	return opts
}

func (e otlpEndpoint) metricOptions() []otlpmetrichttp.Option {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(e.host)}
	if e.insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	if e.basePath != "" {
		opts = append(opts, otlpmetrichttp.WithURLPath(e.basePath+"/v1/metrics"))
	}
	return opts
}
