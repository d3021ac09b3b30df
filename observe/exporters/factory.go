// Package exporters builds OpenTelemetry span exporters and metric readers
// by name.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrUnknownExporter is returned for exporter names outside the supported set.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured is returned when an OTLP or Jaeger exporter
	// has no endpoint from options or environment.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")
)

type settings struct {
	endpoint   string
	writer     io.Writer
	registerer prometheus.Registerer
}

// Option configures exporter construction.
type Option func(*settings)

// WithEndpoint sets the collector endpoint (host:port). Empty falls back to
// the standard OTEL_EXPORTER_* environment variables.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = strings.TrimSpace(endpoint) }
}

// WithWriter sets the destination of stdout exporters. Default: os.Stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) {
		if w != nil {
			s.writer = w
		}
	}
}

// WithRegisterer sets the Prometheus registerer. Default: the global one.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *settings) { s.registerer = r }
}

func apply(opts []Option) settings {
	s := settings{writer: os.Stdout}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// firstEnv returns the first non-empty value among the named variables.
func firstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// NewTracingExporter creates a span exporter by name.
// Supported exporters: stdout, otlp, jaeger, none
func NewTracingExporter(ctx context.Context, name string, opts ...Option) (sdktrace.SpanExporter, error) {
	s := apply(opts)
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(s.writer))

	case "otlp", "jaeger":
		// Jaeger accepts OTLP natively, so both use the gRPC exporter.
		envs := []string{"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"}
		if name == "jaeger" {
			envs = []string{"OTEL_EXPORTER_JAEGER_ENDPOINT"}
		}
		if s.endpoint != "" {
			return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpoint(s.endpoint), otlptracegrpc.WithInsecure())
		}
		if endpoint := firstEnv(envs...); endpoint == "" {
			return nil, fmt.Errorf("%w: set %s", ErrEndpointNotConfigured, strings.Join(envs, " or "))
		} else if name == "jaeger" {
			return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(endpoint))
		}
		return otlptracegrpc.New(ctx)

	case "none", "":
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader creates a metric reader by name.
// Supported exporters: stdout, otlp, prometheus, none
func NewMetricsReader(ctx context.Context, name string, opts ...Option) (sdkmetric.Reader, error) {
	s := apply(opts)
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(s.writer))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		var grpcOpts []otlpmetricgrpc.Option
		if s.endpoint != "" {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithEndpoint(s.endpoint), otlpmetricgrpc.WithInsecure())
		} else if firstEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT") == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrEndpointNotConfigured)
		}
		exp, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		var promOpts []otelprom.Option
		if s.registerer != nil {
			promOpts = append(promOpts, otelprom.WithRegisterer(s.registerer))
		}
		exp, err := otelprom.New(promOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
		}
		return exp, nil

	case "none", "":
		// A manual reader that nobody collects keeps instruments cheap.
		return sdkmetric.NewManualReader(), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}
