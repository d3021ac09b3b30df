package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Lifecycle event names.
const (
	EventInstall  = "install"
	EventActivate = "activate"
	EventFetch    = "fetch"
)

// EventMeta describes one lifecycle event for telemetry purposes.
type EventMeta struct {
	Event  string // install|activate|fetch (required)
	Cache  string // current cache identifier (optional)
	Method string // request method, fetch only
	URL    string // request URL, fetch only
}

// SpanName returns the deterministic span name for this event.
// Format: offline.<event>
func (m EventMeta) SpanName() string {
	return "offline." + m.Event
}

// Validate reports whether the meta names an event.
func (m EventMeta) Validate() error {
	if m.Event == "" {
		return ErrMissingEvent
	}
	return nil
}

// Fields returns the non-empty attributes as log fields.
func (m EventMeta) Fields() []Field {
	fields := []Field{{Key: "event", Value: m.Event}}
	if m.Cache != "" {
		fields = append(fields, Field{Key: "cache", Value: m.Cache})
	}
	if m.Method != "" {
		fields = append(fields, Field{Key: "method", Value: m.Method})
	}
	if m.URL != "" {
		fields = append(fields, Field{Key: "url", Value: m.URL})
	}
	return fields
}

func (m EventMeta) attributes() []attribute.KeyValue {
	attrs := []attribute.KeyValue{attribute.String("offline.event", m.Event)}
	if m.Cache != "" {
		attrs = append(attrs, attribute.String("offline.cache", m.Cache))
	}
	if m.Method != "" {
		attrs = append(attrs, attribute.String("http.request.method", m.Method))
	}
	if m.URL != "" {
		attrs = append(attrs, attribute.String("url.path", m.URL))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with lifecycle span management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a lifecycle event.
	StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer wrapping the given OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	if t == nil {
		return NoopTracer()
	}
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span) {
	kind := trace.SpanKindInternal
	if meta.Event == EventFetch {
		kind = trace.SpanKindServer
	}
	return t.tracer.Start(ctx, meta.SpanName(),
		trace.WithAttributes(meta.attributes()...),
		trace.WithSpanKind(kind),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type noopTracer struct {
	noop trace.Tracer
}

// NoopTracer returns a tracer whose spans are never recorded.
func NoopTracer() Tracer {
	return &noopTracer{noop: tracenoop.NewTracerProvider().Tracer("noop")}
}

func (t *noopTracer) StartSpan(ctx context.Context, meta EventMeta) (context.Context, trace.Span) {
	return t.noop.Start(ctx, meta.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, _ error) {
	span.End()
}
