package observe

import (
	"context"
	"time"
)

// EventFunc is the signature of a lifecycle handler body.
type EventFunc func(ctx context.Context) error

// Middleware wraps lifecycle events with observability (tracing, metrics,
// logging).
//
// Contract:
//   - Concurrency: Wrap returns a thread-safe EventFunc.
//   - Context: the span context is passed to the wrapped function.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced with
// no-op implementations.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NoopTracer()
	}
	if metrics == nil {
		metrics = NoopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// NoopMiddleware returns a Middleware that records nothing.
func NoopMiddleware() *Middleware {
	return NewMiddleware(nil, nil, nil)
}

// Metrics returns the metrics recorder so handlers can add event-specific
// counts.
func (m *Middleware) Metrics() Metrics {
	return m.metrics
}

// Logger returns the middleware logger.
func (m *Middleware) Logger() Logger {
	return m.logger
}

// Wrap wraps fn with a span, metrics and a completion log line.
func (m *Middleware) Wrap(meta EventMeta, fn EventFunc) EventFunc {
	return func(ctx context.Context) error {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		err := fn(ctx)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordEvent(ctx, meta, duration, err)

		fields := append(meta.Fields(), Field{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000})
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			m.logger.Error(ctx, meta.Event+" failed", fields...)
		} else {
			m.logger.Debug(ctx, meta.Event+" completed", fields...)
		}
		return err
	}
}

// Run is shorthand for m.Wrap(meta, fn)(ctx).
func (m *Middleware) Run(ctx context.Context, meta EventMeta, fn EventFunc) error {
	return m.Wrap(meta, fn)(ctx)
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
