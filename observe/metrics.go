package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// FetchResult classifies how a fetch was answered.
type FetchResult string

const (
	FetchHit         FetchResult = "hit"
	FetchMiss        FetchResult = "miss"
	FetchPassthrough FetchResult = "passthrough"
)

// Metrics records lifecycle metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordEvent records one lifecycle event with its duration and outcome.
	RecordEvent(ctx context.Context, meta EventMeta, duration time.Duration, err error)

	// RecordFetch counts one fetch by how it was answered.
	RecordFetch(ctx context.Context, result FetchResult)

	// RecordDeleted counts one stale cache removed during activate.
	RecordDeleted(ctx context.Context, cache string)
}

type metricsImpl struct {
	installTotal metric.Int64Counter
	fetchTotal   metric.Int64Counter
	deleted      metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the lifecycle instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	installTotal, err := meter.Int64Counter(
		"offline.install.total",
		metric.WithDescription("Number of install attempts"),
		metric.WithUnit("{install}"),
	)
	if err != nil {
		return nil, err
	}

	fetchTotal, err := meter.Int64Counter(
		"offline.fetch.total",
		metric.WithDescription("Number of intercepted fetches by result"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	deleted, err := meter.Int64Counter(
		"offline.activate.deleted",
		metric.WithDescription("Number of stale caches deleted on activate"),
		metric.WithUnit("{cache}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"offline.event.errors",
		metric.WithDescription("Number of failed lifecycle events"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"offline.event.duration_ms",
		metric.WithDescription("Lifecycle event duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		installTotal: installTotal,
		fetchTotal:   fetchTotal,
		deleted:      deleted,
		errorCount:   errorCount,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordEvent(ctx context.Context, meta EventMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("event", meta.Event))

	if meta.Event == EventInstall {
		m.installTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("cache", meta.Cache),
			attribute.Bool("error", err != nil),
		))
	}
	if err != nil {
		m.errorCount.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Microseconds())/1000, opt)
}

func (m *metricsImpl) RecordFetch(ctx context.Context, result FetchResult) {
	m.fetchTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("result", string(result))))
}

func (m *metricsImpl) RecordDeleted(ctx context.Context, cache string) {
	m.deleted.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache)))
}

// NoopMetrics returns a Metrics that records nothing.
func NoopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordEvent(context.Context, EventMeta, time.Duration, error) {}
func (noopMetrics) RecordFetch(context.Context, FetchResult)                     {}
func (noopMetrics) RecordDeleted(context.Context, string)                        {}
