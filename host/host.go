package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonwraymond/offlinecache/auth"
	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/health"
	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
	"github.com/jonwraymond/offlinecache/worker"
)

// HeaderCache reports how a response was produced: hit, miss or
// passthrough.
const HeaderCache = "X-Offline-Cache"

var (
	// ErrNotStarted is returned by admin operations before Start succeeds.
	ErrNotStarted = errors.New("host: not started")

	// ErrAlreadyStarted is returned by a second Start.
	ErrAlreadyStarted = errors.New("host: already started")
)

// Host owns one Worker and its storage.
type Host struct {
	worker    *worker.Worker
	storage   cachestore.Storage
	logger    observe.Logger
	authn     auth.Authenticator
	metrics   http.Handler
	lifecycle *health.Lifecycle
	health    *health.Aggregator

	// mu serialises install and activate.
	mu       sync.Mutex
	starting atomic.Bool
	started  atomic.Bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger. Default: no-op.
func WithLogger(l observe.Logger) Option {
	return func(h *Host) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithAuthenticator protects the admin routes. Without one they are open.
func WithAuthenticator(a auth.Authenticator) Option {
	return func(h *Host) { h.authn = a }
}

// WithMetricsHandler serves h at GET /metrics.
func WithMetricsHandler(m http.Handler) Option {
	return func(h *Host) { h.metrics = m }
}

// WithBreaker adds an "origin" health check for the origin breaker.
func WithBreaker(b *network.Breaker) Option {
	return func(h *Host) {
		if b != nil {
			h.health.Register(health.NewBreakerChecker(b))
		}
	}
}

// New creates a host for w, which must have been built over storage.
func New(w *worker.Worker, storage cachestore.Storage, opts ...Option) (*Host, error) {
	if w == nil {
		return nil, errors.New("host: worker is nil")
	}
	if storage == nil {
		return nil, worker.ErrNilStorage
	}
	cfg := w.Config()
	h := &Host{
		worker:    w,
		storage:   storage,
		logger:    observe.NopLogger(),
		lifecycle: &health.Lifecycle{},
		health:    health.NewAggregator(health.AggregatorConfig{Timeout: 5 * time.Second}),
	}
	h.health.Register(h.lifecycle)
	h.health.Register(health.NewCacheChecker(storage, cfg.CacheName(), cfg.Manifest))
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With(observe.Field{Key: "cache", Value: cfg.CacheName()})
	return h, nil
}

// Lifecycle returns the phase tracker.
func (h *Host) Lifecycle() *health.Lifecycle {
	return h.lifecycle
}

// Health returns the aggregator behind the probe routes.
func (h *Host) Health() *health.Aggregator {
	return h.health
}

// Start installs then activates. An install failure fails Start and leaves
// the host unready. An activate failure is logged and Start still
// succeeds, since stale caches are retried on the next activate.
func (h *Host) Start(ctx context.Context) error {
	if !h.starting.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	if err := h.Install(ctx); err != nil {
		h.starting.Store(false)
		return err
	}

	deleted, err := h.activate(ctx)
	h.started.Store(true)
	if err != nil {
		h.logger.Warn(ctx, "activate incomplete",
			observe.Field{Key: "deleted", Value: deleted},
			observe.Field{Key: "error", Value: err.Error()})
		h.lifecycle.Set(health.PhaseReady, err)
		return nil
	}
	h.lifecycle.Set(health.PhaseReady, nil)
	h.logger.Info(ctx, "offline cache ready", observe.Field{Key: "deleted", Value: deleted})
	return nil
}

// Install runs the worker's install step. Once started, a failed
// re-install leaves the host serving the previous entries and only
// degrades the lifecycle check.
func (h *Host) Install(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	started := h.started.Load()
	if !started {
		h.lifecycle.Set(health.PhaseInstalling, nil)
	}
	err := h.worker.OnInstall(ctx)
	switch {
	case err != nil && started:
		h.lifecycle.Set(health.PhaseReady, err)
	case err != nil:
		h.lifecycle.Set(health.PhaseFailed, err)
	case started:
		h.lifecycle.Set(health.PhaseReady, nil)
	}
	if err != nil {
		return fmt.Errorf("host: install: %w", err)
	}
	return nil
}

// Activate runs the worker's activate step and returns the deleted caches.
func (h *Host) Activate(ctx context.Context) ([]string, error) {
	if !h.started.Load() {
		return nil, ErrNotStarted
	}
	deleted, err := h.activate(ctx)
	h.lifecycle.Set(health.PhaseReady, err)
	return deleted, err
}

func (h *Host) activate(ctx context.Context) ([]string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.started.Load() {
		h.lifecycle.Set(health.PhaseActivating, nil)
	}
	return h.worker.Activate(ctx)
}

// Ready reports whether Start has completed.
func (h *Host) Ready() bool {
	return h.started.Load()
}
