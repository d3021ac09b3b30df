package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
)

// Manager responds to the three lifecycle events.
//
// Contract:
//   - Concurrency: OnFetch is safe for concurrent use. OnInstall and
//     OnActivate are called once per version by the host, in that order.
//   - Context: every method honors cancellation; a canceled install leaves
//     the cache without any of that attempt's entries.
//   - Errors: OnInstall fails as a whole if any manifest URL fails.
//     OnActivate returns every deletion failure joined. OnFetch returns
//     network errors unchanged.
type Manager interface {
	OnInstall(ctx context.Context) error
	OnActivate(ctx context.Context) error
	OnFetch(ctx context.Context, req *network.Request) (*cachestore.Response, error)
}

// Worker is the cache manager for one application version.
type Worker struct {
	cfg         Config
	storage     cachestore.Storage
	fetcher     network.Fetcher
	logger      observe.Logger
	mw          *observe.Middleware
	concurrency int
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger for lifecycle diagnostics. Default: no-op.
func WithLogger(l observe.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithMiddleware wraps every event with tracing and metrics.
// Default: observe.NoopMiddleware().
func WithMiddleware(mw *observe.Middleware) Option {
	return func(w *Worker) {
		if mw != nil {
			w.mw = mw
		}
	}
}

// WithConcurrency bounds parallel fetches during install.
// Default: cachestore.DefaultAddAllConcurrency.
func WithConcurrency(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// New creates a Worker. The config is validated and copied.
func New(cfg Config, storage cachestore.Storage, fetcher network.Fetcher, opts ...Option) (*Worker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if storage == nil {
		return nil, ErrNilStorage
	}
	if fetcher == nil {
		return nil, ErrNilFetcher
	}
	cfg.Manifest = append([]string(nil), cfg.Manifest...)

	w := &Worker{
		cfg:         cfg,
		storage:     storage,
		fetcher:     fetcher,
		logger:      observe.NopLogger(),
		mw:          observe.NoopMiddleware(),
		concurrency: cachestore.DefaultAddAllConcurrency,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Config returns a copy of the worker configuration.
func (w *Worker) Config() Config {
	cfg := w.cfg
	cfg.Manifest = append([]string(nil), w.cfg.Manifest...)
	return cfg
}

// CacheName returns the current cache identifier.
func (w *Worker) CacheName() string {
	return w.cfg.CacheName()
}

// OnInstall opens the current cache and fills it with every manifest URL.
// Nothing is stored unless every fetch succeeds with a 2xx status.
// Re-running it overwrites the same entries.
func (w *Worker) OnInstall(ctx context.Context) error {
	name := w.cfg.CacheName()
	meta := observe.EventMeta{Event: observe.EventInstall, Cache: name}

	return w.mw.Run(ctx, meta, func(ctx context.Context) error {
		w.logger.Info(ctx, "installing cache",
			observe.Field{Key: "cache", Value: name},
			observe.Field{Key: "assets", Value: len(w.cfg.Manifest)},
		)

		cache, err := w.storage.Open(ctx, name)
		if err != nil {
			return fmt.Errorf("worker: open cache %s: %w", name, err)
		}
		if err := cachestore.AddAll(ctx, cache, network.Loader(w.fetcher), w.cfg.Manifest, w.concurrency); err != nil {
			return fmt.Errorf("worker: install %s: %w", name, err)
		}
		return nil
	})
}

// OnActivate deletes every stale cache of this application.
func (w *Worker) OnActivate(ctx context.Context) error {
	_, err := w.Activate(ctx)
	return err
}

// Activate deletes every cache whose name carries the prefix but is not
// the current identifier, and returns the names it removed. Deletions run
// concurrently; one failure does not stop the others, and all failures are
// returned joined. Caches without the prefix are never touched.
func (w *Worker) Activate(ctx context.Context) ([]string, error) {
	meta := observe.EventMeta{Event: observe.EventActivate, Cache: w.cfg.CacheName()}
	var deleted []string

	err := w.mw.Run(ctx, meta, func(ctx context.Context) error {
		names, err := w.storage.Keys(ctx)
		if err != nil {
			return fmt.Errorf("worker: list caches: %w", err)
		}
		stale := w.cfg.StaleCaches(names)

		removed := make([]bool, len(stale))
		errs := make([]error, len(stale))
		var wg sync.WaitGroup
		for i, name := range stale {
			wg.Go(func() {
				w.logger.Info(ctx, "deleting cache", observe.Field{Key: "cache", Value: name})
				ok, err := w.storage.Delete(ctx, name)
				if err != nil {
					errs[i] = fmt.Errorf("worker: delete cache %s: %w", name, err)
					return
				}
				removed[i] = ok
			})
		}
		wg.Wait()

		for i, name := range stale {
			if removed[i] {
				deleted = append(deleted, name)
				w.mw.Metrics().RecordDeleted(ctx, name)
			}
		}
		return errors.Join(errs...)
	})
	return deleted, err
}

// OnFetch answers req from any cache, falling back to the network.
func (w *Worker) OnFetch(ctx context.Context, req *network.Request) (*cachestore.Response, error) {
	resp, _, err := w.Fetch(ctx, req)
	return resp, err
}

// Fetch is OnFetch that also reports how the request was answered.
//
// GET and HEAD requests are looked up across every cache in creation
// order. A hit is returned without touching the network. A miss makes
// exactly one network call whose response is returned as-is and never
// stored. Other methods go straight to the network. A failed lookup is
// logged and handled as a miss.
func (w *Worker) Fetch(ctx context.Context, req *network.Request) (*cachestore.Response, observe.FetchResult, error) {
	if req == nil {
		return nil, "", ErrNilRequest
	}
	meta := observe.EventMeta{
		Event:  observe.EventFetch,
		Cache:  w.cfg.CacheName(),
		Method: req.Method,
		URL:    req.URL,
	}

	var (
		resp   *cachestore.Response
		result observe.FetchResult
	)
	err := w.mw.Run(ctx, meta, func(ctx context.Context) error {
		urlField := observe.Field{Key: "url", Value: req.URL}

		if !req.IsCacheable() {
			result = observe.FetchPassthrough
			w.logger.Debug(ctx, "passing request through", urlField, observe.Field{Key: "method", Value: req.Method})
			var err error
			resp, err = w.fetcher.Fetch(ctx, req)
			return err
		}

		cached, ok, err := w.storage.Match(ctx, req.URL)
		if err != nil {
			w.logger.Warn(ctx, "cache lookup failed", urlField, observe.Field{Key: "error", Value: err.Error()})
		}
		if ok {
			result = observe.FetchHit
			w.logger.Info(ctx, "responding with cache", urlField)
			resp = cached
			return nil
		}

		result = observe.FetchMiss
		w.logger.Info(ctx, "file is not cached, fetching", urlField)
		resp, err = w.fetcher.Fetch(ctx, req)
		return err
	})

	if result != "" {
		w.mw.Metrics().RecordFetch(ctx, result)
	}
	if err != nil {
		return nil, result, err
	}
	return resp, result, nil
}

// Ensure Worker implements Manager
var _ Manager = (*Worker)(nil)
