package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/offlinecache/auth"
	"github.com/jonwraymond/offlinecache/cachestore"
	"github.com/jonwraymond/offlinecache/config"
	"github.com/jonwraymond/offlinecache/network"
	"github.com/jonwraymond/offlinecache/observe"
	"github.com/jonwraymond/offlinecache/worker"
)

// app is the wired daemon: storage, telemetry, origin fetcher and worker.
type app struct {
	cfg      config.Config
	storage  cachestore.Storage
	observer observe.Observer
	logger   observe.Logger
	guard    *network.Guard
	worker   *worker.Worker
	closers  []func(context.Context) error
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx, globals.ConfigPath)
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg)
}

// errEphemeralStore rejects one-shot commands against a store that
// vanishes when the process exits.
var errEphemeralStore = errors.New("the memory store does not outlive this command; set store.kind to disk, sqlite or s3")

// loadPersistentApp is loadApp for commands that exit after one operation.
func loadPersistentApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(ctx, globals.ConfigPath)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Kind == config.StoreMemory {
		return nil, errEphemeralStore
	}
	return newApp(ctx, cfg)
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}
	if err := a.init(ctx); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	return a, nil
}

func (a *app) init(ctx context.Context) error {
	cfg := a.cfg
	var err error

	a.observer, err = observe.NewObserver(ctx, cfg.Telemetry())
	if err != nil {
		return fmt.Errorf("observe: %w", err)
	}
	a.closers = append(a.closers, a.observer.Shutdown)
	a.logger = a.observer.Logger()

	storage, closeStorage, err := openStorage(ctx, cfg.Store)
	if err != nil {
		return err
	}
	a.storage = storage
	a.closers = append(a.closers, closeStorage)

	fetcher, err := network.NewHTTPFetcher(cfg.Origin, network.WithMaxBodyBytes(cfg.Fetch.MaxBodyBytes))
	if err != nil {
		return err
	}
	guardCfg := cfg.Guard()
	guardCfg.Breaker.OnStateChange = func(from, to network.BreakerState) {
		a.logger.Warn(context.Background(), "origin breaker changed state",
			observe.Field{Key: "from", Value: from.String()},
			observe.Field{Key: "to", Value: to.String()})
	}
	a.guard = network.NewGuard(fetcher, guardCfg)

	mw, err := observe.MiddlewareFromObserver(a.observer)
	if err != nil {
		return err
	}
	a.worker, err = worker.New(cfg.Worker(), storage, a.guard,
		worker.WithLogger(a.logger),
		worker.WithMiddleware(mw),
		worker.WithConcurrency(cfg.Fetch.InstallConcurrency),
	)
	return err
}

// Close releases storage and flushes telemetry, newest first.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

// authenticator builds the admin authenticator, or nil when auth is off.
func authenticator(cfg config.AuthConfig) (auth.Authenticator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	var auths []auth.Authenticator
	if cfg.JWTKey != "" {
		jwtAuth, err := auth.NewJWTAuthenticator(auth.JWTConfig{
			Key:      []byte(cfg.JWTKey),
			Issuer:   cfg.Issuer,
			Audience: cfg.Audience,
		})
		if err != nil {
			return nil, err
		}
		auths = append(auths, jwtAuth)
	}
	if len(cfg.APIKeys) > 0 {
		keys := make([]auth.APIKey, len(cfg.APIKeys))
		for i, k := range cfg.APIKeys {
			keys[i] = auth.APIKey{ID: k.ID, Key: k.Key, Principal: k.Principal, Roles: k.Roles}
		}
		auths = append(auths, auth.NewAPIKeyAuthenticator("", keys...))
	}
	return auth.NewCompositeAuthenticator(auths...), nil
}
