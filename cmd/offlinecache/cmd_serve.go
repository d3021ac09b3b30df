package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/jonwraymond/offlinecache/host"
	"github.com/jonwraymond/offlinecache/observe"
)

var cmdServe = &cobra.Command{
	Use:   "serve",
	Short: "Install, activate and serve the current cache",
	Long: `
The "serve" command binds the listen address, installs the current cache
version, removes stale caches and then answers requests from the cache,
falling back to the origin for anything not cached.

Probes are served at /healthz, /readyz and /health. Admin routes live under
/_offline/.
`,
	DisableAutoGenTag: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	cmdRoot.AddCommand(cmdServe)
}

func runServe(ctx context.Context) (err error) {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, a.Close(context.Background())) }()

	authn, err := authenticator(a.cfg.Auth)
	if err != nil {
		return err
	}
	opts := []host.Option{
		host.WithLogger(a.logger),
		host.WithAuthenticator(authn),
		host.WithBreaker(a.guard.Breaker()),
	}
	if mh, ok := a.observer.(observe.MetricsHandler); ok && a.cfg.Observe.Metrics.Exporter == "prometheus" {
		opts = append(opts, host.WithMetricsHandler(mh.MetricsHandler()))
	}

	h, err := host.New(a.worker, a.storage, opts...)
	if err != nil {
		return err
	}
	return h.ListenAndServe(ctx, host.ServerConfig{Addr: a.cfg.Listen})
}
