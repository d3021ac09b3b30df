package host

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/jonwraymond/offlinecache/observe"
)

// ServerConfig bounds the HTTP server.
type ServerConfig struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// ListenAndServe starts h, serves until ctx ends, then shuts down
// gracefully. Start runs after the listener is bound, so probes answer
// while install is in progress; an install failure stops the server.
func (h *Host) ListenAndServe(ctx context.Context, cfg ServerConfig) error {
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("host: listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	h.logger.Info(ctx, "listening", observe.Field{Key: "addr", Value: ln.Addr().String()})

	startErr := make(chan error, 1)
	go func() {
		startErr <- h.Start(ctx)
	}()

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("host: shutdown: %w", err)
		}
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return shutdown()
		case err := <-startErr:
			if err != nil {
				return errors.Join(err, shutdown())
			}
			startErr = nil
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("host: serve: %w", err)
		}
	}
}
