package network

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/offlinecache/cachestore"
)

// GuardConfig configures a Guard. Zero values disable the matching limit,
// except the breaker which always uses BreakerConfig defaults.
type GuardConfig struct {
	// Timeout bounds each fetch. Zero means no extra deadline.
	Timeout time.Duration

	// MaxConcurrent bounds in-flight fetches. Zero means unbounded.
	MaxConcurrent int

	// MaxWait is how long a fetch waits for a free slot before failing
	// with ErrBulkheadFull. Zero means fail immediately.
	MaxWait time.Duration

	// Breaker configures the origin circuit breaker.
	Breaker BreakerConfig
}

// Guard wraps a Fetcher with a bulkhead, a circuit breaker and a timeout,
// applied in that order from the outside in.
type Guard struct {
	next    Fetcher
	config  GuardConfig
	breaker *Breaker
	slots   chan struct{}
}

// NewGuard creates a guarded fetcher.
func NewGuard(next Fetcher, config GuardConfig) *Guard {
	g := &Guard{
		next:    next,
		config:  config,
		breaker: NewBreaker(config.Breaker),
	}
	if config.MaxConcurrent > 0 {
		g.slots = make(chan struct{}, config.MaxConcurrent)
	}
	return g
}

// Breaker exposes the origin breaker for health reporting.
func (g *Guard) Breaker() *Breaker {
	return g.breaker
}

// Fetch runs the wrapped fetch inside the configured limits.
func (g *Guard) Fetch(ctx context.Context, req *Request) (*cachestore.Response, error) {
	if req == nil {
		return nil, ErrNilRequest
	}
	if err := g.acquire(ctx); err != nil {
		return nil, err
	}
	defer g.release()

	if err := g.breaker.Allow(); err != nil {
		return nil, err
	}

	fetchCtx := ctx
	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	resp, err := g.next.Fetch(fetchCtx, req)
	// A canceled caller says nothing about origin health.
	g.breaker.Record(err != nil && ctx.Err() == nil)

	if err != nil && ctx.Err() == nil && errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
		return nil, errors.Join(ErrTimeout, err)
	}
	return resp, err
}

func (g *Guard) acquire(ctx context.Context) error {
	if g.slots == nil {
		return nil
	}
	select {
	case g.slots <- struct{}{}:
		return nil
	default:
	}
	if g.config.MaxWait <= 0 {
		return ErrBulkheadFull
	}

	timer := time.NewTimer(g.config.MaxWait)
	defer timer.Stop()
	select {
	case g.slots <- struct{}{}:
		return nil
	case <-timer.C:
		return ErrBulkheadFull
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Guard) release() {
	if g.slots == nil {
		return
	}
	<-g.slots
}

// Ensure Guard implements Fetcher
var _ Fetcher = (*Guard)(nil)
