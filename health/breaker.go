package health

import (
	"context"

	"github.com/jonwraymond/offlinecache/network"
)

// BreakerChecker reports the origin circuit breaker. An open breaker
// degrades the daemon: cached assets are still served.
type BreakerChecker struct {
	breaker *network.Breaker
}

// NewBreakerChecker creates a checker for b.
func NewBreakerChecker(b *network.Breaker) *BreakerChecker {
	return &BreakerChecker{breaker: b}
}

// Name returns "origin".
func (c *BreakerChecker) Name() string {
	return "origin"
}

// Check maps closed to healthy and open or half-open to degraded.
func (c *BreakerChecker) Check(context.Context) Result {
	state := c.breaker.State()
	details := map[string]any{"breaker": state.String()}
	if state == network.BreakerClosed {
		return Healthy("origin reachable").WithDetails(details)
	}
	return Degraded("origin circuit " + state.String()).WithDetails(details)
}

var _ Checker = (*BreakerChecker)(nil)
