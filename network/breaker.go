package network

import (
	"sync"
	"time"
)

// BreakerState represents the origin circuit breaker state.
type BreakerState int

const (
	// BreakerClosed means fetches flow normally.
	BreakerClosed BreakerState = iota
	// BreakerOpen means fetches fail fast without touching the origin.
	BreakerOpen
	// BreakerHalfOpen means a limited number of probe fetches are allowed.
	BreakerHalfOpen
)

// String returns the string representation of the state.
func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures the origin circuit breaker.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive transport failures that
	// opens the circuit. Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before probing.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// HalfOpenProbes is the number of fetches allowed while half-open.
	// Default: 1
	HalfOpenProbes int

	// OnStateChange is called with the lock held; it must not call back
	// into the breaker.
	OnStateChange func(from, to BreakerState)
}

// Breaker is a consecutive-failure circuit breaker for one origin.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    BreakerState
	failures int
	openedAt time.Time
	probes   int
}

// NewBreaker creates a breaker in the closed state.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenProbes <= 0 {
		config.HalfOpenProbes = 1
	}
	return &Breaker{config: config, now: time.Now}
}

// State returns the current state, moving open to half-open once the
// reset timeout has elapsed.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentLocked()
}

// Allow reserves permission for one fetch. Every successful Allow must be
// followed by exactly one Record.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.currentLocked() {
	case BreakerOpen:
		return ErrCircuitOpen
	case BreakerHalfOpen:
		if b.probes >= b.config.HalfOpenProbes {
			return ErrCircuitOpen
		}
		b.probes++
	}
	return nil
}

// Record reports the outcome of a fetch admitted by Allow.
func (b *Breaker) Record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if !failed {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.MaxFailures {
			b.openLocked()
		}
	case BreakerHalfOpen:
		if failed {
			b.openLocked()
			return
		}
		b.failures = 0
		b.setLocked(BreakerClosed)
	}
}

// Reset forces the breaker closed.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.setLocked(BreakerClosed)
}

func (b *Breaker) currentLocked() BreakerState {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.config.ResetTimeout {
		b.setLocked(BreakerHalfOpen)
	}
	return b.state
}

func (b *Breaker) openLocked() {
	b.openedAt = b.now()
	b.setLocked(BreakerOpen)
}

func (b *Breaker) setLocked(to BreakerState) {
	from := b.state
	b.state = to
	b.probes = 0
	if from != to && b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}
