package health

import (
	"context"
	"sync"
	"time"
)

// Phase is the host lifecycle position.
type Phase int

const (
	PhaseStarting Phase = iota
	PhaseInstalling
	PhaseActivating
	PhaseReady
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseStarting:
		return "starting"
	case PhaseInstalling:
		return "installing"
	case PhaseActivating:
		return "activating"
	case PhaseReady:
		return "ready"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Lifecycle tracks the host phase and reports it as a health check.
// The zero value is ready to use and starts in PhaseStarting.
type Lifecycle struct {
	mu      sync.RWMutex
	phase   Phase
	err     error
	changed time.Time
}

// Set moves to phase, recording err for PhaseFailed. A non-nil err on
// PhaseReady is kept as a warning.
func (l *Lifecycle) Set(phase Phase, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.phase = phase
	l.err = err
	l.changed = time.Now()
}

// Phase returns the current phase and its error.
func (l *Lifecycle) Phase() (Phase, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.phase, l.err
}

// Name returns "lifecycle".
func (l *Lifecycle) Name() string {
	return "lifecycle"
}

// Check is healthy once ready, degraded while ready with a warning (such
// as a failed stale-cache cleanup), and unhealthy before that or on failure.
func (l *Lifecycle) Check(_ context.Context) Result {
	l.mu.RLock()
	phase, err, changed := l.phase, l.err, l.changed
	l.mu.RUnlock()

	details := map[string]any{"phase": phase.String()}
	if !changed.IsZero() {
		details["since"] = changed.UTC().Format(time.RFC3339)
	}

	switch {
	case phase == PhaseReady && err == nil:
		return Healthy("ready").WithDetails(details)
	case phase == PhaseReady:
		r := Degraded("ready with warnings").WithDetails(details)
		r.Error = err
		return r
	case phase == PhaseFailed:
		return Unhealthy("lifecycle failed", err).WithDetails(details)
	default:
		return Unhealthy(phase.String(), ErrCheckFailed).WithDetails(details)
	}
}

var _ Checker = (*Lifecycle)(nil)
