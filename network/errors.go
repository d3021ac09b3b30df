package network

import "errors"

// Sentinel errors for network operations.
var (
	// ErrNilRequest is returned when Fetch is called without a request.
	ErrNilRequest = errors.New("network: request is nil")

	// ErrInvalidOrigin is returned when the origin URL cannot be used.
	ErrInvalidOrigin = errors.New("network: invalid origin")

	// ErrBodyTooLarge is returned when a response exceeds the body limit.
	ErrBodyTooLarge = errors.New("network: response body too large")

	// ErrTimeout is returned when a guarded fetch exceeds its deadline.
	ErrTimeout = errors.New("network: fetch timed out")

	// ErrCircuitOpen is returned while the origin breaker is open.
	ErrCircuitOpen = errors.New("network: origin circuit is open")

	// ErrBulkheadFull is returned when no fetch slot is available.
	ErrBulkheadFull = errors.New("network: too many concurrent fetches")
)
