package worker

import "errors"

var (
	// ErrInvalidConfig is returned when a Config fails validation.
	ErrInvalidConfig = errors.New("worker: invalid config")

	// ErrNilStorage is returned when New is called without a Storage.
	ErrNilStorage = errors.New("worker: storage is nil")

	// ErrNilFetcher is returned when New is called without a Fetcher.
	ErrNilFetcher = errors.New("worker: fetcher is nil")

	// ErrNilRequest is returned when OnFetch is called without a request.
	ErrNilRequest = errors.New("worker: request is nil")
)
