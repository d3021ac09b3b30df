// Package network is the outbound side of the offline cache: a Fetcher
// that retrieves responses from the origin, and a Guard that bounds each
// call with a timeout, an origin circuit breaker and a concurrency limit.
//
// Nothing in this package retries. A failed fetch is reported to the caller
// exactly once.
package network
