// Package health reports whether the offline cache daemon can serve.
//
// A Checker reports one component. The Aggregator runs checkers together
// and folds their results into a single Status. Three checkers cover the
// daemon itself:
//
//   - CacheChecker: the current cache exists and holds the whole manifest.
//   - Lifecycle: the host has finished install and activate.
//   - BreakerChecker: the origin circuit breaker is closed.
//
// # HTTP Endpoints
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health
//
// Degraded results keep /readyz at 200 so a daemon whose origin is down
// still serves from its cache.
package health
