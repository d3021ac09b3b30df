// Package worker implements the offline cache manager: the install,
// activate and fetch handlers of a service-worker style lifecycle.
//
// A Worker owns no state of its own beyond its Config. Caches live in an
// injected cachestore.Storage and network access goes through an injected
// network.Fetcher, so the same handlers run against memory, disk, SQLite
// or S3 storage and against a real origin or a test double.
//
// The host is responsible for ordering: OnInstall, then OnActivate, then
// any number of concurrent OnFetch calls.
package worker
