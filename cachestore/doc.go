// Package cachestore provides named, versioned response caches.
//
// A Storage holds any number of named caches; each Cache maps canonical
// request URLs to stored responses. Memory, disk, SQLite and S3 backends
// share the same contract, and AddAll populates a cache all-or-nothing from
// a fetch function.
package cachestore
