// Package host runs a worker's lifecycle and serves it over HTTP.
//
// Start installs the current cache and then activates it. After that every
// request is handed to the worker's fetch handler and answered from cache
// or the origin, with an X-Offline-Cache header naming which. Admin routes
// under /_offline/ expose cache stats and re-run install or activate.
package host
