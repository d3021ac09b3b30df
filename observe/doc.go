// Package observe provides observability primitives for the offline cache
// lifecycle.
//
// It wires OpenTelemetry tracer and meter providers, a structured JSON
// logger, and a Middleware that wraps install, activate and fetch events
// with a span, metrics and a log line. Nothing here touches caches or the
// network; the worker and host packages call into it.
package observe
