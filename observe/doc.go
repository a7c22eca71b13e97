// Package observe provides the logging, metrics and tracing used across the
// inference pipeline.
//
// An Observer owns the OpenTelemetry tracer and meter providers and a
// structured Logger. Components receive these by injection; nothing here
// reads globals after construction. A Middleware combines the three around
// one unit of work (a dispatch, an analysis) and is what the scheduler wraps
// every inference call in.
package observe
