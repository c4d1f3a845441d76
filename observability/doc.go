// Package observability provides an OpenTelemetry metrics extension for
// jobtrack. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for submissions, progress reports, outcomes and
// retention sweeps.
//
// For per-execution tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
