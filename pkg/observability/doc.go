// Package observability provides structured logging, Prometheus metrics,
// optional OpenTelemetry tracing, and health check endpoints for the
// storefront service.
package observability
