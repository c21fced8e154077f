// Package httpserver serves the kvmesh HTTP API.
//
// Every route registered by the handler package is wrapped in the same
// middleware chain:
//
//	Recover -> RequestID -> Metrics -> AccessLog -> RateLimit -> route
//
// AccessLog is only installed when per-request logging is enabled and
// RateLimit only when a rate is configured. /metrics is served from the
// Prometheus registry with Recover and RequestID only.
package httpserver
