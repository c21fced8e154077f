// Package main provides the entry point for kvmesh-server.
//
// The server hosts one lock-free key-value store and exposes it through:
//
//   - an HTTP/JSON API with Prometheus metrics
//   - an optional Redis-compatible (RESP) listener
//   - an optional Unix socket for local administration (server.local.socket)
//
// Usage:
//
//	kvmesh-server [flags]
//	kvmesh-server -config /etc/kvmesh/config.yaml
//	kvmesh-server -no-logs
//
// At startup the configured persistence backend is loaded into the store
// before any listener opens. At shutdown the listeners drain first and the
// store is saved afterwards when storage.save_on_shutdown is set.
package main
