// Package metric exposes kvmesh metrics in Prometheus format.
//
// Registry owns a private prometheus.Registry with the Go runtime and
// process collectors, the request counters updated by the HTTP and RESP
// servers, and a StoreCollector that reads store statistics at scrape
// time. Handler serves the registry at /metrics.
package metric
