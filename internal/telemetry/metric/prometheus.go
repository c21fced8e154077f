package metric

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "kvmesh"

// Registry holds all application metrics.
type Registry struct {
	reg *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec

	// RESP
	CommandsTotal *prometheus.CounterVec
	Connections   prometheus.Gauge

	// Persistence
	SnapshotsTotal   *prometheus.CounterVec
	SnapshotDuration prometheus.Histogram
}

// NewRegistry creates a registry with runtime collectors and the request
// metrics registered.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"method", "route"}),
		RateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"protocol"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "commands_total",
			Help:      "RESP commands by name and result.",
		}, []string{"command", "result"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resp",
			Name:      "connections",
			Help:      "Open RESP connections.",
		}),
		SnapshotsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "saves_total",
			Help:      "Dataset saves by result.",
		}, []string{"result"}),
		SnapshotDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "persistence",
			Name:      "save_duration_seconds",
			Help:      "Time spent writing the dataset to the backend.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.RequestsTotal,
		r.RequestDuration,
		r.RateLimited,
		r.CommandsTotal,
		r.Connections,
		r.SnapshotsTotal,
		r.SnapshotDuration,
	)
	return r
}

// Registerer returns the underlying registerer for components that publish
// their own metrics.
func (r *Registry) Registerer() prometheus.Registerer {
	return r.reg
}

// Gatherer returns the underlying gatherer.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// ObserveRequest records one HTTP request.
func (r *Registry) ObserveRequest(method, route string, code int, d time.Duration) {
	r.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	r.RequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ObserveCommand records one RESP command.
func (r *Registry) ObserveCommand(command string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.CommandsTotal.WithLabelValues(command, result).Inc()
}

// ObserveSave records one dataset save.
func (r *Registry) ObserveSave(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	r.SnapshotsTotal.WithLabelValues(result).Inc()
	r.SnapshotDuration.Observe(d.Seconds())
}

// Handler returns the /metrics handler for the registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{
		Registry:          r.reg,
		EnableOpenMetrics: true,
	})
}
