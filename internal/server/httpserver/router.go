package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/kvmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// RouterConfig holds the router dependencies.
type RouterConfig struct {
	Handler *handler.Handler
	Metrics *metric.Registry
	Logger  *slog.Logger

	// EachRequest enables the access log.
	EachRequest bool

	// RateLimit is requests per second per client IP; 0 disables it.
	RateLimit float64
	RateBurst int
}

// NewRouter mounts every API route with the middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	var limiter *IPRateLimiter
	if cfg.RateLimit > 0 {
		limiter = NewIPRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}

	mux := http.NewServeMux()
	for _, rt := range cfg.Handler.Routes() {
		mws := []Middleware{Recover(log), RequestID()}
		if cfg.Metrics != nil {
			mws = append(mws, Metrics(cfg.Metrics, rt.Pattern))
		}
		if cfg.EachRequest {
			mws = append(mws, AccessLog(log))
		}
		if limiter != nil {
			mws = append(mws, RateLimit(limiter, cfg.Metrics))
		}
		mux.Handle(rt.Pattern, Chain(rt.Handler, mws...))
	}

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log), RequestID()))
	}
	return handler.CanonicalPath(mux)
}
