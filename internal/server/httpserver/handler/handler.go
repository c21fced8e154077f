package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/core/service"
	"github.com/yndnr/kvmesh-go/internal/telemetry/logger"
)

// Route is one registered endpoint.
type Route struct {
	Pattern string
	Handler http.Handler
}

// Handler serves the kvmesh API.
type Handler struct {
	svc     *service.KVService
	logger  *slog.Logger
	ready   func() bool
	started time.Time
	mux     http.Handler
}

// Option configures a Handler.
type Option func(*Handler)

// WithReady sets the readiness check used by GET /ready.
func WithReady(fn func() bool) Option {
	return func(h *Handler) {
		h.ready = fn
	}
}

// WithStartTime sets the process start time reported as uptime.
func WithStartTime(t time.Time) Option {
	return func(h *Handler) {
		h.started = t
	}
}

// New creates a handler over svc.
func New(svc *service.KVService, logger *slog.Logger, opts ...Option) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		svc:     svc,
		logger:  logger,
		ready:   func() bool { return true },
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(h)
	}
	mux := http.NewServeMux()
	for _, rt := range h.Routes() {
		mux.Handle(rt.Pattern, rt.Handler)
	}
	h.mux = CanonicalPath(mux)
	return h
}

// Routes returns every API route. The caller mounts them on a mux and may
// wrap each one with middleware.
func (h *Handler) Routes() []Route {
	return []Route{
		{"GET /health", http.HandlerFunc(h.handleHealth)},
		{"GET /ready", http.HandlerFunc(h.handleReady)},

		{"GET /kv/{key...}", http.HandlerFunc(h.handleGet)},
		{"PUT /kv/{key...}", http.HandlerFunc(h.handlePut)},
		{"POST /kv/{key...}", http.HandlerFunc(h.handlePut)},
		{"POST /kv", http.HandlerFunc(h.handleSetJSON)},
		{"GET /kv", http.HandlerFunc(h.handleList)},

		{"GET /stats", http.HandlerFunc(h.handleStats)},

		{"GET /admin/v1/status", http.HandlerFunc(h.handleAdminStatus)},
		{"POST /admin/v1/snapshot", http.HandlerFunc(h.handleSnapshot)},
	}
}

// ServeHTTP serves the routes without middleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// CanonicalPath answers KV-ARG-4000 where ServeMux would clean the path
// and redirect, such as /kv/a//b or /kv/dir/./f. A followed redirect drops
// the request body. Keys with such segments must escape '/' as %2F.
func CanonicalPath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.EscapedPath(); p != cleanPath(p) {
			WriteError(w, r, domain.ErrInvalidInput.WithDetails("non-canonical path "+p+", escape '/' in keys as %2F"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// cleanPath mirrors the canonicalisation ServeMux applies before routing.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if p[0] != '/' {
		p = "/" + p
	}
	np := path.Clean(p)
	if p[len(p)-1] == '/' && np != "/" {
		np += "/"
	}
	return np
}

// writeJSON writes data in the success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := logger.RequestIDFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.WarnContext(r.Context(), "failed to encode response", "error", err)
	}
}

// WriteError writes an error envelope. It is shared with the middleware.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	code, message, details := "KV-SYS-5000", "internal error", ""
	var de *domain.DomainError
	if errors.As(err, &de) {
		code, message, details = de.Code, de.Message, de.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(StatusForCode(code))
	_ = json.NewEncoder(w).Encode(NewErrorResponse(logger.RequestIDFromContext(r.Context()), code, message, details))
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if !domain.IsDomainError(err, "") || StatusForCode(domain.GetErrorCode(err)) >= 500 {
		h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
	}
	WriteError(w, r, err)
}

// StatusForCode maps a KV-<AREA>-<NNNN> code to its HTTP status, which is
// the first three digits of NNNN.
func StatusForCode(code string) int {
	i := strings.LastIndexByte(code, '-')
	if i < 0 || len(code)-i-1 != 4 {
		return http.StatusInternalServerError
	}
	status, err := strconv.Atoi(code[i+1 : i+4])
	if err != nil || status < 400 || status > 599 {
		return http.StatusInternalServerError
	}
	return status
}

// ClientIP returns the host part of the request's remote address.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
