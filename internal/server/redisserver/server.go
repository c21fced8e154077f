package redisserver

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/yndnr/kvmesh-go/internal/core/domain"
	"github.com/yndnr/kvmesh-go/internal/telemetry/metric"
)

// Config holds the RESP server configuration.
type Config struct {
	// ReadTimeout bounds reading one command once its first byte arrived.
	ReadTimeout time.Duration
	// WriteTimeout bounds writing one reply.
	WriteTimeout time.Duration
	// IdleTimeout closes connections that send nothing.
	IdleTimeout time.Duration

	// MaxConnections caps concurrent clients; further clients get an error
	// and are disconnected.
	MaxConnections int64

	// RateLimit is commands per second per connection; 0 disables it.
	RateLimit float64
	RateBurst int

	// MaxBulkLen bounds a single command argument.
	MaxBulkLen int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    5 * time.Minute,
		MaxConnections: 10000,
		MaxBulkLen:     DefaultMaxBulkLen,
	}
}

// Server accepts RESP connections.
type Server struct {
	cfg     Config
	handler *CommandHandler
	logger  *slog.Logger
	metrics *metric.Registry
	slots   *semaphore.Weighted

	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	closing atomic.Bool
	wg      sync.WaitGroup
}

// New creates a server. metrics may be nil.
func New(cfg Config, handler *CommandHandler, metrics *metric.Registry, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = def.MaxConnections
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:     cfg,
		handler: handler,
		logger:  logger,
		metrics: metrics,
		slots:   semaphore.NewWeighted(cfg.MaxConnections),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Serve accepts connections on ln until Shutdown. It returns nil once the
// server is shut down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing.Load() {
		s.mu.Unlock()
		_ = ln.Close()
		return nil
	}
	s.ln = ln
	s.mu.Unlock()
	s.logger.Info("resp server listening", "addr", ln.Addr().String())

	for {
		c, err := ln.Accept()
		if err != nil {
			if s.closing.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}

		if !s.slots.TryAcquire(1) {
			s.logger.Warn("resp connection rejected", "remote", c.RemoteAddr().String(), "reason", "max clients")
			_ = c.SetWriteDeadline(time.Now().Add(time.Second))
			_, _ = io.WriteString(c, "-ERR max number of clients reached\r\n")
			_ = c.Close()
			continue
		}

		if !s.admit(c) {
			_ = c.Close()
			s.slots.Release(1)
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.slots.Release(1)
			defer s.release(c)
			s.serveConn(ctx, c)
		}()
	}
}

// admit registers c and counts it in wg, unless Shutdown has begun. Both
// happen under mu, which Shutdown holds while it sets closing, so wg.Add
// never races the final wg.Wait.
func (s *Server) admit(c net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing.Load() {
		return false
	}
	s.conns[c] = struct{}{}
	s.wg.Add(1)
	if s.metrics != nil {
		s.metrics.Connections.Inc()
	}
	return true
}

func (s *Server) release(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.Connections.Dec()
	}
}

// Shutdown stops accepting, interrupts idle connections and waits for the
// connection goroutines to exit.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing.Store(true)
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	for c := range s.conns {
		// Unblocks pending reads; in-flight replies still get written.
		_ = c.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	if errors.Is(err, net.ErrClosed) {
		err = nil
	}
	return err
}

func (s *Server) serveConn(ctx context.Context, c net.Conn) {
	defer c.Close()

	remote := c.RemoteAddr().String()
	r := NewReader(c, s.cfg.MaxBulkLen)
	w := NewWriter(c)

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), max(s.cfg.RateBurst, 1))
	}

	reply := func() bool {
		if err := c.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
			return false
		}
		return w.Flush() == nil
	}

	for {
		if s.closing.Load() {
			return
		}

		// Idle clients may wait up to IdleTimeout for their next command;
		// once it starts it must arrive within ReadTimeout.
		if err := c.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout)); err != nil {
			return
		}
		if err := r.Peek(); err != nil {
			s.logClose(remote, err)
			return
		}
		if err := c.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}

		args, err := r.ReadCommand()
		if err != nil {
			if errors.Is(err, ErrLimitExceeded) || errors.Is(err, ErrProtocol) {
				s.logger.Warn("resp protocol error", "remote", remote, "error", err)
				w.Error("ERR " + err.Error())
				reply()
			} else {
				s.logClose(remote, err)
			}
			return
		}
		if len(args) == 0 {
			continue
		}

		if limiter != nil && !limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimited.WithLabelValues("resp").Inc()
			}
			w.Error(formatError(domain.ErrRateLimited))
			if !reply() {
				return
			}
			continue
		}

		quit := s.handler.Handle(ctx, w, args) != nil
		if !reply() || quit {
			return
		}
	}
}

func (s *Server) logClose(remote string, err error) {
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF):
	case errors.As(err, &ne) && ne.Timeout():
		if !s.closing.Load() {
			s.logger.Debug("resp connection idle timeout", "remote", remote)
		}
	default:
		s.logger.Debug("resp connection closed", "remote", remote, "error", err)
	}
}
